package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	ingestiondomain "github.com/smallbiznis/posreport/internal/ingestion/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerPayload() map[string]any {
	return map[string]any{
		"branch":       "B1",
		"store":        "S1",
		"terminal":     "T1",
		"si_number":    "1001",
		"date":         "2024-01-01",
		"time":         "10:00",
		"guest_count":  2,
		"gross_amount": "100.00",
		"net_amount":   89.29,
		"vat_amount":   "10.71",
	}
}

func TestIngestHeaderCreateThenUpdate(t *testing.T) {
	ts := newTestServer(t)
	payload := headerPayload()

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/headers", body: payload})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode(t, rec)
	assert.Equal(t, "Header created successfully.", first["message"])
	require.NotEmpty(t, first["id"])
	data := first["data"].(map[string]any)
	assert.Equal(t, "1001", data["si_number"])

	payload["gross_amount"] = "120.00"
	rec = ts.do(t, request{method: http.MethodPost, path: "/api/pos/headers", body: payload})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode(t, rec)
	assert.Equal(t, "Header updated successfully.", second["message"])
	assert.Equal(t, first["id"], second["id"])
	assert.NotContains(t, second, "categoryCreated")

	var count int64
	require.NoError(t, ts.db.Model(&ingestiondomain.Header{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIngestItemReportsAutoCreatedDimensions(t *testing.T) {
	ts := newTestServer(t)
	payload := map[string]any{
		"branch":               "B1",
		"store":                "S1",
		"terminal":             "T1",
		"si":                   "1001",
		"product_code":         "P99",
		"category_code":        "C99",
		"category_description": "Snacks",
		"description":          "Chips",
		"quantity":             1,
		"unit_price":           "45.00",
		"gross_amount":         "45.00",
		"net_amount":           "45.00",
		"date":                 "2024-01-01",
	}

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/items", body: payload})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Item created successfully.", body["message"])
	assert.Equal(t, true, body["categoryCreated"])
	assert.Equal(t, true, body["productCreated"])

	rec = ts.do(t, request{method: http.MethodPost, path: "/api/pos/items", body: payload})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, false, body["categoryCreated"])
	assert.Equal(t, false, body["productCreated"])
}

func TestIngestPaymentAndDiscount(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/payments", body: map[string]any{
		"branch":       "B1",
		"store":        "S1",
		"terminal":     "T1",
		"si_number":    "1001",
		"payment_type": "CASH",
		"amount":       "100.00",
		"date":         "2024-01-01",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Payment created successfully.", decode(t, rec)["message"])

	rec = ts.do(t, request{method: http.MethodPost, path: "/api/pos/discounts", body: map[string]any{
		"branch":          "B1",
		"store":           "S1",
		"terminal":        "T1",
		"si_number":       "1001",
		"date":            "2024-01-01",
		"id_number":       "SC-0001",
		"discount_type":   "SENIOR",
		"discount_amount": "20.00",
		"name":            "Lola Basyang",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Discount created successfully.", decode(t, rec)["message"])
}

func TestIngestValidationEnvelope(t *testing.T) {
	ts := newTestServer(t)

	// A key issued for a branch that has since been removed from reference data.
	now := ts.clock.Now()
	require.NoError(t, ts.db.Create(&apikeydomain.TerminalKey{
		ID: 99, KeyID: "key_STALE", Name: "old counter",
		Branch: "B404", Store: "S1", Terminal: "T1",
		KeyHash:  apikeydomain.HashAPIKey("posk_live_stale"),
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}).Error)

	payload := headerPayload()
	payload["branch"] = "B404"
	rec := ts.do(t, request{
		method: http.MethodPost, path: "/api/pos/headers", body: payload,
		headers: map[string]string{"Authorization": "Bearer posk_live_stale"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"The selected branch is invalid."}, fieldErrors(t, rec)["branch"])

	rec = ts.do(t, request{method: http.MethodPost, path: "/api/pos/headers", body: "{not json"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, fieldErrors(t, rec), "request")

	var count int64
	require.NoError(t, ts.db.Model(&ingestiondomain.Header{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIngestRejectsBlankKeyFields(t *testing.T) {
	ts := newTestServer(t)

	payload := headerPayload()
	payload["terminal"] = "   "
	payload["si_number"] = "  "
	rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/headers", body: payload})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	errs := fieldErrors(t, rec)
	assert.Equal(t, []any{"The terminal field is required."}, errs["terminal"])
	assert.Equal(t, []any{"The si number field is required."}, errs["si_number"])

	rec = ts.do(t, request{method: http.MethodPost, path: "/api/pos/items", body: map[string]any{
		"branch":        "B1",
		"store":         "S1",
		"terminal":      "T1",
		"si_number":     "1001",
		"product_code":  "   ",
		"category_code": " ",
		"description":   "Chips",
		"quantity":      "1",
	}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	errs = fieldErrors(t, rec)
	assert.Contains(t, errs, "product_code")
	assert.Contains(t, errs, "category_code")

	for _, model := range []any{&ingestiondomain.Header{}, &ingestiondomain.Item{}, &ingestiondomain.Product{}, &ingestiondomain.Category{}} {
		var count int64
		require.NoError(t, ts.db.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestIngestRequiresTerminalKey(t *testing.T) {
	ts := newTestServer(t)

	for name, header := range map[string]string{
		"missing":   "",
		"wrong":     "Bearer posk_live_guess",
		"no scheme": ts.posKey,
	} {
		rec := ts.do(t, request{
			method: http.MethodPost, path: "/api/pos/headers", body: headerPayload(),
			headers: map[string]string{"Authorization": header},
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Equal(t, "unauthorized", errorType(t, rec), name)
	}

	var count int64
	require.NoError(t, ts.db.Model(&ingestiondomain.Header{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIngestRejectsOtherTerminalLocation(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.refs.EnsureBranchStore(context.Background(), "B2", "S2"))

	for field, value := range map[string]string{"branch": "B2", "store": "S2", "terminal": "T9"} {
		payload := headerPayload()
		payload[field] = value
		rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/headers", body: payload})
		require.Equal(t, http.StatusForbidden, rec.Code, field)
		assert.Equal(t, "location_mismatch", errorType(t, rec), field)
	}

	// Discounts carry no terminal in their key, so omitting it is fine.
	rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/discounts", body: map[string]any{
		"branch":          "B1",
		"store":           "S1",
		"si_number":       "1001",
		"date":            "2024-01-01",
		"id_number":       "PWD-7",
		"discount_amount": "5.00",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var count int64
	require.NoError(t, ts.db.Model(&ingestiondomain.Header{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIngestFailureCarriesCorrelationID(t *testing.T) {
	ts := newTestServer(t, func(s *Server) { s.ingestSvc = failingIngest{} })

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/headers", body: headerPayload()})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	cid, _ := body["correlation_id"].(string)
	require.NotEmpty(t, cid)
	assert.Equal(t, cid, rec.Header().Get("X-Correlation-Id"))
}

func TestDocumentRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", "viewer")
	cookie := ts.login(t, "ana@example.com", "browser")

	content := "RECEIPT 1001\nTOTAL 100.00\n"
	rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/receipts", body: map[string]any{
		"branch":    "B1",
		"store":     "S1",
		"terminal":  "T1",
		"si_number": "1001",
		"date":      "2024-01-01",
		"content":   base64.StdEncoding.EncodeToString([]byte(content)),
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Receipt created successfully.", body["message"])
	id := body["id"].(string)

	rec = ts.do(t, request{method: http.MethodGet, path: "/api/documents/" + id, cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, content, rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Checksum-Sha256"))

	rec = ts.do(t, request{method: http.MethodGet, path: "/api/documents/not-an-id", cookie: cookie})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, request{method: http.MethodGet, path: "/api/documents/12345", cookie: cookie})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestZReadValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/pos/zreads", body: map[string]any{
		"branch":      "B1",
		"store":       "S1",
		"terminal":    "T1",
		"report_date": "2024-01-01",
		"content":     "not base64!",
	}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, fieldErrors(t, rec), "content")
}

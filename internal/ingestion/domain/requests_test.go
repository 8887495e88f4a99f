package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountAcceptsStringsAndNumbers(t *testing.T) {
	var req HeaderRequest
	body := `{"branch":"B1","store":"S1","terminal":"T1","si":"1001","date":"2024-01-01",
		"time":"10:00","gross_amount":"100.00","net_amount":89.29,"vat_amount":null}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, Amount("100.00"), req.GrossAmount)
	assert.Equal(t, Amount("89.29"), req.NetAmount)
	assert.Equal(t, Amount(""), req.VatAmount)
	assert.Empty(t, req.Validate())

	model := req.Model()
	assert.Equal(t, "1001", model.SINumber)
	assert.True(t, model.NetAmount.Equal(decimal.RequireFromString("89.29")))
	assert.True(t, model.VatAmount.IsZero())
}

func TestAmountRejectsGarbage(t *testing.T) {
	var a Amount
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &a))
	assert.True(t, Amount("abc").Decimal().IsZero())
}

func TestItemCategoryNameFallsBackToCode(t *testing.T) {
	assert.Equal(t, "Snacks", ItemRequest{CategoryCode: "C99", CategoryDescription: " Snacks "}.CategoryName())
	assert.Equal(t, "C99", ItemRequest{CategoryCode: "C99"}.CategoryName())
}

func TestNaturalKeysMatchUniqueIndexes(t *testing.T) {
	h := (&HeaderRequest{
		Location: Location{Branch: " B1 ", Store: "S1", Terminal: "T1"},
		SINumber: "1001", TxnDate: "2024-01-01", TxnTime: "10:00",
	}).Model()
	assert.Equal(t, map[string]any{
		"branch": "B1", "store": "S1", "terminal": "T1",
		"si_number": "1001", "txn_date": "2024-01-01", "txn_time": "10:00",
	}, h.NaturalKey())

	d := (&DiscountRequest{Branch: "B1", Store: "S1", TxnDate: "2024-01-01", SINumber: "1", IDNumber: "X"}).Model()
	assert.NotContains(t, d.NaturalKey(), "terminal")
	assert.Contains(t, d.Attributes(), "terminal")
}

func TestValidateTrimsBeforeChecking(t *testing.T) {
	req := HeaderRequest{
		Location:    Location{Branch: " B1 ", Store: "S1", Terminal: " \t"},
		SI:          " 1001 ",
		TxnDate:     " 2024-01-01",
		TxnTime:     "10:00 ",
		GrossAmount: "1.00",
	}
	errs := req.Validate()
	assert.Equal(t, []string{"The terminal field is required."}, errs["terminal"])
	assert.Len(t, errs, 1)

	req.Terminal = "T1"
	assert.Empty(t, req.Validate())
	model := req.Model()
	assert.Equal(t, "B1", model.Branch)
	assert.Equal(t, "1001", model.SINumber)
	assert.Equal(t, "2024-01-01", model.TxnDate)
	assert.Equal(t, "10:00", model.TxnTime)

	discount := DiscountRequest{Branch: "B1", Store: "S1", TxnDate: "2024-01-01", SINumber: "1", IDNumber: "  ", DiscountAmount: "1"}
	assert.True(t, discount.Validate().Has("id_number"))
}

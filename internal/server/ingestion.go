package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	ingestiondomain "github.com/smallbiznis/posreport/internal/ingestion/domain"
	obslogger "github.com/smallbiznis/posreport/internal/observability/logger"
	"github.com/smallbiznis/posreport/pkg/telemetry/correlation"
	"github.com/smallbiznis/posreport/pkg/validation"
	"go.uber.org/zap"
)

// ingestResponse is the envelope terminals parse after every push.
type ingestResponse struct {
	Message         string `json:"message"`
	Data            any    `json:"data"`
	ID              string `json:"id"`
	CategoryCreated *bool  `json:"categoryCreated,omitempty"`
	ProductCreated  *bool  `json:"productCreated,omitempty"`
}

type ingestFailure struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

func (s *Server) IngestHeader(c *gin.Context) {
	var req ingestiondomain.HeaderRequest
	if !s.bindIngest(c, &req) || !s.allowTerminal(c, req.Branch, req.Store, req.Terminal) {
		return
	}
	res, err := s.ingestSvc.IngestHeader(c.Request.Context(), req)
	if err != nil {
		s.ingestError(c, "header", err)
		return
	}
	s.ingestOK(c, "Header", res.Outcome, res.ID, res.Record, ingestResponse{})
}

func (s *Server) IngestItem(c *gin.Context) {
	var req ingestiondomain.ItemRequest
	if !s.bindIngest(c, &req) || !s.allowTerminal(c, req.Branch, req.Store, req.Terminal) {
		return
	}
	res, err := s.ingestSvc.IngestItem(c.Request.Context(), req)
	if err != nil {
		s.ingestError(c, "item", err)
		return
	}
	s.ingestOK(c, "Item", res.Outcome, res.ID, res.Record, ingestResponse{
		CategoryCreated: &res.CategoryCreated,
		ProductCreated:  &res.ProductCreated,
	})
}

func (s *Server) IngestPayment(c *gin.Context) {
	var req ingestiondomain.PaymentRequest
	if !s.bindIngest(c, &req) || !s.allowTerminal(c, req.Branch, req.Store, req.Terminal) {
		return
	}
	res, err := s.ingestSvc.IngestPayment(c.Request.Context(), req)
	if err != nil {
		s.ingestError(c, "payment", err)
		return
	}
	s.ingestOK(c, "Payment", res.Outcome, res.ID, res.Record, ingestResponse{})
}

func (s *Server) IngestDiscount(c *gin.Context) {
	var req ingestiondomain.DiscountRequest
	if !s.bindIngest(c, &req) || !s.allowTerminal(c, req.Branch, req.Store, req.Terminal) {
		return
	}
	res, err := s.ingestSvc.IngestDiscount(c.Request.Context(), req)
	if err != nil {
		s.ingestError(c, "discount", err)
		return
	}
	s.ingestOK(c, "Discount", res.Outcome, res.ID, res.Record, ingestResponse{})
}

func (s *Server) IngestReceipt(c *gin.Context) {
	var req ingestiondomain.ReceiptRequest
	if !s.bindIngest(c, &req) || !s.allowTerminal(c, req.Branch, req.Store, req.Terminal) {
		return
	}
	res, err := s.ingestSvc.IngestReceipt(c.Request.Context(), req)
	if err != nil {
		s.ingestError(c, "receipt", err)
		return
	}
	s.ingestOK(c, "Receipt", res.Outcome, res.ID, res.Record, ingestResponse{})
}

func (s *Server) IngestZRead(c *gin.Context) {
	var req ingestiondomain.ZReadRequest
	if !s.bindIngest(c, &req) || !s.allowTerminal(c, req.Branch, req.Store, req.Terminal) {
		return
	}
	res, err := s.ingestSvc.IngestZRead(c.Request.Context(), req)
	if err != nil {
		s.ingestError(c, "zread", err)
		return
	}
	s.ingestOK(c, "Z-read", res.Outcome, res.ID, res.Record, ingestResponse{})
}

func (s *Server) bindIngest(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, validationResponse{
			Message: invalidDataMessage,
			Errors:  map[string][]string{"request": {"The request body must be a valid JSON object."}},
		})
		return false
	}
	return true
}

// allowTerminal checks the payload location against the calling terminal's key, then
// applies the per-terminal push budget. A limiter outage lets the push through;
// terminals retry rejected rows anyway.
func (s *Server) allowTerminal(c *gin.Context, branch, store, terminal string) bool {
	ctx := c.Request.Context()
	principal, ok := terminalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return false
	}
	if !principal.Covers(branch, store, terminal) {
		obslogger.WithContext(ctx, s.log).Warn("terminal pushed a record for another location",
			zap.String("key_id", principal.KeyID),
			zap.String("branch", strings.TrimSpace(branch)),
			zap.String("store", strings.TrimSpace(store)),
			zap.String("terminal", strings.TrimSpace(terminal)),
		)
		AbortWithError(c, apikeydomain.ErrLocationMismatch)
		return false
	}

	decision, err := s.ingestLimiter.Allow(ctx, branch, store, terminal)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("ingest rate limiter unavailable", zap.Error(err))
		return true
	}
	if decision.Allowed {
		return true
	}

	s.obsMetrics.RecordRateLimitDenied("ingest")
	if secs := int(decision.RetryAfter.Seconds()); secs > 0 {
		c.Header("Retry-After", strconv.Itoa(secs))
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests from this terminal."})
	return false
}

func (s *Server) ingestOK(c *gin.Context, label string, outcome ingestiondomain.Outcome, id snowflake.ID, record any, resp ingestResponse) {
	status := http.StatusOK
	resp.Message = label + " updated successfully."
	if outcome == ingestiondomain.OutcomeCreated {
		status = http.StatusCreated
		resp.Message = label + " created successfully."
	}
	resp.Data = record
	resp.ID = id.String()
	c.JSON(status, resp)
}

func (s *Server) ingestError(c *gin.Context, kind string, err error) {
	if verrs, ok := validation.As(err); ok {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, validationResponse{
			Message: invalidDataMessage,
			Errors:  verrs,
		})
		return
	}

	ctx, cid := correlation.EnsureCorrelationID(c.Request.Context())
	c.Request = c.Request.WithContext(ctx)
	obslogger.WithContext(ctx, s.log).Error("ingestion failed", zap.String("record_type", kind), zap.Error(err))

	_ = c.Error(err)
	c.Header("X-Correlation-Id", cid)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ingestFailure{
		Message:       "The record could not be stored. Quote the correlation id when reporting this.",
		CorrelationID: cid,
	})
}

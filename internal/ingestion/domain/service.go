package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrIngestionFailed  = errors.New("ingestion_failed")
	ErrDocumentNotFound = errors.New("document_not_found")
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeInvalid Outcome = "invalid"
	OutcomeFailed  Outcome = "failed"
)

type Result[T any] struct {
	Outcome Outcome
	Record  T
	ID      snowflake.ID
}

func (r Result[T]) Created() bool { return r.Outcome == OutcomeCreated }

// ItemResult also reports which dimension rows this submission created.
type ItemResult struct {
	Result[*Item]
	CategoryCreated bool
	ProductCreated  bool
}

type Service interface {
	IngestHeader(ctx context.Context, req HeaderRequest) (*Result[*Header], error)
	IngestItem(ctx context.Context, req ItemRequest) (*ItemResult, error)
	IngestPayment(ctx context.Context, req PaymentRequest) (*Result[*Payment], error)
	IngestDiscount(ctx context.Context, req DiscountRequest) (*Result[*Discount], error)
	IngestReceipt(ctx context.Context, req ReceiptRequest) (*Result[*Document], error)
	IngestZRead(ctx context.Context, req ZReadRequest) (*Result[*Document], error)
	GetDocument(ctx context.Context, id snowflake.ID) (*Document, []byte, error)
}

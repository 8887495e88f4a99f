package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/blobstore"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/ingestion/domain"
	"github.com/smallbiznis/posreport/internal/ingestion/repository"
	"github.com/smallbiznis/posreport/internal/observability/logger"
	"github.com/smallbiznis/posreport/internal/observability/metrics"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"github.com/smallbiznis/posreport/pkg/db"
	"github.com/smallbiznis/posreport/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	kindHeader   = "header"
	kindItem     = "item"
	kindPayment  = "payment"
	kindDiscount = "discount"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Reference refdomain.Repository
	Blobs     blobstore.Store
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	repo      *repository.Repository
	reference refdomain.Repository
	blobs     blobstore.Store
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("ingestion.service"),
		repo:      repository.New(p.DB, p.GenID, p.Clock),
		reference: p.Reference,
		blobs:     p.Blobs,
		metrics:   p.Metrics,
	}
}

func (s *Service) IngestHeader(ctx context.Context, req domain.HeaderRequest) (*domain.Result[*domain.Header], error) {
	return upsertRecord(ctx, s, kindHeader, req.Validate(), req.Branch, req.Store, req.Model)
}

func (s *Service) IngestPayment(ctx context.Context, req domain.PaymentRequest) (*domain.Result[*domain.Payment], error) {
	return upsertRecord(ctx, s, kindPayment, req.Validate(), req.Branch, req.Store, req.Model)
}

func (s *Service) IngestDiscount(ctx context.Context, req domain.DiscountRequest) (*domain.Result[*domain.Discount], error) {
	return upsertRecord(ctx, s, kindDiscount, req.Validate(), req.Branch, req.Store, req.Model)
}

// IngestItem creates the referenced category and product in the same transaction as
// the item, in that order.
func (s *Service) IngestItem(ctx context.Context, req domain.ItemRequest) (*domain.ItemResult, error) {
	start := time.Now()
	if err := s.check(ctx, req.Validate(), req.Branch, req.Store); err != nil {
		return nil, s.reject(ctx, kindItem, err, start)
	}

	var result domain.ItemResult
	err := s.withRetry(ctx, func(ctx context.Context) error {
		result = domain.ItemResult{}
		row := req.Model()
		return s.repo.Transaction(ctx, func(repo *repository.Repository) error {
			created, err := repo.EnsureCategory(ctx, row.CategoryCode, req.CategoryName())
			if err != nil {
				return fmt.Errorf("ensure category %q: %w", row.CategoryCode, err)
			}
			result.CategoryCreated = created

			created, err = repo.EnsureProduct(ctx, row.ProductCode, row.CategoryCode, row.Description)
			if err != nil {
				return fmt.Errorf("ensure product %q: %w", row.ProductCode, err)
			}
			result.ProductCreated = created

			outcome, err := repo.Upsert(ctx, row)
			if err != nil {
				return fmt.Errorf("upsert item: %w", err)
			}
			result.Outcome = outcome
			result.Record = row
			result.ID = row.ID
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, kindItem, err, start)
	}

	if result.CategoryCreated {
		s.metrics.RecordDimensionCreated("category")
		logger.WithContext(ctx, s.log).Info("category auto-created",
			zap.String("category_code", result.Record.CategoryCode),
			zap.String("product_code", result.Record.ProductCode),
		)
	}
	if result.ProductCreated {
		s.metrics.RecordDimensionCreated("product")
		logger.WithContext(ctx, s.log).Info("product auto-created",
			zap.String("product_code", result.Record.ProductCode),
			zap.String("category_code", result.Record.CategoryCode),
		)
	}
	s.metrics.RecordIngest(kindItem, string(result.Outcome), time.Since(start))
	return &result, nil
}

func (s *Service) IngestReceipt(ctx context.Context, req domain.ReceiptRequest) (*domain.Result[*domain.Document], error) {
	return s.ingestDocument(ctx, req.Validate(), req.Document())
}

func (s *Service) IngestZRead(ctx context.Context, req domain.ZReadRequest) (*domain.Result[*domain.Document], error) {
	return s.ingestDocument(ctx, req.Validate(), req.Document())
}

func (s *Service) GetDocument(ctx context.Context, id snowflake.ID) (*domain.Document, []byte, error) {
	doc, err := s.repo.FindDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, doc.Path)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		logger.WithContext(ctx, s.log).Warn("document blob missing",
			zap.String("document_id", doc.ID.String()),
			zap.String("path", doc.Path),
		)
		return nil, nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

func (s *Service) ingestDocument(ctx context.Context, verrs validation.Errors, in domain.DocumentInput) (*domain.Result[*domain.Document], error) {
	start := time.Now()
	kind := in.Kind

	var data []byte
	if !verrs.Has("content") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(in.Content))
		switch {
		case err != nil:
			verrs.Add("content", "The content must be base64 encoded.")
		case len(decoded) == 0:
			verrs.Add("content", "The content field is required.")
		default:
			data = decoded
		}
	}
	if err := s.check(ctx, verrs, in.Location.Branch, in.Location.Store); err != nil {
		return nil, s.reject(ctx, kind, err, start)
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	name := fmt.Sprintf("%s %s %s %s %s%s",
		kind, in.Location.Branch, in.Location.Store, in.Location.Terminal, in.Reference,
		documentExt(in.FileName, mimeType),
	)

	blobPath, err := s.blobs.Put(ctx, name, data)
	if err != nil {
		return nil, s.fail(ctx, kind, fmt.Errorf("store blob: %w", err), start)
	}
	sum := sha256.Sum256(data)

	build := func() *domain.Document {
		doc := &domain.Document{
			Kind:      kind,
			Branch:    in.Location.Branch,
			Store:     in.Location.Store,
			Terminal:  in.Location.Terminal,
			Reference: in.Reference,
			TxnDate:   in.TxnDate,
			Path:      blobPath,
			MimeType:  mimeType,
			Size:      int64(len(data)),
			Checksum:  hex.EncodeToString(sum[:]),
			Metadata:  datatypes.JSONMap{},
		}
		if in.FileName != "" {
			doc.Metadata["file_name"] = in.FileName
		}
		return doc
	}
	return upsertRecord(ctx, s, kind, nil, "", "", build)
}

// upsertRecord is the shared path of every record without dimension side effects. A
// nil verrs means the caller already validated.
func upsertRecord[T domain.Record](
	ctx context.Context,
	s *Service,
	kind string,
	verrs validation.Errors,
	branch, store string,
	build func() T,
) (*domain.Result[T], error) {
	start := time.Now()
	if verrs != nil {
		if err := s.check(ctx, verrs, branch, store); err != nil {
			return nil, s.reject(ctx, kind, err, start)
		}
	}

	var result domain.Result[T]
	err := s.withRetry(ctx, func(ctx context.Context) error {
		row := build()
		return s.repo.Transaction(ctx, func(repo *repository.Repository) error {
			outcome, err := repo.Upsert(ctx, row)
			if err != nil {
				return fmt.Errorf("upsert %s: %w", kind, err)
			}
			result = domain.Result[T]{Outcome: outcome, Record: row, ID: row.Meta().ID}
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, kind, err, start)
	}

	s.metrics.RecordIngest(kind, string(result.Outcome), time.Since(start))
	logger.WithContext(ctx, s.log).Debug("pos record ingested",
		zap.String("kind", kind),
		zap.String("outcome", string(result.Outcome)),
		zap.String("id", result.ID.String()),
	)
	return &result, nil
}

// check adds reference-table problems to verrs. Branch and store are only looked up
// once their own field rules pass.
func (s *Service) check(ctx context.Context, verrs validation.Errors, branch, store string) error {
	if verrs.Has("branch") || verrs.Has("store") {
		return verrs.Err()
	}
	match, err := s.reference.Exists(ctx, branch, store)
	if err != nil {
		return fmt.Errorf("%w: reference lookup: %v", domain.ErrIngestionFailed, err)
	}
	if !match.Branch {
		verrs.Add("branch", "The selected branch is invalid.")
	} else if !match.Store {
		verrs.Add("store", "The selected store is invalid.")
	}
	return verrs.Err()
}

func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RetryOnce(ctx, retryable, fn)
}

func retryable(err error) bool {
	if _, ok := validation.As(err); ok {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (s *Service) reject(ctx context.Context, kind string, err error, start time.Time) error {
	if _, ok := validation.As(err); !ok {
		return s.fail(ctx, kind, err, start)
	}
	s.metrics.RecordIngest(kind, string(domain.OutcomeInvalid), time.Since(start))
	return err
}

func (s *Service) fail(ctx context.Context, kind string, err error, start time.Time) error {
	s.metrics.RecordIngest(kind, string(domain.OutcomeFailed), time.Since(start))
	logger.WithContext(ctx, s.log).Error("pos ingestion failed",
		zap.String("kind", kind),
		zap.Error(err),
	)
	if errors.Is(err, domain.ErrIngestionFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrIngestionFailed, err)
}

var mimeExtensions = map[string]string{
	"application/pdf":  ".pdf",
	"application/json": ".json",
	"text/plain":       ".txt",
	"text/html":        ".html",
	"image/png":        ".png",
	"image/jpeg":       ".jpg",
}

func documentExt(fileName, mimeType string) string {
	if ext := path.Ext(fileName); ext != "" {
		return strings.ToLower(ext)
	}
	base, _, _ := strings.Cut(mimeType, ";")
	if ext, ok := mimeExtensions[strings.TrimSpace(strings.ToLower(base))]; ok {
		return ext
	}
	return ".bin"
}

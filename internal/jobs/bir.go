package jobs

import (
	"context"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/posreport/internal/clock"
	ingestiondomain "github.com/smallbiznis/posreport/internal/ingestion/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const BIRAggregateDaily = "bir:aggregate-daily"

type birRow struct {
	Branch           string
	Store            string
	TxnDate          string
	TransactionCount int64
	VoidCount        int64
	GuestCount       int64
	SeniorCount      int64
	PWDCount         int64  `gorm:"column:pwd_count"`
	FirstSINumber    string `gorm:"column:first_si_number"`
	LastSINumber     string `gorm:"column:last_si_number"`
	GrossAmount      decimal.Decimal
	NetAmount        decimal.Decimal
	VatableSales     decimal.Decimal
	VatAmount        decimal.Decimal
	VatExemptSales   decimal.Decimal
	ZeroRatedSales   decimal.Decimal
	DiscountAmount   decimal.Decimal
	ServiceCharge    decimal.Decimal
	VoidAmount       decimal.Decimal
}

// Voided invoices are counted and totalled separately and never reach the sales columns.
const birSelect = `branch, store, txn_date,
	SUM(CASE WHEN void THEN 0 ELSE 1 END) AS transaction_count,
	SUM(CASE WHEN void THEN 1 ELSE 0 END) AS void_count,
	SUM(CASE WHEN void THEN 0 ELSE guest_count END) AS guest_count,
	SUM(CASE WHEN void THEN 0 ELSE senior_count END) AS senior_count,
	SUM(CASE WHEN void THEN 0 ELSE pwd_count END) AS pwd_count,
	MIN(si_number) AS first_si_number,
	MAX(si_number) AS last_si_number,
	SUM(CASE WHEN void THEN 0 ELSE gross_amount END) AS gross_amount,
	SUM(CASE WHEN void THEN 0 ELSE net_amount END) AS net_amount,
	SUM(CASE WHEN void THEN 0 ELSE vatable_sales END) AS vatable_sales,
	SUM(CASE WHEN void THEN 0 ELSE vat_amount END) AS vat_amount,
	SUM(CASE WHEN void THEN 0 ELSE vat_exempt_sales END) AS vat_exempt_sales,
	SUM(CASE WHEN void THEN 0 ELSE zero_rated_sales END) AS zero_rated_sales,
	SUM(CASE WHEN void THEN 0 ELSE discount_amount END) AS discount_amount,
	SUM(CASE WHEN void THEN 0 ELSE service_charge END) AS service_charge,
	SUM(CASE WHEN void THEN gross_amount ELSE 0 END) AS void_amount`

var birUpdateColumns = []string{
	"transaction_count", "void_count", "guest_count", "senior_count", "pwd_count",
	"first_si_number", "last_si_number",
	"gross_amount", "net_amount", "vatable_sales", "vat_amount", "vat_exempt_sales",
	"zero_rated_sales", "discount_amount", "service_charge", "void_amount", "updated_at",
}

// BIRAggregateJob rolls ingested headers up into bir_daily_summaries. Re-running a date
// range overwrites the affected rows.
type BIRAggregateJob struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewBIRAggregateJob(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *BIRAggregateJob {
	return &BIRAggregateJob{db: db, genID: genID, clock: clk}
}

func (j *BIRAggregateJob) Name() string { return BIRAggregateDaily }

func (j *BIRAggregateJob) Description() string {
	return "aggregate POS headers into BIR daily summaries"
}

func (j *BIRAggregateJob) Run(ctx context.Context, opts Options, out io.Writer) error {
	var rows []birRow
	err := scoped(j.db.WithContext(ctx).Model(&ingestiondomain.Header{}), opts).
		Select(birSelect).
		Group("branch, store, txn_date").
		Order("branch, store, txn_date").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("aggregate headers: %w", err)
	}

	fmt.Fprintf(out, "bir: %s..%s, %d summaries\n", opts.FromDate(), opts.ToDate(), len(rows))
	if len(rows) == 0 {
		return nil
	}

	now := j.clock.Now()
	summaries := make([]BIRDailySummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, BIRDailySummary{
			ID:               j.genID.Generate(),
			Branch:           row.Branch,
			Store:            row.Store,
			TxnDate:          row.TxnDate,
			TransactionCount: row.TransactionCount,
			VoidCount:        row.VoidCount,
			GuestCount:       row.GuestCount,
			SeniorCount:      row.SeniorCount,
			PWDCount:         row.PWDCount,
			FirstSINumber:    row.FirstSINumber,
			LastSINumber:     row.LastSINumber,
			GrossAmount:      row.GrossAmount,
			NetAmount:        row.NetAmount,
			VatableSales:     row.VatableSales,
			VatAmount:        row.VatAmount,
			VatExemptSales:   row.VatExemptSales,
			ZeroRatedSales:   row.ZeroRatedSales,
			DiscountAmount:   row.DiscountAmount,
			ServiceCharge:    row.ServiceCharge,
			VoidAmount:       row.VoidAmount,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		fmt.Fprintf(out, "  %s/%s %s transactions=%d voids=%d gross=%s net=%s vat=%s\n",
			row.Branch, row.Store, row.TxnDate, row.TransactionCount, row.VoidCount,
			row.GrossAmount.StringFixed(2), row.NetAmount.StringFixed(2), row.VatAmount.StringFixed(2))
	}

	err = j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "branch"}, {Name: "store"}, {Name: "txn_date"}},
			DoUpdates: clause.AssignmentColumns(birUpdateColumns),
		}).
		Create(&summaries).Error
	if err != nil {
		return fmt.Errorf("upsert bir summaries: %w", err)
	}
	return nil
}

// scoped applies the date range and the optional branch/store filter.
func scoped(q *gorm.DB, opts Options) *gorm.DB {
	q = q.Where("txn_date BETWEEN ? AND ?", opts.FromDate(), opts.ToDate())
	if opts.Branch != "" {
		q = q.Where("branch = ?", opts.Branch)
	}
	if opts.Store != "" {
		q = q.Where("store = ?", opts.Store)
	}
	return q
}

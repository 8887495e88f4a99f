package jobs

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/posreport/internal/clock"
	ingestiondomain "github.com/smallbiznis/posreport/internal/ingestion/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DSRUpdate = "dsr:update"

type dsrItemRow struct {
	Branch         string
	Store          string
	TxnDate        string
	ItemLines      int64
	Quantity       decimal.Decimal
	GrossSales     decimal.Decimal
	DiscountAmount decimal.Decimal
	NetSales       decimal.Decimal
}

type dsrPaymentRow struct {
	Branch      string
	Store       string
	TxnDate     string
	PaymentType string
	Amount      decimal.Decimal
}

type dsrKey struct {
	branch, store, date string
}

func (k dsrKey) String() string { return k.branch + "/" + k.store + "/" + k.date }

var dsrUpdateColumns = []string{
	"item_lines", "quantity", "gross_sales", "discount_amount", "net_sales",
	"payment_total", "payments", "updated_at",
}

// DSRUpdateJob rebuilds daily_sales_reports from non-void item lines and payments.
type DSRUpdateJob struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewDSRUpdateJob(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *DSRUpdateJob {
	return &DSRUpdateJob{db: db, genID: genID, clock: clk}
}

func (j *DSRUpdateJob) Name() string { return DSRUpdate }

func (j *DSRUpdateJob) Description() string {
	return "rebuild the daily sales report from items and payments"
}

func (j *DSRUpdateJob) Run(ctx context.Context, opts Options, out io.Writer) error {
	db := j.db.WithContext(ctx)

	var items []dsrItemRow
	err := scoped(db.Model(&ingestiondomain.Item{}), opts).
		Where("void = ?", false).
		Select(`branch, store, txn_date,
			COUNT(*) AS item_lines,
			SUM(quantity) AS quantity,
			SUM(gross_amount) AS gross_sales,
			SUM(discount_amount) AS discount_amount,
			SUM(net_amount) AS net_sales`).
		Group("branch, store, txn_date").
		Scan(&items).Error
	if err != nil {
		return fmt.Errorf("aggregate items: %w", err)
	}

	var payments []dsrPaymentRow
	err = scoped(db.Model(&ingestiondomain.Payment{}), opts).
		Select("branch, store, txn_date, payment_type, SUM(amount) AS amount").
		Group("branch, store, txn_date, payment_type").
		Scan(&payments).Error
	if err != nil {
		return fmt.Errorf("aggregate payments: %w", err)
	}

	now := j.clock.Now()
	reports := make(map[dsrKey]*DailySalesReport)
	report := func(k dsrKey) *DailySalesReport {
		if r, ok := reports[k]; ok {
			return r
		}
		r := &DailySalesReport{
			ID:        j.genID.Generate(),
			Branch:    k.branch,
			Store:     k.store,
			TxnDate:   k.date,
			Payments:  datatypes.JSONMap{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		reports[k] = r
		return r
	}

	for _, row := range items {
		r := report(dsrKey{row.Branch, row.Store, row.TxnDate})
		r.ItemLines = row.ItemLines
		r.Quantity = row.Quantity
		r.GrossSales = row.GrossSales
		r.DiscountAmount = row.DiscountAmount
		r.NetSales = row.NetSales
	}
	for _, row := range payments {
		r := report(dsrKey{row.Branch, row.Store, row.TxnDate})
		r.PaymentTotal = r.PaymentTotal.Add(row.Amount)
		r.Payments[row.PaymentType] = row.Amount.StringFixed(2)
	}

	keys := make([]dsrKey, 0, len(reports))
	for k := range reports {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].String() < keys[b].String() })

	fmt.Fprintf(out, "dsr: %s..%s, %d reports\n", opts.FromDate(), opts.ToDate(), len(keys))
	if len(keys) == 0 {
		return nil
	}

	rows := make([]DailySalesReport, 0, len(keys))
	for _, k := range keys {
		r := reports[k]
		fmt.Fprintf(out, "  %s/%s %s lines=%d net=%s payments=%s\n",
			r.Branch, r.Store, r.TxnDate, r.ItemLines,
			r.NetSales.StringFixed(2), r.PaymentTotal.StringFixed(2))
		rows = append(rows, *r)
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "branch"}, {Name: "store"}, {Name: "txn_date"}},
		DoUpdates: clause.AssignmentColumns(dsrUpdateColumns),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert daily sales reports: %w", err)
	}
	return nil
}

package jobs

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// JobRun is the audit row written for every run, including rejected ones.
type JobRun struct {
	ID         snowflake.ID      `json:"id,string" gorm:"primaryKey"`
	Name       string            `json:"name" gorm:"type:varchar(64);not null;index"`
	Options    datatypes.JSONMap `json:"options"`
	ExitCode   int               `json:"exit_code" gorm:"not null"`
	Output     string            `json:"output" gorm:"type:text"`
	StartedAt  time.Time         `json:"started_at" gorm:"not null;index"`
	FinishedAt time.Time         `json:"finished_at" gorm:"not null"`
}

func (JobRun) TableName() string { return "job_runs" }

// BIRDailySummary is one branch/store/day line of the tax authority sales report.
type BIRDailySummary struct {
	ID      snowflake.ID `json:"id,string" gorm:"primaryKey"`
	Branch  string       `json:"branch" gorm:"type:varchar(64);not null;uniqueIndex:ux_bir_daily_summaries_key,priority:1"`
	Store   string       `json:"store" gorm:"type:varchar(64);not null;uniqueIndex:ux_bir_daily_summaries_key,priority:2"`
	TxnDate string       `json:"txn_date" gorm:"type:varchar(10);not null;uniqueIndex:ux_bir_daily_summaries_key,priority:3"`

	TransactionCount int64           `json:"transaction_count" gorm:"not null;default:0"`
	VoidCount        int64           `json:"void_count" gorm:"not null;default:0"`
	GuestCount       int64           `json:"guest_count" gorm:"not null;default:0"`
	SeniorCount      int64           `json:"senior_count" gorm:"not null;default:0"`
	PWDCount         int64           `json:"pwd_count" gorm:"column:pwd_count;not null;default:0"`
	FirstSINumber    string          `json:"first_si_number" gorm:"column:first_si_number;type:varchar(64)"`
	LastSINumber     string          `json:"last_si_number" gorm:"column:last_si_number;type:varchar(64)"`
	GrossAmount      decimal.Decimal `json:"gross_amount" gorm:"type:decimal(14,2);not null"`
	NetAmount        decimal.Decimal `json:"net_amount" gorm:"type:decimal(14,2);not null"`
	VatableSales     decimal.Decimal `json:"vatable_sales" gorm:"type:decimal(14,2);not null"`
	VatAmount        decimal.Decimal `json:"vat_amount" gorm:"type:decimal(14,2);not null"`
	VatExemptSales   decimal.Decimal `json:"vat_exempt_sales" gorm:"type:decimal(14,2);not null"`
	ZeroRatedSales   decimal.Decimal `json:"zero_rated_sales" gorm:"type:decimal(14,2);not null"`
	DiscountAmount   decimal.Decimal `json:"discount_amount" gorm:"type:decimal(14,2);not null"`
	ServiceCharge    decimal.Decimal `json:"service_charge" gorm:"type:decimal(14,2);not null"`
	VoidAmount       decimal.Decimal `json:"void_amount" gorm:"type:decimal(14,2);not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (BIRDailySummary) TableName() string { return "bir_daily_summaries" }

// DailySalesReport totals item sales and tenders per branch/store/day.
type DailySalesReport struct {
	ID      snowflake.ID `json:"id,string" gorm:"primaryKey"`
	Branch  string       `json:"branch" gorm:"type:varchar(64);not null;uniqueIndex:ux_daily_sales_reports_key,priority:1"`
	Store   string       `json:"store" gorm:"type:varchar(64);not null;uniqueIndex:ux_daily_sales_reports_key,priority:2"`
	TxnDate string       `json:"txn_date" gorm:"type:varchar(10);not null;uniqueIndex:ux_daily_sales_reports_key,priority:3"`

	ItemLines      int64             `json:"item_lines" gorm:"not null;default:0"`
	Quantity       decimal.Decimal   `json:"quantity" gorm:"type:decimal(14,3);not null"`
	GrossSales     decimal.Decimal   `json:"gross_sales" gorm:"type:decimal(14,2);not null"`
	DiscountAmount decimal.Decimal   `json:"discount_amount" gorm:"type:decimal(14,2);not null"`
	NetSales       decimal.Decimal   `json:"net_sales" gorm:"type:decimal(14,2);not null"`
	PaymentTotal   decimal.Decimal   `json:"payment_total" gorm:"type:decimal(14,2);not null"`
	Payments       datatypes.JSONMap `json:"payments"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (DailySalesReport) TableName() string { return "daily_sales_reports" }

// Models lists the tables owned by this package, for migrations and tests.
func Models() []any {
	return []any{&JobRun{}, &BIRDailySummary{}, &DailySalesReport{}}
}

// Package domain holds the POS records terminals push and the natural keys that make
// re-submission idempotent.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Entity carries the surrogate columns shared by every ingested row.
type Entity struct {
	ID        snowflake.ID `json:"id,string" gorm:"primaryKey"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (e *Entity) Meta() *Entity { return e }

// Record is a row addressed by a natural key. Attributes lists every non-key column a
// re-submission overwrites.
type Record interface {
	TableName() string
	NaturalKey() map[string]any
	Attributes() map[string]any
	Meta() *Entity
}

type Header struct {
	Entity

	Branch   string `json:"branch" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_headers_natural_key,priority:1"`
	Store    string `json:"store" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_headers_natural_key,priority:2"`
	Terminal string `json:"terminal" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_headers_natural_key,priority:3"`
	SINumber string `json:"si_number" gorm:"column:si_number;type:varchar(64);not null;uniqueIndex:ux_pos_headers_natural_key,priority:4"`
	TxnDate  string `json:"txn_date" gorm:"type:varchar(10);not null;uniqueIndex:ux_pos_headers_natural_key,priority:5;index"`
	TxnTime  string `json:"txn_time" gorm:"type:varchar(8);not null;uniqueIndex:ux_pos_headers_natural_key,priority:6"`

	GuestCount     int             `json:"guest_count" gorm:"not null;default:0"`
	SeniorCount    int             `json:"senior_count" gorm:"not null;default:0"`
	PWDCount       int             `json:"pwd_count" gorm:"column:pwd_count;not null;default:0"`
	GrossAmount    decimal.Decimal `json:"gross_amount" gorm:"type:decimal(14,2);not null"`
	NetAmount      decimal.Decimal `json:"net_amount" gorm:"type:decimal(14,2);not null"`
	VatableSales   decimal.Decimal `json:"vatable_sales" gorm:"type:decimal(14,2);not null"`
	VatAmount      decimal.Decimal `json:"vat_amount" gorm:"type:decimal(14,2);not null"`
	VatExemptSales decimal.Decimal `json:"vat_exempt_sales" gorm:"type:decimal(14,2);not null"`
	ZeroRatedSales decimal.Decimal `json:"zero_rated_sales" gorm:"type:decimal(14,2);not null"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(14,2);not null"`
	ServiceCharge  decimal.Decimal `json:"service_charge" gorm:"type:decimal(14,2);not null"`
	Cashier        string          `json:"cashier" gorm:"type:varchar(128)"`
	ApprovedBy     string          `json:"approved_by" gorm:"type:varchar(128)"`
	Void           bool            `json:"void" gorm:"not null;default:false"`
	VoidReason     string          `json:"void_reason" gorm:"type:text"`
}

func (Header) TableName() string { return "pos_headers" }

func (h *Header) NaturalKey() map[string]any {
	return map[string]any{
		"branch":    h.Branch,
		"store":     h.Store,
		"terminal":  h.Terminal,
		"si_number": h.SINumber,
		"txn_date":  h.TxnDate,
		"txn_time":  h.TxnTime,
	}
}

func (h *Header) Attributes() map[string]any {
	return map[string]any{
		"guest_count":      h.GuestCount,
		"senior_count":     h.SeniorCount,
		"pwd_count":        h.PWDCount,
		"gross_amount":     h.GrossAmount,
		"net_amount":       h.NetAmount,
		"vatable_sales":    h.VatableSales,
		"vat_amount":       h.VatAmount,
		"vat_exempt_sales": h.VatExemptSales,
		"zero_rated_sales": h.ZeroRatedSales,
		"discount_amount":  h.DiscountAmount,
		"service_charge":   h.ServiceCharge,
		"cashier":          h.Cashier,
		"approved_by":      h.ApprovedBy,
		"void":             h.Void,
		"void_reason":      h.VoidReason,
	}
}

type Item struct {
	Entity

	Branch      string `json:"branch" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_items_natural_key,priority:1"`
	Store       string `json:"store" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_items_natural_key,priority:2"`
	Terminal    string `json:"terminal" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_items_natural_key,priority:3"`
	SINumber    string `json:"si_number" gorm:"column:si_number;type:varchar(64);not null;uniqueIndex:ux_pos_items_natural_key,priority:4"`
	ComboHeader string `json:"combo_header" gorm:"type:varchar(64);not null;default:'';uniqueIndex:ux_pos_items_natural_key,priority:5"`
	ProductCode string `json:"product_code" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_items_natural_key,priority:6"`

	CategoryCode   string          `json:"category_code" gorm:"type:varchar(64);not null;index"`
	Description    string          `json:"description" gorm:"type:varchar(255)"`
	Quantity       decimal.Decimal `json:"quantity" gorm:"type:decimal(12,3);not null"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2);not null"`
	GrossAmount    decimal.Decimal `json:"gross_amount" gorm:"type:decimal(14,2);not null"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(14,2);not null"`
	NetAmount      decimal.Decimal `json:"net_amount" gorm:"type:decimal(14,2);not null"`
	Void           bool            `json:"void" gorm:"not null;default:false"`
	TxnDate        string          `json:"txn_date" gorm:"type:varchar(10);index"`
}

func (Item) TableName() string { return "pos_items" }

func (i *Item) NaturalKey() map[string]any {
	return map[string]any{
		"branch":       i.Branch,
		"store":        i.Store,
		"terminal":     i.Terminal,
		"si_number":    i.SINumber,
		"combo_header": i.ComboHeader,
		"product_code": i.ProductCode,
	}
}

func (i *Item) Attributes() map[string]any {
	return map[string]any{
		"category_code":   i.CategoryCode,
		"description":     i.Description,
		"quantity":        i.Quantity,
		"unit_price":      i.UnitPrice,
		"gross_amount":    i.GrossAmount,
		"discount_amount": i.DiscountAmount,
		"net_amount":      i.NetAmount,
		"void":            i.Void,
		"txn_date":        i.TxnDate,
	}
}

type Payment struct {
	Entity

	Branch      string `json:"branch" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_payments_natural_key,priority:1"`
	Store       string `json:"store" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_payments_natural_key,priority:2"`
	Terminal    string `json:"terminal" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_payments_natural_key,priority:3"`
	SINumber    string `json:"si_number" gorm:"column:si_number;type:varchar(64);not null;uniqueIndex:ux_pos_payments_natural_key,priority:4"`
	PaymentType string `json:"payment_type" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_payments_natural_key,priority:5"`

	Amount  decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	TxnDate string          `json:"txn_date" gorm:"type:varchar(10);index"`
}

func (Payment) TableName() string { return "pos_payments" }

func (p *Payment) NaturalKey() map[string]any {
	return map[string]any{
		"branch":       p.Branch,
		"store":        p.Store,
		"terminal":     p.Terminal,
		"si_number":    p.SINumber,
		"payment_type": p.PaymentType,
	}
}

func (p *Payment) Attributes() map[string]any {
	return map[string]any{
		"amount":   p.Amount,
		"txn_date": p.TxnDate,
	}
}

// Discount is a government or ID-based discount granted on an invoice.
type Discount struct {
	Entity

	Branch   string `json:"branch" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_discounts_natural_key,priority:1"`
	Store    string `json:"store" gorm:"type:varchar(64);not null;uniqueIndex:ux_pos_discounts_natural_key,priority:2"`
	TxnDate  string `json:"txn_date" gorm:"type:varchar(10);not null;uniqueIndex:ux_pos_discounts_natural_key,priority:3"`
	SINumber string `json:"si_number" gorm:"column:si_number;type:varchar(64);not null;uniqueIndex:ux_pos_discounts_natural_key,priority:4"`
	IDNumber string `json:"id_number" gorm:"column:id_number;type:varchar(64);not null;uniqueIndex:ux_pos_discounts_natural_key,priority:5"`

	Terminal        string          `json:"terminal" gorm:"type:varchar(64)"`
	DiscountType    string          `json:"discount_type" gorm:"type:varchar(64)"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" gorm:"type:decimal(14,2);not null"`
	BeneficiaryName string          `json:"beneficiary_name" gorm:"type:varchar(255)"`
}

func (Discount) TableName() string { return "pos_discounts" }

func (d *Discount) NaturalKey() map[string]any {
	return map[string]any{
		"branch":    d.Branch,
		"store":     d.Store,
		"txn_date":  d.TxnDate,
		"si_number": d.SINumber,
		"id_number": d.IDNumber,
	}
}

func (d *Discount) Attributes() map[string]any {
	return map[string]any{
		"terminal":         d.Terminal,
		"discount_type":    d.DiscountType,
		"discount_amount":  d.DiscountAmount,
		"beneficiary_name": d.BeneficiaryName,
	}
}

type Category struct {
	ID        snowflake.ID `json:"id,string" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string       `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID           snowflake.ID `json:"id,string" gorm:"primaryKey"`
	Code         string       `json:"code" gorm:"type:varchar(64);not null;uniqueIndex"`
	CategoryCode string       `json:"category_code" gorm:"type:varchar(64);not null;index"`
	Name         string       `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

const (
	DocumentReceipt = "receipt"
	DocumentZRead   = "zread"
)

// Document indexes a receipt or Z-read blob by its natural key.
type Document struct {
	Entity

	Kind      string `json:"kind" gorm:"type:varchar(16);not null;uniqueIndex:ux_documents_natural_key,priority:1"`
	Branch    string `json:"branch" gorm:"type:varchar(64);not null;uniqueIndex:ux_documents_natural_key,priority:2"`
	Store     string `json:"store" gorm:"type:varchar(64);not null;uniqueIndex:ux_documents_natural_key,priority:3"`
	Terminal  string `json:"terminal" gorm:"type:varchar(64);not null;uniqueIndex:ux_documents_natural_key,priority:4"`
	Reference string `json:"reference" gorm:"type:varchar(64);not null;uniqueIndex:ux_documents_natural_key,priority:5"`

	TxnDate  string            `json:"txn_date" gorm:"type:varchar(10)"`
	Path     string            `json:"-" gorm:"type:text;not null"`
	MimeType string            `json:"mime_type" gorm:"type:varchar(128);not null"`
	Size     int64             `json:"size" gorm:"not null"`
	Checksum string            `json:"checksum" gorm:"type:varchar(64);not null"`
	Metadata datatypes.JSONMap `json:"metadata,omitempty"`
}

func (Document) TableName() string { return "documents" }

func (d *Document) NaturalKey() map[string]any {
	return map[string]any{
		"kind":      d.Kind,
		"branch":    d.Branch,
		"store":     d.Store,
		"terminal":  d.Terminal,
		"reference": d.Reference,
	}
}

func (d *Document) Attributes() map[string]any {
	return map[string]any{
		"txn_date":  d.TxnDate,
		"path":      d.Path,
		"mime_type": d.MimeType,
		"size":      d.Size,
		"checksum":  d.Checksum,
		"metadata":  d.Metadata,
	}
}

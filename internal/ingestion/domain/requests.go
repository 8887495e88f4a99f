package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/posreport/pkg/validation"
)

// Amount is a decimal sent by terminals either as a JSON string or a JSON number.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// Decimal returns zero for an empty amount. Callers validate first.
func (a Amount) Decimal() decimal.Decimal {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Location identifies the terminal a record came from.
type Location struct {
	Branch   string `json:"branch" validate:"required,max=64"`
	Store    string `json:"store" validate:"required,max=64"`
	Terminal string `json:"terminal" validate:"required,max=64"`
}

func (l Location) normalize() Location {
	return Location{
		Branch:   strings.TrimSpace(l.Branch),
		Store:    strings.TrimSpace(l.Store),
		Terminal: strings.TrimSpace(l.Terminal),
	}
}

type HeaderRequest struct {
	Location
	SINumber string `json:"si_number" validate:"required_without=SI,max=64"`
	SI       string `json:"si" validate:"max=64"`
	TxnDate  string `json:"date" validate:"required,datetime=2006-01-02"`
	TxnTime  string `json:"time" validate:"required,clock"`

	GuestCount     int    `json:"guest_count" validate:"gte=0"`
	SeniorCount    int    `json:"senior_count" validate:"gte=0"`
	PWDCount       int    `json:"pwd_count" validate:"gte=0"`
	GrossAmount    Amount `json:"gross_amount" validate:"required,decimal"`
	NetAmount      Amount `json:"net_amount" validate:"omitempty,decimal"`
	VatableSales   Amount `json:"vatable_sales" validate:"omitempty,decimal"`
	VatAmount      Amount `json:"vat_amount" validate:"omitempty,decimal"`
	VatExemptSales Amount `json:"vat_exempt_sales" validate:"omitempty,decimal"`
	ZeroRatedSales Amount `json:"zero_rated_sales" validate:"omitempty,decimal"`
	DiscountAmount Amount `json:"discount_amount" validate:"omitempty,decimal"`
	ServiceCharge  Amount `json:"service_charge" validate:"omitempty,decimal"`
	Cashier        string `json:"cashier" validate:"max=128"`
	ApprovedBy     string `json:"approved_by" validate:"max=128"`
	Void           bool   `json:"void"`
	VoidReason     string `json:"void_reason"`
}

// trimmed strips the text fields so blank keys fail validation instead of being
// stored as empty strings.
func (r HeaderRequest) trimmed() HeaderRequest {
	r.Location = r.Location.normalize()
	r.SINumber, r.SI = strings.TrimSpace(r.SINumber), strings.TrimSpace(r.SI)
	r.TxnDate, r.TxnTime = strings.TrimSpace(r.TxnDate), strings.TrimSpace(r.TxnTime)
	r.Cashier = strings.TrimSpace(r.Cashier)
	r.ApprovedBy = strings.TrimSpace(r.ApprovedBy)
	r.VoidReason = strings.TrimSpace(r.VoidReason)
	return r
}

func (r HeaderRequest) Validate() validation.Errors {
	return validation.Collect(r.trimmed())
}

func (r HeaderRequest) Model() *Header {
	r = r.trimmed()
	loc := r.Location
	return &Header{
		Branch:         loc.Branch,
		Store:          loc.Store,
		Terminal:       loc.Terminal,
		SINumber:       siNumber(r.SINumber, r.SI),
		TxnDate:        r.TxnDate,
		TxnTime:        r.TxnTime,
		GuestCount:     r.GuestCount,
		SeniorCount:    r.SeniorCount,
		PWDCount:       r.PWDCount,
		GrossAmount:    r.GrossAmount.Decimal(),
		NetAmount:      r.NetAmount.Decimal(),
		VatableSales:   r.VatableSales.Decimal(),
		VatAmount:      r.VatAmount.Decimal(),
		VatExemptSales: r.VatExemptSales.Decimal(),
		ZeroRatedSales: r.ZeroRatedSales.Decimal(),
		DiscountAmount: r.DiscountAmount.Decimal(),
		ServiceCharge:  r.ServiceCharge.Decimal(),
		Cashier:        strings.TrimSpace(r.Cashier),
		ApprovedBy:     strings.TrimSpace(r.ApprovedBy),
		Void:           r.Void,
		VoidReason:     strings.TrimSpace(r.VoidReason),
	}
}

type ItemRequest struct {
	Location
	SINumber    string `json:"si_number" validate:"required_without=SI,max=64"`
	SI          string `json:"si" validate:"max=64"`
	ComboHeader string `json:"combo_header" validate:"max=64"`
	ProductCode string `json:"product_code" validate:"required,max=64"`

	CategoryCode        string `json:"category_code" validate:"required,max=64"`
	CategoryDescription string `json:"category_description" validate:"max=255"`
	Description         string `json:"description" validate:"required,max=255"`
	Quantity            Amount `json:"quantity" validate:"required,quantity"`
	UnitPrice           Amount `json:"unit_price" validate:"omitempty,decimal"`
	GrossAmount         Amount `json:"gross_amount" validate:"omitempty,decimal"`
	DiscountAmount      Amount `json:"discount_amount" validate:"omitempty,decimal"`
	NetAmount           Amount `json:"net_amount" validate:"omitempty,decimal"`
	Void                bool   `json:"void"`
	TxnDate             string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (r ItemRequest) trimmed() ItemRequest {
	r.Location = r.Location.normalize()
	r.SINumber, r.SI = strings.TrimSpace(r.SINumber), strings.TrimSpace(r.SI)
	r.ComboHeader = strings.TrimSpace(r.ComboHeader)
	r.ProductCode = strings.TrimSpace(r.ProductCode)
	r.CategoryCode = strings.TrimSpace(r.CategoryCode)
	r.CategoryDescription = strings.TrimSpace(r.CategoryDescription)
	r.Description = strings.TrimSpace(r.Description)
	r.TxnDate = strings.TrimSpace(r.TxnDate)
	return r
}

func (r ItemRequest) Validate() validation.Errors {
	return validation.Collect(r.trimmed())
}

func (r ItemRequest) Model() *Item {
	r = r.trimmed()
	loc := r.Location
	return &Item{
		Branch:         loc.Branch,
		Store:          loc.Store,
		Terminal:       loc.Terminal,
		SINumber:       siNumber(r.SINumber, r.SI),
		ComboHeader:    strings.TrimSpace(r.ComboHeader),
		ProductCode:    strings.TrimSpace(r.ProductCode),
		CategoryCode:   strings.TrimSpace(r.CategoryCode),
		Description:    strings.TrimSpace(r.Description),
		Quantity:       r.Quantity.Decimal(),
		UnitPrice:      r.UnitPrice.Decimal(),
		GrossAmount:    r.GrossAmount.Decimal(),
		DiscountAmount: r.DiscountAmount.Decimal(),
		NetAmount:      r.NetAmount.Decimal(),
		Void:           r.Void,
		TxnDate:        r.TxnDate,
	}
}

// CategoryName falls back to the code when the terminal sends no description.
func (r ItemRequest) CategoryName() string {
	if name := strings.TrimSpace(r.CategoryDescription); name != "" {
		return name
	}
	return strings.TrimSpace(r.CategoryCode)
}

type PaymentRequest struct {
	Location
	SINumber    string `json:"si_number" validate:"required_without=SI,max=64"`
	SI          string `json:"si" validate:"max=64"`
	PaymentType string `json:"payment_type" validate:"required,max=64"`
	Amount      Amount `json:"amount" validate:"required,decimal"`
	TxnDate     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (r PaymentRequest) trimmed() PaymentRequest {
	r.Location = r.Location.normalize()
	r.SINumber, r.SI = strings.TrimSpace(r.SINumber), strings.TrimSpace(r.SI)
	r.PaymentType = strings.TrimSpace(r.PaymentType)
	r.TxnDate = strings.TrimSpace(r.TxnDate)
	return r
}

func (r PaymentRequest) Validate() validation.Errors {
	return validation.Collect(r.trimmed())
}

func (r PaymentRequest) Model() *Payment {
	r = r.trimmed()
	loc := r.Location
	return &Payment{
		Branch:      loc.Branch,
		Store:       loc.Store,
		Terminal:    loc.Terminal,
		SINumber:    siNumber(r.SINumber, r.SI),
		PaymentType: strings.ToUpper(strings.TrimSpace(r.PaymentType)),
		Amount:      r.Amount.Decimal(),
		TxnDate:     r.TxnDate,
	}
}

// DiscountRequest has no terminal in its natural key, so the terminal is optional.
type DiscountRequest struct {
	Branch          string `json:"branch" validate:"required,max=64"`
	Store           string `json:"store" validate:"required,max=64"`
	Terminal        string `json:"terminal" validate:"max=64"`
	TxnDate         string `json:"date" validate:"required,datetime=2006-01-02"`
	SINumber        string `json:"si_number" validate:"required_without=SI,max=64"`
	SI              string `json:"si" validate:"max=64"`
	IDNumber        string `json:"id_number" validate:"required,max=64"`
	DiscountType    string `json:"discount_type" validate:"max=64"`
	DiscountAmount  Amount `json:"discount_amount" validate:"required,decimal"`
	BeneficiaryName string `json:"name" validate:"max=255"`
}

func (r DiscountRequest) trimmed() DiscountRequest {
	r.Branch, r.Store = strings.TrimSpace(r.Branch), strings.TrimSpace(r.Store)
	r.Terminal = strings.TrimSpace(r.Terminal)
	r.TxnDate = strings.TrimSpace(r.TxnDate)
	r.SINumber, r.SI = strings.TrimSpace(r.SINumber), strings.TrimSpace(r.SI)
	r.IDNumber = strings.TrimSpace(r.IDNumber)
	r.DiscountType = strings.TrimSpace(r.DiscountType)
	r.BeneficiaryName = strings.TrimSpace(r.BeneficiaryName)
	return r
}

func (r DiscountRequest) Validate() validation.Errors {
	return validation.Collect(r.trimmed())
}

func (r DiscountRequest) Model() *Discount {
	r = r.trimmed()
	return &Discount{
		Branch:          strings.TrimSpace(r.Branch),
		Store:           strings.TrimSpace(r.Store),
		Terminal:        strings.TrimSpace(r.Terminal),
		TxnDate:         r.TxnDate,
		SINumber:        siNumber(r.SINumber, r.SI),
		IDNumber:        strings.TrimSpace(r.IDNumber),
		DiscountType:    strings.ToUpper(strings.TrimSpace(r.DiscountType)),
		DiscountAmount:  r.DiscountAmount.Decimal(),
		BeneficiaryName: strings.TrimSpace(r.BeneficiaryName),
	}
}

// ReceiptRequest carries a rendered receipt as base64 content.
type ReceiptRequest struct {
	Location
	SINumber string `json:"si_number" validate:"required_without=SI,max=64"`
	SI       string `json:"si" validate:"max=64"`
	TxnDate  string `json:"date" validate:"required,datetime=2006-01-02"`
	Content  string `json:"content" validate:"required,base64"`
	MimeType string `json:"mime_type" validate:"max=128"`
	FileName string `json:"file_name" validate:"max=255"`
}

func (r ReceiptRequest) trimmed() ReceiptRequest {
	r.Location = r.Location.normalize()
	r.SINumber, r.SI = strings.TrimSpace(r.SINumber), strings.TrimSpace(r.SI)
	r.TxnDate = strings.TrimSpace(r.TxnDate)
	r.Content = strings.TrimSpace(r.Content)
	r.MimeType = strings.TrimSpace(r.MimeType)
	r.FileName = strings.TrimSpace(r.FileName)
	return r
}

func (r ReceiptRequest) Validate() validation.Errors {
	return validation.Collect(r.trimmed())
}

func (r ReceiptRequest) Document() DocumentInput {
	r = r.trimmed()
	loc := r.Location
	return DocumentInput{
		Kind:      DocumentReceipt,
		Location:  loc,
		Reference: siNumber(r.SINumber, r.SI),
		TxnDate:   r.TxnDate,
		Content:   r.Content,
		MimeType:  strings.TrimSpace(r.MimeType),
		FileName:  strings.TrimSpace(r.FileName),
	}
}

// ZReadRequest carries an end-of-day terminal summary.
type ZReadRequest struct {
	Location
	ReportDate string `json:"report_date" validate:"required,datetime=2006-01-02"`
	Content    string `json:"content" validate:"required,base64"`
	MimeType   string `json:"mime_type" validate:"max=128"`
	FileName   string `json:"file_name" validate:"max=255"`
}

func (r ZReadRequest) trimmed() ZReadRequest {
	r.Location = r.Location.normalize()
	r.ReportDate = strings.TrimSpace(r.ReportDate)
	r.Content = strings.TrimSpace(r.Content)
	r.MimeType = strings.TrimSpace(r.MimeType)
	r.FileName = strings.TrimSpace(r.FileName)
	return r
}

func (r ZReadRequest) Validate() validation.Errors {
	return validation.Collect(r.trimmed())
}

func (r ZReadRequest) Document() DocumentInput {
	r = r.trimmed()
	loc := r.Location
	return DocumentInput{
		Kind:      DocumentZRead,
		Location:  loc,
		Reference: r.ReportDate,
		TxnDate:   r.ReportDate,
		Content:   r.Content,
		MimeType:  strings.TrimSpace(r.MimeType),
		FileName:  strings.TrimSpace(r.FileName),
	}
}

// DocumentInput is the common shape of receipt and Z-read submissions.
type DocumentInput struct {
	Kind      string
	Location  Location
	Reference string
	TxnDate   string
	Content   string
	MimeType  string
	FileName  string
}

// siNumber accepts the short "si" key older terminal builds send.
func siNumber(number, short string) string {
	if v := strings.TrimSpace(number); v != "" {
		return v
	}
	return strings.TrimSpace(short)
}

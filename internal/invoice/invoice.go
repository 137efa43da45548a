package invoice

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Number is a float that also accepts numeric strings such as "12.50".
// Models regularly quote amounts even when asked for numbers.
type Number float64

// UnmarshalJSON accepts a JSON number or a string holding one
func (n *Number) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = Number(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("number: expected number or numeric string, got %s", string(data))
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("number: %q is not numeric", s)
	}
	*n = Number(f)
	return nil
}

// LineItem is a single row of an invoice.
// TotalPrice is taken as reported and not checked against Quantity*UnitPrice.
type LineItem struct {
	ItemName   string `json:"item_name"`
	Quantity   Number `json:"quantity"`
	UnitPrice  Number `json:"unit_price"`
	TotalPrice Number `json:"total_price"`
}

// Invoice is the structured data read from an invoice image
type Invoice struct {
	InvoiceNumber string     `json:"invoice_number"`
	VendorName    string     `json:"vendor_name"`
	InvoiceDate   string     `json:"invoice_date"` // YYYY-MM-DD, format not enforced
	TotalAmount   Number     `json:"total_amount"`
	TaxAmount     Number     `json:"tax_amount"`
	Items         []LineItem `json:"items"`
}

// DefaultInvoice returns the placeholder record substituted when analysis fails
func DefaultInvoice() Invoice {
	return Invoice{
		InvoiceNumber: "N/A",
		VendorName:    "Unknown Vendor",
		InvoiceDate:   "2023-01-01",
		TotalAmount:   0,
		TaxAmount:     0,
		Items: []LineItem{
			{ItemName: "Sample Item"},
		},
	}
}

// FailureKind classifies why an analysis fell back to the default invoice
type FailureKind string

const (
	// FailureInput means the upload could not be turned into an image for the model
	FailureInput FailureKind = "input"
	// FailureRemote means the model call failed (network, auth, quota, timeout)
	FailureRemote FailureKind = "remote"
	// FailureExtraction means no JSON object could be found in the model reply
	FailureExtraction FailureKind = "extraction"
	// FailureValidation means the JSON did not match the invoice schema
	FailureValidation FailureKind = "validation"
)

// Failure describes a failed analysis
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is the outcome of analyzing one upload. When Fallback is set,
// Invoice holds DefaultInvoice and Failure says why.
type Result struct {
	ID         string    `json:"id"`
	Invoice    Invoice   `json:"invoice"`
	Fallback   bool      `json:"fallback"`
	Strategy   string    `json:"strategy,omitempty"`
	Failure    *Failure  `json:"failure,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

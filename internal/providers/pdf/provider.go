package pdf

import (
	"context"
	"io"
)

// ReceiptData is the flattened, preformatted view a receipt PDF is built
// from. Amount fields arrive already formatted so the generator never does
// currency math.
type ReceiptData struct {
	OrgName       string
	ReceiptNumber string
	EventName     string
	AttendeeName  string
	AttendeeEmail string
	IssuedDate    string

	Items []ReceiptItem

	Subtotal string
	// SponsorshipTotal is rendered as a deduction row; empty hides it.
	SponsorshipTotal string
	Total            string
}

type ReceiptItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	return nil, nil
}

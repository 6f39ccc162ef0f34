package render

import "time"

// RenderInput is the flattened view a renderer consumes. Services build it
// from the stored receipt so renderers never touch storage.
type RenderInput struct {
	Org     OrgView
	Receipt ReceiptView
	Items   []LineItemView
}

type OrgView struct {
	Name string
}

type ReceiptView struct {
	Number           string
	EventName        string
	AttendeeName     string
	AttendeeEmail    string
	Currency         string
	Subtotal         int64
	SponsorshipTotal int64
	Total            int64
	IssuedAt         time.Time
}

type LineItemView struct {
	Description string
	Quantity    int64
	UnitPrice   int64
	Amount      int64
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}

package presenter

import (
	"fmt"

	"ticket-scanner/internal/domain/scan"
)

const (
	TitleValid     = "Valid Ticket"
	TitleInvalid   = "Invalid Ticket"
	DefaultInvalid = "This ticket could not be verified. It may be invalid, cancelled, or expired."
)

type Presenter interface {
	Present(result scan.Result)
}

type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// View is the rendered form of a verification result.
type View struct {
	Valid   bool    `json:"valid"`
	Title   string  `json:"title"`
	Fields  []Field `json:"fields,omitempty"`
	Message string  `json:"message,omitempty"`
}

func NewView(r scan.Result) View {
	if r.Valid && r.Ticket != nil {
		t := r.Ticket
		return View{
			Valid: true,
			Title: TitleValid,
			Fields: []Field{
				{Label: "Ticket ID", Value: fmt.Sprintf("#%d", t.ID)},
				{Label: "Seat", Value: t.SeatLabel},
				{Label: "Type", Value: t.SeatType},
				{Label: "Status", Value: t.Status},
				{Label: "Price Paid", Value: fmt.Sprintf("$%.2f", t.PricePaid)},
			},
		}
	}

	msg := r.ErrorMessage
	if msg == "" {
		msg = DefaultInvalid
	}
	return View{Title: TitleInvalid, Message: msg}
}

// Multi fans a result out to several presenters in order.
type Multi []Presenter

func (m Multi) Present(r scan.Result) {
	for _, p := range m {
		p.Present(r)
	}
}

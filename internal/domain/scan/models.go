package scan

import (
	"time"
)

// Ticket is the ticket summary returned by the verification endpoint.
type Ticket struct {
	ID          int64      `json:"id"`
	EventID     int64      `json:"event_id,omitempty"`
	SeatNumber  int        `json:"seat_number,omitempty"`
	SeatLabel   string     `json:"seat_label,omitempty"`
	SeatType    string     `json:"seat_type"`
	Status      string     `json:"status"`
	PricePaid   float64    `json:"price_paid"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
}

type VerifyRequest struct {
	QRToken string `json:"qr_token"`
}

type VerifyResponse struct {
	Valid  bool    `json:"valid"`
	Ticket *Ticket `json:"ticket,omitempty"`
}

// Result is the outcome of one accepted payload, rendered once.
type Result struct {
	Valid        bool    `json:"valid"`
	Ticket       *Ticket `json:"ticket,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// Outcome classifies a Result for status text and haptics.
type Outcome string

const (
	OutcomeValid   Outcome = "valid"
	OutcomeInvalid Outcome = "invalid"
	OutcomeError   Outcome = "error"
)

func (r Result) Outcome() Outcome {
	switch {
	case r.Valid && r.Ticket != nil:
		return OutcomeValid
	case r.ErrorMessage != "":
		return OutcomeError
	default:
		return OutcomeInvalid
	}
}

// Record is one journaled verification.
type Record struct {
	ID           string         `json:"id"`
	ScannerID    string         `json:"scanner_id"`
	DeviceID     string         `json:"device_id,omitempty"`
	Fingerprint  string         `json:"fingerprint"`
	MaskedToken  string         `json:"masked_token"`
	Valid        bool           `json:"valid"`
	Outcome      Outcome        `json:"outcome"`
	TicketID     *int64         `json:"ticket_id,omitempty"`
	SeatLabel    string         `json:"seat_label,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Response     map[string]any `json:"response,omitempty"`
	ScannedAt    time.Time      `json:"scanned_at"`
}

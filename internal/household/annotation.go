package household

import (
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/RyanHill92/canvass/internal/apperr"
)

// Outcome is the result of a canvassing visit.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeFlyer   Outcome = "Flyer"
	OutcomeMeeting Outcome = "1:1 meeting IRT"
	OutcomeRNT     Outcome = "RNT"
)

// Outcomes lists the selectable visit outcomes.
var Outcomes = []Outcome{OutcomeFlyer, OutcomeMeeting, OutcomeRNT}

// Valid reports whether o is one of the known outcomes or unset.
func (o Outcome) Valid() bool {
	if o == OutcomeNone {
		return true
	}
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}

// Product is a line of work a household may need.
type Product string

const (
	Roofing  Product = "Roofing"
	Door     Product = "Door"
	Window   Product = "Window"
	Flooring Product = "Flooring"
)

// Products lists the products an operator can pick.
var Products = []Product{Roofing, Door, Window, Flooring}

// Valid reports whether p is a known product.
func (p Product) Valid() bool {
	for _, known := range Products {
		if p == known {
			return true
		}
	}
	return false
}

const dateLayout = "2006-01-02"

// Field limits, matching the annotation table columns.
const (
	maxTextLen  = 255
	maxPhoneLen = 64
	maxNotesLen = 65535 // bytes, TEXT
)

// Annotation holds what the operator entered for a household.
type Annotation struct {
	Name             string    `json:"name,omitempty"`
	Spouse           string    `json:"spouse,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Mobile1          string    `json:"mobile1,omitempty"`
	Mobile2          string    `json:"mobile2,omitempty"`
	Email            string    `json:"email,omitempty"`
	LastResults      string    `json:"lastResults,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CanvassingResult Outcome   `json:"canvassingResult"`
	ProductsNeeded   []Product `json:"productsNeeded"`
	AppointmentDate  string    `json:"appointmentDate,omitempty"`
}

// Validate checks field lengths, the closed-set fields and the appointment
// date format.
func (a Annotation) Validate() error {
	limits := []struct {
		field string
		value string
		max   int
	}{
		{"name", a.Name, maxTextLen},
		{"spouse", a.Spouse, maxTextLen},
		{"phone", a.Phone, maxPhoneLen},
		{"mobile1", a.Mobile1, maxPhoneLen},
		{"mobile2", a.Mobile2, maxPhoneLen},
		{"email", a.Email, maxTextLen},
		{"lastResults", a.LastResults, maxTextLen},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return apperr.Newf(apperr.ErrInvalidInput, http.StatusBadRequest,
				"%s is longer than %d characters", l.field, l.max)
		}
	}
	if len(a.Notes) > maxNotesLen {
		return apperr.Newf(apperr.ErrInvalidInput, http.StatusBadRequest,
			"notes are longer than %d bytes", maxNotesLen)
	}
	if !a.CanvassingResult.Valid() {
		return apperr.Newf(apperr.ErrInvalidInput, http.StatusBadRequest,
			"unknown canvassing result %q", a.CanvassingResult)
	}
	seen := make(map[Product]bool, len(a.ProductsNeeded))
	for _, p := range a.ProductsNeeded {
		if !p.Valid() {
			return apperr.Newf(apperr.ErrInvalidInput, http.StatusBadRequest, "unknown product %q", p)
		}
		if seen[p] {
			return apperr.Newf(apperr.ErrInvalidInput, http.StatusBadRequest, "product %q listed twice", p)
		}
		seen[p] = true
	}
	if a.AppointmentDate != "" {
		if _, err := time.Parse(dateLayout, a.AppointmentDate); err != nil {
			return apperr.Newf(apperr.ErrInvalidInput, http.StatusBadRequest,
				"appointment date must be YYYY-MM-DD, got %q", a.AppointmentDate)
		}
	}
	return nil
}

func (a Annotation) clone() Annotation {
	out := a
	out.ProductsNeeded = append([]Product{}, a.ProductsNeeded...)
	return out
}

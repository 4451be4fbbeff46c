// Package proximity confirms a searched address among extracted vendor
// records and ranks the households around it.
package proximity

import (
	"net/http"
	"strings"

	"github.com/RyanHill92/canvass/internal/apperr"
)

// SortOrder selects how neighbors are ordered.
type SortOrder int

const (
	// Nearest orders by distance from the target house number.
	Nearest SortOrder = iota
	Ascending
	Descending
)

// ParseSortOrder accepts "asc"/"ascending" and "desc"/"descending"; any
// other value, including "all" and "", means Nearest.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending
	case "desc", "descending":
		return Descending
	default:
		return Nearest
	}
}

func (o SortOrder) String() string {
	switch o {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "nearest"
	}
}

// Parity restricts neighbors to one side of the street.
type Parity int

const (
	AllNumbers Parity = iota
	OddNumbers
	EvenNumbers
)

// ParseParity accepts "odd" and "even"; anything else keeps every number.
func ParseParity(s string) Parity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "odd":
		return OddNumbers
	case "even":
		return EvenNumbers
	default:
		return AllNumbers
	}
}

func (p Parity) String() string {
	switch p {
	case OddNumbers:
		return "odd"
	case EvenNumbers:
		return "even"
	default:
		return "all"
	}
}

func (p Parity) keep(n int) bool {
	switch p {
	case OddNumbers:
		return n%2 != 0
	case EvenNumbers:
		return n%2 == 0
	default:
		return true
	}
}

// AddressQuery is the searched address plus ranking options. City and State
// are carried for the caller's benefit and never used for matching.
type AddressQuery struct {
	HouseNumber string
	Street      string
	Zip         string
	City        string
	State       string
	Sort        SortOrder
	Parity      Parity
}

// Validate rejects a query missing any of house number, street or zip.
func (q AddressQuery) Validate() error {
	if strings.TrimSpace(q.HouseNumber) == "" || strings.TrimSpace(q.Street) == "" || strings.TrimSpace(q.Zip) == "" {
		return apperr.New(apperr.ErrInvalidInput, http.StatusBadRequest,
			"Missing required fields: houseNumber, street, or zip")
	}
	return nil
}

package proximity

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/RyanHill92/canvass/internal/apperr"
	"github.com/RyanHill92/canvass/internal/extract"
)

// MaxNeighbors caps the ranked list.
const MaxNeighbors = 20

// Neighbor is a ranked household near the target.
type Neighbor struct {
	Address     string  `json:"address"`
	Count       int     `json:"count"`
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	HouseNumber int     `json:"-"`
	Geography   string  `json:"-"`
	Zip         string  `json:"-"`
}

// Result is a confirmed lookup.
type Result struct {
	ValidatedAddress string
	ZipPlus4         string
	Neighbors        []Neighbor
	RecordsSeen      int
}

// TargetNotFoundError reports that no record matched the searched house
// number. It unwraps to apperr.ErrTargetNotFound.
type TargetNotFoundError struct {
	HouseNumber string
	FoundCount  int
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("house number %q not among %d consumer records", e.HouseNumber, e.FoundCount)
}

func (e *TargetNotFoundError) Unwrap() error {
	return apperr.ErrTargetNotFound
}

// Rank confirms the target among records and returns up to MaxNeighbors
// other records, filtered by parity and ordered by q.Sort. Every record
// sharing the target's house number is treated as the target and left out.
func Rank(q AddressQuery, records []extract.RawRecord) (*Result, error) {
	target, ok := extract.ParseHouseNumber(q.HouseNumber)
	if !ok {
		return nil, &TargetNotFoundError{HouseNumber: q.HouseNumber, FoundCount: len(records)}
	}

	var (
		found     bool
		targetGeo string
		neighbors []extract.RawRecord
	)
	for _, rec := range records {
		if rec.HouseNumber == target {
			found = true
			targetGeo = rec.Geography
			continue
		}
		if q.Parity.keep(rec.HouseNumber) {
			neighbors = append(neighbors, rec)
		}
	}
	if !found {
		return nil, &TargetNotFoundError{HouseNumber: q.HouseNumber, FoundCount: len(records)}
	}

	order(neighbors, q.Sort, target)
	if len(neighbors) > MaxNeighbors {
		neighbors = neighbors[:MaxNeighbors]
	}

	res := &Result{
		ValidatedAddress: q.HouseNumber + " " + q.Street,
		ZipPlus4:         targetGeo,
		Neighbors:        make([]Neighbor, 0, len(neighbors)),
		RecordsSeen:      len(records),
	}
	for _, rec := range neighbors {
		n := Neighbor{
			Address:     strconv.Itoa(rec.HouseNumber) + " " + q.Street,
			Count:       rec.Count,
			Name:        rec.Name,
			Phone:       rec.Phone,
			Email:       rec.Email,
			HouseNumber: rec.HouseNumber,
			Geography:   rec.Geography,
		}
		if rec.Zip != nil {
			n.Zip = *rec.Zip
		}
		res.Neighbors = append(res.Neighbors, n)
	}
	return res, nil
}

// order sorts records in place. Ties keep extraction order.
func order(records []extract.RawRecord, by SortOrder, target int) {
	switch by {
	case Ascending:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].HouseNumber < records[j].HouseNumber
		})
	case Descending:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].HouseNumber > records[j].HouseNumber
		})
	default:
		sort.SliceStable(records, func(i, j int) bool {
			return Distance(records[i].HouseNumber, target) < Distance(records[j].HouseNumber, target)
		})
	}
}

// Distance is the absolute numeric gap between two house numbers.
func Distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

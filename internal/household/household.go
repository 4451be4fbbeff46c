// Package household keeps the operator's working list of households and the
// notes taken on them.
package household

import (
	"sort"

	"github.com/google/uuid"

	"github.com/RyanHill92/canvass/internal/extract"
	"github.com/RyanHill92/canvass/internal/proximity"
)

// UnknownGeography labels a vendor record that carried no geography.
const UnknownGeography = "Unknown Location"

// recordNamespace seeds the name-based record IDs.
var recordNamespace = uuid.MustParse("6f1c1f8e-53a2-4c43-9a47-2f0d6c4a8b10")

// Household is a dwelling shown to the operator, with any notes taken on it.
type Household struct {
	ID        string `json:"id"`
	Geography string `json:"geography"`
	Address   string `json:"address,omitempty"`
	Zip       string `json:"zip"`
	Count     int    `json:"count"`
	Annotation
}

// recordID derives a stable identifier from the vendor identity of a record
// so notes survive a repeated search, whatever street spelling produced it.
// Records without a geography get a random ID.
func recordID(zip, geography string) string {
	if geography == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(recordNamespace, []byte(zip+"|"+geography)).String()
}

// FromBlocks turns every record block of a vendor response into a Household,
// including blocks whose geography is missing or unreadable. When target
// holds a house number the list is ordered nearest first, counting an
// unreadable house number as 0.
func FromBlocks(text, zip, target string) []Household {
	blocks := extract.Blocks(text)
	out := make([]Household, 0, len(blocks))
	for _, b := range blocks {
		rec, _ := extract.ParseRecord(b)
		h := Household{
			Geography: rec.Geography,
			Zip:       zip,
			Count:     rec.Count,
		}
		if rec.Zip != nil {
			h.Zip = *rec.Zip
		}
		h.ID = recordID(h.Zip, h.Geography)
		if h.Geography == "" {
			h.Geography = UnknownGeography
		}
		if rec.Name != nil {
			h.Name = *rec.Name
		}
		if rec.Phone != nil {
			h.Phone = *rec.Phone
		}
		if rec.Email != nil {
			h.Email = *rec.Email
		}
		out = append(out, h)
	}

	if targetNum, ok := extract.ParseHouseNumber(digitsOnly(target)); ok {
		SortNearest(out, targetNum)
	}
	return out
}

// FromNeighbors turns a ranked lookup into Households, prefilled with the
// vendor contact fields. IDs match those FromBlocks gives the same records.
func FromNeighbors(zip string, neighbors []proximity.Neighbor) []Household {
	out := make([]Household, 0, len(neighbors))
	for _, n := range neighbors {
		h := Household{
			Geography: n.Geography,
			Address:   n.Address,
			Zip:       zip,
			Count:     n.Count,
		}
		if n.Zip != "" {
			h.Zip = n.Zip
		}
		h.ID = recordID(h.Zip, h.Geography)
		if n.Name != nil {
			h.Name = *n.Name
		}
		if n.Phone != nil {
			h.Phone = *n.Phone
		}
		if n.Email != nil {
			h.Email = *n.Email
		}
		out = append(out, h)
	}
	return out
}

// HouseNumber is the number derived from the geography, or 0.
func (h Household) HouseNumber() int {
	n, ok := extract.DeriveHouseNumber(h.Geography)
	if !ok {
		return 0
	}
	return n
}

func (h Household) matches(key string) bool {
	return key != "" && (h.ID == key || h.Address == key)
}

func (h Household) clone() Household {
	h.Annotation = h.Annotation.clone()
	return h
}

func digitsOnly(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	return string(b)
}

// SortNearest orders households by distance of their house number from
// target; ties keep their order.
func SortNearest(hs []Household, target int) {
	sort.SliceStable(hs, func(i, j int) bool {
		return proximity.Distance(hs[i].HouseNumber(), target) < proximity.Distance(hs[j].HouseNumber(), target)
	})
}

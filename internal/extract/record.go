package extract

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNoGeography reports a block without a geographic identifier.
	ErrNoGeography = errors.New("record has no geography")
	// ErrBadHouseNumber reports a geographic identifier whose trailing
	// segment holds no usable house number.
	ErrBadHouseNumber = errors.New("geography has no numeric house number")
)

// RawRecord is one household extracted from a vendor response.
type RawRecord struct {
	// Geography is the vendor identifier, "<zip>-<houseNumberSuffix>".
	Geography   string
	HouseNumber int
	Count       int
	CountKind   FieldKind
	Name        *string
	Phone       *string
	Email       *string
	Zip         *string
}

// Result is the outcome of scanning a whole response.
type Result struct {
	Records []RawRecord
	// Discarded counts blocks dropped for a missing or unusable geography.
	Discarded int
}

// ParseRecord reads the fields of one block. Contact fields are optional and
// an unreadable occupant count becomes 0; only the geography can make the
// record unusable.
func ParseRecord(b Block) (RawRecord, error) {
	count, countKind := parseCount(b.Field(TagCount))
	rec := RawRecord{
		Count:     count,
		CountKind: countKind,
		Name:      b.Field(TagName).Ptr(),
		Phone:     b.Field(TagPhone).Ptr(),
		Email:     b.Field(TagEmail).Ptr(),
		Zip:       b.Field(TagZip).Ptr(),
	}

	geo := b.Field(TagGeography)
	if geo.Kind == Absent {
		return rec, ErrNoGeography
	}
	rec.Geography = geo.Value

	num, ok := DeriveHouseNumber(geo.Value)
	if !ok {
		return rec, ErrBadHouseNumber
	}
	rec.HouseNumber = num
	return rec, nil
}

// Records extracts every usable record from text.
func Records(text string) Result {
	var res Result
	for _, b := range Blocks(text) {
		rec, err := ParseRecord(b)
		if err != nil {
			res.Discarded++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// DeriveHouseNumber takes the segment after the last '-' in geo, strips
// every non-digit character and parses what is left.
func DeriveHouseNumber(geo string) (int, bool) {
	suffix := geo
	if i := strings.LastIndex(geo, "-"); i >= 0 {
		suffix = geo[i+1:]
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, suffix)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseHouseNumber reads a leading integer from operator input: surrounding
// space is ignored, then an optional sign and at least one digit are
// required; anything after the digits is ignored ("12B" is 12).
func ParseHouseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseCount(f Field) (int, FieldKind) {
	if f.Kind == Absent {
		return 0, Absent
	}
	n, err := strconv.Atoi(strings.TrimSpace(f.Value))
	if err != nil {
		return 0, Malformed
	}
	return n, Present
}

package proximity

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanHill92/canvass/internal/apperr"
	"github.com/RyanHill92/canvass/internal/extract"
)

func records(nums ...int) []extract.RawRecord {
	out := make([]extract.RawRecord, 0, len(nums))
	for _, n := range nums {
		out = append(out, extract.RawRecord{
			Geography:   fmt.Sprintf("90210-%d", n),
			HouseNumber: n,
			Count:       1,
		})
	}
	return out
}

func houseNumbers(ns []Neighbor) []int {
	out := make([]int, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.HouseNumber)
	}
	return out
}

func query(hno string) AddressQuery {
	return AddressQuery{HouseNumber: hno, Street: "Sunset Blvd", Zip: "90210"}
}

func TestRankNearestFirstStableTies(t *testing.T) {
	res, err := Rank(query("100"), records(90, 95, 100, 105, 110, 98))
	require.NoError(t, err)

	assert.Equal(t, []int{98, 95, 105, 90, 110}, houseNumbers(res.Neighbors))
	assert.Equal(t, "100 Sunset Blvd", res.ValidatedAddress)
	assert.Equal(t, "90210-100", res.ZipPlus4)
	assert.Equal(t, 6, res.RecordsSeen)
}

func TestRankAscendingDescending(t *testing.T) {
	recs := records(120, 100, 90, 130, 95, 110)

	q := query("100")
	q.Sort = Ascending
	res, err := Rank(q, recs)
	require.NoError(t, err)
	assert.Equal(t, []int{90, 95, 110, 120, 130}, houseNumbers(res.Neighbors))

	q.Sort = Descending
	res, err = Rank(q, recs)
	require.NoError(t, err)
	assert.Equal(t, []int{130, 120, 110, 95, 90}, houseNumbers(res.Neighbors))
}

func TestRankParityFilter(t *testing.T) {
	recs := records(100, 101, 102, 103, 104, 105)

	for _, order := range []SortOrder{Nearest, Ascending, Descending} {
		q := query("100")
		q.Sort = order
		q.Parity = OddNumbers
		res, err := Rank(q, recs)
		require.NoError(t, err)
		for _, n := range res.Neighbors {
			assert.NotZero(t, n.HouseNumber%2, "order %s kept even %d", order, n.HouseNumber)
		}
		assert.Len(t, res.Neighbors, 3)
	}

	q := query("100")
	q.Parity = EvenNumbers
	res, err := Rank(q, recs)
	require.NoError(t, err)
	assert.Equal(t, []int{102, 104}, houseNumbers(res.Neighbors))
}

func TestRankCapsAtTwenty(t *testing.T) {
	nums := []int{500}
	for i := 1; i <= 60; i++ {
		nums = append(nums, 500+i)
	}

	res, err := Rank(query("500"), records(nums...))
	require.NoError(t, err)
	assert.Len(t, res.Neighbors, MaxNeighbors)
	assert.Equal(t, 501, res.Neighbors[0].HouseNumber)
}

func TestRankExcludesTarget(t *testing.T) {
	res, err := Rank(query("100"), records(100, 102, 100, 104))
	require.NoError(t, err)
	for _, n := range res.Neighbors {
		assert.NotEqual(t, 100, n.HouseNumber)
	}
	assert.Len(t, res.Neighbors, 2)
}

func TestRankTargetNotFound(t *testing.T) {
	_, err := Rank(query("300"), records(100, 102, 104))
	require.Error(t, err)

	var tnf *TargetNotFoundError
	require.True(t, errors.As(err, &tnf))
	assert.Equal(t, 3, tnf.FoundCount)
	assert.True(t, errors.Is(err, apperr.ErrTargetNotFound))
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatusCode(err))
}

func TestRankNonNumericHouseNumber(t *testing.T) {
	_, err := Rank(query("abc"), records(0, 1, 2))
	assert.ErrorIs(t, err, apperr.ErrTargetNotFound)
}

func TestRankCarriesContactFields(t *testing.T) {
	name, email := "Pat Lee", "pat@example.com"
	recs := records(10, 12)
	recs[1].Name = &name
	recs[1].Email = &email
	recs[1].Count = 4

	res, err := Rank(query("10"), recs)
	require.NoError(t, err)
	require.Len(t, res.Neighbors, 1)

	n := res.Neighbors[0]
	assert.Equal(t, "12 Sunset Blvd", n.Address)
	assert.Equal(t, 4, n.Count)
	require.NotNil(t, n.Name)
	assert.Equal(t, name, *n.Name)
	require.NotNil(t, n.Email)
	assert.Equal(t, email, *n.Email)
	assert.Nil(t, n.Phone)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, query("1").Validate())

	q := query("1")
	q.Zip = " "
	err := q.Validate()
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatusCode(err))
}

func TestParseOptions(t *testing.T) {
	assert.Equal(t, Ascending, ParseSortOrder("asc"))
	assert.Equal(t, Descending, ParseSortOrder("DESC"))
	assert.Equal(t, Ascending, ParseSortOrder("ascending"))
	assert.Equal(t, Nearest, ParseSortOrder("all"))
	assert.Equal(t, Nearest, ParseSortOrder(""))
	assert.Equal(t, OddNumbers, ParseParity("odd"))
	assert.Equal(t, EvenNumbers, ParseParity("even"))
	assert.Equal(t, AllNumbers, ParseParity("all"))
	assert.Equal(t, AllNumbers, ParseParity("other"))
}

package household

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanHill92/canvass/internal/apperr"
	"github.com/RyanHill92/canvass/internal/proximity"
)

const listing = `<Response><Count>57</Count>` +
	`<Street><Geography>90210-110</Geography><Count>2</Count></Street>` +
	`<Street><Geography>90210-101</Geography><Count>x</Count><Zip>90211</Zip></Street>` +
	`<Street><Count>1</Count></Street>` +
	`<Street><Geography>90210-98</Geography><Count>4</Count><Name>Kim</Name></Street>` +
	`</Response>`

func TestFromBlocksKeepsEveryBlock(t *testing.T) {
	hs := FromBlocks(listing, "90210", "")

	require.Len(t, hs, 4)
	assert.Equal(t, "90210-110", hs[0].Geography)
	assert.Equal(t, 2, hs[0].Count)
	assert.Equal(t, "90211", hs[1].Zip)
	assert.Equal(t, 0, hs[1].Count)
	assert.Equal(t, UnknownGeography, hs[2].Geography)
	assert.Equal(t, "90210", hs[2].Zip)
	assert.Equal(t, "Kim", hs[3].Name)
	for _, h := range hs {
		assert.NotEmpty(t, h.ID)
	}
}

func TestFromBlocksSortsNearestWhenTargetGiven(t *testing.T) {
	hs := FromBlocks(listing, "90210", "#100")

	var got []string
	for _, h := range hs {
		got = append(got, h.Geography)
	}
	// 101 (1), 98 (2), 110 (10), unknown counts as 0 (100)
	assert.Equal(t, []string{"90210-101", "90210-98", "90210-110", UnknownGeography}, got)
}

func TestRecordIDsAreStable(t *testing.T) {
	a := FromBlocks(listing, "90210", "")
	b := FromBlocks(listing, "90210", "")

	assert.Equal(t, a[0].ID, b[0].ID)
	assert.NotEqual(t, a[2].ID, b[2].ID, "records without geography get fresh IDs")
}

func TestFromNeighbors(t *testing.T) {
	phone := "555-0101"
	hs := FromNeighbors("90210", []proximity.Neighbor{
		{Address: "102 Sunset", Count: 3, Phone: &phone, Geography: "90210-102", HouseNumber: 102},
	})

	require.Len(t, hs, 1)
	assert.Equal(t, "102 Sunset", hs[0].Address)
	assert.Equal(t, phone, hs[0].Phone)
	assert.Empty(t, hs[0].Name)
	assert.Equal(t, 102, hs[0].HouseNumber())
}

func TestAnnotationValidate(t *testing.T) {
	ok := Annotation{CanvassingResult: OutcomeMeeting, ProductsNeeded: []Product{Roofing, Door}, AppointmentDate: "2026-11-02"}
	assert.NoError(t, ok.Validate())
	wide := Annotation{Name: strings.Repeat("é", maxTextLen)}
	assert.NoError(t, wide.Validate(), "limits count characters, not bytes")

	tests := []struct {
		name string
		a    Annotation
	}{
		{"bad outcome", Annotation{CanvassingResult: "Maybe"}},
		{"bad product", Annotation{ProductsNeeded: []Product{"Pool"}}},
		{"duplicate product", Annotation{ProductsNeeded: []Product{Door, Door}}},
		{"bad date", Annotation{AppointmentDate: "11/02/2026"}},
		{"long name", Annotation{Name: strings.Repeat("n", maxTextLen+1)}},
		{"long mobile", Annotation{Mobile2: strings.Repeat("5", maxPhoneLen+1)}},
		{"long notes", Annotation{Notes: strings.Repeat("x", maxNotesLen+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.a.Validate(), apperr.ErrInvalidInput)
		})
	}
}

func TestRecordIDIgnoresStreetSpelling(t *testing.T) {
	listed := FromBlocks(listing, "90210", "")
	elm := FromNeighbors("90210", []proximity.Neighbor{{Address: "98 Elm", Geography: "90210-98"}})
	elmSt := FromNeighbors("90210", []proximity.Neighbor{{Address: "98 Elm St", Geography: "90210-98"}})

	assert.Equal(t, elm[0].ID, elmSt[0].ID)
	assert.Equal(t, listed[3].ID, elm[0].ID)
}

func TestRecordIDUsesBlockZip(t *testing.T) {
	listed := FromBlocks(listing, "90210", "")
	looked := FromNeighbors("90210", []proximity.Neighbor{{Address: "101 Elm", Geography: "90210-101", Zip: "90211"}})

	assert.Equal(t, "90211", looked[0].Zip)
	assert.Equal(t, listed[1].ID, looked[0].ID)
}

func TestExplorerReseedWithOtherStreetSpelling(t *testing.T) {
	ctx := context.Background()
	e := NewExplorer(NewMemoryStore(), 0)
	s := e.Open("walk")
	first := FromNeighbors("90210", []proximity.Neighbor{{Address: "98 Elm", Geography: "90210-98"}})
	require.NoError(t, e.Seed(ctx, s, first, "1"))
	_, err := e.Save(ctx, s, "98 Elm", Annotation{Notes: "side door"})
	require.NoError(t, err)

	again := FromNeighbors("90210", []proximity.Neighbor{{Address: "98 Elm St", Geography: "90210-98"}})
	require.NoError(t, e.Seed(ctx, s, again, "1"))

	list := s.Households()
	require.Len(t, list, 1)
	assert.Equal(t, "98 Elm St", list[0].Address)
	assert.Equal(t, "side door", list[0].Notes)
}

func TestExplorerSaveByAddressAndID(t *testing.T) {
	ctx := context.Background()
	e := NewExplorer(NewMemoryStore(), 0)
	s := e.Open("")
	hs := FromNeighbors("90210", []proximity.Neighbor{
		{Address: "102 Sunset", Geography: "90210-102"},
		{Address: "104 Sunset", Geography: "90210-104"},
	})
	require.NoError(t, e.Seed(ctx, s, hs, "2"))

	saved, err := e.Save(ctx, s, "104 Sunset", Annotation{Spouse: "Ana", CanvassingResult: OutcomeRNT})
	require.NoError(t, err)
	assert.Equal(t, "Ana", saved.Spouse)
	assert.Equal(t, []Product{}, saved.ProductsNeeded)

	_, err = e.Save(ctx, s, hs[0].ID, Annotation{Notes: "dog in yard"})
	require.NoError(t, err)

	list := s.Households()
	assert.Equal(t, "dog in yard", list[0].Notes)
	assert.Equal(t, OutcomeRNT, list[1].CanvassingResult)
	assert.Equal(t, "2", s.TotalCount())

	_, err = e.Save(ctx, s, "999 Nowhere", Annotation{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestExplorerSaveUpdatesDuplicates(t *testing.T) {
	ctx := context.Background()
	e := NewExplorer(NewMemoryStore(), 0)
	s := e.Open("dup")
	text := `<Street><Geography>90210-7</Geography></Street><Street><Geography>90210-7</Geography></Street>`
	hs := FromBlocks(text, "90210", "")
	require.NoError(t, e.Seed(ctx, s, hs, "2"))

	_, err := e.Save(ctx, s, hs[0].ID, Annotation{Notes: "twins"})
	require.NoError(t, err)

	for _, h := range s.Households() {
		assert.Equal(t, "twins", h.Notes)
	}
}

func TestExplorerReseedRestoresAnnotations(t *testing.T) {
	ctx := context.Background()
	e := NewExplorer(NewMemoryStore(), 0)
	s := e.Open("s1")
	require.NoError(t, e.Seed(ctx, s, FromBlocks(listing, "90210", ""), "57"))

	first := s.Households()[0]
	_, err := e.Save(ctx, s, first.ID, Annotation{Notes: "call back"})
	require.NoError(t, err)

	require.NoError(t, e.Seed(ctx, s, FromBlocks(listing, "90210", ""), "57"))
	assert.Equal(t, "call back", s.Households()[0].Notes)
}

func TestExplorerDiscard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e := NewExplorer(store, 0)
	s := e.Open("gone")
	require.NoError(t, e.Seed(ctx, s, FromBlocks(listing, "90210", ""), "57"))
	_, err := e.Save(ctx, s, s.Households()[0].ID, Annotation{Notes: "x"})
	require.NoError(t, err)

	require.NoError(t, e.Discard(ctx, "gone"))

	_, err = e.Session("gone")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	notes, err := store.Annotations(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.ErrorIs(t, e.Discard(ctx, "gone"), apperr.ErrNotFound)
}

func TestSessionSearchGate(t *testing.T) {
	s := NewExplorer(NewMemoryStore(), 0).Open("")

	require.NoError(t, s.BeginSearch())
	err := s.BeginSearch()
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	s.EndSearch()
	assert.NoError(t, s.BeginSearch())
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := Annotation{ProductsNeeded: []Product{Door}}
	require.NoError(t, store.SaveAnnotation(ctx, "s", "r", a))

	a.ProductsNeeded[0] = Window
	got, err := store.Annotations(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []Product{Door}, got["r"].ProductsNeeded)
}

func TestMemoryStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.SaveAnnotation(ctx, "s", string(rune('a'+i)), Annotation{})
		}(i)
	}
	wg.Wait()

	got, err := store.Annotations(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestExplorerAbandonDropsUnseededSession(t *testing.T) {
	ctx := context.Background()
	e := NewExplorer(NewMemoryStore(), 0)

	s := e.Open("")
	e.Abandon(s)
	assert.Zero(t, e.Len())

	kept := e.Open("kept")
	require.NoError(t, e.Seed(ctx, kept, FromBlocks(listing, "90210", ""), "57"))
	e.Abandon(kept)
	_, err := e.Session("kept")
	assert.NoError(t, err)
}

func TestExplorerEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e := NewExplorer(store, time.Hour)
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	old := e.Open("old")
	require.NoError(t, e.Seed(ctx, old, FromBlocks(listing, "90210", ""), "57"))
	_, err := e.Save(ctx, old, old.Households()[0].ID, Annotation{Notes: "x"})
	require.NoError(t, err)

	busy := e.Open("busy")
	require.NoError(t, busy.BeginSearch())

	now = now.Add(30 * time.Minute)
	e.Open("fresh")
	assert.Equal(t, 3, e.Len())

	now = now.Add(45 * time.Minute)
	e.Open("")

	_, err = e.Session("old")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.Session("busy")
	assert.NoError(t, err, "sessions with a search in flight stay")
	_, err = e.Session("fresh")
	assert.NoError(t, err)

	notes, err := store.Annotations(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestExplorerDiscardDuringSearch(t *testing.T) {
	ctx := context.Background()
	e := NewExplorer(NewMemoryStore(), 0)
	s := e.Open("busy")
	require.NoError(t, s.BeginSearch())

	assert.ErrorIs(t, e.Discard(ctx, "busy"), apperr.ErrConflict)
	_, err := e.Session("busy")
	require.NoError(t, err)

	s.EndSearch()
	assert.NoError(t, e.Discard(ctx, "busy"))
}

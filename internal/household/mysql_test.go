package household

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanHill92/canvass/internal/apperr"
)

// skipIfNoMySQL opens the database named by TEST_MYSQL_DSN, skipping the
// test when it is not configured or unreachable.
func skipIfNoMySQL(t *testing.T) *MySQLStore {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("skipping: TEST_MYSQL_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("skipping: mysql unavailable: %v", err)
	}
	require.NoError(t, EnsureSchema(ctx, db))

	store, err := NewMySQLStore(db)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestMySQLStoreRoundTrip(t *testing.T) {
	store := skipIfNoMySQL(t)
	ctx := context.Background()
	session := uuid.NewString()
	t.Cleanup(func() { store.DeleteSession(ctx, session) })

	a := Annotation{
		Name:             "Jo",
		Spouse:           "Sam",
		Mobile1:          "555-0110",
		Notes:            "prefers evenings",
		CanvassingResult: OutcomeMeeting,
		ProductsNeeded:   []Product{Roofing, Flooring},
		AppointmentDate:  "2026-12-01",
	}
	require.NoError(t, store.SaveAnnotation(ctx, session, "rec-1", a))

	a.Notes = "prefers mornings"
	require.NoError(t, store.SaveAnnotation(ctx, session, "rec-1", a))
	require.NoError(t, store.SaveAnnotation(ctx, session, "rec-2", Annotation{}))

	got, err := store.Annotations(ctx, session)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got["rec-1"])
	assert.Equal(t, Annotation{ProductsNeeded: []Product{}}, got["rec-2"])
	assert.NoError(t, store.Ping(ctx))

	require.NoError(t, store.DeleteSession(ctx, session))
	got, err = store.Annotations(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullIfEmpty("").Valid)
	assert.True(t, nullIfEmpty("x").Valid)
	assert.Equal(t, "", emptyIfNull(sql.NullString{}))
	assert.Equal(t, "y", emptyIfNull(sql.NullString{String: "y", Valid: true}))
}

func TestClassifyMySQLErrors(t *testing.T) {
	tooLong := classify(&mysql.MySQLError{Number: mysqlErrDataTooLong, Message: "Data too long for column 'name'"})
	assert.ErrorIs(t, tooLong, ErrFieldTooLong)
	assert.ErrorIs(t, tooLong, apperr.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatusCode(tooLong))
	assert.Equal(t, "annotation field too long", apperr.PublicMessage(tooLong))

	noTable := classify(&mysql.MySQLError{Number: mysqlErrNoSuchTable, Message: "Table 'annotation' doesn't exist"})
	assert.ErrorIs(t, noTable, ErrNoSchema)
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatusCode(noTable))
}

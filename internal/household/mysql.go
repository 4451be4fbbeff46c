package household

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/RyanHill92/canvass/internal/apperr"
)

// MySQLStore keeps annotations in a MySQL DB.
type MySQLStore struct {
	db     *sql.DB
	stmts  map[string]*sql.Stmt
	logger *slog.Logger
}

const (
	queryUpsertAnnotation   = "upsert-annotation"
	queryGetAnnotations     = "get-annotations-by-session-id"
	queryDeleteAnnotations  = "delete-annotations-by-session-id"
	mysqlErrNoSuchTable     = 1146
	mysqlErrDataTooLong     = 1406
	productSeparator        = ","
	annotationSchemaVersion = 1
)

var (
	// ErrNoSchema reports that the annotation table has not been created.
	ErrNoSchema = errors.New("annotation table missing; run EnsureSchema")
	// ErrFieldTooLong reports a field longer than its column allows. It is a
	// client input error.
	ErrFieldTooLong = apperr.New(apperr.ErrInvalidInput, http.StatusBadRequest, "annotation field too long")
)

const createAnnotationTable = `
	CREATE TABLE IF NOT EXISTS annotation (
		session_id        VARCHAR(36)  NOT NULL,
		record_id         VARCHAR(36)  NOT NULL,
		name              VARCHAR(255) NULL,
		spouse            VARCHAR(255) NULL,
		phone             VARCHAR(64)  NULL,
		mobile_one        VARCHAR(64)  NULL,
		mobile_two        VARCHAR(64)  NULL,
		email             VARCHAR(255) NULL,
		last_results      VARCHAR(255) NULL,
		notes             TEXT         NULL,
		canvassing_result VARCHAR(32)  NULL,
		products_needed   VARCHAR(255) NULL,
		appointment_date  DATE         NULL,
		updated_at        TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, record_id)
	);
`

var unprepared = map[string]string{
	queryUpsertAnnotation: `
		INSERT INTO annotation (
			session_id, record_id, name, spouse, phone, mobile_one, mobile_two,
			email, last_results, notes, canvassing_result, products_needed, appointment_date
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			spouse = VALUES(spouse),
			phone = VALUES(phone),
			mobile_one = VALUES(mobile_one),
			mobile_two = VALUES(mobile_two),
			email = VALUES(email),
			last_results = VALUES(last_results),
			notes = VALUES(notes),
			canvassing_result = VALUES(canvassing_result),
			products_needed = VALUES(products_needed),
			appointment_date = VALUES(appointment_date);
	`,
	queryGetAnnotations: `
		SELECT
			a.record_id,
			a.name,
			a.spouse,
			a.phone,
			a.mobile_one,
			a.mobile_two,
			a.email,
			a.last_results,
			a.notes,
			a.canvassing_result,
			a.products_needed,
			a.appointment_date
		FROM annotation a
		WHERE a.session_id = ?
		ORDER BY a.record_id ASC;
	`,
	queryDeleteAnnotations: `
		DELETE FROM annotation
		WHERE session_id = ?;
	`,
}

// EnsureSchema creates the annotation table when it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createAnnotationTable); err != nil {
		return fmt.Errorf("error creating annotation table (schema v%d): %w", annotationSchemaVersion, err)
	}
	return nil
}

// NewMySQLStore returns a store with backing DB connection and statements prepared against it.
func NewMySQLStore(db *sql.DB) (*MySQLStore, error) {
	stmts := make(map[string]*sql.Stmt)
	for key, query := range unprepared {
		stmt, err := db.Prepare(query)
		if err != nil {
			for _, prepared := range stmts {
				prepared.Close()
			}
			return nil, fmt.Errorf("error preparing statement %s: %w", key, classify(err))
		}
		stmts[key] = stmt
	}
	store := MySQLStore{
		db:     db,
		stmts:  stmts,
		logger: slog.Default().With("component", "annotation-store"),
	}

	return &store, nil
}

// SaveAnnotation writes the notes for one record, replacing earlier notes.
func (store *MySQLStore) SaveAnnotation(ctx context.Context, sessionID, recordID string, a Annotation) error {
	stmt := store.stmts[queryUpsertAnnotation]

	var appointment sql.NullTime
	if a.AppointmentDate != "" {
		t, err := time.Parse(dateLayout, a.AppointmentDate)
		if err != nil {
			return fmt.Errorf("parsing appointment date %q: %w", a.AppointmentDate, err)
		}
		appointment = sql.NullTime{Time: t, Valid: true}
	}

	productNames := make([]string, 0, len(a.ProductsNeeded))
	for _, p := range a.ProductsNeeded {
		productNames = append(productNames, string(p))
	}

	_, err := stmt.ExecContext(ctx,
		sessionID,
		recordID,
		nullIfEmpty(a.Name),
		nullIfEmpty(a.Spouse),
		nullIfEmpty(a.Phone),
		nullIfEmpty(a.Mobile1),
		nullIfEmpty(a.Mobile2),
		nullIfEmpty(a.Email),
		nullIfEmpty(a.LastResults),
		nullIfEmpty(a.Notes),
		nullIfEmpty(string(a.CanvassingResult)),
		nullIfEmpty(strings.Join(productNames, productSeparator)),
		appointment,
	)
	if err != nil {
		return fmt.Errorf("INSERT Annotation failed: %w", classify(err))
	}
	return nil
}

// Annotations lists the notes saved for a session, keyed by record ID.
func (store *MySQLStore) Annotations(ctx context.Context, sessionID string) (map[string]Annotation, error) {
	stmt := store.stmts[queryGetAnnotations]
	rows, err := stmt.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("SELECT Annotations failed: %w", classify(err))
	}

	defer rows.Close()

	out := make(map[string]Annotation)
	for rows.Next() {
		var (
			recordID                                    string
			name, spouse, phone, mobile1, mobile2       sql.NullString
			email, lastResults, notes, result, products sql.NullString
			appointment                                 sql.NullTime
		)
		err := rows.Scan(
			&recordID,
			&name,
			&spouse,
			&phone,
			&mobile1,
			&mobile2,
			&email,
			&lastResults,
			&notes,
			&result,
			&products,
			&appointment,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse row as Annotation: %w", err)
		}
		a := Annotation{
			Name:             emptyIfNull(name),
			Spouse:           emptyIfNull(spouse),
			Phone:            emptyIfNull(phone),
			Mobile1:          emptyIfNull(mobile1),
			Mobile2:          emptyIfNull(mobile2),
			Email:            emptyIfNull(email),
			LastResults:      emptyIfNull(lastResults),
			Notes:            emptyIfNull(notes),
			CanvassingResult: Outcome(emptyIfNull(result)),
			ProductsNeeded:   []Product{},
		}
		if p := emptyIfNull(products); p != "" {
			for _, product := range strings.Split(p, productSeparator) {
				a.ProductsNeeded = append(a.ProductsNeeded, Product(product))
			}
		}
		if appointment.Valid {
			a.AppointmentDate = appointment.Time.Format(dateLayout)
		}
		out[recordID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating Annotation rows: %w", err)
	}

	return out, nil
}

// DeleteSession removes every note saved for a session.
func (store *MySQLStore) DeleteSession(ctx context.Context, sessionID string) error {
	stmt := store.stmts[queryDeleteAnnotations]
	result, err := stmt.ExecContext(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("error running DELETE Annotation: %w", classify(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}

	store.logger.Info("session annotations removed", "session_id", sessionID, "rows", rowsAffected)
	return nil
}

// Ping checks the DB connection.
func (store *MySQLStore) Ping(ctx context.Context) error {
	return store.db.PingContext(ctx)
}

// Close cleans up prepared statements.
func (store *MySQLStore) Close() {
	store.logger.Info("closing prepared statements")
	for key, stmt := range store.stmts {
		if err := stmt.Close(); err != nil {
			store.logger.Error("failed to close stmt", "stmt", key, "error", err)
		}
	}
}

func classify(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrNoSuchTable:
			return fmt.Errorf("%w: %s", ErrNoSchema, mysqlErr.Message)
		case mysqlErrDataTooLong:
			return fmt.Errorf("%w: %s", ErrFieldTooLong, mysqlErr.Message)
		}
	}
	return err
}

func emptyIfNull(nullString sql.NullString) string {
	if nullString.Valid {
		return nullString.String
	}
	return ""
}

func nullIfEmpty(s string) sql.NullString {
	valid := s != ""
	return sql.NullString{
		String: s,
		Valid:  valid,
	}
}

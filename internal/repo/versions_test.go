package repo

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/engine"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/quote"
)

type payloadRow struct {
	payload []byte
	count   int64
	err     error
}

func (r payloadRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *[]byte:
		*d = r.payload
	case *int64:
		*d = r.count
	default:
		return errors.New("unexpected scan target")
	}
	return nil
}

type payloadRows struct {
	payloads [][]byte
	pos      int
	closed   bool
}

func (r *payloadRows) Close()                                       { r.closed = true }
func (r *payloadRows) Err() error                                   { return nil }
func (r *payloadRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *payloadRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *payloadRows) Values() ([]any, error)                       { return nil, nil }
func (r *payloadRows) RawValues() [][]byte                          { return nil }
func (r *payloadRows) Conn() *pgx.Conn                              { return nil }

func (r *payloadRows) Next() bool {
	if r.pos >= len(r.payloads) {
		return false
	}
	r.pos++
	return true
}

func (r *payloadRows) Scan(dest ...any) error {
	return payloadRow{payload: r.payloads[r.pos-1]}.Scan(dest...)
}

type stubDB struct {
	execSQL  string
	execArgs []any
	execErr  error

	row   pgx.Row
	count int64
	rows  *payloadRows

	queryArgs []any
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = sql
	s.execArgs = args
	return pgconn.NewCommandTag("INSERT 0 1"), s.execErr
}

func (s *stubDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	s.queryArgs = args
	return s.rows, nil
}

func (s *stubDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	if sql == countVersions {
		return payloadRow{count: s.count}
	}
	return s.row
}

func sampleVersion(number int) quote.Version {
	return quote.Version{
		ID:              uuid.NewString(),
		QuoteID:         "7f6c2a0e-4a55-4c4f-9a59-8f7d7a1c2b10",
		Number:          number,
		CalculationID:   uuid.NewString(),
		ConsultantID:    "consultant-1",
		Trigger:         quote.TriggerAPI,
		CurrencyCode:    "USD",
		RefdataChecksum: "abc123",
		Totals:          engine.Totals{TotalSell: pricing.MustMoney("6926.16")},
		ValidUntil:      calendar.MustParseDate("2026-12-15"),
		CreatedAt:       time.Date(2026, 12, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestCreateInsertsColumnsAndPayload(t *testing.T) {
	db := &stubDB{}
	store := VersionStore{DB: db}
	v := sampleVersion(3)

	require.NoError(t, store.Create(context.Background(), v))
	require.Equal(t, insertVersion, db.execSQL)
	require.Len(t, db.execArgs, 12)

	qid, ok := db.execArgs[1].(pgtype.UUID)
	require.True(t, ok)
	require.Equal(t, uuid.MustParse(v.QuoteID), uuid.UUID(qid.Bytes))
	require.Equal(t, 3, db.execArgs[2])
	require.Equal(t, "6926.16", db.execArgs[7])

	var decoded quote.Version
	require.NoError(t, json.Unmarshal(db.execArgs[10].([]byte), &decoded))
	require.Equal(t, v.ID, decoded.ID)
	require.Equal(t, "2026-12-15", decoded.ValidUntil.String())
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	db := &stubDB{execErr: &pgconn.PgError{Code: uniqueViolation}}
	err := VersionStore{DB: db}.Create(context.Background(), sampleVersion(1))
	require.ErrorIs(t, err, quote.ErrVersionConflict)
}

func TestCreateRejectsNonUUIDs(t *testing.T) {
	v := sampleVersion(1)
	v.CalculationID = "calc-test"
	err := VersionStore{DB: &stubDB{}}.Create(context.Background(), v)
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestGetDecodesPayload(t *testing.T) {
	v := sampleVersion(2)
	payload, err := json.Marshal(v)
	require.NoError(t, err)

	store := VersionStore{DB: &stubDB{row: payloadRow{payload: payload}}}
	got, err := store.Get(context.Background(), v.QuoteID, 2)
	require.NoError(t, err)
	require.Equal(t, v.ID, got.ID)
	require.True(t, v.Totals.TotalSell.Equal(got.Totals.TotalSell))
}

func TestLatestMapsNoRows(t *testing.T) {
	store := VersionStore{DB: &stubDB{row: payloadRow{err: pgx.ErrNoRows}}}
	_, err := store.Latest(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, quote.ErrNotFound)
}

func TestListReturnsRowsAndTotal(t *testing.T) {
	var payloads [][]byte
	for _, n := range []int{3, 2} {
		b, err := json.Marshal(sampleVersion(n))
		require.NoError(t, err)
		payloads = append(payloads, b)
	}
	db := &stubDB{count: 3, rows: &payloadRows{payloads: payloads}}

	versions, total, err := VersionStore{DB: db}.List(context.Background(), uuid.NewString(), 2, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, versions, 2)
	require.Equal(t, 3, versions[0].Number)
	require.Equal(t, []any{db.queryArgs[0], 2, 0}, db.queryArgs)
	require.True(t, db.rows.closed)
}

func TestListSkipsQueryWhenEmpty(t *testing.T) {
	db := &stubDB{}
	versions, total, err := VersionStore{DB: db}.List(context.Background(), uuid.NewString(), 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, versions)
	require.Nil(t, db.queryArgs)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/atoll", MigrateURL("postgres://u:p@db:5432/atoll"))
	require.Equal(t, "pgx5://db/atoll", MigrateURL("postgresql://db/atoll"))
	require.Equal(t, "pgx5://db/atoll", MigrateURL("pgx5://db/atoll"))
}

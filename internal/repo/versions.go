package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/atoll-quote/internal/quote"
)

// ErrInvalidID indicates an identifier could not be parsed as a UUID.
var ErrInvalidID = errors.New("invalid id")

const uniqueViolation = "23505"

// DBTX is the subset of pgx used by the store. *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VersionStore persists quote versions in Postgres. Each version is one row;
// the full document lives in a JSONB payload next to the columns used for
// lookups and listings.
type VersionStore struct {
	DB DBTX
}

var _ quote.Store = VersionStore{}

const insertVersion = `INSERT INTO quote_versions (
	id, quote_id, version_number, calculation_id, consultant_id, trigger,
	currency_code, total_sell, valid_until, refdata_checksum, payload, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Create inserts v. A duplicate (quote_id, version_number) yields quote.ErrVersionConflict.
func (s VersionStore) Create(ctx context.Context, v quote.Version) error {
	id, err := uuidValue(v.ID)
	if err != nil {
		return err
	}
	qid, err := uuidValue(v.QuoteID)
	if err != nil {
		return err
	}
	calcID, err := uuidValue(v.CalculationID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode version: %w", err)
	}
	var validUntil pgtype.Date
	if !v.ValidUntil.IsZero() {
		validUntil = pgtype.Date{Time: v.ValidUntil.Time(), Valid: true}
	}
	_, err = s.DB.Exec(ctx, insertVersion,
		id, qid, v.Number, calcID, v.ConsultantID, v.Trigger,
		v.CurrencyCode, v.Totals.TotalSell.Decimal().String(), validUntil, v.RefdataChecksum, payload, v.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s v%d", quote.ErrVersionConflict, v.QuoteID, v.Number)
		}
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

const selectLatest = `SELECT payload FROM quote_versions
WHERE quote_id = $1
ORDER BY version_number DESC
LIMIT 1`

// Latest returns the highest-numbered version of the quote.
func (s VersionStore) Latest(ctx context.Context, quoteID string) (quote.Version, error) {
	qid, err := uuidValue(quoteID)
	if err != nil {
		return quote.Version{}, err
	}
	return scanVersion(s.DB.QueryRow(ctx, selectLatest, qid))
}

const selectVersion = `SELECT payload FROM quote_versions
WHERE quote_id = $1 AND version_number = $2`

// Get returns one version by number.
func (s VersionStore) Get(ctx context.Context, quoteID string, number int) (quote.Version, error) {
	qid, err := uuidValue(quoteID)
	if err != nil {
		return quote.Version{}, err
	}
	return scanVersion(s.DB.QueryRow(ctx, selectVersion, qid, number))
}

const countVersions = `SELECT count(*) FROM quote_versions WHERE quote_id = $1`

const listVersions = `SELECT payload FROM quote_versions
WHERE quote_id = $1
ORDER BY version_number DESC
LIMIT $2 OFFSET $3`

// List returns versions newest first and the total number of versions.
func (s VersionStore) List(ctx context.Context, quoteID string, limit, offset int) ([]quote.Version, int, error) {
	qid, err := uuidValue(quoteID)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.DB.QueryRow(ctx, countVersions, qid).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count versions: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}
	rows, err := s.DB.Query(ctx, listVersions, qid, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	out := make([]quote.Version, 0, limit)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list versions: %w", err)
	}
	return out, int(total), nil
}

func scanVersion(row pgx.Row) (quote.Version, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quote.Version{}, quote.ErrNotFound
		}
		return quote.Version{}, fmt.Errorf("scan version: %w", err)
	}
	var v quote.Version
	if err := json.Unmarshal(payload, &v); err != nil {
		return quote.Version{}, fmt.Errorf("decode version: %w", err)
	}
	return v, nil
}

func uuidValue(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

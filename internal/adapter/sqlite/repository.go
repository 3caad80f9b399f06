// Package sqlite persists countries and health facts with referential
// integrity.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/health-data-etl-service/internal/domain"
	"github.com/couchcryptid/health-data-etl-service/internal/observability"
)

// schema is applied on every construction. CREATE TABLE IF NOT EXISTS keeps
// it safe against an already-initialized store.
const schema = `
CREATE TABLE IF NOT EXISTS countries (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	region TEXT
);

CREATE TABLE IF NOT EXISTS health_facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	country_code TEXT REFERENCES countries(code),
	year INTEGER,
	sex TEXT,
	value REAL,
	indicator TEXT
);

CREATE INDEX IF NOT EXISTS idx_health_facts_year ON health_facts(year);
`

// Repository is the relational store for reference and fact data.
//
// Foreign keys are enforced per connection via the DSN flag, so every pooled
// connection the database/sql layer opens has the pragma active. Each
// operation runs inside its own transaction: begin, work, commit, with
// rollback guaranteed on every other exit path.
type Repository struct {
	db      *sql.DB
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New opens (creating if needed) the database at path and ensures the schema
// exists. Use a file path under the service's data directory; WAL mode keeps
// readers unblocked during ingestion writes.
func New(path string, metrics *observability.Metrics, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	r := &Repository{db: db, metrics: metrics, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return r, nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate() error {
	_, err := r.db.Exec(schema)
	return err
}

// UpsertCountry inserts or fully replaces the reference row keyed on
// Country.Code. Calling it twice with the same code leaves exactly one row
// carrying the latest name and region.
func (r *Repository) UpsertCountry(ctx context.Context, country domain.Country) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO countries (code, name, region) VALUES (?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET name = excluded.name, region = excluded.region`,
			country.Code, country.Name, country.Region,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert country %s: %w", country.Code, err)
	}
	r.metrics.CountriesUpserted.Inc()
	return nil
}

// InsertHealthFact attempts to persist one fact row. A fact referencing a
// country code with no reference row is rejected by the foreign-key
// constraint; that outcome is returned as domain.FactRejected with a nil
// error so the caller can skip the record and continue. A non-nil error means
// the store itself failed and the run should abort.
//
// Facts carry no uniqueness constraint: inserting the same observation twice
// creates two rows.
func (r *Repository) InsertHealthFact(ctx context.Context, fact domain.HealthFact) (domain.InsertOutcome, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO health_facts (country_code, year, sex, value, indicator)
			VALUES (?, ?, ?, ?, ?)`,
			fact.CountryCode, fact.Year, fact.Sex.Storage(), fact.Value, fact.Indicator,
		)
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			r.logger.Warn("skipped fact for unknown country",
				"country_code", fact.CountryCode, "indicator", fact.Indicator, "year", fact.Year)
			r.metrics.FactsRejected.Inc()
			return domain.FactRejected, nil
		}
		return domain.FactRejected, fmt.Errorf("insert health fact %s/%s/%d: %w",
			fact.CountryCode, fact.Indicator, fact.Year, err)
	}
	r.metrics.FactsInserted.Inc()
	return domain.FactInserted, nil
}

// FetchFactsByYear returns one row per fact for the given year, joined to the
// country display name. Inner join: facts without a matching country are
// excluded, although the foreign-key constraint makes that state unreachable.
func (r *Repository) FetchFactsByYear(ctx context.Context, year int) ([]domain.FactRow, error) {
	var out []domain.FactRow
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT f.year, c.name, COALESCE(f.sex, ''), f.value, f.indicator
			FROM health_facts f
			JOIN countries c ON f.country_code = c.code
			WHERE f.year = ?`,
			year,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row domain.FactRow
			if err := rows.Scan(&row.Year, &row.Country, &row.Sex, &row.Value, &row.Indicator); err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetch facts for year %d: %w", year, err)
	}
	return out, nil
}

// withTx runs fn inside a transaction scoped to this call. The deferred
// rollback is a no-op after a successful commit and guarantees release on
// every other path.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// Package storage keeps a log of served predictions in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Prediction is one logged prediction.
type Prediction struct {
	RequestID string
	Store     int
	Date      time.Time
	Sales     float64
}

// Writer persists a batch of predictions.
type Writer interface {
	Write(ctx context.Context, batch []Prediction) error
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id         BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL,
	store      INTEGER NOT NULL,
	date       DATE NOT NULL,
	sales      DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Postgres writes predictions with COPY.
type Postgres struct {
	db *sql.DB
}

// Open connects to dsn, checks the connection and creates the predictions table.
func Open(ctx context.Context, dsn string, opts Options) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, sfErrors.Wrap(err, "open postgres")
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, sfErrors.Wrap(err, "ping postgres")
	}

	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return sfErrors.Wrap(err, "create predictions table")
	}
	return nil
}

// Write copies batch into the predictions table in a single transaction.
func (p *Postgres) Write(ctx context.Context, batch []Prediction) (err error) {
	if len(batch) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return sfErrors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("predictions", "request_id", "store", "date", "sales"))
	if err != nil {
		return sfErrors.Wrap(err, "prepare copy")
	}
	for _, row := range batch {
		if _, err = stmt.ExecContext(ctx, row.RequestID, row.Store, row.Date, row.Sales); err != nil {
			_ = stmt.Close()
			return sfErrors.Wrapf(err, "copy store %d", row.Store)
		}
	}
	// flush
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return sfErrors.Wrap(err, "flush copy")
	}
	if err = stmt.Close(); err != nil {
		return sfErrors.Wrap(err, "close copy")
	}
	return tx.Commit()
}

// CountForRequest returns how many predictions were logged for requestID.
func (p *Postgres) CountForRequest(ctx context.Context, requestID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT count(*) FROM predictions WHERE request_id = $1`, requestID).Scan(&n)
	if err != nil {
		return 0, sfErrors.Wrap(err, "count predictions")
	}
	return n, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

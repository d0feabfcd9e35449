package report

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultTable = "whois_matches"

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGSink stores every matched record as a row.
type PGSink struct {
	db    execer
	table string
	pool  *pgxpool.Pool
}

// OpenPG connects to databaseURL and makes sure the table exists.
func OpenPG(ctx context.Context, databaseURL, table string) (*PGSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := newPGSink(pool, table)
	s.pool = pool
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func newPGSink(db execer, table string) *PGSink {
	if table == "" {
		table = DefaultTable
	}
	return &PGSink{db: db, table: pgx.Identifier{table}.Sanitize()}
}

func (s *PGSink) Name() string { return "postgres" }

func (s *PGSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		run_id       TEXT        NOT NULL,
		message_id   BIGINT      NOT NULL,
		display_name TEXT        NOT NULL,
		sent_at      TEXT        NOT NULL,
		profile_link TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (run_id, message_id)
	)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *PGSink) Publish(ctx context.Context, r *Report) error {
	query := `INSERT INTO ` + s.table + ` (run_id, message_id, display_name, sent_at, profile_link)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT DO NOTHING`
	for _, rec := range r.Records {
		if _, err := s.db.Exec(ctx, query, string(r.RunID), rec.MessageID, rec.DisplayName, rec.Timestamp, rec.ProfileLink); err != nil {
			return fmt.Errorf("insert message %d: %w", rec.MessageID, err)
		}
	}
	return nil
}

func (s *PGSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

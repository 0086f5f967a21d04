package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const createCheckpointsTable = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLCheckpointStore stores checkpoints in Postgres or SQLite. Writes are
// conditional on the stored version.
type SQLCheckpointStore struct {
	db     *sql.DB
	driver string
}

// NewSQLCheckpointStore opens dsn with driver, checks the connection and
// creates the checkpoints table when missing.
func NewSQLCheckpointStore(ctx context.Context, driver, dsn string) (*SQLCheckpointStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported checkpoint driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection so an in-memory database is shared
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLCheckpointStore{db: db, driver: driver}
	if _, err := db.ExecContext(ctx, createCheckpointsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return s, nil
}

// rebind rewrites ? placeholders for the driver.
func (s *SQLCheckpointStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLCheckpointStore) Load(ctx context.Context, threadID string) (*model.ConversationState, error) {
	var (
		version int64
		raw     string
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT version, state FROM checkpoints WHERE thread_id = ?`), threadID,
	).Scan(&version, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to load checkpoint")
		return nil, errx.WrapSQL(err)
	}
	st, err := unmarshalState([]byte(raw), version)
	if err != nil {
		return nil, errx.Persistence(err)
	}
	return st, nil
}

func (s *SQLCheckpointStore) Save(ctx context.Context, threadID string, state *model.ConversationState) error {
	expected := state.Version
	next := expected + 1
	raw, err := marshalState(state, next)
	if err != nil {
		return errx.Persistence(err)
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, s.rebind(
			`INSERT INTO checkpoints (thread_id, version, state, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (thread_id) DO NOTHING`),
			threadID, next, string(raw), updatedAt)
	} else {
		res, err = s.db.ExecContext(ctx, s.rebind(
			`UPDATE checkpoints SET version = ?, state = ?, updated_at = ? WHERE thread_id = ? AND version = ?`),
			next, string(raw), updatedAt, threadID, expected)
	}
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to write checkpoint")
		return errx.WrapSQL(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.WrapSQL(err)
	}
	if n == 0 {
		return errx.Conflict(threadID)
	}
	state.Version = next
	return nil
}

func (s *SQLCheckpointStore) Close() error {
	return s.db.Close()
}

var _ model.CheckpointStore = (*SQLCheckpointStore)(nil)

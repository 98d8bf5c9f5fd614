package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"

	"collabtext/internal/wire"
)

// store is the relay's append-only persistence layer: every frame
// relayed for a document is recorded so a late-joining agent can
// replay a document's history via GET /ops/{doc}. The teacher's
// server/main.go opened a pgxpool and left a comment that it wasn't
// used yet; this is that pool put to work.
type store struct {
	pool *pgxpool.Pool
}

func openStore(ctx context.Context, databaseURL string) (*store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	s := &store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) Close() { s.pool.Close() }

func (s *store) migrate(ctx context.Context) error {
	const opsDDL = `
CREATE TABLE IF NOT EXISTS ops (
	document_id TEXT NOT NULL,
	creator     TEXT NOT NULL,
	op_number   BIGINT NOT NULL,
	frame       JSONB NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (document_id, creator, op_number)
)`
	const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
	document_id TEXT PRIMARY KEY,
	last_seen   TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := s.pool.Exec(ctx, opsDDL); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, documentsDDL)
	return err
}

// AppendFrame records f as having been relayed for doc, and touches
// doc's last-seen timestamp in the documents table. The two writes
// are independent — a document's activity timestamp is informational,
// not a referential-integrity parent of ops — so either can fail on
// its own without rolling back the other; both failures are
// accumulated with go.uber.org/multierr instead of the caller only
// ever learning about whichever happened to run first.
func (s *store) AppendFrame(ctx context.Context, doc string, f wire.Frame) error {
	data, err := wire.Marshal(f)
	if err != nil {
		return fmt.Errorf("store: marshal frame: %w", err)
	}

	const insertOp = `
INSERT INTO ops (document_id, creator, op_number, frame)
VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id, creator, op_number) DO NOTHING`
	const touchDocument = `
INSERT INTO documents (document_id, last_seen)
VALUES ($1, now())
ON CONFLICT (document_id) DO UPDATE SET last_seen = now()`

	var errs error
	if _, err := s.pool.Exec(ctx, insertOp, doc, f.UID.Creator, int64(f.UID.OpNumber), data); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("store: insert op: %w", err))
	}
	if _, err := s.pool.Exec(ctx, touchDocument, doc); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("store: touch document: %w", err))
	}
	return errs
}

// ReplayFrames returns every frame ever recorded for doc, in the order
// this server first received them (received_at). That order is not
// checked against dependencies; a frame that arrives ahead of an
// operation it references is left to the engine's deferred-retry path.
func (s *store) ReplayFrames(ctx context.Context, doc string) ([]wire.Frame, error) {
	const q = `
SELECT frame FROM ops
WHERE document_id = $1
ORDER BY received_at ASC`
	rows, err := s.pool.Query(ctx, q, doc)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []wire.Frame
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		f, err := wire.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("store: unmarshal: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

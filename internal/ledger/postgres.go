package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent Append calls across processes sharing the database.
const advisoryLockKey = int64(1_700_000_925)

const selectEntry = `SELECT idx, kind, subject, appended_at, payload, data_hash, prev_hash, hash FROM ledger_entries`

// PostgresStore persists the ledger to PostgreSQL (see migrations/001_ledger.up.sql).
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger, now: time.Now}
}

// Append implements Store.
// It takes a transaction-scoped advisory lock, reads the chain tail, seals the
// entry and inserts it in one transaction.
func (s *PostgresStore) Append(ctx context.Context, e *Entry) (*Entry, error) {
	if e == nil {
		return nil, checkAppend(nil, false)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE subject = $1 AND kind <> $2)`,
		e.Subject, string(KindAnchor),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check subject: %w", err)
	}
	if err := checkAppend(e, exists); err != nil {
		return nil, err
	}

	index, prevHash := 0, GenesisHash
	var tailIdx int
	var tailHash string
	err = tx.QueryRow(ctx, "SELECT idx, hash FROM ledger_entries ORDER BY idx DESC LIMIT 1").Scan(&tailIdx, &tailHash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("read ledger tail: %w", err)
	default:
		index, prevHash = tailIdx+1, tailHash
	}

	sealed := seal(e, index, prevHash, s.now())
	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (idx, kind, subject, appended_at, payload, data_hash, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sealed.Index, string(sealed.Kind), sealed.Subject, sealed.AppendedAt,
		string(sealed.Payload), sealed.DataHash, sealed.PrevHash, sealed.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}

	s.logger.Debug("ledger entry appended",
		zap.Int("idx", sealed.Index),
		zap.String("kind", string(sealed.Kind)),
		zap.String("subject", sealed.Subject),
	)
	return sealed, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	e := &Entry{}
	var kind, payload string
	if err := row.Scan(
		&e.Index, &kind, &e.Subject, &e.AppendedAt,
		&payload, &e.DataHash, &e.PrevHash, &e.Hash,
	); err != nil {
		return nil, err
	}
	e.Kind = Kind(kind)
	e.Payload = []byte(payload)
	e.AppendedAt = e.AppendedAt.UTC()
	return e, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, index int) (*Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, selectEntry+` WHERE idx = $1`, index))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entry %d: %w", index, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %d: %w", index, err)
	}
	return e, nil
}

// Len implements Store.
func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return n, nil
}

// Head implements Store.
func (s *PostgresStore) Head(ctx context.Context) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, "SELECT hash FROM ledger_entries ORDER BY idx DESC LIMIT 1").Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("get ledger head: %w", err)
	}
	return hash, nil
}

// each streams the rows of query in order.
func (s *PostgresStore) each(ctx context.Context, query string, fn func(*Entry) error, args ...any) error {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Verify implements Store. O(n) in ledger length; may be slow for very large ledgers.
func (s *PostgresStore) Verify(ctx context.Context) error {
	c := newChainChecker()
	return s.each(ctx, selectEntry+` ORDER BY idx ASC`, c.check)
}

func (s *PostgresStore) project(ctx context.Context, where string, args ...any) (*projection, error) {
	p := newProjection()
	if err := s.each(ctx, selectEntry+` `+where+` ORDER BY idx ASC`, p.apply, args...); err != nil {
		return nil, err
	}
	return p, nil
}

// ListTransactions implements Store.
func (s *PostgresStore) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	p, err := s.project(ctx, `WHERE subject LIKE 'transaction/%'`)
	if err != nil {
		return nil, err
	}
	return p.transactions(), nil
}

// ListAuditRecords implements Store.
func (s *PostgresStore) ListAuditRecords(ctx context.Context) ([]*AuditRecord, error) {
	p, err := s.project(ctx, `WHERE subject LIKE 'audit/%'`)
	if err != nil {
		return nil, err
	}
	return p.auditRecords(), nil
}

// FindTransaction implements Store.
func (s *PostgresStore) FindTransaction(ctx context.Context, id string) (*Transaction, error) {
	p, err := s.project(ctx, `WHERE subject = $1`, TransactionSubject(id))
	if err != nil {
		return nil, err
	}
	return p.transaction(id)
}

// FindAudit implements Store.
func (s *PostgresStore) FindAudit(ctx context.Context, id string) (*AuditRecord, error) {
	p, err := s.project(ctx, `WHERE subject = $1`, AuditSubject(id))
	if err != nil {
		return nil, err
	}
	return p.audit(id)
}

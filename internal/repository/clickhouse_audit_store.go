package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"MarketGate/internal/domain/repository"
	applogger "MarketGate/pkg/logger"
)

const auditSchema = `CREATE TABLE IF NOT EXISTS %s (
	event_type String,
	tool_name String,
	ticker String,
	session_id String,
	correlation_id String,
	compliance_decision String,
	reason String,
	security_alert UInt8,
	fields String,
	ts DateTime64(3)
) ENGINE = MergeTree ORDER BY (ts, event_type)`

// ClickHouseAuditStore archives audit events into ClickHouse for offline
// compliance analytics (approval rates, denial reasons, alert volumes).
// Events are batched; the request path never waits on the warehouse.
type ClickHouseAuditStore struct {
	db        *sql.DB
	table     string
	buf       chan repository.AuditEvent
	batchSize int
	flushEach time.Duration
	l         *applogger.Logger
}

// NewClickHouseAuditStore ensures the archive table exists and starts the
// batching writer.
func NewClickHouseAuditStore(ctx context.Context, db *sql.DB, table string, l *applogger.Logger) (*ClickHouseAuditStore, error) {
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(initCtx, fmt.Sprintf(auditSchema, table)); err != nil {
		return nil, fmt.Errorf("audit schema: %w", err)
	}

	s := &ClickHouseAuditStore{
		db:        db,
		table:     table,
		buf:       make(chan repository.AuditEvent, 4096),
		batchSize: 200,
		flushEach: 2 * time.Second,
		l:         l,
	}
	go s.run(ctx)
	return s, nil
}

func (s *ClickHouseAuditStore) Emit(_ context.Context, ev repository.AuditEvent) {
	select {
	case s.buf <- ev:
	default:
		if s.l != nil {
			s.l.Warn("audit archive buffer full, event dropped")
		}
	}
}

func (s *ClickHouseAuditStore) run(ctx context.Context) {
	ticker := time.NewTicker(s.flushEach)
	defer ticker.Stop()

	batch := make([]repository.AuditEvent, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.insert(batch); err != nil && s.l != nil {
			s.l.Warn("audit archive insert failed", applogger.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev := <-s.buf:
			batch = append(batch, ev)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *ClickHouseAuditStore) insert(batch []repository.AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (event_type, tool_name, ticker, session_id, correlation_id, compliance_decision, reason, security_alert, fields, ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch {
		var fields []byte
		if len(ev.Fields) > 0 {
			fields, _ = json.Marshal(ev.Fields)
		}
		sec := uint8(0)
		if ev.Security {
			sec = 1
		}
		if _, err := stmt.ExecContext(ctx,
			ev.Type, ev.ToolName, ev.Symbol, ev.SessionID, ev.CorrelationID,
			ev.Decision, ev.Reason, sec, string(fields), ev.At,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

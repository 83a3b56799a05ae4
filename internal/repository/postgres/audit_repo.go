package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/riskwatch/internal/audit"
)

const auditColumns = 10

const createAuditTable = `
CREATE TABLE IF NOT EXISTS admin_audit_trail (
	id             UUID PRIMARY KEY,
	trace_id       TEXT NOT NULL DEFAULT '',
	admin_id       TEXT NOT NULL,
	target_user_id TEXT NOT NULL,
	action         TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	before_state   JSONB,
	after_state    JSONB,
	ip_address     TEXT NOT NULL DEFAULT '',
	timestamp      TIMESTAMPTZ NOT NULL
)`

// AuditRepo: Sink журнала аудита в Postgres.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(connString string) (*AuditRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}, nil
}

// Init проверяет соединение и создает таблицу, если ее нет.
func (r *AuditRepo) Init(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createAuditTable); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

func (r *AuditRepo) Close() error { return r.db.Close() }

// WriteBatch: одна вставка на всю пачку.
func (r *AuditRepo) WriteBatch(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	query, args, err := buildAuditInsert(entries)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit batch: %w", err)
	}
	return nil
}

func buildAuditInsert(entries []audit.Entry) (string, []any, error) {
	var sb strings.Builder
	args := make([]any, 0, len(entries)*auditColumns)

	for i, e := range entries {
		before, err := json.Marshal(e.Before)
		if err != nil {
			return "", nil, fmt.Errorf("encode before_state: %w", err)
		}
		after, err := json.Marshal(e.After)
		if err != nil {
			return "", nil, fmt.Errorf("encode after_state: %w", err)
		}

		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		for c := 1; c <= auditColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*auditColumns+c)
		}
		sb.WriteByte(')')

		args = append(args,
			e.ID, e.TraceID, e.AdminID, e.TargetUserID, e.Action,
			e.Reason, before, after, e.IPAddress, e.Timestamp,
		)
	}

	query := "INSERT INTO admin_audit_trail (id, trace_id, admin_id, target_user_id, action, reason, before_state, after_state, ip_address, timestamp) VALUES " +
		sb.String() + " ON CONFLICT (id) DO NOTHING"
	return query, args, nil
}

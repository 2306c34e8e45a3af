package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend persists records into a single append-only table,
// using the same pgxpool.ParseConfig/NewWithConfig/Ping setup sequence
// as the pack's other Postgres-backed stores.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit postgres backend: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit postgres backend: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit postgres backend: ping: %w", err)
	}

	b := &PostgresBackend{pool: pool}
	if err := b.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) migrate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			component TEXT NOT NULL,
			message TEXT,
			user_id TEXT,
			session_id TEXT,
			request_id TEXT,
			correlation_id TEXT,
			metadata JSONB,
			tool_name TEXT,
			origin_server TEXT,
			arguments JSONB,
			result TEXT,
			error TEXT,
			duration_ms BIGINT,
			client_id TEXT
		);
		CREATE INDEX IF NOT EXISTS audit_records_ts_idx ON audit_records (ts);
		CREATE INDEX IF NOT EXISTS audit_records_tool_idx ON audit_records (tool_name);
		CREATE INDEX IF NOT EXISTS audit_records_event_type_idx ON audit_records (event_type);
		CREATE INDEX IF NOT EXISTS audit_records_correlation_idx ON audit_records (correlation_id);
	`)
	if err != nil {
		return fmt.Errorf("migrating audit schema: %w", err)
	}
	return nil
}

func (b *PostgresBackend) StoreEvent(ctx context.Context, r Record) error {
	return b.StoreBatch(ctx, []Record{r})
}

func (b *PostgresBackend) StoreBatch(ctx context.Context, batch []Record) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin audit batch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range batch {
		args, err := json.Marshal(r.Arguments)
		if err != nil {
			return fmt.Errorf("marshal arguments for %s: %w", r.ID, err)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO audit_records (
				id, ts, event_type, severity, component, message, user_id, session_id,
				request_id, correlation_id, metadata,
				tool_name, origin_server, arguments, result, error, duration_ms, client_id
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Timestamp, string(r.EventType), string(r.Severity), r.Component, r.Message, r.UserID, r.SessionID,
			r.RequestID, r.CorrelationID, meta,
			r.ToolName, r.OriginServer, args, r.Result, r.Error, r.DurationMS, r.ClientID)
		if err != nil {
			return fmt.Errorf("inserting audit record %s: %w", r.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (b *PostgresBackend) buildFilteredQuery(base string, q Query) (string, []interface{}) {
	var args []interface{}
	n := 0
	addArg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	sql := base
	if q.ToolName != "" {
		sql += " AND tool_name = " + addArg(q.ToolName)
	}
	if q.EventType != "" {
		sql += " AND event_type = " + addArg(string(q.EventType))
	}
	if q.Component != "" {
		sql += " AND component = " + addArg(q.Component)
	}
	if q.Severity != "" {
		sql += " AND severity = " + addArg(string(q.Severity))
	}
	if q.UserID != "" {
		sql += " AND user_id = " + addArg(q.UserID)
	}
	if q.CorrelationID != "" {
		sql += " AND correlation_id = " + addArg(q.CorrelationID)
	}
	if q.MessageSubstr != "" {
		sql += " AND message ILIKE " + addArg("%"+q.MessageSubstr+"%")
	}
	if !q.Since.IsZero() {
		sql += " AND ts >= " + addArg(q.Since)
	}
	if !q.Until.IsZero() {
		sql += " AND ts <= " + addArg(q.Until)
	}
	return sql, args
}

func (b *PostgresBackend) Query(ctx context.Context, q Query) ([]Record, error) {
	sql, args := b.buildFilteredQuery(`SELECT id, ts, event_type, severity, component, message, user_id, session_id,
		request_id, correlation_id, metadata, tool_name, origin_server, arguments, result, error, duration_ms, client_id
		FROM audit_records WHERE 1=1`, q)
	sql += " ORDER BY ts DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	filter, err := newCELFilter(q.CELExpr)
	if err != nil {
		return nil, err
	}

	var out []Record
	for rows.Next() {
		var (
			r          Record
			ts         time.Time
			eventType  string
			severity   string
			argsJSON   []byte
			metaJSON   []byte
		)
		if err := rows.Scan(&r.ID, &ts, &eventType, &severity, &r.Component, &r.Message, &r.UserID, &r.SessionID,
			&r.RequestID, &r.CorrelationID, &metaJSON, &r.ToolName, &r.OriginServer, &argsJSON, &r.Result, &r.Error, &r.DurationMS, &r.ClientID); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		r.Timestamp = ts
		r.EventType = EventType(eventType)
		r.Severity = Severity(severity)
		if len(argsJSON) > 0 {
			_ = json.Unmarshal(argsJSON, &r.Arguments)
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &r.Metadata)
		}
		if filter != nil && !filter.matches(r) {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *PostgresBackend) Count(ctx context.Context, q Query) (int, error) {
	sql, args := b.buildFilteredQuery("SELECT COUNT(*) FROM audit_records WHERE 1=1", q)
	var n int
	if err := b.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit records: %w", err)
	}
	return n, nil
}

func (b *PostgresBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM audit_records WHERE ts < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleaning up audit records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (b *PostgresBackend) HealthCheck(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *PostgresBackend) Flush(ctx context.Context) error { return nil }

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// DuckDBBackend stores records in a local analytical database file,
// used for offline querying of large audit histories without standing
// up Postgres. Connection setup follows the pack's
// duckdbDriver.NewConnector/sql.OpenDB pattern.
type DuckDBBackend struct {
	db *sql.DB
}

func NewDuckDBBackend(path string) (*DuckDBBackend, error) {
	connector, err := duckdbDriver.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb connector: %w", err)
	}
	db := sql.OpenDB(connector)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			ts TIMESTAMP NOT NULL,
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			component TEXT NOT NULL,
			message TEXT,
			user_id TEXT,
			session_id TEXT,
			request_id TEXT,
			correlation_id TEXT,
			metadata JSON,
			tool_name TEXT,
			origin_server TEXT,
			arguments JSON,
			result TEXT,
			error TEXT,
			duration_ms BIGINT,
			client_id TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit table: %w", err)
	}

	return &DuckDBBackend{db: db}, nil
}

func (b *DuckDBBackend) StoreEvent(ctx context.Context, r Record) error {
	return b.StoreBatch(ctx, []Record{r})
}

func (b *DuckDBBackend) StoreBatch(ctx context.Context, batch []Record) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin duckdb tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_records (
			id, ts, event_type, severity, component, message, user_id, session_id,
			request_id, correlation_id, metadata,
			tool_name, origin_server, arguments, result, error, duration_ms, client_id
		)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing duckdb insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		args, err := json.Marshal(r.Arguments)
		if err != nil {
			return fmt.Errorf("marshal arguments for %s: %w", r.ID, err)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Timestamp, string(r.EventType), string(r.Severity), r.Component, r.Message,
			r.UserID, r.SessionID, r.RequestID, r.CorrelationID, string(meta),
			r.ToolName, r.OriginServer, string(args), r.Result, r.Error, r.DurationMS, r.ClientID); err != nil {
			return fmt.Errorf("inserting audit record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (b *DuckDBBackend) buildFilteredQuery(base string, q Query) (string, []interface{}) {
	sqlStr := base
	var args []interface{}
	if q.ToolName != "" {
		sqlStr += " AND tool_name = ?"
		args = append(args, q.ToolName)
	}
	if q.EventType != "" {
		sqlStr += " AND event_type = ?"
		args = append(args, string(q.EventType))
	}
	if q.Component != "" {
		sqlStr += " AND component = ?"
		args = append(args, q.Component)
	}
	if q.Severity != "" {
		sqlStr += " AND severity = ?"
		args = append(args, string(q.Severity))
	}
	if q.UserID != "" {
		sqlStr += " AND user_id = ?"
		args = append(args, q.UserID)
	}
	if q.CorrelationID != "" {
		sqlStr += " AND correlation_id = ?"
		args = append(args, q.CorrelationID)
	}
	if q.MessageSubstr != "" {
		sqlStr += " AND message LIKE ?"
		args = append(args, "%"+q.MessageSubstr+"%")
	}
	if !q.Since.IsZero() {
		sqlStr += " AND ts >= ?"
		args = append(args, q.Since)
	}
	if !q.Until.IsZero() {
		sqlStr += " AND ts <= ?"
		args = append(args, q.Until)
	}
	return sqlStr, args
}

func (b *DuckDBBackend) Query(ctx context.Context, q Query) ([]Record, error) {
	sqlStr, args := b.buildFilteredQuery(`SELECT id, ts, event_type, severity, component, message, user_id, session_id,
		request_id, correlation_id, metadata, tool_name, origin_server, arguments, result, error, duration_ms, client_id
		FROM audit_records WHERE 1=1`, q)
	sqlStr += " ORDER BY ts DESC"
	if q.Limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, q.Limit)
	}
	if q.Offset > 0 {
		sqlStr += " OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("querying duckdb audit records: %w", err)
	}
	defer rows.Close()

	filter, err := newCELFilter(q.CELExpr)
	if err != nil {
		return nil, err
	}

	var out []Record
	for rows.Next() {
		var (
			r         Record
			ts        time.Time
			eventType string
			severity  string
			argsJSON  string
			metaJSON  string
		)
		if err := rows.Scan(&r.ID, &ts, &eventType, &severity, &r.Component, &r.Message, &r.UserID, &r.SessionID,
			&r.RequestID, &r.CorrelationID, &metaJSON, &r.ToolName, &r.OriginServer, &argsJSON, &r.Result, &r.Error, &r.DurationMS, &r.ClientID); err != nil {
			return nil, fmt.Errorf("scanning duckdb audit record: %w", err)
		}
		r.Timestamp = ts
		r.EventType = EventType(eventType)
		r.Severity = Severity(severity)
		if argsJSON != "" {
			_ = json.Unmarshal([]byte(argsJSON), &r.Arguments)
		}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &r.Metadata)
		}
		if filter != nil && !filter.matches(r) {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *DuckDBBackend) Count(ctx context.Context, q Query) (int, error) {
	sqlStr, args := b.buildFilteredQuery("SELECT COUNT(*) FROM audit_records WHERE 1=1", q)
	var n int
	if err := b.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting duckdb audit records: %w", err)
	}
	return n, nil
}

func (b *DuckDBBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM audit_records WHERE ts < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleaning up duckdb audit records: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b *DuckDBBackend) HealthCheck(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *DuckDBBackend) Flush(ctx context.Context) error { return nil }

func (b *DuckDBBackend) Close() error {
	return b.db.Close()
}

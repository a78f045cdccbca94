package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// TriggerDef is one live trigger as reported by the catalog: identity plus
// the raw body statement.
type TriggerDef struct {
	Name   string
	Timing string // before or after
	Event  string // insert, update or delete
	Table  string
	Body   string
}

// Client is the single sequential connection to the target schema. It only
// issues catalog queries and DDL; all orchestration lives above it.
type Client struct {
	db     *sql.DB
	schema string
}

// Open validates the DSN early and connects with conservative pool limits.
// The tool is strictly sequential, one connection is enough.
func Open(dsn string) (*Client, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(5 * time.Minute)
	return &Client{db: conn, schema: cfg.DBName}, nil
}

func (c *Client) Close() error { return c.db.Close() }

// Schema returns the target schema name, resolving it from the connection
// when the DSN did not name one.
func (c *Client) Schema(ctx context.Context) (string, error) {
	if c.schema != "" {
		return c.schema, nil
	}
	if err := c.db.QueryRowContext(ctx, `SELECT DATABASE()`).Scan(&c.schema); err != nil {
		return "", fmt.Errorf("resolve schema: %w", err)
	}
	return c.schema, nil
}

// ListTables returns the base tables of the target schema.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	schema, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema=? AND table_type='BASE TABLE'
ORDER BY table_name`, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ShowCreateTable returns the native table definition text.
func (c *Client) ShowCreateTable(ctx context.Context, name string) (string, error) {
	var table, ddl string
	query := fmt.Sprintf("SHOW CREATE TABLE `%s`", escapeIdent(name))
	if err := c.db.QueryRowContext(ctx, query).Scan(&table, &ddl); err != nil {
		return "", fmt.Errorf("show create table %s: %w", name, err)
	}
	return ddl, nil
}

// ListTriggers returns every trigger of the target schema with its body.
func (c *Client) ListTriggers(ctx context.Context) ([]TriggerDef, error) {
	schema, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `
SELECT trigger_name, action_timing, event_manipulation, event_object_table, action_statement
FROM information_schema.triggers
WHERE trigger_schema=?
ORDER BY trigger_name`, schema)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var out []TriggerDef
	for rows.Next() {
		var t TriggerDef
		if err := rows.Scan(&t.Name, &t.Timing, &t.Event, &t.Table, &t.Body); err != nil {
			return nil, err
		}
		t.Timing = strings.ToLower(t.Timing)
		t.Event = strings.ToLower(t.Event)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListProcedures returns the stored procedure names of the target schema.
func (c *Client) ListProcedures(ctx context.Context) ([]string, error) {
	schema, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `
SELECT routine_name
FROM information_schema.routines
WHERE routine_schema=? AND routine_type='PROCEDURE'
ORDER BY routine_name`, schema)
	if err != nil {
		return nil, fmt.Errorf("list procedures: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ShowCreateProcedure returns the full CREATE PROCEDURE text. The result
// shape of SHOW CREATE PROCEDURE varies between server versions, so the
// column is located by name.
func (c *Client) ShowCreateProcedure(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("SHOW CREATE PROCEDURE `%s`", escapeIdent(name))
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("show create procedure %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	idx := -1
	for i, col := range cols {
		if strings.EqualFold(col, "Create Procedure") {
			idx = i
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("show create procedure %s: no Create Procedure column", name)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("show create procedure %s: no rows", name)
	}
	values := make([]any, len(cols))
	var body sql.NullString
	for i := range values {
		values[i] = new(sql.RawBytes)
	}
	values[idx] = &body
	if err := rows.Scan(values...); err != nil {
		return "", err
	}
	return body.String, nil
}

// Execute runs one DDL statement.
func (c *Client) Execute(ctx context.Context, stmt string) error {
	_, err := c.db.ExecContext(ctx, stmt)
	return err
}

func escapeIdent(name string) string {
	return strings.ReplaceAll(name, "`", "``")
}

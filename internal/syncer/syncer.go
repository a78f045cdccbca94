package syncer

import (
	"context"

	"db_schema_filesync/internal/db"
)

// Database is the slice of the SQL client the syncer needs. Connection
// setup, authentication and transport live outside the core.
type Database interface {
	ListTables(ctx context.Context) ([]string, error)
	ShowCreateTable(ctx context.Context, name string) (string, error)
	ListTriggers(ctx context.Context) ([]db.TriggerDef, error)
	ListProcedures(ctx context.Context) ([]string, error)
	ShowCreateProcedure(ctx context.Context, name string) (string, error)
	Execute(ctx context.Context, sql string) error
}

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

package syncer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"db_schema_filesync/internal/db"
	"db_schema_filesync/internal/schema"
	"db_schema_filesync/internal/trigger"
)

// fakeDB is an in-memory Database. Listing order follows the order slices so
// tests stay deterministic.
type fakeDB struct {
	tableOrder []string
	tables     map[string]string
	triggers   []db.TriggerDef
	procOrder  []string
	procedures map[string]string
	executed   []string
}

func (f *fakeDB) ListTables(context.Context) ([]string, error) {
	return f.tableOrder, nil
}

func (f *fakeDB) ShowCreateTable(_ context.Context, name string) (string, error) {
	ddl, ok := f.tables[name]
	if !ok {
		return "", fmt.Errorf("no such table %s", name)
	}
	return ddl, nil
}

func (f *fakeDB) ListTriggers(context.Context) ([]db.TriggerDef, error) {
	return f.triggers, nil
}

func (f *fakeDB) ListProcedures(context.Context) ([]string, error) {
	return f.procOrder, nil
}

func (f *fakeDB) ShowCreateProcedure(_ context.Context, name string) (string, error) {
	body, ok := f.procedures[name]
	if !ok {
		return "", fmt.Errorf("no such procedure %s", name)
	}
	return body, nil
}

func (f *fakeDB) Execute(_ context.Context, sql string) error {
	f.executed = append(f.executed, sql)
	return nil
}

type testLogger struct {
	warns []string
}

func (l *testLogger) Info(msg string, args ...any) {}

func (l *testLogger) Warn(msg string, args ...any) { l.warns = append(l.warns, msg) }

func mustParse(t *testing.T, ddl string) *schema.TableDescriptor {
	t.Helper()
	d, _, err := schema.Parse(ddl)
	require.NoError(t, err)
	return d
}

func fragment(label, table, timing, action, body string) trigger.Fragment {
	return trigger.Fragment{Label: label, Table: table, Timing: timing, Action: action, Body: body}
}

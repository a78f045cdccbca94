package queue

import (
	"context"
	"fmt"
)

// Kind identifies one class of DDL statement. The set is closed: every
// action the differencer, trigger planner or procedure planner can produce
// uses one of these.
type Kind string

const (
	DropConstraint  Kind = "drop_constraint"
	DropTrigger     Kind = "drop_trigger"
	DropProcedure   Kind = "drop_procedure"
	DropKey         Kind = "drop_key"
	DropColumn      Kind = "drop_column"
	DropTable       Kind = "drop_table"
	CreateTable     Kind = "create_table"
	AddColumn       Kind = "add_column"
	ModifyColumn    Kind = "modify_column"
	AddKey          Kind = "add_key"
	AddConstraint   Kind = "add_constraint"
	CreateProcedure Kind = "create_procedure"
	CreateTrigger   Kind = "create_trigger"
)

// KindOrder is the drain order. All removals that could violate integrity
// come before all additions, and additions go from structural objects to
// the objects that depend on them. Kept as data so tests can assert the
// ordering covers every kind.
var KindOrder = []Kind{
	DropConstraint,
	DropTrigger,
	DropProcedure,
	DropKey,
	DropColumn,
	DropTable,
	CreateTable,
	AddColumn,
	ModifyColumn,
	AddKey,
	AddConstraint,
	CreateProcedure,
	CreateTrigger,
}

// Action is one pending DDL statement.
type Action struct {
	Kind        Kind
	Description string
	SQL         string
}

// Execer runs one SQL statement against the live database.
type Execer interface {
	Execute(ctx context.Context, sql string) error
}

// Queue buckets actions by kind, preserving insertion order within a kind.
type Queue struct {
	buckets map[Kind][]Action
}

func New() *Queue {
	return &Queue{buckets: map[Kind][]Action{}}
}

// Enqueue appends an action to its kind bucket.
func (q *Queue) Enqueue(kind Kind, description, sql string) {
	q.Add(Action{Kind: kind, Description: description, SQL: sql})
}

// Add appends a prebuilt action, typically one produced by the differencer.
func (q *Queue) Add(actions ...Action) {
	for _, a := range actions {
		q.buckets[a.Kind] = append(q.buckets[a.Kind], a)
	}
}

// Len reports the number of pending actions.
func (q *Queue) Len() int {
	n := 0
	for _, b := range q.buckets {
		n += len(b)
	}
	return n
}

// Pending returns a snapshot of the queue in drain order.
func (q *Queue) Pending() []Action {
	out := make([]Action, 0, q.Len())
	for _, kind := range KindOrder {
		out = append(out, q.buckets[kind]...)
	}
	return out
}

// ExecError reports the action that failed during a drain.
type ExecError struct {
	Description string
	SQL         string
	Err         error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execute %q: %v (sql: %s)", e.Description, e.Err, e.SQL)
}

func (e *ExecError) Unwrap() error { return e.Err }

type Logger interface {
	Info(msg string, args ...any)
}

// Scheduler drains a queue against a database. Dry-run and verbosity are
// explicit state here rather than process globals.
type Scheduler struct {
	DryRun bool
	Logger Logger
}

// Drain walks the kinds in KindOrder and processes each bucket FIFO. Every
// action is removed from the queue before the next one runs, so an aborted
// drain leaves only the unattempted remainder queued. The first execution
// error stops the drain; there are no retries.
func (s Scheduler) Drain(ctx context.Context, q *Queue, ex Execer) error {
	for _, kind := range KindOrder {
		for len(q.buckets[kind]) > 0 {
			a := q.buckets[kind][0]
			q.buckets[kind] = q.buckets[kind][1:]
			if s.Logger != nil {
				s.Logger.Info("action", "kind", string(a.Kind), "description", a.Description, "dry_run", s.DryRun)
			}
			if s.DryRun {
				continue
			}
			if err := ex.Execute(ctx, a.SQL); err != nil {
				return &ExecError{Description: a.Description, SQL: a.SQL, Err: err}
			}
		}
	}
	return nil
}

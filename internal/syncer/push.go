package syncer

import (
	"context"
	"fmt"
	"sort"

	"db_schema_filesync/internal/archive"
	"db_schema_filesync/internal/db"
	"db_schema_filesync/internal/diff"
	"db_schema_filesync/internal/queue"
	"db_schema_filesync/internal/repo"
	"db_schema_filesync/internal/schema"
	"db_schema_filesync/internal/trigger"
)

// PushOptions control what a push may change. Columns are additive-only
// unless DropColumns is set; removal of whole live objects absent locally is
// gated per object type.
type PushOptions struct {
	Matcher             *Matcher
	DefaultTriggerLabel string
	ArchivePattern      string
	DryRun              bool
	DropColumns         bool
	DropTables          bool
	DropTriggers        bool
	DropProcedures      bool
}

// Push builds the full plan and drains it. Nothing executes until the plan
// for every object is built, so a validation failure on any table aborts the
// push before the first statement runs.
func Push(ctx context.Context, database Database, r repo.Repo, opts PushOptions, logger Logger) error {
	q, err := BuildPlan(ctx, database, r, opts, logger)
	if err != nil {
		return err
	}
	if q.Len() == 0 {
		logger.Info("nothing to push")
		return nil
	}
	sched := queue.Scheduler{DryRun: opts.DryRun, Logger: logger}
	return sched.Drain(ctx, q, database)
}

// BuildPlan diffs every local object against its live counterpart and
// returns the pending action queue. It never writes to the database.
func BuildPlan(ctx context.Context, database Database, r repo.Repo, opts PushOptions, logger Logger) (*queue.Queue, error) {
	q := queue.New()
	if err := planTables(ctx, database, r, opts, q); err != nil {
		return nil, err
	}
	if err := planTriggers(ctx, database, r, opts, q); err != nil {
		return nil, err
	}
	if err := planProcedures(ctx, database, r, opts, q); err != nil {
		return nil, err
	}
	return q, nil
}

func planTables(ctx context.Context, database Database, r repo.Repo, opts PushOptions, q *queue.Queue) error {
	local, err := r.ListTables()
	if err != nil {
		return err
	}
	sort.Strings(local)

	liveNames, err := database.ListTables(ctx)
	if err != nil {
		return err
	}
	live := map[string]bool{}
	for _, name := range liveNames {
		live[name] = true
	}

	var archiveRe = regexpForPattern(opts.ArchivePattern)

	localSet := map[string]bool{}
	for _, name := range local {
		if !opts.Matcher.Match(name) {
			continue
		}
		localSet[name] = true
		text, err := r.ReadTable(name)
		if err != nil {
			return err
		}
		desired, _, err := schema.Parse(text)
		if err != nil {
			return fmt.Errorf("table file %s: %w", name, err)
		}
		if desired.Name != name {
			return fmt.Errorf("table file %s: parsed name %q does not match: %w",
				name, desired.Name, schema.ErrMalformedDescriptor)
		}

		if !live[name] {
			q.Add(diff.NewTable(desired)...)
			continue
		}

		liveDDL, err := database.ShowCreateTable(ctx, name)
		if err != nil {
			return err
		}
		current, _, err := schema.Parse(liveDDL)
		if err != nil {
			return fmt.Errorf("live table %s: %w", name, err)
		}
		if archiveRe != nil && archiveRe.MatchString(name) {
			if err := archive.CheckUpdatable(current, desired); err != nil {
				return err
			}
		}
		actions, err := diff.Table(current, desired, opts.DropColumns)
		if err != nil {
			return err
		}
		q.Add(actions...)
	}

	if opts.DropTables {
		for _, name := range liveNames {
			if opts.Matcher.Match(name) && !localSet[name] {
				q.Enqueue(queue.DropTable,
					fmt.Sprintf("drop table %s", name),
					fmt.Sprintf("DROP TABLE `%s`", name))
			}
		}
	}
	return nil
}

func planTriggers(ctx context.Context, database Database, r repo.Repo, opts PushOptions, q *queue.Queue) error {
	fragments, err := r.ListFragments()
	if err != nil {
		return err
	}
	desired := map[trigger.Key][]trigger.Fragment{}
	for _, f := range fragments {
		if !opts.Matcher.Match(f.Table) {
			continue
		}
		desired[f.Key()] = append(desired[f.Key()], f)
	}

	liveTriggers, err := database.ListTriggers(ctx)
	if err != nil {
		return err
	}
	live := map[trigger.Key]db.TriggerDef{}
	for _, t := range liveTriggers {
		if opts.Matcher.Match(t.Table) {
			live[trigger.Key{Table: t.Table, Timing: t.Timing, Action: t.Event}] = t
		}
	}

	keys := make([]trigger.Key, 0, len(desired))
	for k := range desired {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Timing != b.Timing {
			return a.Timing < b.Timing
		}
		return a.Action < b.Action
	})

	for _, k := range keys {
		body := trigger.Compose(desired[k])
		name := trigger.Name(k.Timing, k.Action, k.Table)
		if t, exists := live[k]; exists {
			if trigger.StripWrapper(t.Body) == body {
				continue
			}
			// No alter-trigger in the dialect: replace wholesale.
			q.Enqueue(queue.DropTrigger,
				fmt.Sprintf("drop trigger %s", t.Name), trigger.DropSQL(t.Name))
		}
		q.Enqueue(queue.CreateTrigger,
			fmt.Sprintf("create trigger %s", name),
			trigger.CreateSQL(k.Table, k.Timing, k.Action, body))
	}

	if opts.DropTriggers {
		for k, t := range live {
			if _, wanted := desired[k]; !wanted {
				q.Enqueue(queue.DropTrigger,
					fmt.Sprintf("drop trigger %s", t.Name), trigger.DropSQL(t.Name))
			}
		}
	}
	return nil
}

func planProcedures(ctx context.Context, database Database, r repo.Repo, opts PushOptions, q *queue.Queue) error {
	local, err := r.ListProcedures()
	if err != nil {
		return err
	}
	sort.Strings(local)

	liveNames, err := database.ListProcedures(ctx)
	if err != nil {
		return err
	}
	live := map[string]bool{}
	for _, name := range liveNames {
		live[name] = true
	}

	localSet := map[string]bool{}
	for _, name := range local {
		if !opts.Matcher.Match(name) {
			continue
		}
		localSet[name] = true
		body, err := r.ReadProcedure(name)
		if err != nil {
			return err
		}
		if live[name] {
			liveBody, err := database.ShowCreateProcedure(ctx, name)
			if err != nil {
				return err
			}
			if liveBody == body {
				continue
			}
			q.Enqueue(queue.DropProcedure,
				fmt.Sprintf("drop procedure %s", name),
				fmt.Sprintf("DROP PROCEDURE `%s`", name))
		}
		q.Enqueue(queue.CreateProcedure,
			fmt.Sprintf("create procedure %s", name), body)
	}

	if opts.DropProcedures {
		for _, name := range liveNames {
			if opts.Matcher.Match(name) && !localSet[name] {
				q.Enqueue(queue.DropProcedure,
					fmt.Sprintf("drop procedure %s", name),
					fmt.Sprintf("DROP PROCEDURE `%s`", name))
			}
		}
	}
	return nil
}

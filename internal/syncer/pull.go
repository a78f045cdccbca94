package syncer

import (
	"context"
	"errors"
	"fmt"

	"db_schema_filesync/internal/repo"
	"db_schema_filesync/internal/schema"
	"db_schema_filesync/internal/trigger"
)

// PullOptions control which live objects are written locally and whether
// local files for vanished objects are removed, gated per object type.
type PullOptions struct {
	Matcher             *Matcher
	DefaultTriggerLabel string
	PruneTables         bool
	PruneTriggers       bool
	PruneProcedures     bool
}

// Pull reads the live schema objects and writes/updates the local files. A
// table whose definition cannot be parsed is skipped and reported; an
// unlabeled trigger fragment without a configured default label aborts the
// pull.
func Pull(ctx context.Context, database Database, r repo.Repo, opts PullOptions, logger Logger) error {
	if err := r.EnsureLayout(); err != nil {
		return err
	}

	var errs []error

	liveTables, err := database.ListTables(ctx)
	if err != nil {
		return err
	}
	liveTableSet := map[string]bool{}
	for _, name := range liveTables {
		if !opts.Matcher.Match(name) {
			continue
		}
		liveTableSet[name] = true
		ddl, err := database.ShowCreateTable(ctx, name)
		if err != nil {
			return err
		}
		d, warnings, err := schema.Parse(ddl)
		if err != nil {
			errs = append(errs, fmt.Errorf("pull table %s: %w", name, err))
			continue
		}
		for _, w := range warnings {
			logger.Warn("skipped clause", "table", name, "warning", w.String())
		}
		d.SortKeys()
		if err := r.WriteTable(name, schema.Serialize(d)); err != nil {
			return err
		}
		logger.Info("pulled table", "table", name)
	}

	liveTriggers, err := database.ListTriggers(ctx)
	if err != nil {
		return err
	}
	liveFragIDs := map[trigger.Fragment]bool{}
	for _, t := range liveTriggers {
		if !opts.Matcher.Match(t.Table) {
			continue
		}
		body := trigger.StripWrapper(t.Body)
		fragments, err := trigger.Split(body, t.Table, t.Timing, t.Event, opts.DefaultTriggerLabel)
		if err != nil {
			return err
		}
		for _, f := range fragments {
			if err := r.WriteFragment(f); err != nil {
				return err
			}
			f.Body = ""
			liveFragIDs[f] = true
		}
		logger.Info("pulled trigger", "trigger", t.Name, "fragments", len(fragments))
	}

	liveProcedures, err := database.ListProcedures(ctx)
	if err != nil {
		return err
	}
	liveProcSet := map[string]bool{}
	for _, name := range liveProcedures {
		if !opts.Matcher.Match(name) {
			continue
		}
		liveProcSet[name] = true
		body, err := database.ShowCreateProcedure(ctx, name)
		if err != nil {
			return err
		}
		if err := r.WriteProcedure(name, body); err != nil {
			return err
		}
		logger.Info("pulled procedure", "procedure", name)
	}

	if err := prune(r, opts, liveTableSet, liveFragIDs, liveProcSet, logger); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func prune(r repo.Repo, opts PullOptions, tables map[string]bool, frags map[trigger.Fragment]bool, procs map[string]bool, logger Logger) error {
	if opts.PruneTables {
		local, err := r.ListTables()
		if err != nil {
			return err
		}
		for _, name := range local {
			if opts.Matcher.Match(name) && !tables[name] {
				if err := r.RemoveTable(name); err != nil {
					return err
				}
				logger.Info("pruned table file", "table", name)
			}
		}
	}
	if opts.PruneTriggers {
		local, err := r.ListFragments()
		if err != nil {
			return err
		}
		for _, f := range local {
			id := f
			id.Body = ""
			if opts.Matcher.Match(f.Table) && !frags[id] {
				if err := r.RemoveFragment(f); err != nil {
					return err
				}
				logger.Info("pruned trigger fragment", "table", f.Table, "label", f.Label)
			}
		}
	}
	if opts.PruneProcedures {
		local, err := r.ListProcedures()
		if err != nil {
			return err
		}
		for _, name := range local {
			if opts.Matcher.Match(name) && !procs[name] {
				if err := r.RemoveProcedure(name); err != nil {
					return err
				}
				logger.Info("pruned procedure file", "procedure", name)
			}
		}
	}
	return nil
}

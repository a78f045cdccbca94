package syncer

import (
	"context"
	"errors"
	"fmt"

	"db_schema_filesync/internal/archive"
	"db_schema_filesync/internal/repo"
	"db_schema_filesync/internal/schema"
)

// ArchiveOptions select the source tables and the archive configuration.
// With an explicit table list a failing table is reported and the rest
// proceed; with auto-detection any failure stops the whole run.
type ArchiveOptions struct {
	Matcher *Matcher
	Tables  []string
	Pattern string
	Roles   archive.Roles
}

// MakeArchive synthesizes archive descriptors and trigger fragments for the
// selected source tables and writes them to local files only. A later push
// applies them; this command never writes to the database.
func MakeArchive(ctx context.Context, database Database, r repo.Repo, opts ArchiveOptions, logger Logger) error {
	if err := r.EnsureLayout(); err != nil {
		return err
	}

	explicit := len(opts.Tables) > 0
	targets := opts.Tables
	if !explicit {
		detected, err := detectSources(ctx, database, opts)
		if err != nil {
			return err
		}
		targets = detected
	}

	var errs []error
	for _, name := range targets {
		source, err := loadSource(ctx, database, name)
		if err == nil {
			err = writeArchive(r, source, opts, logger)
		}
		if err != nil {
			if !explicit {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// detectSources finds tables that carry the revision column, skipping
// tables that already look like archives.
func detectSources(ctx context.Context, database Database, opts ArchiveOptions) ([]string, error) {
	archiveRe := regexpForPattern(opts.Pattern)
	names, err := database.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		if !opts.Matcher.Match(name) {
			continue
		}
		if archiveRe != nil && archiveRe.MatchString(name) {
			continue
		}
		source, err := loadSource(ctx, database, name)
		if err != nil {
			return nil, err
		}
		if source.HasColumn(opts.Roles.WithDefaults().Revision) {
			out = append(out, name)
		}
	}
	return out, nil
}

func loadSource(ctx context.Context, database Database, name string) (*schema.TableDescriptor, error) {
	ddl, err := database.ShowCreateTable(ctx, name)
	if err != nil {
		return nil, err
	}
	source, _, err := schema.Parse(ddl)
	if err != nil {
		return nil, fmt.Errorf("source table %s: %w", name, err)
	}
	return source, nil
}

func writeArchive(r repo.Repo, source *schema.TableDescriptor, opts ArchiveOptions, logger Logger) error {
	arch, fragments, err := archive.Synthesize(source, opts.Roles, opts.Pattern)
	if err != nil {
		return err
	}
	if err := r.WriteTable(arch.Name, schema.Serialize(arch)); err != nil {
		return err
	}
	for _, f := range fragments {
		if err := r.WriteFragment(f); err != nil {
			return err
		}
	}
	logger.Info("archive synthesized", "source", source.Name, "archive", arch.Name, "fragments", len(fragments))
	return nil
}

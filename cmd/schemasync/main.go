package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"db_schema_filesync/internal/audit"
	"db_schema_filesync/internal/config"
	"db_schema_filesync/internal/db"
	"db_schema_filesync/internal/logging"
	"db_schema_filesync/internal/repo"
	"db_schema_filesync/internal/server"
	"db_schema_filesync/internal/syncer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init-config":
		err = initConfigCmd(args)
	case "pull":
		err = pullCmd(args)
	case "push":
		err = pushCmd(args)
	case "make-archive":
		err = makeArchiveCmd(args)
	case "serve":
		err = serveCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`schemasync commands:
  init-config   - create a starter config.yaml
  pull          - write live tables/triggers/procedures to local files
  push          - apply local schema files to the live database
  make-archive  - synthesize archive tables and triggers as local files
  serve         - launch a read-only JSON inspector (tables, pending plan)

Flags are command specific; run "<cmd> -h" for details.`)
}

func initConfigCmd(args []string) error {
	fs := flagSet("init-config")
	path := fs.String("path", "config.yaml", "where to write the sample config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err == nil {
		return fmt.Errorf("%s already exists", *path)
	}
	if err := os.WriteFile(*path, []byte(config.Sample), 0o644); err != nil {
		return err
	}
	fmt.Println("sample config written to", *path)
	return nil
}

func pullCmd(args []string) error {
	fs := flagSet("pull")
	configPath := fs.String("config", "config.yaml", "path to config file")
	pruneTables := fs.Bool("prune-tables", false, "remove table files for tables no longer live")
	pruneTriggers := fs.Bool("prune-triggers", false, "remove fragment files for triggers no longer live")
	pruneProcedures := fs.Bool("prune-procedures", false, "remove procedure files for procedures no longer live")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := setup(*configPath, "pull")
	if err != nil {
		return err
	}
	defer env.close()

	opts := syncer.PullOptions{
		Matcher:             env.matcher,
		DefaultTriggerLabel: env.cfg.DefaultTriggerLabel,
		PruneTables:         *pruneTables,
		PruneTriggers:       *pruneTriggers,
		PruneProcedures:     *pruneProcedures,
	}
	err = syncer.Pull(env.ctx, env.client, env.repo, opts, env.logger)
	env.finish(err)
	return err
}

func pushCmd(args []string) error {
	fs := flagSet("push")
	configPath := fs.String("config", "config.yaml", "path to config file")
	dryRun := fs.Bool("dry-run", false, "report the plan without executing")
	dropColumns := fs.Bool("drop-columns", false, "drop live columns absent from local files")
	dropTables := fs.Bool("drop-tables", false, "drop live tables absent from local files")
	dropTriggers := fs.Bool("drop-triggers", false, "drop live triggers absent from local files")
	dropProcedures := fs.Bool("drop-procedures", false, "drop live procedures absent from local files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := setup(*configPath, "push")
	if err != nil {
		return err
	}
	defer env.close()

	opts := syncer.PushOptions{
		Matcher:             env.matcher,
		DefaultTriggerLabel: env.cfg.DefaultTriggerLabel,
		ArchivePattern:      env.cfg.Archive.NamePattern,
		DryRun:              *dryRun,
		DropColumns:         *dropColumns,
		DropTables:          *dropTables,
		DropTriggers:        *dropTriggers,
		DropProcedures:      *dropProcedures,
	}
	err = syncer.Push(env.ctx, env.client, env.repo, opts, env.logger)
	env.finish(err)
	return err
}

func makeArchiveCmd(args []string) error {
	fs := flagSet("make-archive")
	configPath := fs.String("config", "config.yaml", "path to config file")
	tables := fs.String("tables", "", "comma-separated source tables; empty auto-detects by revision column")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := setup(*configPath, "make-archive")
	if err != nil {
		return err
	}
	defer env.close()

	opts := syncer.ArchiveOptions{
		Matcher: env.matcher,
		Tables:  splitAndTrim(*tables),
		Pattern: env.cfg.Archive.NamePattern,
		Roles:   env.cfg.Archive.Roles,
	}
	err = syncer.MakeArchive(env.ctx, env.client, env.repo, opts, env.logger)
	env.finish(err)
	return err
}

func serveCmd(args []string) error {
	fs := flagSet("serve")
	configPath := fs.String("config", "config.yaml", "path to config file")
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel)
	matcher, err := syncer.NewMatcher(cfg.Include, cfg.Exclude)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := syncer.PushOptions{
		Matcher:             matcher,
		DefaultTriggerLabel: cfg.DefaultTriggerLabel,
		ArchivePattern:      cfg.Archive.NamePattern,
		DryRun:              true,
	}
	srv := server.New(cfg, opts, logger)
	return srv.Start(ctx, *addr)
}

// env bundles what every database-touching command needs.
type env struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     config.Config
	logger  *slog.Logger
	matcher *syncer.Matcher
	client  *db.Client
	repo    repo.Repo
	audit   *audit.Log
}

func setup(configPath, command string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel)
	matcher, err := syncer.NewMatcher(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	client, err := db.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	auditLog, err := audit.Open(cfg.BaseDir, command)
	if err != nil {
		client.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	if err := auditLog.Record("start", nil); err != nil {
		logger.Warn("audit record failed", "error", err)
	}
	logger.Info("run started", "command", command, "run_id", auditLog.RunID().String())

	return &env{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger,
		matcher: matcher,
		client:  client,
		repo:    repo.Repo{Base: cfg.BaseDir},
		audit:   auditLog,
	}, nil
}

func (e *env) finish(runErr error) {
	fields := map[string]any{}
	if runErr != nil {
		fields["error"] = runErr.Error()
	}
	if err := e.audit.Record("finish", fields); err != nil {
		e.logger.Warn("audit record failed", "error", err)
	}
}

func (e *env) close() {
	e.cancel()
	_ = e.audit.Close()
	_ = e.client.Close()
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	return fs
}

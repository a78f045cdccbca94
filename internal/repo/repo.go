package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"db_schema_filesync/internal/trigger"
)

const (
	tableDir     = "table"
	triggerDir   = "trigger"
	procedureDir = "procedure"
	sqlExt       = ".sql"
)

// Repo manages the schema files under one base directory:
//
//	table/<Name>.sql
//	procedure/<Name>.sql
//	trigger/<label>.<timing>.<action>.<table>.sql
type Repo struct {
	Base string
}

// EnsureLayout creates the per-object-type directories.
func (r Repo) EnsureLayout() error {
	for _, dir := range []string{tableDir, triggerDir, procedureDir} {
		if err := os.MkdirAll(filepath.Join(r.Base, dir), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) WriteTable(name, text string) error {
	return r.write(tableDir, name+sqlExt, text)
}

func (r Repo) ReadTable(name string) (string, error) {
	return r.read(tableDir, name+sqlExt)
}

func (r Repo) RemoveTable(name string) error {
	return os.Remove(filepath.Join(r.Base, tableDir, name+sqlExt))
}

// ListTables returns the table names that have a local file.
func (r Repo) ListTables() ([]string, error) {
	return r.listNames(tableDir)
}

func (r Repo) WriteProcedure(name, text string) error {
	return r.write(procedureDir, name+sqlExt, text)
}

func (r Repo) ReadProcedure(name string) (string, error) {
	return r.read(procedureDir, name+sqlExt)
}

func (r Repo) RemoveProcedure(name string) error {
	return os.Remove(filepath.Join(r.Base, procedureDir, name+sqlExt))
}

func (r Repo) ListProcedures() ([]string, error) {
	return r.listNames(procedureDir)
}

// WriteFragment stores one trigger fragment under its identity filename.
func (r Repo) WriteFragment(f trigger.Fragment) error {
	return r.write(triggerDir, fragmentFile(f), f.Body)
}

func (r Repo) RemoveFragment(f trigger.Fragment) error {
	return os.Remove(filepath.Join(r.Base, triggerDir, fragmentFile(f)))
}

// ListFragments loads every stored trigger fragment, identity parsed from
// the filename.
func (r Repo) ListFragments() ([]trigger.Fragment, error) {
	entries, err := os.ReadDir(filepath.Join(r.Base, triggerDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []trigger.Fragment
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sqlExt) {
			continue
		}
		f, err := parseFragmentFile(e.Name())
		if err != nil {
			return nil, err
		}
		body, err := r.read(triggerDir, e.Name())
		if err != nil {
			return nil, err
		}
		f.Body = body
		out = append(out, f)
	}
	return out, nil
}

func fragmentFile(f trigger.Fragment) string {
	return fmt.Sprintf("%s.%s.%s.%s%s", f.Label, f.Timing, f.Action, f.Table, sqlExt)
}

// parseFragmentFile splits <label>.<timing>.<action>.<table>.sql from the
// right, so labels containing dots stay intact.
func parseFragmentFile(name string) (trigger.Fragment, error) {
	parts := strings.Split(strings.TrimSuffix(name, sqlExt), ".")
	if len(parts) < 4 {
		return trigger.Fragment{}, fmt.Errorf("trigger file %s: want <label>.<timing>.<action>.<table>.sql", name)
	}
	f := trigger.Fragment{
		Label:  strings.Join(parts[:len(parts)-3], "."),
		Timing: parts[len(parts)-3],
		Action: parts[len(parts)-2],
		Table:  parts[len(parts)-1],
	}
	if f.Timing != "before" && f.Timing != "after" {
		return trigger.Fragment{}, fmt.Errorf("trigger file %s: bad timing %q", name, f.Timing)
	}
	switch f.Action {
	case "insert", "update", "delete":
	default:
		return trigger.Fragment{}, fmt.Errorf("trigger file %s: bad action %q", name, f.Action)
	}
	return f, nil
}

func (r Repo) write(dir, file, text string) error {
	return os.WriteFile(filepath.Join(r.Base, dir, file), []byte(text), 0o644)
}

func (r Repo) read(dir, file string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.Base, dir, file))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r Repo) listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.Base, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sqlExt) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), sqlExt))
	}
	return out, nil
}

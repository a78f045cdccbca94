package diff

import (
	"errors"
	"fmt"
	"strings"

	"db_schema_filesync/internal/queue"
	"db_schema_filesync/internal/schema"
)

// Fatal diff conditions. None of these are ever auto-migrated; they abort
// the push for the table before anything is enqueued for it.
var (
	ErrPrimaryKeyMismatch = errors.New("primary key mismatch")
	ErrEngineMismatch     = errors.New("engine mismatch")
	ErrTypeFamilyMismatch = errors.New("column type family mismatch")
)

// Table computes the actions that transform current into desired. Columns
// are additive-only unless dropColumns is set; constraints are always
// reconciled, including drops of constraints absent from desired, because a
// stale foreign key can silently orphan relationships.
func Table(current, desired *schema.TableDescriptor, dropColumns bool) ([]queue.Action, error) {
	if !stringsEqual(current.PrimaryKey, desired.PrimaryKey) {
		return nil, fmt.Errorf("table %s: current (%s) vs desired (%s): %w",
			desired.Name, strings.Join(current.PrimaryKey, ","), strings.Join(desired.PrimaryKey, ","), ErrPrimaryKeyMismatch)
	}
	if current.Engine != desired.Engine {
		return nil, fmt.Errorf("table %s: current %s vs desired %s: %w",
			desired.Name, current.Engine, desired.Engine, ErrEngineMismatch)
	}

	var actions []queue.Action

	for i, col := range desired.Columns {
		desiredDef := desired.ColumnDefs[col]
		currentDef, exists := current.ColumnDefs[col]
		if !exists {
			position := "FIRST"
			if i > 0 {
				position = fmt.Sprintf("AFTER `%s`", desired.Columns[i-1])
			}
			actions = append(actions, queue.Action{
				Kind:        queue.AddColumn,
				Description: fmt.Sprintf("add column %s.%s", desired.Name, col),
				SQL:         fmt.Sprintf("ALTER TABLE `%s` ADD COLUMN `%s` %s %s", desired.Name, col, desiredDef, position),
			})
			continue
		}
		if currentDef == desiredDef {
			continue
		}
		curFam, desFam := schema.FamilyOf(currentDef), schema.FamilyOf(desiredDef)
		if curFam != desFam {
			return nil, fmt.Errorf("column %s.%s: %s (%s) vs %s (%s): %w",
				desired.Name, col, currentDef, curFam, desiredDef, desFam, ErrTypeFamilyMismatch)
		}
		actions = append(actions, queue.Action{
			Kind:        queue.ModifyColumn,
			Description: fmt.Sprintf("modify column %s.%s (%s -> %s)", desired.Name, col, currentDef, desiredDef),
			SQL:         fmt.Sprintf("ALTER TABLE `%s` MODIFY COLUMN `%s` %s", desired.Name, col, desiredDef),
		})
	}

	if dropColumns {
		for _, col := range current.Columns {
			if !desired.HasColumn(col) {
				actions = append(actions, queue.Action{
					Kind:        queue.DropColumn,
					Description: fmt.Sprintf("drop column %s.%s", desired.Name, col),
					SQL:         fmt.Sprintf("ALTER TABLE `%s` DROP COLUMN `%s`", desired.Name, col),
				})
			}
		}
	}

	for _, key := range desired.Keys {
		currentDef, exists := current.KeyDefs[key]
		desiredDef := desired.KeyDefs[key]
		if exists && currentDef == desiredDef {
			continue
		}
		if exists {
			actions = append(actions, dropKey(desired.Name, key))
		}
		actions = append(actions, queue.Action{
			Kind:        queue.AddKey,
			Description: fmt.Sprintf("add key %s on %s", key, desired.Name),
			SQL:         fmt.Sprintf("ALTER TABLE `%s` ADD %s", desired.Name, desiredDef),
		})
	}
	if dropColumns {
		for _, key := range current.Keys {
			if _, wanted := desired.KeyDefs[key]; !wanted {
				actions = append(actions, dropKey(desired.Name, key))
			}
		}
	}

	for _, name := range desired.Constraints {
		desiredCon := desired.ConstraintDefs[name]
		currentCon, exists := current.ConstraintDefs[name]
		if exists && currentCon.Equal(desiredCon) {
			continue
		}
		if exists {
			actions = append(actions, dropConstraint(desired.Name, name))
		}
		actions = append(actions, addConstraint(desired.Name, desiredCon))
	}
	for _, name := range current.Constraints {
		if _, wanted := desired.ConstraintDefs[name]; !wanted {
			actions = append(actions, dropConstraint(desired.Name, name))
		}
	}

	return actions, nil
}

// NewTable emits a create_table without its constraint clauses plus one
// deferred add_constraint per constraint, so a table can be created before
// its foreign-key targets exist.
func NewTable(desired *schema.TableDescriptor) []queue.Action {
	actions := []queue.Action{{
		Kind:        queue.CreateTable,
		Description: fmt.Sprintf("create table %s", desired.Name),
		SQL:         schema.Serialize(desired.WithoutConstraints()),
	}}
	for _, name := range desired.Constraints {
		actions = append(actions, addConstraint(desired.Name, desired.ConstraintDefs[name]))
	}
	return actions
}

func dropKey(table, key string) queue.Action {
	return queue.Action{
		Kind:        queue.DropKey,
		Description: fmt.Sprintf("drop key %s on %s", key, table),
		SQL:         fmt.Sprintf("ALTER TABLE `%s` DROP KEY `%s`", table, key),
	}
}

func dropConstraint(table, name string) queue.Action {
	return queue.Action{
		Kind:        queue.DropConstraint,
		Description: fmt.Sprintf("drop constraint %s on %s", name, table),
		SQL:         fmt.Sprintf("ALTER TABLE `%s` DROP FOREIGN KEY `%s`", table, name),
	}
}

func addConstraint(table string, c schema.Constraint) queue.Action {
	def := fmt.Sprintf("CONSTRAINT `%s` FOREIGN KEY (%s) REFERENCES `%s` (%s)",
		c.Name, backtickList(c.Columns), c.RefTable, backtickList(c.RefColumns))
	if c.Options != "" {
		def += " " + c.Options
	}
	return queue.Action{
		Kind:        queue.AddConstraint,
		Description: fmt.Sprintf("add constraint %s on %s", c.Name, table),
		SQL:         fmt.Sprintf("ALTER TABLE `%s` ADD %s", table, def),
	}
}

func backtickList(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = "`" + id + "`"
	}
	return strings.Join(quoted, ",")
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

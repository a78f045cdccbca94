package archive

import (
	"fmt"
	"strings"

	"db_schema_filesync/internal/schema"
	"db_schema_filesync/internal/trigger"
)

// stmtVariable holds the captured statement text between the capture SET
// and the audit INSERT inside one after-trigger body.
const stmtVariable = "@archive_stmt"

// fragments builds the five maintenance fragments: before-insert and
// before-update assign revision/timestamps, the three after-triggers write
// the audit row.
func fragments(source, arch *schema.TableDescriptor, roles Roles) []trigger.Fragment {
	frags := []trigger.Fragment{
		{Label: BeforeLabel, Table: source.Name, Timing: "before", Action: "insert", Body: beforeInsertBody(source, arch, roles)},
		{Label: BeforeLabel, Table: source.Name, Timing: "before", Action: "update", Body: beforeUpdateBody(source, roles)},
	}
	for _, action := range []string{"insert", "update", "delete"} {
		frags = append(frags, trigger.Fragment{
			Label: AfterLabel, Table: source.Name, Timing: "after", Action: action,
			Body: afterBody(source, arch, roles, action),
		})
	}
	return frags
}

// beforeInsertBody seeds the revision from the archive history scoped by the
// primary key, so reuse of a deleted primary-key value continues its old
// revision sequence instead of colliding with it.
func beforeInsertBody(source, arch *schema.TableDescriptor, roles Roles) string {
	var conds []string
	for _, pk := range source.PrimaryKey {
		conds = append(conds, fmt.Sprintf("`%s` = NEW.`%s`", pk, pk))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SET NEW.`%s` = (SELECT COALESCE(MAX(`%s`), 0) + 1 FROM `%s` WHERE %s);\n",
		roles.Revision, roles.Revision, arch.Name, strings.Join(conds, " AND "))
	if source.HasColumn(roles.CTime) {
		fmt.Fprintf(&b, "SET NEW.`%s` = NOW();\n", roles.CTime)
	}
	if source.HasColumn(roles.MTime) {
		fmt.Fprintf(&b, "SET NEW.`%s` = NOW();\n", roles.MTime)
	}
	if source.HasColumn(roles.UpdID) {
		fmt.Fprintf(&b, "SET NEW.`%s` = %s;\n", roles.UpdID, roles.UpdIDVariable)
	}
	return b.String()
}

func beforeUpdateBody(source *schema.TableDescriptor, roles Roles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SET NEW.`%s` = OLD.`%s` + 1;\n", roles.Revision, roles.Revision)
	if source.HasColumn(roles.CTime) {
		fmt.Fprintf(&b, "SET NEW.`%s` = OLD.`%s`;\n", roles.CTime, roles.CTime)
	}
	if source.HasColumn(roles.MTime) {
		fmt.Fprintf(&b, "SET NEW.`%s` = NOW();\n", roles.MTime)
	}
	if source.HasColumn(roles.UpdID) {
		fmt.Fprintf(&b, "SET NEW.`%s` = %s;\n", roles.UpdID, roles.UpdIDVariable)
	}
	return b.String()
}

// afterBody captures the triggering statement text and inserts one archive
// row covering every archive column.
func afterBody(source, arch *schema.TableDescriptor, roles Roles, action string) string {
	rowRef := "NEW"
	if action == "delete" {
		rowRef = "OLD"
	}

	cols := make([]string, 0, len(arch.Columns))
	vals := make([]string, 0, len(arch.Columns))
	for _, col := range arch.Columns {
		cols = append(cols, "`"+col+"`")
		vals = append(vals, archiveValue(source, roles, col, action, rowRef))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SET %s = (SELECT `info` FROM `information_schema`.`processlist` WHERE `id` = CONNECTION_ID());\n",
		stmtVariable)
	fmt.Fprintf(&b, "INSERT INTO `%s` (%s)\n  VALUES (%s);\n",
		arch.Name, strings.Join(cols, ","), strings.Join(vals, ","))
	return b.String()
}

func archiveValue(source *schema.TableDescriptor, roles Roles, col, action, rowRef string) string {
	switch col {
	case roles.Action:
		return "'" + action + "'"
	case roles.DBUser:
		return "USER()"
	case roles.Stmt:
		return stmtVariable
	case roles.UpdID:
		if action == "delete" || !source.HasColumn(col) {
			return roles.UpdIDVariable
		}
	case roles.Revision:
		if action == "delete" {
			return fmt.Sprintf("OLD.`%s` + 1", col)
		}
	case roles.MTime:
		if action == "delete" && source.HasColumn(col) {
			return "NOW()"
		}
	}
	return fmt.Sprintf("%s.`%s`", rowRef, col)
}

package archive

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"db_schema_filesync/internal/schema"
	"db_schema_filesync/internal/trigger"
)

// Engine required of archivable source tables. Append-only history needs a
// transactional engine.
const Engine = "InnoDB"

// Fragment labels. Revision and timestamp assignment (20) must sort before
// the audit-row capture (40) that reads those values.
const (
	BeforeLabel = "20-archive"
	AfterLabel  = "40-archive"
)

// Timestamp default written into archive columns in place of
// DEFAULT CURRENT_TIMESTAMP. The archive never auto-fills time values.
const epochSentinel = "'1970-01-01 00:00:01'"

// ErrNotArchivable marks a source table that cannot be archived: missing
// primary key, wrong role column type, role name collision or unsupported
// engine.
var ErrNotArchivable = errors.New("table cannot be archived")

// ErrNotUpdatable marks an incompatible live/desired archive table pair.
var ErrNotUpdatable = errors.New("archive table cannot be updated in place")

// Roles maps audit purposes to concrete column names. Revision, Action,
// DBUser, Stmt and UpdID always exist on the archive table; CTime and MTime
// participate only when the source table carries them.
type Roles struct {
	Revision string `yaml:"revision"`
	Action   string `yaml:"action"`
	DBUser   string `yaml:"dbuser"`
	Stmt     string `yaml:"stmt"`
	UpdID    string `yaml:"updid"`
	CTime    string `yaml:"ctime"`
	MTime    string `yaml:"mtime"`
	// UpdIDVariable is the session variable the application sets to tag its
	// statements, read by the triggers.
	UpdIDVariable string `yaml:"updid_variable"`
}

// WithDefaults fills every unset role with its conventional column name.
func (r Roles) WithDefaults() Roles {
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	def(&r.Revision, "revision")
	def(&r.Action, "action")
	def(&r.DBUser, "dbuser")
	def(&r.Stmt, "stmt")
	def(&r.UpdID, "updid")
	def(&r.CTime, "ctime")
	def(&r.MTime, "mtime")
	def(&r.UpdIDVariable, "@updid")
	return r
}

// Validate rejects role configurations that cannot work at all.
func (r Roles) Validate() error {
	if r.Revision == "" {
		return errors.New("revision role requires a column name")
	}
	if !strings.HasPrefix(r.UpdIDVariable, "@") {
		return fmt.Errorf("updid variable %q must name a session variable", r.UpdIDVariable)
	}
	seen := map[string]string{}
	for role, col := range map[string]string{
		"revision": r.Revision, "action": r.Action, "dbuser": r.DBUser,
		"stmt": r.Stmt, "updid": r.UpdID, "ctime": r.CTime, "mtime": r.MTime,
	} {
		if col == "" {
			continue
		}
		if other, dup := seen[col]; dup {
			return fmt.Errorf("roles %s and %s map to the same column %q", other, role, col)
		}
		seen[col] = role
	}
	return nil
}

var intTypeRe = regexp.MustCompile(`(?i)^(tiny|small|medium|big)?int`)

// Synthesize derives the archive table descriptor and its maintenance
// trigger fragments from a source table.
func Synthesize(source *schema.TableDescriptor, roles Roles, namePattern string) (*schema.TableDescriptor, []trigger.Fragment, error) {
	roles = roles.WithDefaults()
	if err := validateSource(source, roles); err != nil {
		return nil, nil, err
	}

	d := schema.NewTableDescriptor(strings.Replace(namePattern, "%", source.Name, 1))
	d.Engine = Engine
	d.Options = source.Options
	d.Comment = source.Comment

	for _, col := range source.Columns {
		d.Columns = append(d.Columns, col)
		d.ColumnDefs[col] = archiveColumnDef(source, roles, col)
	}
	for _, role := range []string{roles.DBUser, roles.UpdID, roles.Action, roles.Stmt} {
		if !source.HasColumn(role) {
			d.Columns = append(d.Columns, role)
			d.ColumnDefs[role] = auditColumnDef(roles, role)
		}
	}

	// Every revision of a logical row is a distinct archive row.
	d.PrimaryKey = append(append([]string{}, source.PrimaryKey...), roles.Revision)

	for _, key := range source.Keys {
		d.Keys = append(d.Keys, key)
		d.KeyDefs[key] = strings.TrimPrefix(source.KeyDefs[key], "UNIQUE ")
	}

	return d, fragments(source, d, roles), nil
}

func validateSource(source *schema.TableDescriptor, roles Roles) error {
	fail := func(format string, args ...any) error {
		detail := fmt.Sprintf(format, args...)
		return fmt.Errorf("table %s: %s: %w", source.Name, detail, ErrNotArchivable)
	}
	if len(source.PrimaryKey) == 0 {
		return fail("no primary key")
	}
	if source.Engine != Engine {
		return fail("engine %s is not %s", source.Engine, Engine)
	}
	revDef, ok := source.ColumnDefs[roles.Revision]
	if !ok {
		return fail("revision column %s is missing", roles.Revision)
	}
	if !intTypeRe.MatchString(revDef) {
		return fail("revision column %s must be an integer type, has %q", roles.Revision, revDef)
	}
	if def, ok := source.ColumnDefs[roles.UpdID]; ok && schema.FamilyOf(def) != schema.FamilyString {
		return fail("updid column %s must be a string type, has %q", roles.UpdID, def)
	}
	for _, col := range []string{roles.CTime, roles.MTime} {
		if def, ok := source.ColumnDefs[col]; ok && schema.FamilyOf(def) != schema.FamilyTime {
			return fail("column %s must be a timestamp or datetime type, has %q", col, def)
		}
	}
	for _, col := range []string{roles.DBUser, roles.Action, roles.Stmt} {
		if source.HasColumn(col) {
			return fail("column %s collides with a reserved audit role name", col)
		}
	}
	return nil
}

var (
	autoIncRe      = regexp.MustCompile(`(?i) AUTO_INCREMENT`)
	onUpdateNowRe  = regexp.MustCompile(`(?i) ON UPDATE CURRENT_TIMESTAMP(\(\))?`)
	defaultNowRe   = regexp.MustCompile(`(?i)DEFAULT CURRENT_TIMESTAMP(\(\))?`)
	notNullRe      = regexp.MustCompile(`(?i) NOT NULL`)
	defaultValueRe = regexp.MustCompile(`(?i) DEFAULT (?:'(?:[^']|'')*'|\S+)`)
)

// archiveColumnDef redefines one source column for the archive table. The
// archive must capture any value the live table could ever hold, so live
// default and nullability policy is stripped everywhere except the primary
// key.
func archiveColumnDef(source *schema.TableDescriptor, roles Roles, col string) string {
	def := autoIncRe.ReplaceAllString(source.ColumnDefs[col], "")
	if schema.FamilyOf(def) == schema.FamilyTime {
		def = onUpdateNowRe.ReplaceAllString(def, "")
		def = defaultNowRe.ReplaceAllString(def, "DEFAULT "+epochSentinel)
		return strings.TrimSpace(def)
	}
	if !source.IsPrimaryKey(col) {
		def = notNullRe.ReplaceAllString(def, "")
		def = defaultValueRe.ReplaceAllString(def, "")
	}
	return strings.TrimSpace(def)
}

func auditColumnDef(roles Roles, col string) string {
	switch col {
	case roles.Action:
		return "enum('insert','update','delete')"
	case roles.Stmt:
		return "longtext"
	default: // dbuser, updid
		return "varchar(128)"
	}
}

// CheckUpdatable guards in-place updates of an existing archive table:
// identical primary key, identical engine and, per shared column, the same
// type family.
func CheckUpdatable(current, desired *schema.TableDescriptor) error {
	fail := func(format string, args ...any) error {
		detail := fmt.Sprintf(format, args...)
		return fmt.Errorf("archive table %s: %s: %w", desired.Name, detail, ErrNotUpdatable)
	}
	if strings.Join(current.PrimaryKey, ",") != strings.Join(desired.PrimaryKey, ",") {
		return fail("primary key changed (%s -> %s)",
			strings.Join(current.PrimaryKey, ","), strings.Join(desired.PrimaryKey, ","))
	}
	if current.Engine != desired.Engine {
		return fail("engine changed (%s -> %s)", current.Engine, desired.Engine)
	}
	for _, col := range desired.Columns {
		curDef, shared := current.ColumnDefs[col]
		if !shared {
			continue
		}
		curFam, desFam := schema.FamilyOf(curDef), schema.FamilyOf(desired.ColumnDefs[col])
		if curFam != desFam {
			return fail("column %s family changed (%s -> %s)", col, curFam, desFam)
		}
	}
	return nil
}

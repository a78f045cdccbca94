package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedDescriptor marks table definition text whose header or footer
// cannot be understood at all. Unrecognized interior lines are tolerated and
// reported as warnings instead.
var ErrMalformedDescriptor = errors.New("malformed table definition")

// Warning records one interior line the parser could not classify. The
// clause is dropped from the descriptor but the parse continues.
type Warning struct {
	Line int
	Text string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: unrecognized clause %q", w.Line, w.Text)
}

var (
	headerRe     = regexp.MustCompile("^CREATE TABLE `([^`]+)` \\($")
	footerRe     = regexp.MustCompile(`^\) (.+)$`)
	engineRe     = regexp.MustCompile(`ENGINE=(\w+)`)
	commentRe    = regexp.MustCompile(`COMMENT='((?:[^']|'')*)'`)
	columnRe     = regexp.MustCompile("^`([^`]+)` (.+)$")
	primaryRe    = regexp.MustCompile(`^PRIMARY KEY \((.+)\)$`)
	keyRe        = regexp.MustCompile("^(?:UNIQUE )?KEY `([^`]+)` .+$")
	constraintRe = regexp.MustCompile("^CONSTRAINT `([^`]+)` FOREIGN KEY \\((.+?)\\) REFERENCES `([^`]+)` \\((.+?)\\) ?(.*)$")
)

// Parse converts native CREATE TABLE text (the SHOW CREATE TABLE dialect)
// into a descriptor. The first line must be the CREATE TABLE header and the
// last line must carry an ENGINE= clause; anything else in between that the
// classifier does not recognize is skipped and returned as a warning.
func Parse(text string) (*TableDescriptor, []Warning, error) {
	lines := splitLines(text)
	if len(lines) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least a header and footer line", ErrMalformedDescriptor)
	}

	m := headerRe.FindStringSubmatch(lines[0])
	if m == nil {
		return nil, nil, fmt.Errorf("%w: bad header %q", ErrMalformedDescriptor, lines[0])
	}
	d := NewTableDescriptor(m[1])

	footer := lines[len(lines)-1]
	fm := footerRe.FindStringSubmatch(footer)
	if fm == nil {
		return nil, nil, fmt.Errorf("%w: footer %q lacks an ENGINE clause", ErrMalformedDescriptor, footer)
	}
	tail := fm[1]
	em := engineRe.FindStringSubmatch(tail)
	if em == nil {
		return nil, nil, fmt.Errorf("%w: footer %q lacks an ENGINE clause", ErrMalformedDescriptor, footer)
	}
	d.Engine = em[1]
	if cm := commentRe.FindStringSubmatch(tail); cm != nil {
		d.Comment = unescapeComment(cm[1])
	}
	d.Options = optionsFrom(tail)

	var warnings []Warning
	for i, raw := range lines[1 : len(lines)-1] {
		line := strings.TrimSuffix(strings.TrimSpace(raw), ",")
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "`"):
			cm := columnRe.FindStringSubmatch(line)
			if cm == nil {
				warnings = append(warnings, Warning{Line: i + 2, Text: line})
				continue
			}
			d.Columns = append(d.Columns, cm[1])
			d.ColumnDefs[cm[1]] = normalizeColumnDef(cm[2])
		case primaryRe.MatchString(line):
			d.PrimaryKey = splitIdentList(primaryRe.FindStringSubmatch(line)[1])
		case constraintRe.MatchString(line):
			cm := constraintRe.FindStringSubmatch(line)
			c := Constraint{
				Name:       cm[1],
				Columns:    splitIdentList(cm[2]),
				RefTable:   cm[3],
				RefColumns: splitIdentList(cm[4]),
				Options:    strings.TrimSpace(cm[5]),
			}
			d.Constraints = append(d.Constraints, c.Name)
			d.ConstraintDefs[c.Name] = c
		case keyRe.MatchString(line):
			name := keyRe.FindStringSubmatch(line)[1]
			d.Keys = append(d.Keys, name)
			d.KeyDefs[name] = line
		default:
			warnings = append(warnings, Warning{Line: i + 2, Text: line})
		}
	}
	return d, warnings, nil
}

// Serialize regenerates canonical CREATE TABLE text: columns in stored
// order, then keys, then constraints, then the primary key clause, closed by
// the ENGINE/options/COMMENT footer. Parse(Serialize(d)) is structurally
// equal to d.
func Serialize(d *TableDescriptor) string {
	var body []string
	for _, col := range d.Columns {
		body = append(body, fmt.Sprintf("`%s` %s", col, d.ColumnDefs[col]))
	}
	for _, key := range d.Keys {
		body = append(body, d.KeyDefs[key])
	}
	for _, name := range d.Constraints {
		body = append(body, serializeConstraint(d.ConstraintDefs[name]))
	}
	if len(d.PrimaryKey) > 0 {
		body = append(body, fmt.Sprintf("PRIMARY KEY (%s)", joinIdentList(d.PrimaryKey)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE `%s` (\n", d.Name)
	for i, line := range body {
		b.WriteString("  ")
		b.WriteString(line)
		if i < len(body)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, ") ENGINE=%s", d.Engine)
	if d.Options != "" {
		b.WriteString(" ")
		b.WriteString(d.Options)
	}
	if d.Comment != "" {
		fmt.Fprintf(&b, " COMMENT='%s'", escapeComment(d.Comment))
	}
	b.WriteString("\n")
	return b.String()
}

func serializeConstraint(c Constraint) string {
	s := fmt.Sprintf("CONSTRAINT `%s` FOREIGN KEY (%s) REFERENCES `%s` (%s)",
		c.Name, joinIdentList(c.Columns), c.RefTable, joinIdentList(c.RefColumns))
	if c.Options != "" {
		s += " " + c.Options
	}
	return s
}

// normalizeColumnDef strips the redundant "DEFAULT NULL" a nullable column
// carries in SHOW CREATE TABLE output, so two semantically equal nullable
// definitions compare equal.
func normalizeColumnDef(def string) string {
	def = strings.TrimSpace(def)
	def = strings.TrimSuffix(def, " DEFAULT NULL")
	return def
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, strings.TrimRight(line, " "))
	}
	return out
}

func splitIdentList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		out = append(out, strings.Trim(strings.TrimSpace(part), "`"))
	}
	return out
}

func joinIdentList(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = "`" + id + "`"
	}
	return strings.Join(quoted, ",")
}

func optionsFrom(tail string) string {
	tail = engineRe.ReplaceAllString(tail, "")
	tail = commentRe.ReplaceAllString(tail, "")
	return strings.TrimSpace(tail)
}

func unescapeComment(c string) string { return strings.ReplaceAll(c, "''", "'") }
func escapeComment(c string) string   { return strings.ReplaceAll(c, "'", "''") }

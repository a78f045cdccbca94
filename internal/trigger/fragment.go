package trigger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnlabeledFragment is returned by Split when a live trigger body carries
// text outside any begin/end marked region and no default label is
// configured to adopt it.
var ErrUnlabeledFragment = errors.New("trigger body contains unlabeled text")

// Fragment is one independently-authored piece of a physical trigger body.
// Identity is (Table, Action, Timing, Label).
type Fragment struct {
	Label  string
	Table  string
	Timing string // before or after
	Action string // insert, update or delete
	Body   string
}

// Key groups fragments belonging to the same physical trigger.
type Key struct {
	Table  string
	Timing string
	Action string
}

func (f Fragment) Key() Key {
	return Key{Table: f.Table, Timing: f.Timing, Action: f.Action}
}

const (
	beginPrefix  = "/** begin "
	endPrefix    = "/** end "
	markerSuffix = " */\n"
)

// Compose concatenates fragments in ascending label order, each wrapped in
// its begin/end markers. Split inverts it exactly.
func Compose(fragments []Fragment) string {
	sorted := make([]Fragment, len(fragments))
	copy(sorted, fragments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })

	var b strings.Builder
	for _, f := range sorted {
		b.WriteString(beginPrefix + f.Label + markerSuffix)
		b.WriteString(f.Body)
		b.WriteString(endPrefix + f.Label + markerSuffix)
	}
	return b.String()
}

// Split recovers the fragments of a physical trigger body. Text outside the
// marked regions goes to defaultLabel when one is configured; otherwise the
// split fails, naming the trigger so the operator can configure a label.
func Split(raw, table, timing, action, defaultLabel string) ([]Fragment, error) {
	var fragments []Fragment
	var leftover strings.Builder

	rest := raw
	for {
		i := strings.Index(rest, beginPrefix)
		if i < 0 {
			leftover.WriteString(rest)
			break
		}
		leftover.WriteString(rest[:i])
		after := rest[i+len(beginPrefix):]
		j := strings.Index(after, markerSuffix)
		if j < 0 {
			leftover.WriteString(rest[i:])
			break
		}
		label := after[:j]
		body := after[j+len(markerSuffix):]
		end := endPrefix + label + markerSuffix
		k := strings.Index(body, end)
		if k < 0 {
			leftover.WriteString(rest[i:])
			break
		}
		fragments = append(fragments, Fragment{
			Label: label, Table: table, Timing: timing, Action: action, Body: body[:k],
		})
		rest = body[k+len(end):]
	}

	if strings.TrimSpace(leftover.String()) != "" {
		if defaultLabel == "" {
			return nil, fmt.Errorf("trigger %s %s on %s: %w", timing, action, table, ErrUnlabeledFragment)
		}
		fragments = append(fragments, Fragment{
			Label: defaultLabel, Table: table, Timing: timing, Action: action, Body: leftover.String(),
		})
	}
	return fragments, nil
}

// Name synthesizes the physical trigger name for a (timing, action, table).
func Name(timing, action, table string) string {
	return fmt.Sprintf("%s_%s_%s", timing, action, table)
}

// CreateSQL builds the CREATE TRIGGER statement for a composed body.
func CreateSQL(table, timing, action, body string) string {
	return fmt.Sprintf("CREATE TRIGGER `%s` %s %s ON `%s` FOR EACH ROW BEGIN\n%sEND",
		Name(timing, action, table), strings.ToUpper(timing), strings.ToUpper(action), table, body)
}

// DropSQL builds the DROP TRIGGER statement.
func DropSQL(name string) string {
	return fmt.Sprintf("DROP TRIGGER `%s`", name)
}

// StripWrapper removes the leading BEGIN / trailing END wrapper from a live
// trigger body, leaving only the composed fragment text for comparison.
func StripWrapper(body string) string {
	s := strings.TrimSpace(body)
	if strings.HasPrefix(s, "BEGIN") && strings.HasSuffix(s, "END") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "BEGIN"), "END")
		s = strings.TrimLeft(s, "\r\n")
	}
	return s
}

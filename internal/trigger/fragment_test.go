package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeSortsByLabel(t *testing.T) {
	fragments := []Fragment{
		{Label: "40-audit", Table: "User", Timing: "after", Action: "insert", Body: "INSERT INTO `Audit` ...;\n"},
		{Label: "20-archive", Table: "User", Timing: "after", Action: "insert", Body: "INSERT INTO `UserArchive` ...;\n"},
	}
	composed := Compose(fragments)

	want := "/** begin 20-archive */\n" +
		"INSERT INTO `UserArchive` ...;\n" +
		"/** end 20-archive */\n" +
		"/** begin 40-audit */\n" +
		"INSERT INTO `Audit` ...;\n" +
		"/** end 40-audit */\n"
	assert.Equal(t, want, composed)
}

func TestSplitInvertsCompose(t *testing.T) {
	fragments := []Fragment{
		{Label: "20-archive", Table: "User", Timing: "before", Action: "update", Body: "SET NEW.`revision` = OLD.`revision` + 1;\n"},
		{Label: "50-notify", Table: "User", Timing: "before", Action: "update", Body: "SET @touched = 1;\n"},
	}
	got, err := Split(Compose(fragments), "User", "before", "update", "")
	require.NoError(t, err)
	assert.Equal(t, fragments, got)
}

func TestSplitUnlabeledWithoutDefault(t *testing.T) {
	_, err := Split("SET NEW.`x` = 1;\n", "User", "before", "insert", "")
	require.ErrorIs(t, err, ErrUnlabeledFragment)
	assert.Contains(t, err.Error(), "User")
}

func TestSplitUnlabeledAdoptedByDefaultLabel(t *testing.T) {
	raw := "/** begin 20-archive */\n" +
		"INSERT INTO `UserArchive` ...;\n" +
		"/** end 20-archive */\n" +
		"SET @legacy = 1;\n"
	fragments, err := Split(raw, "User", "after", "insert", "90-legacy")
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, "20-archive", fragments[0].Label)
	assert.Equal(t, "90-legacy", fragments[1].Label)
	assert.Equal(t, "SET @legacy = 1;\n", fragments[1].Body)
}

func TestSplitEmptyBody(t *testing.T) {
	fragments, err := Split("", "User", "after", "delete", "")
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

func TestName(t *testing.T) {
	assert.Equal(t, "before_insert_User", Name("before", "insert", "User"))
	assert.Equal(t, "after_delete_OrderLine", Name("after", "delete", "OrderLine"))
}

func TestCreateSQL(t *testing.T) {
	sql := CreateSQL("User", "before", "insert", "SET NEW.`x` = 1;\n")
	assert.Equal(t, "CREATE TRIGGER `before_insert_User` BEFORE INSERT ON `User` FOR EACH ROW BEGIN\nSET NEW.`x` = 1;\nEND", sql)
}

func TestDropSQL(t *testing.T) {
	assert.Equal(t, "DROP TRIGGER `after_update_User`", DropSQL("after_update_User"))
}

func TestStripWrapper(t *testing.T) {
	body := "BEGIN\nSET NEW.`x` = 1;\nEND"
	assert.Equal(t, "SET NEW.`x` = 1;\n", StripWrapper(body))

	// Bodies without the wrapper pass through trimmed.
	assert.Equal(t, "SET NEW.`x` = 1;", StripWrapper("  SET NEW.`x` = 1;  "))
}

package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db_schema_filesync/internal/trigger"
)

func newRepo(t *testing.T) Repo {
	t.Helper()
	r := Repo{Base: t.TempDir()}
	require.NoError(t, r.EnsureLayout())
	return r
}

func TestTableRoundTrip(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, r.WriteTable("User", "CREATE TABLE ..."))

	text, err := r.ReadTable("User")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE ...", text)

	names, err := r.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, names)

	require.NoError(t, r.RemoveTable("User"))
	names, err = r.ListTables()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFragmentFilenameRoundTrip(t *testing.T) {
	r := newRepo(t)
	f := trigger.Fragment{
		Label:  "20-archive",
		Table:  "User",
		Timing: "before",
		Action: "insert",
		Body:   "SET NEW.`x` = 1;\n",
	}
	require.NoError(t, r.WriteFragment(f))

	// Identity lives in the filename.
	path := filepath.Join(r.Base, "trigger", "20-archive.before.insert.User.sql")
	_, err := os.Stat(path)
	require.NoError(t, err)

	fragments, err := r.ListFragments()
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, f, fragments[0])

	require.NoError(t, r.RemoveFragment(f))
	fragments, err = r.ListFragments()
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

func TestFragmentLabelMayContainDots(t *testing.T) {
	r := newRepo(t)
	f := trigger.Fragment{
		Label:  "v1.0-audit",
		Table:  "Order",
		Timing: "after",
		Action: "update",
		Body:   "SET @x = 1;\n",
	}
	require.NoError(t, r.WriteFragment(f))

	fragments, err := r.ListFragments()
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "v1.0-audit", fragments[0].Label)
	assert.Equal(t, "Order", fragments[0].Table)
}

func TestFragmentFileValidation(t *testing.T) {
	r := newRepo(t)

	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(r.Base, "trigger", name), []byte("x"), 0o644))
	}

	write("toofew.sql")
	_, err := r.ListFragments()
	require.Error(t, err)
	require.NoError(t, os.Remove(filepath.Join(r.Base, "trigger", "toofew.sql")))

	write("20-x.sometime.insert.User.sql")
	_, err = r.ListFragments()
	require.Error(t, err)
	require.NoError(t, os.Remove(filepath.Join(r.Base, "trigger", "20-x.sometime.insert.User.sql")))

	write("20-x.before.truncate.User.sql")
	_, err = r.ListFragments()
	require.Error(t, err)
}

func TestListIgnoresForeignFiles(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Base, "table", "README.md"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(r.Base, "table", "sub"), 0o755))

	names, err := r.ListTables()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListMissingDirIsEmpty(t *testing.T) {
	r := Repo{Base: filepath.Join(t.TempDir(), "nope")}

	names, err := r.ListTables()
	require.NoError(t, err)
	assert.Empty(t, names)

	fragments, err := r.ListFragments()
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

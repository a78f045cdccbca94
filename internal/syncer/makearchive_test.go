package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db_schema_filesync/internal/archive"
	"db_schema_filesync/internal/schema"
)

const archiveUserDDL = "CREATE TABLE `User` (\n" +
	"  `id` int(10) unsigned NOT NULL AUTO_INCREMENT,\n" +
	"  `name` varchar(64) NOT NULL,\n" +
	"  `revision` int(10) unsigned NOT NULL,\n" +
	"  PRIMARY KEY (`id`)\n" +
	") ENGINE=InnoDB"

const archiveLogDDL = "CREATE TABLE `Log` (\n" +
	"  `id` int(10) unsigned NOT NULL AUTO_INCREMENT,\n" +
	"  `msg` text NOT NULL,\n" +
	"  PRIMARY KEY (`id`)\n" +
	") ENGINE=InnoDB"

func TestMakeArchiveAutoDetect(t *testing.T) {
	r := newRepo(t)
	database := &fakeDB{
		tableOrder: []string{"User", "Log"},
		tables: map[string]string{
			"User": archiveUserDDL,
			"Log":  archiveLogDDL,
		},
	}
	opts := ArchiveOptions{Pattern: "%Archive", Roles: archive.Roles{}}

	require.NoError(t, MakeArchive(context.Background(), database, r, opts, &testLogger{}))

	// Only the table with a revision column is archived.
	tables, err := r.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"UserArchive"}, tables)

	text, err := r.ReadTable("UserArchive")
	require.NoError(t, err)
	arch, _, err := schema.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "revision"}, arch.PrimaryKey)

	fragments, err := r.ListFragments()
	require.NoError(t, err)
	assert.Len(t, fragments, 5)
	for _, f := range fragments {
		assert.Equal(t, "User", f.Table)
	}
}

func TestMakeArchiveSkipsExistingArchives(t *testing.T) {
	r := newRepo(t)
	userArchiveDDL := "CREATE TABLE `UserArchive` (\n" +
		"  `id` int(10) unsigned NOT NULL,\n" +
		"  `revision` int(10) unsigned NOT NULL,\n" +
		"  PRIMARY KEY (`id`,`revision`)\n" +
		") ENGINE=InnoDB"
	database := &fakeDB{
		tableOrder: []string{"User", "UserArchive"},
		tables: map[string]string{
			"User":        archiveUserDDL,
			"UserArchive": userArchiveDDL,
		},
	}
	opts := ArchiveOptions{Pattern: "%Archive", Roles: archive.Roles{}}

	require.NoError(t, MakeArchive(context.Background(), database, r, opts, &testLogger{}))

	tables, err := r.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"UserArchive"}, tables,
		"an existing archive is never treated as a source")
}

func TestMakeArchiveExplicitListCollectsErrors(t *testing.T) {
	r := newRepo(t)
	database := &fakeDB{
		tableOrder: []string{"User", "Log"},
		tables: map[string]string{
			"User": archiveUserDDL,
			"Log":  archiveLogDDL,
		},
	}
	opts := ArchiveOptions{
		Tables:  []string{"Log", "User"},
		Pattern: "%Archive",
		Roles:   archive.Roles{},
	}

	err := MakeArchive(context.Background(), database, r, opts, &testLogger{})
	require.ErrorIs(t, err, archive.ErrNotArchivable, "Log has no revision column")

	// The archivable table in the list was still written.
	tables, listErr := r.ListTables()
	require.NoError(t, listErr)
	assert.Equal(t, []string{"UserArchive"}, tables)
}

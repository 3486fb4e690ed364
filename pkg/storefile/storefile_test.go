package storefile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/seafair/pkg/storefile"
)

func Test_GenerateName_Appends_The_Extension(t *testing.T) {
	t.Parallel()

	name, err := storefile.GenerateName("User")
	require.NoError(t, err)
	assert.Equal(t, "User.sea", name)
}

func Test_GenerateName_Rejects_Unusable_Classes(t *testing.T) {
	t.Parallel()

	for _, class := range []string{"", "a/b", `a\b`, ".", ".."} {
		t.Run(class, func(t *testing.T) {
			t.Parallel()

			_, err := storefile.GenerateName(class)
			require.Error(t, err)
		})
	}
}

func Test_Path_Joins_Directory_And_Class(t *testing.T) {
	t.Parallel()

	path, err := storefile.Path("/var/data", "Session")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/data", "Session.sea"), path)
}

func Test_ParseClass_Inverts_GenerateName(t *testing.T) {
	t.Parallel()

	class, err := storefile.ParseClass("/var/data/User.sea")
	require.NoError(t, err)
	assert.Equal(t, "User", class)

	_, err = storefile.ParseClass("/var/data/User.db")
	require.Error(t, err)

	_, err = storefile.ParseClass("/var/data/.sea")
	require.Error(t, err)
}

func Test_Discover_Lists_Classes_Sorted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"Session.sea", "Account.sea", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	classes, err := storefile.Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Session"}, classes)
}

func Test_Discover_Treats_A_Missing_Directory_As_Empty(t *testing.T) {
	t.Parallel()

	classes, err := storefile.Discover(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, classes)
}

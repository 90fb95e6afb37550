package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string `json:"name"`
	Interval int    `json:"interval"`
	Nested   struct {
		Token string `json:"token"`
	} `json:"nested"`
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "dir/gradewatch.local.json5", LocalPath("dir/gradewatch.json5"))
	require.Equal(t, "plain.local", LocalPath("plain"))
}

func TestMergeLayers(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "cfg.json5")

	require.NoError(t, os.WriteFile(name, []byte(`{
		// comments are allowed
		name: "primary",
		interval: 30,
	}`), 0644))
	require.NoError(t, os.WriteFile(LocalPath(name), []byte(`{nested: {token: "secret"}, interval: 15}`), 0644))

	base := sample{Name: "default", Interval: 60}
	out, err := Merge(name, base)
	require.NoError(t, err)
	require.Equal(t, "primary", out.Name)
	require.Equal(t, 15, out.Interval)
	require.Equal(t, "secret", out.Nested.Token)
}

func TestMergeMissing(t *testing.T) {
	base := sample{Name: "default"}
	out, err := Merge(filepath.Join(t.TempDir(), "none.json5"), base)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, base, out)
}

func TestMergeInvalid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.json5")
	require.NoError(t, os.WriteFile(name, []byte(`{name: `), 0644))
	_, err := Merge(name, sample{})
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

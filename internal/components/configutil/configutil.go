// Package configutil reads json5 configuration files with optional
// machine-local overrides.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalPath returns the override path for a config file,
// "gradewatch.json5" becomes "gradewatch.local.json5".
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)
}

func readInto[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// Merge layers the following onto base, later layers override earlier ones.
//  1. <name>.<ext>
//  2. <name>.local.<ext>
//
// Zero values in a layer never override what is already set.
// os.ErrNotExist is returned when neither file exists, base is still returned
// unchanged in that case.
func Merge[T any](name string, base T) (T, error) {
	out := base
	found := false

	var primary T
	ok, err := readInto(name, &primary)
	if err != nil {
		return base, err
	}
	if ok {
		err = mergo.Merge(&out, primary, mergo.WithOverride)
		if err != nil {
			return base, err
		}
		found = true
	}

	local := LocalPath(name)
	var override T
	ok, err = readInto(local, &override)
	if err != nil {
		return base, err
	}
	if ok {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return base, err
		}
		slog.Info("merging config with local overrides", "local", local)
		found = true
	}

	if !found {
		return base, os.ErrNotExist
	}
	return out, nil
}

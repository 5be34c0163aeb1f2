package configutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Loaded is a configuration value and the files it was merged from, in order.
type Loaded[T any] struct {
	Value T
	Files []string
}

// LocalName returns the override file of name: "dir/app.json5" becomes
// "dir/app.local.json5".
func LocalName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func readFile[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return out, true, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads a json5 configuration file, `name` should come with a file
// extension. Non-empty fields of <name>.local.<ext> override those of <name>.<ext>.
// It returns fs.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (Loaded[T], error) {
	out := Loaded[T]{}

	base, found, err := readFile[T](name)
	if err != nil {
		return out, err
	}
	if found {
		out.Value = base
		out.Files = append(out.Files, name)
	}

	localName := LocalName(name)
	local, found, err := readFile[T](localName)
	if err != nil {
		return out, err
	}
	if found {
		err = mergo.Merge(&out.Value, local, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge %s: %w", localName, err)
		}
		slog.Debug("merged config with local overrides", "local", localName)
		out.Files = append(out.Files, localName)
	}

	if len(out.Files) == 0 {
		return out, fs.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig, looking for `name` in dir and then in each of
// its parents up to the filesystem root.
func ReadRecursively[T any](dir, name string) (Loaded[T], error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return Loaded[T]{}, err
	}

	for {
		loaded, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return loaded, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Loaded[T]{}, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return Loaded[T]{}, fs.ErrNotExist
		}
		current = parent
	}
}

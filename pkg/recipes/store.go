// Package recipes implements recipe storage: a directory of YAML
// definition files looked up by recipe name.
package recipes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ormasoftchile/grimoire/pkg/schema"
)

// NotFoundError reports an unknown recipe name.
type NotFoundError struct {
	Name string
	Dir  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("recipe %q not found in %s — run 'grimoire list' to see available recipes", e.Name, e.Dir)
}

// InvalidDefinitionError reports a recipe file that failed validation.
// It is surfaced verbatim to the user and never retried.
type InvalidDefinitionError struct {
	Name   string
	Path   string
	Errors []*schema.ValidationError
}

func (e *InvalidDefinitionError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("recipe %q is invalid: %s", e.Name, strings.Join(msgs, "; "))
}

// Loader is the lookup contract the executor depends on.
type Loader interface {
	Load(name string) (*schema.Recipe, error)
}

// Summary is one row of a recipe listing.
type Summary struct {
	Name        string
	Version     int
	Description string
}

// Store loads recipes from <dir>/<name>.yaml (or .yml).
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load finds, parses, and validates the named recipe. Returns
// *NotFoundError when no file exists for the name and
// *InvalidDefinitionError when the file fails validation.
func (s *Store) Load(name string) (*schema.Recipe, error) {
	path, ok := s.find(name)
	if !ok {
		return nil, &NotFoundError{Name: name, Dir: s.dir}
	}

	rec, errs := schema.ValidateFile(path)
	if hasErrors(errs) {
		return nil, &InvalidDefinitionError{Name: name, Path: path, Errors: errs}
	}
	return rec, nil
}

// List enumerates every parseable recipe in the directory, sorted by name.
// Unparseable files are skipped; List is a discovery aid, not a validator.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read recipe directory %s: %w", s.dir, err)
	}

	var out []Summary
	for _, entry := range entries {
		if entry.IsDir() || !isRecipeFile(entry.Name()) {
			continue
		}
		rec, err := schema.LoadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, Summary{Name: rec.Name, Version: rec.Version, Description: rec.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) find(name string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func isRecipeFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func hasErrors(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// Package blob provides path addressed access to the object store holding
// the translation manifest and module files.
package blob

import (
	"context"
	"errors"
)

// ManifestPath is the conventional location of the manifest document.
const ManifestPath = "manifest.json"

const fileExtension = ".json"

// ErrNotFound is returned, wrapped, when the requested object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store downloads objects by path.
type Store interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// ModulePath builds the object path of a module file for a language,
// e.g. ModulePath("en", "goals_student") is "en/goals_student.json".
func ModulePath(language, name string) string {
	return language + "/" + name + fileExtension
}

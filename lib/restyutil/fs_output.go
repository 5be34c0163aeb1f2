package restyutil

import (
	"os"
	"path/filepath"
	"regexp"
)

// Output receives a rendered request/response exchange under a unique id.
type Output interface {
	Write(id string, contents string) error
}

// FilesystemOutput writes every exchange to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileName turns an id into a file name, anything that is not a letter, digit,
// dot, underscore or dash becomes a single underscore.
func FileName(id string) string {
	name := unsafeName.ReplaceAllString(id, "_")
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

func (o FilesystemOutput) Write(id string, contents string) error {
	return os.WriteFile(filepath.Join(o.directory, FileName(id)), []byte(contents), 0o600)
}

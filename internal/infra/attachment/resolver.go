package attachment

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps the attachment name stored on a lead to a file under Dir.
type Resolver struct {
	Dir string
}

func NewResolver(dir string) *Resolver {
	return &Resolver{Dir: dir}
}

// Resolve returns the absolute path of name when it is a regular file inside
// Dir. Names that escape Dir are treated as missing.
func (r *Resolver) Resolve(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if r.Dir == "" || name == "" {
		return "", false
	}
	if !filepath.IsLocal(name) {
		return "", false
	}

	path := filepath.Join(r.Dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, true
	}
	return abs, true
}

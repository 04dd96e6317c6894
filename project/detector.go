// Package project locates the project root so learned state lands in a
// project-relative, dot-prefixed directory rather than beside arbitrary files.
package project

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/viant/afs"
	"golang.org/x/mod/modfile"
)

// StateDirName is the dot-prefixed directory holding learned state
const StateDirName = ".morphein"

// Detector identifies project root folders and provides project-related information
type Detector struct {
	// Common project root marker files/directories
	markers []string
}

// New creates a new project detector instance
func New() *Detector {
	return &Detector{
		markers: []string{
			"package.json",  // JavaScript/Node projects
			"tsconfig.json", // TypeScript projects
			"jsconfig.json", // JavaScript projects with explicit config
			"go.mod",        // Go projects hosting embedded frontends
			".git",          // Generic VCS marker
		},
	}
}

// Root finds the project root for the given path by searching up the
// directory tree for project markers; when none is found the starting
// directory itself is used
func (d *Detector) Root(startPath string) (string, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", err
	}

	startDir := absPath
	if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
		startDir = filepath.Dir(absPath)
	}

	dir := startDir
	for {
		for _, marker := range d.markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// reached the filesystem root with no match
			break
		}
		dir = parent
	}
	return startDir, nil
}

// StateDir resolves the state directory for the project containing startPath
func (d *Detector) StateDir(startPath string) (string, error) {
	root, err := d.Root(startPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, StateDirName), nil
}

// Name extracts the project name from its config files, falling back to the
// root directory name
func (d *Detector) Name(root string) string {
	fs := afs.New()
	if content, _ := fs.DownloadWithURL(context.Background(), filepath.Join(root, "package.json")); len(content) > 0 {
		var decoded struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(content, &decoded); err == nil && decoded.Name != "" {
			return decoded.Name
		}
	}
	goModPath := filepath.Join(root, "go.mod")
	if content, _ := fs.DownloadWithURL(context.Background(), goModPath); len(content) > 0 {
		if mod, _ := modfile.Parse(goModPath, content, nil); mod != nil && mod.Module != nil {
			return filepath.Base(mod.Module.Mod.Path)
		}
	}
	return filepath.Base(root)
}

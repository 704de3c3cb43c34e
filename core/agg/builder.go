// Package agg builds the directory tree of an analysis and rolls KPIs up through it.
package agg

import (
	"path"
	"strings"
	"sync"

	"github.com/huangsam/codepulse/schema"
)

// HierarchyBuilder attaches files to a repository tree, creating intermediate
// directories on demand. It is safe for concurrent use by analysis workers.
type HierarchyBuilder struct {
	mu sync.Mutex
}

// NewHierarchyBuilder creates a builder.
func NewHierarchyBuilder() *HierarchyBuilder {
	return &HierarchyBuilder{}
}

// AddFile inserts file under dirPath ("" for the root), keeping siblings sorted.
// When a file with the same name is already present it is returned with false
// and the tree is left unchanged.
func (b *HierarchyBuilder) AddFile(repo *schema.RepoInfo, dirPath string, file *schema.File) (*schema.File, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := b.ensureDir(repo.Tree, dirPath)
	if existing, ok := dir.File(file.Name); ok {
		return existing, false
	}
	dir.InsertFile(file)
	return file, true
}

// EnsureDir returns the directory at dirPath, creating missing ancestors.
func (b *HierarchyBuilder) EnsureDir(repo *schema.RepoInfo, dirPath string) *schema.ScanDir {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureDir(repo.Tree, dirPath)
}

func (b *HierarchyBuilder) ensureDir(root *schema.ScanDir, dirPath string) *schema.ScanDir {
	dirPath = strings.Trim(path.Clean("/"+dirPath), "/")
	if dirPath == "" {
		return root
	}
	current := root
	parts := strings.Split(dirPath, "/")
	for i, part := range parts {
		child, ok := current.Dir(part)
		if !ok {
			child = schema.NewScanDir(strings.Join(parts[:i+1], "/"))
			current.InsertDir(child)
		}
		current = child
	}
	return current
}

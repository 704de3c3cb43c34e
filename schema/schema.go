// Package schema has the data model, constants and errors shared by all parts of codepulse.
package schema

import (
	"path"
	"sort"
	"sync"
)

// RepoInfo is the root of one repository's analysis.
// It owns the directory tree and mirrors the aggregated KPIs of the root directory.
type RepoInfo struct {
	Name     string   `json:"name"`
	Root     string   `json:"root"`              // Absolute path of the repository root
	Head     string   `json:"head,omitempty"`    // HEAD commit hash at analysis time
	Tree     *ScanDir `json:"tree"`              // Root directory node (Path is "")
	KPIs     KPIMap   `json:"kpis"`              // Aggregated KPIs of the whole repository
	Warnings []string `json:"warnings,omitempty"` // Aggregation problems surfaced to the caller
}

// NewRepoInfo creates a RepoInfo with an empty root directory.
func NewRepoInfo(name, root string) *RepoInfo {
	return &RepoInfo{
		Name: name,
		Root: root,
		Tree: NewScanDir(""),
		KPIs: KPIMap{},
	}
}

// ScanDir is a directory node. Its KPIs are only ever written by aggregation.
type ScanDir struct {
	Name     string            `json:"name"`
	Path     string            `json:"path"` // Slash-separated path relative to the repository root
	Dirs     []*ScanDir        `json:"dirs,omitempty"`
	Files    []*File           `json:"files,omitempty"`
	KPIs     KPIMap            `json:"kpis"`
	Degraded map[string]string `json:"degraded,omitempty"` // Metric name to aggregation failure reason
}

// NewScanDir creates an empty directory node for the given relative path.
func NewScanDir(dirPath string) *ScanDir {
	name := path.Base(dirPath)
	if dirPath == "" || dirPath == "." {
		dirPath, name = "", "."
	}
	return &ScanDir{Name: name, Path: dirPath, KPIs: KPIMap{}}
}

// Dir returns the direct child directory with the given name, if any.
func (d *ScanDir) Dir(name string) (*ScanDir, bool) {
	i := sort.Search(len(d.Dirs), func(i int) bool { return d.Dirs[i].Name >= name })
	if i < len(d.Dirs) && d.Dirs[i].Name == name {
		return d.Dirs[i], true
	}
	return nil, false
}

// File returns the direct child file with the given name, if any.
func (d *ScanDir) File(name string) (*File, bool) {
	i := sort.Search(len(d.Files), func(i int) bool { return d.Files[i].Name >= name })
	if i < len(d.Files) && d.Files[i].Name == name {
		return d.Files[i], true
	}
	return nil, false
}

// InsertDir adds a child directory keeping the children sorted by name.
func (d *ScanDir) InsertDir(child *ScanDir) {
	i := sort.Search(len(d.Dirs), func(i int) bool { return d.Dirs[i].Name >= child.Name })
	d.Dirs = append(d.Dirs, nil)
	copy(d.Dirs[i+1:], d.Dirs[i:])
	d.Dirs[i] = child
}

// InsertFile adds a child file keeping the children sorted by name.
func (d *ScanDir) InsertFile(f *File) {
	i := sort.Search(len(d.Files), func(i int) bool { return d.Files[i].Name >= f.Name })
	d.Files = append(d.Files, nil)
	copy(d.Files[i+1:], d.Files[i:])
	d.Files[i] = f
}

// File is one source file. Structural fields are fixed at creation; KPI keys are added
// incrementally by independent calculators, each owning only its own keys.
type File struct {
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	Language       Language   `json:"language,omitempty"`
	Functions      []Function `json:"functions,omitempty"`
	KPIs           KPIMap     `json:"kpis"`
	Degraded       bool       `json:"degraded,omitempty"`
	DegradedReason string     `json:"degraded_reason,omitempty"`

	mu sync.RWMutex
}

// NewFile creates a file node for the given slash-separated relative path.
func NewFile(filePath string, lang Language) *File {
	return &File{
		Name:     path.Base(filePath),
		Path:     filePath,
		Language: lang,
		KPIs:     KPIMap{},
	}
}

// SetKPI records a KPI on the file. It fails with ErrKPIOwnership when another
// calculator already owns the key.
func (f *File) SetKPI(k KPI) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.KPIs.Put(k)
}

// KPI returns a KPI by name.
func (f *File) KPI(name string) (KPI, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.KPIs.Get(name)
}

// MarkDegraded flags the file as degraded with a reason.
func (f *File) MarkDegraded(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Degraded = true
	f.DegradedReason = reason
}

// Snapshot returns a copy of the file's KPI map.
func (f *File) Snapshot() KPIMap {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.KPIs.Clone()
}

// Function is one function, method or operation inside a file.
type Function struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	KPIs      KPIMap `json:"kpis"`
}

// NodeKind distinguishes the node types of the analysis tree.
type NodeKind string

// All node kinds.
const (
	DirNode      NodeKind = "dir"
	FileNode     NodeKind = "file"
	FunctionNode NodeKind = "function"
)

// NodeVisitor is called for every node of the tree with its kind, path and KPIs.
// Function paths are "<file path>#<function name>".
type NodeVisitor func(kind NodeKind, nodePath string, kpis KPIMap) error

// Walk visits the tree depth-first, directories before their children.
func Walk(dir *ScanDir, visit NodeVisitor) error {
	if err := visit(DirNode, dir.Path, dir.KPIs); err != nil {
		return err
	}
	for _, f := range dir.Files {
		if err := visit(FileNode, f.Path, f.Snapshot()); err != nil {
			return err
		}
		for _, fn := range f.Functions {
			if err := visit(FunctionNode, f.Path+"#"+fn.Name, fn.KPIs); err != nil {
				return err
			}
		}
	}
	for _, sub := range dir.Dirs {
		if err := Walk(sub, visit); err != nil {
			return err
		}
	}
	return nil
}

// AllFiles returns every file under dir in tree order.
func AllFiles(dir *ScanDir) []*File {
	var files []*File
	files = append(files, dir.Files...)
	for _, sub := range dir.Dirs {
		files = append(files, AllFiles(sub)...)
	}
	return files
}

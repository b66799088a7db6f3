package schema

import (
	"sort"
	"time"
)

// Hunk is a single contiguous region of a unified diff.
type Hunk struct {
	OrigStart int `json:"orig_start"`
	OrigLines int `json:"orig_lines"`
	NewStart  int `json:"new_start"`
	NewLines  int `json:"new_lines"`
	Added     int `json:"added"`
	Deleted   int `json:"deleted"`
}

// FileChange captures how one file was modified by a change.
type FileChange struct {
	Path      string `json:"path" validate:"required"`
	OldPath   string `json:"old_path,omitempty"`
	Added     int    `json:"added" validate:"gte=0"`
	Deleted   int    `json:"deleted" validate:"gte=0"`
	FileLines int    `json:"file_lines" validate:"gte=0"` // size of the file, in lines
	IsNew     bool   `json:"is_new,omitempty"`
	IsDeleted bool   `json:"is_deleted,omitempty"`
	Hunks     []Hunk `json:"hunks,omitempty"`
}

// ChangedLines returns the number of added plus deleted lines.
func (f FileChange) ChangedLines() int {
	return f.Added + f.Deleted
}

// Churn returns changed lines divided by file size, clamped to [0,1].
// Newly created and deleted files are fully churned.
func (f FileChange) Churn() float64 {
	if f.IsNew || f.IsDeleted {
		return 1
	}
	return Clamp01(float64(f.ChangedLines()) / float64(max(f.FileLines, 1)))
}

// CodeChange is the immutable unit of modified source that triggers a plan.
type CodeChange struct {
	ID        string       `json:"id" validate:"required"`
	Files     []FileChange `json:"files" validate:"required,min=1,dive"`
	CreatedAt time.Time    `json:"created_at"`
}

// Paths returns every path touched by the change, including rename sources, sorted.
func (c CodeChange) Paths() []string {
	seen := make(map[string]struct{}, len(c.Files))
	for _, f := range c.Files {
		seen[f.Path] = struct{}{}
		if f.OldPath != "" {
			seen[f.OldPath] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

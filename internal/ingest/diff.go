// Package ingest decodes and validates the inputs of a plan: unified diffs,
// the component and test catalog, and execution records.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// changeNamespace seeds deterministic change IDs derived from diff content.
var changeNamespace = uuid.MustParse("6f1c7f0e-3a5e-4d0b-9a51-2f8f3f1f8b10")

// LineCounter returns the current size in lines of a repository file.
type LineCounter func(ctx context.Context, path string) (int, error)

// ParseUnifiedDiff turns a unified diff into a CodeChange. When changeID is
// empty, a deterministic ID is derived from the diff content. File sizes come
// from counter when it is non-nil and succeeds, otherwise from the hunk extents.
func ParseUnifiedDiff(ctx context.Context, changeID string, data []byte, counter LineCounter) (schema.CodeChange, error) {
	if changeID == "" {
		changeID = DeriveChangeID(data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return schema.CodeChange{}, &contract.ChangeError{ChangeID: changeID, Reason: "diff is empty"}
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(data)).ReadAllFiles()
	if err != nil {
		return schema.CodeChange{}, &contract.ChangeError{ChangeID: changeID, Reason: "cannot parse diff", Err: err}
	}

	change := schema.CodeChange{ID: changeID, CreatedAt: time.Now().UTC()}
	for _, fd := range fileDiffs {
		fc, ok, err := fileChangeFrom(fd)
		if err != nil {
			return schema.CodeChange{}, &contract.ChangeError{ChangeID: changeID, Reason: "invalid file path", Err: err}
		}
		if !ok {
			continue
		}
		fc.FileLines = resolveFileLines(ctx, fc, counter)
		change.Files = append(change.Files, fc)
	}

	if err := ValidateChange(change); err != nil {
		return schema.CodeChange{}, err
	}
	return change, nil
}

// DeriveChangeID returns a stable identifier for raw change content.
func DeriveChangeID(data []byte) string {
	return uuid.NewSHA1(changeNamespace, data).String()
}

// ValidateChange checks that a change is well formed. A malformed change is fatal.
func ValidateChange(c schema.CodeChange) error {
	if err := validate.Struct(c); err != nil {
		return &contract.ChangeError{ChangeID: c.ID, Reason: "change failed validation", Err: err}
	}
	return nil
}

func fileChangeFrom(fd *diff.FileDiff) (schema.FileChange, bool, error) {
	origName := stripDiffPrefix(fd.OrigName, "a/")
	newName := stripDiffPrefix(fd.NewName, "b/")
	for _, ext := range fd.Extended {
		switch {
		case strings.HasPrefix(ext, "rename from "):
			origName = strings.TrimPrefix(ext, "rename from ")
		case strings.HasPrefix(ext, "rename to "):
			newName = strings.TrimPrefix(ext, "rename to ")
		case strings.HasPrefix(ext, "new file mode"):
			origName = devNull
		case strings.HasPrefix(ext, "deleted file mode"):
			newName = devNull
		}
	}

	var fc schema.FileChange
	switch {
	case origName == devNull && newName == devNull, origName == "" && newName == "":
		return fc, false, nil
	case origName == devNull:
		fc.Path, fc.IsNew = newName, true
	case newName == devNull:
		fc.Path, fc.IsDeleted = origName, true
	default:
		fc.Path = newName
		if origName != newName {
			fc.OldPath = origName
		}
	}

	var err error
	if fc.Path, err = contract.NormalizeRepoPath(fc.Path); err != nil {
		return fc, false, err
	}
	if fc.OldPath != "" {
		if fc.OldPath, err = contract.NormalizeRepoPath(fc.OldPath); err != nil {
			return fc, false, err
		}
	}

	for _, h := range fd.Hunks {
		hunk := schema.Hunk{
			OrigStart: int(h.OrigStartLine),
			OrigLines: int(h.OrigLines),
			NewStart:  int(h.NewStartLine),
			NewLines:  int(h.NewLines),
		}
		for line := range strings.SplitSeq(string(h.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				hunk.Added++
			case strings.HasPrefix(line, "-"):
				hunk.Deleted++
			}
		}
		fc.Added += hunk.Added
		fc.Deleted += hunk.Deleted
		fc.Hunks = append(fc.Hunks, hunk)
	}
	return fc, true, nil
}

func stripDiffPrefix(name, prefix string) string {
	if name == devNull {
		return name
	}
	return strings.TrimPrefix(name, prefix)
}

// resolveFileLines picks the file size used for churn.
func resolveFileLines(ctx context.Context, fc schema.FileChange, counter LineCounter) int {
	if fc.IsNew {
		return fc.Added
	}
	if counter != nil && !fc.IsDeleted {
		if n, err := counter(ctx, fc.Path); err == nil && n > 0 {
			return n
		}
	}
	extent := 0
	for _, h := range fc.Hunks {
		extent = max(extent, h.OrigStart+h.OrigLines-1, h.NewStart+h.NewLines-1)
	}
	return max(extent, fc.Added+fc.Deleted)
}

// ChangeFromGit builds a CodeChange from the diff between two references.
// The change ID defaults to the resolved target commit hash.
func ChangeFromGit(ctx context.Context, client contract.GitClient, repoPath, baseRef, targetRef, changeID string) (schema.CodeChange, error) {
	if changeID == "" {
		hash, err := client.GetRepoHash(ctx, repoPath, targetRef)
		if err != nil {
			return schema.CodeChange{}, &contract.ChangeError{ChangeID: targetRef, Reason: "cannot resolve target ref", Err: err}
		}
		changeID = hash
	}
	data, err := client.GetDiff(ctx, repoPath, baseRef, targetRef)
	if err != nil {
		return schema.CodeChange{}, &contract.ChangeError{ChangeID: changeID, Reason: fmt.Sprintf("cannot diff %s..%s", baseRef, targetRef), Err: err}
	}
	counter := func(ctx context.Context, path string) (int, error) {
		return client.GetFileLineCount(ctx, repoPath, targetRef, path)
	}
	return ParseUnifiedDiff(ctx, changeID, data, counter)
}

package ingest

import (
	"context"
	"sort"
	"strings"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// CatalogMapper resolves paths through the path prefixes declared in a catalog.
// The longest matching prefix wins; components tied on it all own the path.
type CatalogMapper struct {
	prefixes []ownedPrefix
}

type ownedPrefix struct {
	prefix      string
	componentID string
}

var _ contract.ComponentMapper = &CatalogMapper{}

// NewCatalogMapper indexes the component paths of a catalog.
func NewCatalogMapper(catalog *schema.Catalog) *CatalogMapper {
	m := &CatalogMapper{}
	for _, comp := range catalog.Components {
		for _, p := range comp.Paths {
			prefix := strings.TrimSuffix(p, "/")
			if prefix == "." {
				prefix = ""
			}
			m.prefixes = append(m.prefixes, ownedPrefix{prefix: prefix, componentID: comp.ID})
		}
	}
	sort.Slice(m.prefixes, func(i, j int) bool {
		if len(m.prefixes[i].prefix) != len(m.prefixes[j].prefix) {
			return len(m.prefixes[i].prefix) > len(m.prefixes[j].prefix)
		}
		if m.prefixes[i].prefix != m.prefixes[j].prefix {
			return m.prefixes[i].prefix < m.prefixes[j].prefix
		}
		return m.prefixes[i].componentID < m.prefixes[j].componentID
	})
	return m
}

// Resolve implements contract.ComponentMapper.
func (m *CatalogMapper) Resolve(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var owners []string
	best := -1
	for _, op := range m.prefixes {
		if best >= 0 && len(op.prefix) < best {
			break
		}
		if isUnder(path, op.prefix) {
			best = len(op.prefix)
			owners = append(owners, op.componentID)
		}
	}
	return schema.UniqueSorted(owners), nil
}

// ComponentsUnder implements contract.ComponentMapper. The empty prefix
// matches every component.
func (m *CatalogMapper) ComponentsUnder(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = strings.TrimSuffix(prefix, "/")
	var ids []string
	for _, op := range m.prefixes {
		if prefix == "" || isUnder(op.prefix, prefix) {
			ids = append(ids, op.componentID)
		}
	}
	return schema.UniqueSorted(ids), nil
}

// isUnder reports whether path equals dir or lies beneath it.
func isUnder(path, dir string) bool {
	if dir == "" {
		return true
	}
	return path == dir || strings.HasPrefix(path, dir+"/")
}

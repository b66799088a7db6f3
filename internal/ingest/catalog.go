package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// DecodeCatalog reads a YAML catalog, normalizes its paths and validates it.
func DecodeCatalog(r io.Reader) (*schema.Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var catalog schema.Catalog
	if err := dec.Decode(&catalog); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot decode catalog: %w", err)
	}
	if err := normalizeCatalog(&catalog); err != nil {
		return nil, err
	}
	if err := ValidateCatalog(&catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// LoadCatalog reads the catalog file at path.
func LoadCatalog(path string) (*schema.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog %s: %w", path, err)
	}
	return DecodeCatalog(bytes.NewReader(data))
}

func normalizeCatalog(c *schema.Catalog) error {
	for i := range c.Components {
		comp := &c.Components[i]
		for j, p := range comp.Paths {
			norm, err := contract.NormalizeRepoPath(p)
			if err != nil {
				return fmt.Errorf("component %s: %w", comp.ID, err)
			}
			comp.Paths[j] = norm
		}
		if comp.Criticality == "" {
			comp.Criticality = schema.MediumCriticality
		}
		comp.DependsOn = schema.UniqueSorted(comp.DependsOn)
		comp.Features = schema.UniqueSorted(comp.Features)
	}
	for i := range c.Tests {
		tc := &c.Tests[i]
		tc.Covers = schema.UniqueSorted(tc.Covers)
		tc.Features = schema.UniqueSorted(tc.Features)
		tc.DependsOn = schema.UniqueSorted(tc.DependsOn)
		tc.Resources = schema.UniqueSorted(tc.Resources)
	}
	return nil
}

// ValidateCatalog checks field constraints and cross references. Tests may
// cover unknown components or depend on unknown tests; both are reported
// downstream instead of rejected.
func ValidateCatalog(c *schema.Catalog) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("catalog failed validation: %w", err)
	}

	components := make(map[string]struct{}, len(c.Components))
	for _, comp := range c.Components {
		if _, dup := components[comp.ID]; dup {
			return fmt.Errorf("duplicate component id %q", comp.ID)
		}
		components[comp.ID] = struct{}{}
	}
	for _, comp := range c.Components {
		for _, dep := range comp.DependsOn {
			if _, ok := components[dep]; !ok {
				return fmt.Errorf("component %s depends on unknown component %q", comp.ID, dep)
			}
		}
	}

	tests := make(map[string]struct{}, len(c.Tests))
	for _, tc := range c.Tests {
		if _, dup := tests[tc.ID]; dup {
			return fmt.Errorf("duplicate test id %q", tc.ID)
		}
		tests[tc.ID] = struct{}{}
	}
	return nil
}

// CatalogLoader loads catalogs once per file version and shares concurrent loads.
type CatalogLoader struct {
	flight singleflight.Group

	mu    sync.RWMutex
	cache map[string]*schema.Catalog
}

// NewCatalogLoader creates an empty loader.
func NewCatalogLoader() *CatalogLoader {
	return &CatalogLoader{cache: make(map[string]*schema.Catalog)}
}

// Load returns the catalog at path, reloading it when the file changed.
func (l *CatalogLoader) Load(ctx context.Context, path string) (*schema.Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog %s: %w", path, err)
	}
	key := path + "@" + strconv.FormatInt(info.ModTime().UnixNano(), 10) + ":" + strconv.FormatInt(info.Size(), 10)

	l.mu.RLock()
	cached, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	ch := l.flight.DoChan(key, func() (any, error) {
		catalog, err := LoadCatalog(path)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[key] = catalog
		l.mu.Unlock()
		return catalog, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*schema.Catalog), nil
	}
}

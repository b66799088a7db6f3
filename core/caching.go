package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// currentCacheVersion defines the version of the cache schema
const currentCacheVersion = 1

// cacheTTL is how long a derived impact entry stays valid.
const cacheTTL = 7 * 24 * time.Hour

// adjustmentsKey holds the latest maintenance priority adjustments. The entry
// never expires; each maintenance run replaces it.
const adjustmentsKey = "maintenance:adjustments"

// cachedImpact returns the impact analysis of a change, reusing a stored one
// when the change, catalog and risk settings are identical. Degraded results
// are never stored since the mapper may recover.
func cachedImpact(ctx context.Context, derived contract.CacheStore, analyzer *ImpactAnalyzer, catalog *schema.Catalog, change schema.CodeChange, cfg *contract.Config) (*schema.ImpactAnalysis, error) {
	if derived == nil {
		return analyzer.Analyze(ctx, change)
	}

	key, err := impactCacheKey(catalog, change, cfg)
	if err != nil {
		return analyzer.Analyze(ctx, change)
	}

	var cached schema.ImpactAnalysis
	if checkCacheHit(derived, key, &cached) {
		contract.LogInfo("Reusing cached impact analysis")
		return &cached, nil
	}

	result, err := analyzer.Analyze(ctx, change)
	if err != nil {
		return nil, err
	}
	if !result.Degraded {
		storeCacheEntry(derived, key, result)
	}
	return result, nil
}

// checkCacheHit attempts to retrieve and validate a cached entry into out
func checkCacheHit(store contract.CacheStore, key string, out any) bool {
	return readCacheEntry(store, key, cacheTTL, out)
}

// readCacheEntry decodes a cached entry into out. A zero ttl disables the
// staleness check.
func readCacheEntry(store contract.CacheStore, key string, ttl time.Duration, out any) bool {
	data, version, ts, err := store.Get(key)
	if err != nil {
		return false // Cache miss
	}

	// Validate version and staleness
	if version != currentCacheVersion || (ttl > 0 && time.Since(time.Unix(ts, 0)) > ttl) {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// storeCacheEntry serializes value into the cache, ignoring failures.
func storeCacheEntry(store contract.CacheStore, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := store.Set(key, data, currentCacheVersion, time.Now().Unix()); err != nil {
		contract.LogWarn("Failed to write derived cache entry", err)
	}
}

// loadAdjustments returns the maintenance adjustments keyed by test ID.
func loadAdjustments(derived contract.CacheStore) map[string]float64 {
	if derived == nil {
		return nil
	}
	var adjustments []schema.PriorityAdjustment
	if !readCacheEntry(derived, adjustmentsKey, 0, &adjustments) {
		return nil
	}
	report := schema.MaintenanceReport{PriorityAdjustments: adjustments}
	return report.AdjustmentMap()
}

// storeAdjustments publishes maintenance adjustments for later plans.
func storeAdjustments(derived contract.CacheStore, adjustments []schema.PriorityAdjustment) {
	if derived == nil {
		return
	}
	storeCacheEntry(derived, adjustmentsKey, adjustments)
}

// impactCacheKey creates a unique key based on the analysis inputs
func impactCacheKey(catalog *schema.Catalog, change schema.CodeChange, cfg *contract.Config) (string, error) {
	payload, err := json.Marshal(struct {
		Catalog  *schema.Catalog                 `json:"catalog"`
		Files    []schema.FileChange             `json:"files"`
		ChangeID string                          `json:"change_id"`
		MaxDepth int                             `json:"max_depth"`
		Weights  map[schema.BreakdownKey]float64 `json:"weights"`
	}{catalog, change.Files, change.ID, cfg.MaxDepth, cfg.Weights(schema.RiskTable)})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("impact:%x", sha256.Sum256(payload)), nil
}

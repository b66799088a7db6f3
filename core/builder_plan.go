package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/huangsam/retest/core/agg"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/ingest"
	"github.com/huangsam/retest/internal/predictor"
	"github.com/huangsam/retest/schema"
)

// catalogLoader is shared so that concurrent plans read a catalog file once.
var catalogLoader = ingest.NewCatalogLoader()

// planOptions override the collaborators a plan would otherwise build from config.
type planOptions struct {
	diff      []byte
	catalog   *schema.Catalog
	mapper    contract.ComponentMapper
	predictor contract.Predictor
	git       contract.GitClient
}

// PlanOption customizes a plan run.
type PlanOption func(*planOptions)

// WithDiff plans the given unified diff instead of reading one from config.
func WithDiff(data []byte) PlanOption {
	return func(o *planOptions) { o.diff = data }
}

// WithCatalog uses an already loaded catalog.
func WithCatalog(catalog *schema.Catalog) PlanOption {
	return func(o *planOptions) { o.catalog = catalog }
}

// WithMapper replaces the catalog-backed component mapper.
func WithMapper(mapper contract.ComponentMapper) PlanOption {
	return func(o *planOptions) { o.mapper = mapper }
}

// WithPredictor replaces the configured failure predictor.
func WithPredictor(p contract.Predictor) PlanOption {
	return func(o *planOptions) { o.predictor = p }
}

// WithGitClient replaces the local git client.
func WithGitClient(client contract.GitClient) PlanOption {
	return func(o *planOptions) { o.git = client }
}

// PlanBuilder runs the planning pipeline step by step.
type PlanBuilder struct {
	ctx  context.Context
	cfg  *contract.Config
	mgr  contract.CacheManager
	opts planOptions

	catalog     *schema.Catalog
	change      schema.CodeChange
	snapshot    *schema.HistorySnapshot
	adjustments map[string]float64
	impact      *schema.ImpactAnalysis
	scores      []schema.RelevanceScore
	plan        *schema.PrioritizedPlan
	suite       *schema.RegressionSuite
	warns       warnings
	result      *schema.PlanResult
}

// NewPlanBuilder creates a new builder for a regression plan.
func NewPlanBuilder(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, opts ...PlanOption) *PlanBuilder {
	b := &PlanBuilder{ctx: ctx, cfg: cfg, mgr: mgr}
	for _, opt := range opts {
		opt(&b.opts)
	}
	if b.opts.git == nil {
		b.opts.git = contract.NewLocalGitClient()
	}
	if b.opts.predictor == nil {
		if cfg.PredictorURL != "" {
			b.opts.predictor = predictor.NewHTTPClient(cfg.PredictorURL, cfg.PredictorTimeout)
		} else {
			b.opts.predictor = predictor.NewConstant()
		}
	}
	return b
}

// LoadCatalog loads and validates the component and test catalog.
func (b *PlanBuilder) LoadCatalog() (*PlanBuilder, error) {
	if b.opts.catalog != nil {
		b.catalog = b.opts.catalog
		return b, nil
	}
	catalog, err := catalogLoader.Load(b.ctx, b.cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	b.catalog = catalog
	return b, nil
}

// LoadChange reads the code change from a diff or from two git references.
// An absent or malformed change is fatal.
func (b *PlanBuilder) LoadChange() (*PlanBuilder, error) {
	var (
		change schema.CodeChange
		err    error
	)
	switch {
	case b.opts.diff != nil:
		change, err = ingest.ParseUnifiedDiff(b.ctx, b.cfg.ChangeID, b.opts.diff, fileLineCounter(b.cfg.RepoPath))
	case b.cfg.UsesGit():
		change, err = ingest.ChangeFromGit(b.ctx, b.opts.git, b.cfg.RepoPath, b.cfg.BaseRef, b.cfg.TargetRef, b.cfg.ChangeID)
	case b.cfg.DiffPath != "":
		var data []byte
		if data, err = readInput(b.cfg.DiffPath); err != nil {
			return nil, &contract.ChangeError{ChangeID: b.cfg.ChangeID, Reason: "cannot read diff", Err: err}
		}
		change, err = ingest.ParseUnifiedDiff(b.ctx, b.cfg.ChangeID, data, fileLineCounter(b.cfg.RepoPath))
	default:
		return nil, &contract.ChangeError{ChangeID: b.cfg.ChangeID, Reason: "no change given; use --diff or --base-ref"}
	}
	if err != nil {
		return nil, err
	}
	b.change = change
	return b, nil
}

// LoadHistory takes the immutable history snapshot for this run along with
// the latest maintenance adjustments. A failing store degrades the plan.
func (b *PlanBuilder) LoadHistory() *PlanBuilder {
	snapshot, err := agg.LoadSnapshot(b.ctx, b.mgr.GetHistoryStore(), agg.DefaultBatchSize)
	if err != nil {
		contract.LogWarn("Execution history is unavailable; scoring without it", err)
		b.warns.add(schema.WarnDataUnavailable, fmt.Sprintf("execution history could not be read: %v", err))
		snapshot = agg.EmptySnapshot()
	}
	if snapshot.CorruptRecords > 0 {
		corruptRecords.Add(float64(snapshot.CorruptRecords))
		b.warns.add(schema.WarnCorruptRecord, fmt.Sprintf("%d execution record(s) were skipped as corrupt", snapshot.CorruptRecords))
	}
	b.snapshot = snapshot
	b.adjustments = loadAdjustments(b.mgr.GetDerivedStore())
	return b
}

// AnalyzeImpact maps the change onto components and their dependents.
func (b *PlanBuilder) AnalyzeImpact() (*PlanBuilder, error) {
	mapper := b.opts.mapper
	derived := b.mgr.GetDerivedStore()
	if mapper == nil {
		mapper = ingest.NewCatalogMapper(b.catalog)
	} else {
		derived = nil // custom mappers are not covered by the cache key
	}

	analyzer := NewImpactAnalyzer(b.catalog, mapper, b.cfg)
	impact, err := cachedImpact(b.ctx, derived, analyzer, b.catalog, b.change, b.cfg)
	if err != nil {
		return nil, err
	}
	b.impact = impact
	b.warns.extend(impact.Warnings)
	return b, nil
}

// ScoreTests computes rule-based relevance and blends in the predictor.
func (b *PlanBuilder) ScoreTests() (*PlanBuilder, error) {
	scorer := NewRelevanceScorer(b.catalog, b.snapshot, b.cfg, b.adjustments)
	b.scores = scorer.Score(b.impact)

	blender := NewPredictorBlender(b.opts.predictor, b.cfg)
	warns, err := blender.Blend(b.ctx, b.catalog, b.impact, b.scores)
	if err != nil {
		return nil, err
	}
	b.warns.extend(warns)
	return b, nil
}

// Prioritize orders the relevant tests and applies the time budget.
func (b *PlanBuilder) Prioritize() *PlanBuilder {
	b.plan = NewPrioritizer(b.catalog, b.snapshot, b.cfg).Prioritize(b.impact, b.scores)
	b.warns.extend(b.plan.Warnings)
	return b
}

// Optimize builds the final regression suite.
func (b *PlanBuilder) Optimize() *PlanBuilder {
	b.suite = NewSuiteOptimizer(b.catalog, b.cfg).Optimize(b.impact, b.scores, b.plan)
	b.warns.extend(b.suite.Warnings)
	b.suite.Warnings = b.warns.items()
	logWarnings(b.suite.Warnings)
	return b
}

// BuildResult assembles the final result.
func (b *PlanBuilder) BuildResult() *PlanBuilder {
	b.result = &schema.PlanResult{
		Suite:   *b.suite,
		Impact:  *b.impact,
		Scores:  b.scores,
		Ordered: b.plan.Ordered,
	}
	return b
}

// GetResult returns the plan result. It is nil until BuildResult ran.
func (b *PlanBuilder) GetResult() *schema.PlanResult {
	return b.result
}

// fileLineCounter sizes files from the working tree rooted at root.
func fileLineCounter(root string) ingest.LineCounter {
	if root == "" {
		root = "."
	}
	return func(_ context.Context, path string) (int, error) {
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
		if err != nil {
			return 0, err
		}
		return bytes.Count(content, []byte{'\n'}), nil
	}
}

// readInput reads a whole file, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// isDegraded reports whether the plan was built with missing inputs.
// Predictor fallbacks do not count: the default predictor always falls back.
func isDegraded(suite *schema.RegressionSuite, impact *schema.ImpactAnalysis) bool {
	return impact.Degraded ||
		suite.HasWarning(schema.WarnDataUnavailable) ||
		suite.HasWarning(schema.WarnUnmappedFile)
}

// planStatus labels a finished plan for metrics.
func planStatus(suite *schema.RegressionSuite, impact *schema.ImpactAnalysis) string {
	switch {
	case suite.BudgetExceeded:
		return "budget_exceeded"
	case isDegraded(suite, impact):
		return "degraded"
	default:
		return "ok"
	}
}

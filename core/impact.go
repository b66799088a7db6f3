package core

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/retest/core/algo"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// ImpactAnalyzer maps a code change onto components and walks their
// dependents to find everything the change can reach.
type ImpactAnalyzer struct {
	catalog       *schema.Catalog
	components    map[string]schema.Component
	mapper        contract.ComponentMapper
	weights       map[schema.BreakdownKey]float64
	maxDepth      int
	mapperTimeout time.Duration
	cond          *algo.Condensation
	nodes         map[string]schema.GraphNode // condensed node ID to node
	dependents    *algo.Digraph               // condensed graph, edges from a node to its dependents
}

// NewImpactAnalyzer builds the component graph of a catalog once so that it
// can be reused across changes.
func NewImpactAnalyzer(catalog *schema.Catalog, mapper contract.ComponentMapper, cfg *contract.Config) *ImpactAnalyzer {
	g := algo.NewDigraph()
	for _, c := range catalog.Components {
		g.AddNode(c.ID)
		for _, dep := range c.DependsOn {
			g.AddEdge(c.ID, dep)
		}
	}
	cond := g.Condense(func(i int, _ []string) string {
		return fmt.Sprintf("cycle-%d", i)
	})

	components := catalog.ComponentIndex()
	nodes := make(map[string]schema.GraphNode, len(cond.Members))
	for id, members := range cond.Members {
		if len(members) > 1 {
			nodes[id] = schema.CollapsedComponentGroup{ID: id, Members: members}
		} else {
			comp, ok := components[members[0]]
			if !ok {
				comp = schema.Component{ID: members[0]}
			}
			nodes[id] = schema.AtomicComponent{Component: comp}
		}
	}

	return &ImpactAnalyzer{
		catalog:       catalog,
		components:    components,
		mapper:        mapper,
		weights:       cfg.Weights(schema.RiskTable),
		maxDepth:      cfg.MaxDepth,
		mapperTimeout: cfg.MapperTimeout,
		cond:          cond,
		nodes:         nodes,
		dependents:    cond.Graph.Reverse(),
	}
}

// Nodes returns the condensed component graph ordered by node ID. Every
// dependency cycle appears as one CollapsedComponentGroup.
func (a *ImpactAnalyzer) Nodes() []schema.GraphNode {
	nodes := make([]schema.GraphNode, 0, len(a.nodes))
	for _, id := range schema.SortedKeys(a.nodes) {
		nodes = append(nodes, a.nodes[id])
	}
	return nodes
}

// fileImpact is the raw line accounting of one component.
type fileImpact struct {
	changed int
	lines   int
}

// Analyze computes the impact of a change. Mapper failures degrade the
// result instead of failing it; only cancellation is returned as an error.
func (a *ImpactAnalyzer) Analyze(ctx context.Context, change schema.CodeChange) (*schema.ImpactAnalysis, error) {
	var warns warnings
	degraded := false

	direct := make(map[string]*fileImpact)
	fallback := make(map[string]float64) // component to the strongest churn of its triggering files

	files := append([]schema.FileChange(nil), change.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		owners, failed := a.resolveFile(ctx, f, &warns)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if failed {
			degraded = true
		}
		if len(owners) > 0 {
			changed, lines := f.ChangedLines(), max(f.FileLines, 1)
			if f.IsNew || f.IsDeleted {
				lines = max(changed, f.FileLines, 1)
				changed = lines
			}
			for _, id := range owners {
				fi := direct[id]
				if fi == nil {
					fi = &fileImpact{}
					direct[id] = fi
				}
				fi.changed += changed
				fi.lines += lines
			}
			continue
		}

		nearest := a.nearestComponents(ctx, f.Path)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		degraded = true
		warns.add(schema.WarnUnmappedFile,
			fmt.Sprintf("%s is not owned by any component; assuming %s", f.Path, strings.Join(nearest, ", ")),
			f.Path)
		for _, id := range nearest {
			fallback[id] = max(fallback[id], f.Churn())
		}
	}

	churn := make(map[string]float64, len(direct)+len(fallback))
	for id, fi := range direct {
		churn[id] = schema.Clamp01(float64(fi.changed) / float64(max(fi.lines, 1)))
	}
	for id, c := range fallback {
		if _, ok := direct[id]; !ok {
			churn[id] = c
		}
	}

	var groups []schema.CollapsedComponentGroup
	for _, id := range a.cond.Cycles {
		group, ok := a.nodes[id].(schema.CollapsedComponentGroup)
		if !ok {
			continue
		}
		groups = append(groups, group)
		warns.add(schema.WarnDependencyCycle,
			fmt.Sprintf("components %s form a dependency cycle and are treated as %s", strings.Join(group.Members, ", "), id),
			group.Members...)
	}

	// Depth and attenuated churn per condensed node
	modifiedIDs := schema.SortedKeys(churn)
	starts := make([]string, 0, len(modifiedIDs))
	for _, id := range modifiedIDs {
		starts = append(starts, a.cond.NodeOf[id])
	}
	depth := a.dependents.BoundedBFS(starts, a.maxDepth)

	strongest := make(map[string]float64, len(depth))
	for _, id := range modifiedIDs {
		for node := range a.dependents.BoundedBFS([]string{a.cond.NodeOf[id]}, a.maxDepth) {
			strongest[node] = max(strongest[node], churn[id])
		}
	}

	result := &schema.ImpactAnalysis{
		ChangeID:         change.ID,
		Modified:         []schema.ComponentImpact{},
		Affected:         []schema.ComponentImpact{},
		AffectedFeatures: []string{},
		Groups:           groups,
	}

	var features []string
	for _, node := range schema.SortedKeys(depth) {
		d := depth[node]
		groupID := ""
		if _, collapsed := a.nodes[node].(schema.CollapsedComponentGroup); collapsed {
			groupID = node
		}
		for _, id := range a.nodes[node].MemberIDs() {
			comp := a.components[id]
			features = append(features, comp.Features...)

			impact := schema.ComponentImpact{ComponentID: id, Depth: d, GroupID: groupID}
			c, modified := churn[id]
			if !modified {
				c = strongest[node] * math.Pow(0.5, float64(d))
			}
			impact.Churn = c
			_, impact.Fallback = fallback[id]
			if _, ok := direct[id]; ok {
				impact.Fallback = false
			}
			a.scoreRisk(comp, &impact)

			if modified {
				result.Modified = append(result.Modified, impact)
			} else {
				result.Affected = append(result.Affected, impact)
			}
		}
	}
	sort.Slice(result.Modified, func(i, j int) bool { return result.Modified[i].ComponentID < result.Modified[j].ComponentID })
	sort.Slice(result.Affected, func(i, j int) bool {
		if result.Affected[i].Depth != result.Affected[j].Depth {
			return result.Affected[i].Depth < result.Affected[j].Depth
		}
		return result.Affected[i].ComponentID < result.Affected[j].ComponentID
	})

	result.AffectedFeatures = schema.UniqueSorted(features)
	result.Degraded = degraded
	result.Warnings = warns.items()
	return result, nil
}

// scoreRisk fills in the risk of one impacted component. Components without
// defect history get a neutral risk.
func (a *ImpactAnalyzer) scoreRisk(comp schema.Component, impact *schema.ComponentImpact) {
	factors := map[schema.BreakdownKey]float64{
		schema.BreakdownChurn:       impact.Churn,
		schema.BreakdownCriticality: comp.CriticalityWeight(),
	}
	if comp.HasHistory() {
		factors[schema.BreakdownDefectDensity] = *comp.DefectDensity
	}
	total, breakdown := algo.WeightedSum(schema.FactorKeys(schema.RiskTable), factors, a.weights)
	impact.RiskBreakdown = breakdown

	if !comp.HasHistory() {
		impact.Risk = 0.5
		impact.NewComponent = true
		return
	}
	impact.Risk = schema.Clamp01(total)
}

// resolveFile maps a file (and its rename source) onto known components. The
// second result reports whether the mapper failed for any of its paths.
func (a *ImpactAnalyzer) resolveFile(ctx context.Context, f schema.FileChange, warns *warnings) ([]string, bool) {
	paths := []string{f.Path}
	if f.OldPath != "" && f.OldPath != f.Path {
		paths = append(paths, f.OldPath)
	}

	var owners []string
	failed := false
	for _, p := range paths {
		ids, err := callWithTimeout(ctx, a.mapperTimeout, func(ctx context.Context) ([]string, error) {
			return a.mapper.Resolve(ctx, p)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, false
			}
			failed = true
			warns.add(schema.WarnDataUnavailable, fmt.Sprintf("component mapper failed for %s: %v", p, err), p)
			continue
		}
		for _, id := range ids {
			if _, ok := a.components[id]; ok {
				owners = append(owners, id)
			}
		}
	}
	return schema.UniqueSorted(owners), failed
}

// nearestComponents walks up the directory tree of an unmapped path and
// returns the components under the closest ancestor that has any. The root
// covers every component.
func (a *ImpactAnalyzer) nearestComponents(ctx context.Context, p string) []string {
	dir := path.Dir(p)
	for {
		prefix := dir
		if prefix == "." || prefix == "/" {
			prefix = ""
		}
		ids, err := callWithTimeout(ctx, a.mapperTimeout, func(ctx context.Context) ([]string, error) {
			return a.mapper.ComponentsUnder(ctx, prefix)
		})
		if err == nil {
			var known []string
			for _, id := range ids {
				if _, ok := a.components[id]; ok {
					known = append(known, id)
				}
			}
			if len(known) > 0 {
				return schema.UniqueSorted(known)
			}
		} else if ctx.Err() != nil {
			return nil
		}
		if prefix == "" {
			break
		}
		dir = path.Dir(dir)
	}

	all := make([]string, 0, len(a.catalog.Components))
	for _, c := range a.catalog.Components {
		all = append(all, c.ID)
	}
	return schema.UniqueSorted(all)
}

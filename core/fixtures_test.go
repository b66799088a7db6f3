package core

import (
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// paymentsDiff changes one line of a four-line file owned by payments.
const paymentsDiff = `diff --git a/src/payments/charge.go b/src/payments/charge.go
index 1111111..2222222 100644
--- a/src/payments/charge.go
+++ b/src/payments/charge.go
@@ -1,3 +1,4 @@
 package payments
+func Refund() {}
 func Charge() {}
 // end
`

func ptr(v float64) *float64 { return &v }

func testConfig() *contract.Config {
	return &contract.Config{
		CatalogPath:            "retest.yaml",
		RepoPath:               "testdata-missing",
		CoverageTarget:         0.8,
		MaxDepth:               3,
		Workers:                2,
		RedundancyMargin:       0.1,
		PredictorTimeout:       time.Second,
		PredictorMinConfidence: 0.5,
		MapperTimeout:          time.Second,
		ObsoleteThreshold:      50,
		FlakyThreshold:         0.2,
		Precision:              2,
		Output:                 schema.JSONOut,
	}
}

// shopCatalog has three independent components with one test each.
func shopCatalog() *schema.Catalog {
	return &schema.Catalog{
		Components: []schema.Component{
			{ID: "auth", Paths: []string{"src/auth"}},
			{ID: "payments", Paths: []string{"src/payments"}},
			{ID: "search", Paths: []string{"src/search"}},
		},
		Tests: []schema.TestCase{
			{ID: "test_auth", Covers: []string{"auth"}, Duration: time.Minute},
			{ID: "test_pay", Covers: []string{"payments"}, Duration: time.Minute},
			{ID: "test_search", Covers: []string{"search"}, Duration: time.Minute},
		},
	}
}

// layeredCatalog has a dependency chain, a cycle and feature tags.
//
//	web -> api -> core <- ledger <-> billing
func layeredCatalog() *schema.Catalog {
	return &schema.Catalog{
		Components: []schema.Component{
			{ID: "api", Paths: []string{"src/api"}, DependsOn: []string{"core"}, Features: []string{"checkout"}},
			{ID: "billing", Paths: []string{"src/billing"}, DependsOn: []string{"ledger"}, Criticality: schema.CriticalCriticality, DefectDensity: ptr(0.3)},
			{ID: "core", Paths: []string{"src/core"}, Criticality: schema.HighCriticality, DefectDensity: ptr(0.4)},
			{ID: "ledger", Paths: []string{"src/ledger"}, DependsOn: []string{"core", "billing"}},
			{ID: "web", Paths: []string{"src/web"}, DependsOn: []string{"api"}, Features: []string{"storefront"}},
		},
		Tests: []schema.TestCase{
			{ID: "test_api", Covers: []string{"api"}, Features: []string{"checkout"}, Duration: 2 * time.Minute},
			{ID: "test_core", Covers: []string{"core"}, Duration: time.Minute},
			{ID: "test_ledger", Covers: []string{"ledger", "billing"}, Duration: 3 * time.Minute},
			{ID: "test_web", Covers: []string{"web"}, Features: []string{"storefront"}, Duration: 4 * time.Minute},
		},
	}
}

func ordered(tests ...schema.PrioritizedTest) *schema.PrioritizedPlan {
	return &schema.PrioritizedPlan{Ordered: tests, Dropped: []string{}}
}

func impactOn(ids ...string) *schema.ImpactAnalysis {
	ia := &schema.ImpactAnalysis{ChangeID: "c1", Affected: []schema.ComponentImpact{}, AffectedFeatures: []string{}}
	for _, id := range ids {
		ia.Modified = append(ia.Modified, schema.ComponentImpact{ComponentID: id, Risk: 0.5})
	}
	return ia
}

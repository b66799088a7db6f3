package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapper(t *testing.T) *CatalogMapper {
	t.Helper()
	catalog := &schema.Catalog{Components: []schema.Component{
		{ID: "payments", Paths: []string{"src/payments"}},
		{ID: "payments-api", Paths: []string{"src/payments/api"}},
		{ID: "shared", Paths: []string{"src/payments/api"}},
		{ID: "auth", Paths: []string{"src/auth", "lib/token.go"}},
	}}
	return NewCatalogMapper(catalog)
}

func TestCatalogMapperResolve(t *testing.T) {
	m := testMapper(t)
	ctx := context.Background()

	tests := []struct {
		path string
		want []string
	}{
		{"src/payments/charge.go", []string{"payments"}},
		{"src/payments/api/handler.go", []string{"payments-api", "shared"}},
		{"lib/token.go", []string{"auth"}},
		{"src/paymentsx/file.go", []string{}},
		{"docs/readme.md", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := m.Resolve(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalogMapperComponentsUnder(t *testing.T) {
	m := testMapper(t)
	ctx := context.Background()

	got, err := m.ComponentsUnder(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, []string{"auth", "payments", "payments-api", "shared"}, got)

	got, err = m.ComponentsUnder(ctx, "src/payments/")
	require.NoError(t, err)
	assert.Equal(t, []string{"payments", "payments-api", "shared"}, got)

	got, err = m.ComponentsUnder(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = m.ComponentsUnder(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCatalogMapperCancelled(t *testing.T) {
	m := testMapper(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Resolve(ctx, "src/payments/a.go")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalogMapperFromDecodedCatalog(t *testing.T) {
	catalog, err := DecodeCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	got, err := NewCatalogMapper(catalog).Resolve(context.Background(), "src/checkout/cart.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkout"}, got)
}

package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/huangsam/retest/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/src/payments/charge.go b/src/payments/charge.go
index 1111111..2222222 100644
--- a/src/payments/charge.go
+++ b/src/payments/charge.go
@@ -1,3 +1,4 @@
 package payments
-func Charge() {}
+func Charge() error { return nil }
+func Refund() {}
 // end
diff --git a/src/auth/new.go b/src/auth/new.go
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/src/auth/new.go
@@ -0,0 +1,2 @@
+package auth
+func New() {}
`

func TestParseUnifiedDiff(t *testing.T) {
	change, err := ParseUnifiedDiff(context.Background(), "c1", []byte(sampleDiff), nil)
	require.NoError(t, err)

	assert.Equal(t, "c1", change.ID)
	require.Len(t, change.Files, 2)

	charge := change.Files[0]
	assert.Equal(t, "src/payments/charge.go", charge.Path)
	assert.Equal(t, 2, charge.Added)
	assert.Equal(t, 1, charge.Deleted)
	assert.Equal(t, 4, charge.FileLines)
	assert.False(t, charge.IsNew)
	require.Len(t, charge.Hunks, 1)
	assert.Equal(t, 1, charge.Hunks[0].OrigStart)
	assert.Equal(t, 4, charge.Hunks[0].NewLines)
	assert.InDelta(t, 0.75, charge.Churn(), 1e-9)

	added := change.Files[1]
	assert.Equal(t, "src/auth/new.go", added.Path)
	assert.True(t, added.IsNew)
	assert.Equal(t, 2, added.Added)
	assert.Equal(t, 2, added.FileLines)
	assert.Equal(t, 1.0, added.Churn())
}

func TestParseUnifiedDiffLineCounter(t *testing.T) {
	var asked []string
	counter := func(_ context.Context, path string) (int, error) {
		asked = append(asked, path)
		return 100, nil
	}
	change, err := ParseUnifiedDiff(context.Background(), "c1", []byte(sampleDiff), counter)
	require.NoError(t, err)
	assert.Equal(t, 100, change.Files[0].FileLines)
	assert.Equal(t, []string{"src/payments/charge.go"}, asked)

	failing := func(context.Context, string) (int, error) { return 0, errors.New("gone") }
	change, err = ParseUnifiedDiff(context.Background(), "c1", []byte(sampleDiff), failing)
	require.NoError(t, err)
	assert.Equal(t, 4, change.Files[0].FileLines)
}

func TestParseUnifiedDiffDerivesID(t *testing.T) {
	a, err := ParseUnifiedDiff(context.Background(), "", []byte(sampleDiff), nil)
	require.NoError(t, err)
	b, err := ParseUnifiedDiff(context.Background(), "", []byte(sampleDiff), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, DeriveChangeID([]byte(sampleDiff)), a.ID)
}

func TestParseUnifiedDiffRejectsMalformed(t *testing.T) {
	for name, data := range map[string]string{
		"empty":      "",
		"whitespace": "  \n\t",
		"not a diff": "hello world\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseUnifiedDiff(context.Background(), "c1", []byte(data), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, contract.ErrInvalidChange)
			var ce *contract.ChangeError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestChangeFromGit(t *testing.T) {
	ctx := context.Background()
	client := &contract.MockGitClient{}
	client.On("GetRepoHash", ctx, "/repo", "HEAD").Return("abc123", nil)
	client.On("GetDiff", ctx, "/repo", "main", "HEAD").Return([]byte(sampleDiff), nil)
	client.On("GetFileLineCount", mock.Anything, "/repo", "HEAD", "src/payments/charge.go").Return(40, nil)

	change, err := ChangeFromGit(ctx, client, "/repo", "main", "HEAD", "")
	require.NoError(t, err)
	assert.Equal(t, "abc123", change.ID)
	assert.Equal(t, 40, change.Files[0].FileLines)
	client.AssertExpectations(t)
}

func TestChangeFromGitDiffFailure(t *testing.T) {
	ctx := context.Background()
	client := &contract.MockGitClient{}
	client.On("GetDiff", ctx, "/repo", "main", "HEAD").Return(nil, errors.New("bad ref"))

	_, err := ChangeFromGit(ctx, client, "/repo", "main", "HEAD", "c9")
	assert.ErrorIs(t, err, contract.ErrInvalidChange)
}

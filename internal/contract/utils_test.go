package contract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
)

func TestGetPlainLabel(t *testing.T) {
	assert.Equal(t, CriticalValue, GetPlainLabel(schema.CriticalBucket))
	assert.Equal(t, ImportantValue, GetPlainLabel(schema.ImportantBucket))
	assert.Equal(t, OptionalValue, GetPlainLabel(schema.OptionalBucket))
	assert.Equal(t, ExcludedValue, GetPlainLabel(schema.ExcludedBucket))
	assert.Equal(t, ExcludedValue, GetPlainLabel("unknown"))
}

func TestGetColorLabel(t *testing.T) {
	for _, b := range []schema.Bucket{schema.CriticalBucket, schema.ImportantBucket, schema.OptionalBucket, schema.ExcludedBucket} {
		assert.Contains(t, GetColorLabel(b), GetPlainLabel(b))
	}
}

func TestNormalizeRepoPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"src/payments/charge.go", "src/payments/charge.go", false},
		{"./src/a.go", "src/a.go", false},
		{"src//a/../b.go", "src/b.go", false},
		{`src\win\a.go`, "src/win/a.go", false},
		{"/abs/a.go", "", true},
		{"../outside.go", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeRepoPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "short", TruncatePath("short", 10))
	assert.Equal(t, "...ef", TruncatePath("abcdef", 5))
	assert.Equal(t, "abcdef", TruncatePath("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("perhaps")
	assert.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")

	changeErr := &ChangeError{ChangeID: "c1", Reason: "no files", Err: cause}
	wrapped := fmt.Errorf("plan: %w", changeErr)
	assert.ErrorIs(t, wrapped, ErrInvalidChange)
	assert.ErrorIs(t, wrapped, cause)
	var ce *ChangeError
	assert.ErrorAs(t, wrapped, &ce)
	assert.Contains(t, changeErr.Error(), "no files")

	recErr := &RecordError{Index: 3, TestID: "t1", Err: cause}
	assert.ErrorIs(t, recErr, ErrCorruptExecutionRecord)
	assert.Contains(t, recErr.Error(), "record 3")
	assert.NotErrorIs(t, recErr, ErrInvalidChange)
}

func TestSetLogLevel(t *testing.T) {
	assert.NoError(t, SetLogLevel("debug"))
	assert.NoError(t, SetLogLevel(DefaultLogLevel))
	assert.Error(t, SetLogLevel("verbose"))
	assert.NotNil(t, Logger())
}

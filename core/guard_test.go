package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
)

func TestCallWithTimeout(t *testing.T) {
	v, err := callWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = callWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestCallWithTimeoutAbandonsStuckCalls(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := callWithTimeout(context.Background(), 10*time.Millisecond, func(context.Context) (string, error) {
		<-release
		return "late", nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWarnings(t *testing.T) {
	var w warnings
	assert.NotNil(t, w.items())
	assert.Empty(t, w.items())

	w.add(schema.WarnUnmappedFile, "x", "b", "a", "b")
	w.extend([]schema.Warning{{Code: schema.WarnBudgetExceeded}})
	items := w.items()
	assert.Len(t, items, 2)
	assert.Equal(t, []string{"a", "b"}, items[0].Subjects)
	assert.Nil(t, items[1].Subjects)
}

func TestWarningErr(t *testing.T) {
	tests := []struct {
		code     schema.WarningCode
		sentinel error
	}{
		{schema.WarnUnmappedFile, contract.ErrDataUnavailable},
		{schema.WarnPredictorUnavailable, contract.ErrPredictorUnavailable},
		{schema.WarnDependencyCycle, contract.ErrDependencyCycle},
		{schema.WarnTestDependencyCycle, contract.ErrDependencyCycle},
		{schema.WarnBudgetExceeded, contract.ErrBudgetExceeded},
		{schema.WarnCorruptRecord, contract.ErrCorruptExecutionRecord},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := warningErr(schema.Warning{Code: tt.code, Message: "details"})
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), "details")
		})
	}
	assert.NoError(t, warningErr(schema.Warning{Code: schema.WarnCapacityExceeded}))
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "error=1, timeout=2", formatCounts(map[string]int{"timeout": 2, "error": 1}))
	assert.Empty(t, formatCounts(nil))
}

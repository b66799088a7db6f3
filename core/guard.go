package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// callWithTimeout runs fn under a deadline and returns as soon as either fn
// finishes or the deadline passes. A call that ignores its context is
// abandoned; its goroutine drains into a buffered channel.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// warnings collects degraded-mode conditions in emission order.
type warnings struct {
	list []schema.Warning
}

func (w *warnings) add(code schema.WarningCode, msg string, subjects ...string) {
	var subs []string
	if len(subjects) > 0 {
		subs = schema.UniqueSorted(subjects)
	}
	w.list = append(w.list, schema.Warning{Code: code, Message: msg, Subjects: subs})
}

func (w *warnings) extend(ws []schema.Warning) {
	w.list = append(w.list, ws...)
}

func (w *warnings) items() []schema.Warning {
	if w.list == nil {
		return []schema.Warning{}
	}
	return w.list
}

// formatCounts renders reason counts as "a=1, b=2" in key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

// warningErr maps a warning onto the error taxonomy. Codes without a
// sentinel return nil.
func warningErr(w schema.Warning) error {
	var sentinel error
	switch w.Code {
	case schema.WarnDataUnavailable, schema.WarnUnmappedFile:
		sentinel = contract.ErrDataUnavailable
	case schema.WarnPredictorUnavailable:
		sentinel = contract.ErrPredictorUnavailable
	case schema.WarnDependencyCycle, schema.WarnTestDependencyCycle:
		sentinel = contract.ErrDependencyCycle
	case schema.WarnBudgetExceeded:
		sentinel = contract.ErrBudgetExceeded
	case schema.WarnCorruptRecord:
		sentinel = contract.ErrCorruptExecutionRecord
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", sentinel, w.Message)
}

// logWarnings mirrors output warnings into the log.
func logWarnings(ws []schema.Warning) {
	for _, w := range ws {
		err := warningErr(w)
		if err == nil {
			err = errors.New(w.Message)
		}
		contract.LogWarn(fmt.Sprintf("Degraded plan (%s)", w.Code), err)
	}
}

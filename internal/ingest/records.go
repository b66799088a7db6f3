package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// recordNamespace seeds deterministic execution record IDs.
var recordNamespace = uuid.MustParse("b3d8c1a4-5f62-4e7a-8c9d-0e1f2a3b4c5d")

var errZeroTimestamp = errors.New("recorded_at is missing")

// ValidateRecord reports whether an execution record is well formed.
func ValidateRecord(rec schema.ExecutionRecord) error {
	if err := validate.Struct(rec); err != nil {
		return err
	}
	if rec.RecordedAt.IsZero() {
		return errZeroTimestamp
	}
	return nil
}

// RecordID returns the deterministic identifier of an execution, so that
// re-ingesting the same result is a no-op.
func RecordID(rec schema.ExecutionRecord) string {
	key := strings.Join([]string{
		rec.TestID,
		rec.RunID,
		rec.ChangeID,
		string(rec.Outcome),
		rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	}, "\x1f")
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

// DecodeExecutionRecords reads a JSON array of execution results. Entries that
// fail to decode or validate are returned as RecordErrors and skipped; only a
// malformed top-level document is fatal. defaultRunID fills missing run IDs.
func DecodeExecutionRecords(r io.Reader, defaultRunID string) ([]schema.ExecutionRecord, []*contract.RecordError, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("results must be a JSON array: %w", err)
	}

	records := make([]schema.ExecutionRecord, 0, len(raw))
	var corrupt []*contract.RecordError
	for i, msg := range raw {
		var rec schema.ExecutionRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			corrupt = append(corrupt, &contract.RecordError{Index: i, Err: err})
			continue
		}
		rec.Outcome = schema.Outcome(strings.ToLower(string(rec.Outcome)))
		if rec.RunID == "" {
			rec.RunID = defaultRunID
		}
		if err := ValidateRecord(rec); err != nil {
			corrupt = append(corrupt, &contract.RecordError{Index: i, TestID: rec.TestID, Err: err})
			continue
		}
		rec.Seq = 0
		rec.Components = schema.UniqueSorted(rec.Components)
		if rec.RecordID == "" {
			rec.RecordID = RecordID(rec)
		}
		records = append(records, rec)
	}
	return records, corrupt, nil
}

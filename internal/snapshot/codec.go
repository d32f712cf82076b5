package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/recipe"
)

// Encode serializes a snapshot for storage. The content hash must already be
// set (Assemble does this); Encode refuses to persist an unhashed snapshot
// so corruption detection cannot be skipped by accident.
func Encode(s *recipe.Snapshot) ([]byte, error) {
	if s.SchemaVersion == "" {
		return nil, fmt.Errorf("encode snapshot: missing schema version")
	}
	if s.Hash == "" {
		return nil, fmt.Errorf("encode snapshot %s: missing content hash", s.ID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", s.ID, err)
	}
	return data, nil
}

// envelope probes only the schema version so unknown shapes can be rejected
// before a full decode.
type envelope struct {
	SchemaVersion string `json:"schema_version"`
}

// Decode parses a stored snapshot. An unknown schema version is a
// SNAPSHOT_VERSION error so older shapes get migrated explicitly instead
// of being cast through, and the content hash is verified against the
// decoded record.
func Decode(data []byte) (*recipe.Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot envelope: %w", err)
	}
	if env.SchemaVersion != recipe.SnapshotSchemaVersion {
		return nil, &engine.Error{
			Code:    engine.ErrCodeSnapshotVersion,
			Message: fmt.Sprintf("unknown snapshot schema version %q (supported: %q)", env.SchemaVersion, recipe.SnapshotSchemaVersion),
		}
	}

	var snap recipe.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := recipe.VerifySnapshotHash(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainSnapshot is the domain prefix for snapshot content hashes.
// The version suffix enables future algorithm migration.
const DomainSnapshot = "ovenledger/snapshot/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content hash of a snapshot.
// The Hash field itself is excluded: the snapshot is serialized with Hash
// empty, round-tripped to the generic JSON shape, and canonically marshaled.
func SnapshotHash(s *Snapshot) (string, error) {
	unhashed := *s
	unhashed.Hash = ""

	raw, err := json.Marshal(&unhashed)
	if err != nil {
		return "", fmt.Errorf("snapshot hash: marshal: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("snapshot hash: round trip: %w", err)
	}

	canonical, err := MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("snapshot hash: canonical marshal: %w", err)
	}

	return hashWithDomain(DomainSnapshot, canonical), nil
}

// VerifySnapshotHash recomputes the content hash and compares it to the
// stored one. Snapshots persisted without a hash pass verification.
func VerifySnapshotHash(s *Snapshot) error {
	if s.Hash == "" {
		return nil
	}
	want, err := SnapshotHash(s)
	if err != nil {
		return err
	}
	if want != s.Hash {
		return fmt.Errorf("snapshot %s: content hash mismatch", s.ID)
	}
	return nil
}

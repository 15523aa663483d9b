package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"sales-data-guard/internal/store"
)

// Fingerprint computes the deterministic digest of one table's records.
//
// Records are sorted by primary key first, so the digest is independent of
// retrieval order. Each record is hashed over its canonical serialization
// (volatile columns excluded), and the per-record hashes are folded into a
// single table-level digest with an order-sensitive hash chain seeded by the
// table name. Any single-field change in any record changes the result.
func Fingerprint(spec store.TableSpec, records []store.Record) (string, error) {
	sorted := make([]store.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	chain := hashString(spec.Name)
	for _, record := range sorted {
		canonical, err := record.CanonicalJSON(spec.Volatile)
		if err != nil {
			return "", fmt.Errorf("failed to serialize record %s of %s: %w", record.ID, spec.Name, err)
		}
		recordHash := hashBytes(canonical)
		chain = hashString(chain + recordHash)
	}

	return chain, nil
}

// FingerprintTables computes the digest of every protected table present in
// the record set.
func FingerprintTables(tables map[string][]store.Record) (map[string]string, error) {
	fingerprints := make(map[string]string, len(tables))
	for _, spec := range store.Tables {
		records, ok := tables[spec.Name]
		if !ok {
			continue
		}
		digest, err := Fingerprint(spec, records)
		if err != nil {
			return nil, err
		}
		fingerprints[spec.Name] = digest
	}
	return fingerprints, nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashString(s string) string {
	return hashBytes([]byte(s))
}

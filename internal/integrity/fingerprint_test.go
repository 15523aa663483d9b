package integrity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-data-guard/internal/store"
)

func salesSpec(t *testing.T) store.TableSpec {
	t.Helper()
	spec, ok := store.Spec("sales")
	require.True(t, ok)
	return spec
}

func sampleRecords() []store.Record {
	return []store.Record{
		{ID: "s-001", Fields: map[string]any{"id": "s-001", "customer_id": "c-001", "total": 129.90, "updated_at": "2026-08-01T10:00:00Z"}},
		{ID: "s-002", Fields: map[string]any{"id": "s-002", "customer_id": "c-002", "total": 54.00, "updated_at": "2026-08-02T11:00:00Z"}},
		{ID: "s-003", Fields: map[string]any{"id": "s-003", "customer_id": "c-001", "total": 7.25, "updated_at": "2026-08-03T12:00:00Z"}},
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	spec := salesSpec(t)
	records := sampleRecords()

	first, err := Fingerprint(spec, records)
	require.NoError(t, err)
	second, err := Fingerprint(spec, records)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	spec := salesSpec(t)
	records := sampleRecords()

	want, err := Fingerprint(spec, records)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]store.Record, len(records))
		copy(shuffled, records)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := Fingerprint(spec, shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFingerprint_SingleFieldChangeAltersDigest(t *testing.T) {
	spec := salesSpec(t)
	records := sampleRecords()

	before, err := Fingerprint(spec, records)
	require.NoError(t, err)

	records[1].Fields["total"] = 54.01
	after, err := Fingerprint(spec, records)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestFingerprint_VolatileFieldExcluded(t *testing.T) {
	spec := salesSpec(t)
	records := sampleRecords()

	before, err := Fingerprint(spec, records)
	require.NoError(t, err)

	records[0].Fields["updated_at"] = "2027-01-01T00:00:00Z"
	after, err := Fingerprint(spec, records)
	require.NoError(t, err)

	assert.Equal(t, before, after, "volatile column must not influence the digest")
}

func TestFingerprint_EmptyTablesDifferByName(t *testing.T) {
	salesDigest, err := Fingerprint(store.TableSpec{Name: "sales"}, nil)
	require.NoError(t, err)
	customersDigest, err := Fingerprint(store.TableSpec{Name: "customers"}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, salesDigest)
	assert.NotEqual(t, salesDigest, customersDigest)
}

func TestFingerprintTables_CoversProtectedTables(t *testing.T) {
	tables := map[string][]store.Record{
		"sales":     sampleRecords(),
		"customers": nil,
	}

	fingerprints, err := FingerprintTables(tables)
	require.NoError(t, err)

	assert.Len(t, fingerprints, 2)
	assert.Contains(t, fingerprints, "sales")
	assert.Contains(t, fingerprints, "customers")
	assert.NotContains(t, fingerprints, "settings")
}

package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-data-guard/internal/store"
)

func record(id string, fields map[string]any) store.Record {
	return store.Record{ID: id, Fields: fields}
}

func TestCheckSyntheticEmail(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		wantClean bool
	}{
		{"real address", "anna.keller@acme-shop.de", true},
		{"example.com", "someone@example.com", false},
		{"mailinator", "temp@mailinator.com", false},
		{"uppercase domain", "a@TEST.COM", false},
		{"subdomain of placeholder not flagged", "a@mail.example.com.customer.de", true},
		{"no at sign", "not-an-email", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := checkSyntheticEmail("customers", record("c-1", map[string]any{"email": tt.email}))
			if tt.wantClean {
				assert.Nil(t, v)
			} else {
				require.NotNil(t, v)
				assert.Equal(t, "synthetic_email", v.Rule)
				assert.Equal(t, "c-1", v.RecordID)
			}
		})
	}
}

func TestCheckSyntheticPhone(t *testing.T) {
	tests := []struct {
		name      string
		phone     string
		wantClean bool
	}{
		{"real number", "+49 171 2938475", true},
		{"ascending sequence", "1234567890", false},
		{"descending sequence", "9876543210", false},
		{"repeated digits", "1111111111", false},
		{"formatted sequence", "(123) 456-7890", false},
		{"too short to judge", "123456", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := checkSyntheticPhone("customers", record("c-1", map[string]any{"phone": tt.phone}))
			if tt.wantClean {
				assert.Nil(t, v)
			} else {
				require.NotNil(t, v)
				assert.Equal(t, "synthetic_phone", v.Rule)
			}
		})
	}
}

func TestCheckSyntheticName(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]any
		wantClean bool
	}{
		{"real name", map[string]any{"first_name": "Anna", "last_name": "Keller"}, true},
		{"test marker", map[string]any{"first_name": "Test"}, false},
		{"fake marker embedded", map[string]any{"last_name": "McFakerson"}, false},
		{"case insensitive", map[string]any{"name": "TESTUSER"}, false},
		{"table_name field ignored", map[string]any{"table_name": "test_fixtures"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := checkSyntheticName("customers", record("c-1", tt.fields))
			if tt.wantClean {
				assert.Nil(t, v)
			} else {
				require.NotNil(t, v)
				assert.Equal(t, "synthetic_name", v.Rule)
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	validator := NewValidator()

	tables := map[string][]store.Record{
		"customers": {
			record("c-1", map[string]any{"email": "anna@acme-shop.de", "phone": "+49 171 2938475", "first_name": "Anna"}),
			record("c-2", map[string]any{"email": "bob@example.com", "phone": "1234567890", "first_name": "Test"}),
		},
		"sales": {
			record("s-1", map[string]any{"total": 10.0}),
		},
	}

	report := validator.Validate(tables)

	assert.False(t, report.IsClean)
	// c-2 trips all three rules.
	assert.Len(t, report.Violations, 3)
	for _, v := range report.Violations {
		assert.Equal(t, "customers", v.Table)
		assert.Equal(t, "c-2", v.RecordID)
	}
}

func TestValidator_Validate_CleanStore(t *testing.T) {
	validator := NewValidator()

	report := validator.Validate(map[string][]store.Record{
		"customers": {record("c-1", map[string]any{"email": "anna@acme-shop.de"})},
		"sales":     nil,
	})

	assert.True(t, report.IsClean)
	assert.Empty(t, report.Violations)
}

func TestValidator_Validate_DeterministicOrder(t *testing.T) {
	validator := NewValidator()
	tables := map[string][]store.Record{
		"settings":  {record("x-1", map[string]any{"name": "fake setting"})},
		"customers": {record("c-9", map[string]any{"email": "z@fake.com"})},
	}

	first := validator.Validate(tables)
	second := validator.Validate(tables)

	require.Equal(t, len(first.Violations), len(second.Violations))
	for i := range first.Violations {
		assert.Equal(t, first.Violations[i], second.Violations[i])
	}
	// Tables are visited in sorted name order.
	assert.Equal(t, "customers", first.Violations[0].Table)
}

package store

import (
	"encoding/json"
	"sort"
	"time"
)

// Record is one row of a protected table. ID is the stable primary key used
// for ordering during fingerprint computation; Fields holds every column
// value, including the primary key itself.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Fields: fields}
}

// FieldNames returns the record's field names in sorted order.
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanonicalJSON serializes the record's fields deterministically, excluding
// the named volatile fields. encoding/json emits map keys in sorted order,
// which gives a stable byte representation for hashing.
func (r Record) CanonicalJSON(volatile []string) ([]byte, error) {
	skip := make(map[string]bool, len(volatile))
	for _, name := range volatile {
		skip[name] = true
	}

	fields := make(map[string]any, len(r.Fields))
	for name, value := range r.Fields {
		if skip[name] {
			continue
		}
		// Normalize time values so the representation does not depend on the
		// driver's timezone handling.
		if t, ok := value.(time.Time); ok {
			value = t.UTC().Format(time.RFC3339Nano)
		}
		fields[name] = value
	}

	return json.Marshal(fields)
}

// TableSpec describes one protected table.
type TableSpec struct {
	// Name is the table name in the live store.
	Name string
	// KeyColumn is the primary key column.
	KeyColumn string
	// Volatile lists columns excluded from fingerprint computation because
	// they change without the record's business content changing.
	Volatile []string
}

// Tables is the fixed list of protected tables in foreign-key dependency
// order: a table always appears after every table it references. Bulk clears
// walk this list in reverse, bulk loads walk it forward, so no intermediate
// state inside the load transaction can violate a foreign key.
var Tables = []TableSpec{
	{Name: "customers", KeyColumn: "id", Volatile: []string{"updated_at"}},
	{Name: "sales", KeyColumn: "id", Volatile: []string{"updated_at"}},
	{Name: "sale_items", KeyColumn: "id", Volatile: []string{"updated_at"}},
	{Name: "communication_logs", KeyColumn: "id", Volatile: []string{"updated_at"}},
	{Name: "settings", KeyColumn: "id", Volatile: []string{"updated_at"}},
}

// TableNames returns the protected table names in dependency order.
func TableNames() []string {
	names := make([]string, len(Tables))
	for i, spec := range Tables {
		names[i] = spec.Name
	}
	return names
}

// Spec looks up the TableSpec for a table name.
func Spec(name string) (TableSpec, bool) {
	for _, spec := range Tables {
		if spec.Name == name {
			return spec, true
		}
	}
	return TableSpec{}, false
}

// IsProtectedTable reports whether the named table is part of the protected
// set.
func IsProtectedTable(name string) bool {
	_, ok := Spec(name)
	return ok
}

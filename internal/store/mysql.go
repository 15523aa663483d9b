package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DatabaseConfig holds the connection settings for the live store.
type DatabaseConfig struct {
	Host     string        `json:"host" yaml:"host" mapstructure:"host"`
	Port     int           `json:"port" yaml:"port" mapstructure:"port"`
	Username string        `json:"username" yaml:"username" mapstructure:"username"`
	Password string        `json:"password" yaml:"password" mapstructure:"password"`
	Database string        `json:"database" yaml:"database" mapstructure:"database"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Validate checks that the configuration is complete enough to connect.
func (dc *DatabaseConfig) Validate() error {
	var missing []string
	if dc.Host == "" {
		missing = append(missing, "host")
	}
	if dc.Username == "" {
		missing = append(missing, "username")
	}
	if dc.Database == "" {
		missing = append(missing, "database")
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete database configuration: missing %s", strings.Join(missing, ", "))
	}
	if dc.Port <= 0 || dc.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", dc.Port)
	}
	return nil
}

// DSN builds the MySQL driver connection string.
func (dc *DatabaseConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = dc.Username
	cfg.Passwd = dc.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", dc.Host, dc.Port)
	cfg.DBName = dc.Database
	cfg.ParseTime = true
	if dc.Timeout > 0 {
		cfg.Timeout = dc.Timeout
	}
	return cfg.FormatDSN()
}

// MySQLStore implements TableStore over a MySQL database.
type MySQLStore struct {
	db *sql.DB
}

// Open connects to the live store and verifies the connection.
func Open(ctx context.Context, config DatabaseConfig) (*MySQLStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database %s: %w", config.Database, err)
	}

	return &MySQLStore{db: db}, nil
}

// NewMySQLStore wraps an existing connection pool. Used by tests that supply
// a mocked *sql.DB.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// Close releases the underlying connection pool.
func (ms *MySQLStore) Close() error {
	return ms.db.Close()
}

// ReadAll reads every protected table in dependency order.
func (ms *MySQLStore) ReadAll(ctx context.Context) (map[string][]Record, error) {
	tables := make(map[string][]Record, len(Tables))
	for _, spec := range Tables {
		records, err := ms.readTable(ctx, ms.db, spec)
		if err != nil {
			return nil, err
		}
		tables[spec.Name] = records
	}
	return tables, nil
}

// ReadTable reads a single protected table.
func (ms *MySQLStore) ReadTable(ctx context.Context, table string) ([]Record, error) {
	spec, ok := Spec(table)
	if !ok {
		return nil, fmt.Errorf("table %q is not a protected table", table)
	}
	return ms.readTable(ctx, ms.db, spec)
}

// ReplaceAll clears and reloads every protected table inside one
// transaction. Clears run in reverse dependency order, inserts in forward
// dependency order; any error rolls the whole transaction back.
func (ms *MySQLStore) ReplaceAll(ctx context.Context, tables map[string][]Record) error {
	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load transaction: %w", err)
	}

	for i := len(Tables) - 1; i >= 0; i-- {
		spec := Tables[i]
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM `%s`", spec.Name)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to clear table %s: %w", spec.Name, err)
		}
	}

	for _, spec := range Tables {
		for _, record := range tables[spec.Name] {
			if err := ms.insertRecord(ctx, tx, spec, record); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to load table %s: %w", spec.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load transaction: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (ms *MySQLStore) readTable(ctx context.Context, q queryer, spec TableSpec) ([]Record, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT * FROM `%s` ORDER BY `%s`", spec.Name, spec.KeyColumn))
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", spec.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve columns of %s: %w", spec.Name, err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", spec.Name, err)
		}

		record := Record{Fields: make(map[string]any, len(columns))}
		for i, column := range columns {
			record.Fields[column] = normalizeValue(values[i])
		}
		record.ID = fmt.Sprint(record.Fields[spec.KeyColumn])
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table %s: %w", spec.Name, err)
	}

	return records, nil
}

func (ms *MySQLStore) insertRecord(ctx context.Context, tx *sql.Tx, spec TableSpec, record Record) error {
	names := record.FieldNames()
	if len(names) == 0 {
		return fmt.Errorf("record %s has no fields", record.ID)
	}

	columns := make([]string, len(names))
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		columns[i] = fmt.Sprintf("`%s`", name)
		placeholders[i] = "?"
		args[i] = record.Fields[name]
	}

	query := fmt.Sprintf(
		"INSERT INTO `%s` (%s) VALUES (%s)",
		spec.Name,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// normalizeValue converts driver-level byte slices into strings so that
// records survive a JSON round trip unchanged.
func normalizeValue(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

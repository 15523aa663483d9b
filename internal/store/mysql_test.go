package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_Validate(t *testing.T) {
	valid := DatabaseConfig{Host: "localhost", Port: 3306, Username: "root", Database: "sales"}
	assert.NoError(t, valid.Validate())

	missing := DatabaseConfig{Port: 3306}
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host")
	assert.Contains(t, err.Error(), "username")
	assert.Contains(t, err.Error(), "database")

	badPort := DatabaseConfig{Host: "h", Port: 70000, Username: "u", Database: "d"}
	assert.Error(t, badPort.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	config := DatabaseConfig{Host: "db.internal", Port: 3307, Username: "guard", Password: "s3cret", Database: "sales"}

	dsn := config.DSN()
	assert.Contains(t, dsn, "guard:s3cret@tcp(db.internal:3307)/sales")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestMySQLStore_ReadTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT \\* FROM `customers` ORDER BY `id`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "email"}).
			AddRow([]byte("c-001"), []byte("Anna"), []byte("anna@acme-shop.de")).
			AddRow([]byte("c-002"), []byte("Bruno"), []byte("bruno@maier-gmbh.de")))

	ms := NewMySQLStore(db)
	records, err := ms.ReadTable(context.Background(), "customers")
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "c-001", records[0].ID)
	assert.Equal(t, "Anna", records[0].Fields["first_name"])
	assert.Equal(t, "anna@acme-shop.de", records[0].Fields["email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ReadTable_RejectsUnknownTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ms := NewMySQLStore(db)
	_, err = ms.ReadTable(context.Background(), "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a protected table")
}

func TestMySQLStore_ReadAll_DependencyOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Tables are read in declared dependency order.
	for _, spec := range Tables {
		mock.ExpectQuery("SELECT \\* FROM `" + spec.Name + "` ORDER BY `id`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
	}

	ms := NewMySQLStore(db)
	tables, err := ms.ReadAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, tables, len(Tables))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ReplaceAll_SingleTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	// Clears run in reverse dependency order.
	for i := len(Tables) - 1; i >= 0; i-- {
		mock.ExpectExec("DELETE FROM `" + Tables[i].Name + "`").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	// Inserts run forward, columns in sorted name order.
	mock.ExpectExec("INSERT INTO `customers` \\(`email`, `id`\\) VALUES \\(\\?, \\?\\)").
		WithArgs("anna@acme-shop.de", "c-001").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `sales` \\(`id`, `total`\\) VALUES \\(\\?, \\?\\)").
		WithArgs("s-001", 129.90).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ms := NewMySQLStore(db)
	err = ms.ReplaceAll(context.Background(), map[string][]Record{
		"customers": {{ID: "c-001", Fields: map[string]any{"id": "c-001", "email": "anna@acme-shop.de"}}},
		"sales":     {{ID: "s-001", Fields: map[string]any{"id": "s-001", "total": 129.90}}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ReplaceAll_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `settings`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `communication_logs`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `sale_items`").
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	ms := NewMySQLStore(db)
	err = ms.ReplaceAll(context.Background(), map[string][]Record{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sale_items")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ReplaceAll_RollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	for i := len(Tables) - 1; i >= 0; i-- {
		mock.ExpectExec("DELETE FROM `" + Tables[i].Name + "`").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("INSERT INTO `customers`").
		WithArgs("c-001").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	ms := NewMySQLStore(db)
	err = ms.ReplaceAll(context.Background(), map[string][]Record{
		"customers": {{ID: "c-001", Fields: map[string]any{"id": "c-001"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "text", normalizeValue([]byte("text")))
	assert.Equal(t, int64(7), normalizeValue(int64(7)))
	assert.Nil(t, normalizeValue(nil))
}

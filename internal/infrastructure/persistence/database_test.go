package persistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock
}

func TestDatabase_PingDelegatesToPool(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectPing()
	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_QueriesFlowThroughSharedConnection(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectQuery(`SELECT \* FROM "marketplace_credentials" WHERE tenant_id = \$1`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "provider"}).
			AddRow("c-1", "tenant-1", "bricklink"))

	type marketplaceCredential struct {
		ID       string
		TenantID string
		Provider string
	}
	var rows []marketplaceCredential
	err := db.DB.Raw(`SELECT * FROM "marketplace_credentials" WHERE tenant_id = $1`, "tenant-1").
		Scan(&rows).Error

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bricklink", rows[0].Provider)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_CloseReleasesPool(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

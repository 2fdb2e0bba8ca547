package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		Driver:   "postgres",
		Host:     "db.internal",
		Port:     5433,
		User:     "pelada",
		Password: "secret",
		Name:     "peladahub",
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5433 user=pelada dbname=peladahub password=secret sslmode=disable", dsn)
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{Driver: "postgres", Host: "localhost"})
	require.Error(t, err)
}

func TestBuildPostgresDSNRespectsOverride(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://u:p@h/db"})
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@h/db", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		Driver:   "mysql",
		User:     "pelada",
		Password: "secret",
		Name:     "peladahub",
	})
	require.NoError(t, err)
	require.Equal(t, "pelada:secret@tcp(127.0.0.1:3306)/peladahub?charset=utf8mb4&loc=Local&parseTime=True", dsn)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	db, err := OpenAndMigrate(Config{Driver: "sqlite", DSN: "file:migrate_test?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, Close(db))
}

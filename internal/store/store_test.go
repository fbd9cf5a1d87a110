package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBSQLite(t *testing.T) {
	db, err := NewDB(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.Client.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.Equal(t, DriverSQLite, db.Driver)
}

func TestNilDBClose(t *testing.T) {
	var db *DB
	assert.NoError(t, db.Close())
}

func TestRedisHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(mr.Addr())
	defer r.Close()
	assert.True(t, r.Configured())
	assert.True(t, r.Healthy(context.Background()))

	mr.Close()
	assert.False(t, r.Healthy(context.Background()))
}

func TestRedisNotConfigured(t *testing.T) {
	r := NewRedis("")
	assert.Nil(t, r)
	assert.False(t, r.Configured())
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}

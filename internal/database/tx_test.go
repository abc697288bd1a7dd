package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTxOptions(t *testing.T) {
	def := DefaultTxOptions()
	assert.Equal(t, sql.LevelReadCommitted, def.IsolationLevel)
	assert.False(t, def.ReadOnly)

	snap := SnapshotTxOptions()
	assert.Equal(t, sql.LevelRepeatableRead, snap.IsolationLevel)
	assert.True(t, snap.ReadOnly)
	assert.Equal(t, def.MaxRetries, snap.MaxRetries)

	ser := SerializableTxOptions()
	assert.Equal(t, sql.LevelSerializable, ser.IsolationLevel)
	assert.False(t, ser.ReadOnly)
}

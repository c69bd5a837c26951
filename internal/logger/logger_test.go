package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevel(t *testing.T) {
	level, err := NewLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level.Level())

	level, err = NewLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	_, err = NewLevel("loud")
	assert.Error(t, err)
}

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM tiers":                      "SELECT",
		"  update usage_counters set count = 1":     "UPDATE",
		"(INSERT INTO subscriptions VALUES (1))":    "INSERT",
		"delete from feature_definitions where 1=1": "DELETE",
		"PRAGMA busy_timeout = 5000":                 "UNKNOWN",
		"":                                           "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"lumen/internal/observability"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(observability.NewLogger(&buf, "production", "debug"))
	ctx := context.Background()

	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Empty(t, buf.String(), "fast queries are not logged at warn level")

	l.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT slow", 1 }, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT broken", 0 }, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "GORM query error")
	assert.Contains(t, buf.String(), "syntax error")

	buf.Reset()
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT missing", 0 }, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record not found is not an error")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(ctx, time.Now(), func() (string, int64) { return "x", 0 }, errors.New("ignored"))
	assert.Empty(t, buf.String())

	buf.Reset()
	l.LogMode(logger.Info).Trace(ctx, time.Now(), func() (string, int64) { return "SELECT info", 2 }, nil)
	assert.Contains(t, buf.String(), "SELECT info")
}

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "debug", "json")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.WithField("application_id", 3).Info("status updated")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "status updated", entry["msg"])
	assert.Equal(t, float64(3), entry["application_id"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	log := newLogger(&bytes.Buffer{}, "loud", "text")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}

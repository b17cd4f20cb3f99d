package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	l, flush, err := Setup(Options{Level: level, JSON: true})
	require.NoError(t, err)
	t.Cleanup(flush)

	var buf bytes.Buffer
	l.SetOutput(&buf)
	t.Cleanup(func() {
		l.SetOutput(logrus.StandardLogger().Out)
		l.SetLevel(logrus.InfoLevel)
	})
	return &buf
}

func TestSetupLevel(t *testing.T) {
	l, _, err := Setup(Options{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l, _, err = Setup(Options{Level: "loud"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestLogError(t *testing.T) {
	buf := captureJSON(t, "info")

	LogError(errors.New("disk full"), "database", map[string]interface{}{"entity": "form"})
	LogError(nil, "ignored", nil)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "database", line["error_type"])
	assert.Equal(t, "disk full", line["error"])
	assert.Equal(t, "form", line["entity"])
	assert.Equal(t, "error", line["level"])
}

func TestLogEvent(t *testing.T) {
	buf := captureJSON(t, "warn")
	LogEvent("user_signup", map[string]interface{}{"user_id": "u1"})
	assert.Empty(t, buf.String())

	buf = captureJSON(t, "info")
	LogEvent("user_signup", map[string]interface{}{"user_id": "u1"})
	assert.Contains(t, buf.String(), `"event_type":"user_signup"`)
	assert.Contains(t, buf.String(), `"user_id":"u1"`)
}

package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/landrag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encodeWith(t *testing.T, cfg RedactionConfig, msg string, fields ...zap.Field) string {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: msg, Time: time.Unix(0, 0)}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder_SecretKeys(t *testing.T) {
	out := encodeWith(t, NewDefaultConfig().Redaction, "msg",
		zap.String("password", "hunter2"),
		zap.String("API_KEY", "abc"),
		zap.ByteString("token", []byte("t0k3n")),
		zap.String("collection", "land_plots"),
	)

	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, `"abc"`)
	assert.NotContains(t, out, "t0k3n")
	assert.Contains(t, out, "land_plots")
}

func TestRedactingEncoder_PatternsMaskOnlyTheMatch(t *testing.T) {
	out := encodeWith(t, NewDefaultConfig().Redaction, "llm call failed: Bearer eyJhbGciOi",
		zap.String("error", "401 from provider, key sk-abcdefghijklmnopqrstu rejected"),
	)

	assert.NotContains(t, out, "eyJhbGciOi")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstu")
	assert.Contains(t, out, "401 from provider")
	assert.Contains(t, out, "llm call failed")
}

func TestRedactingEncoder_TruncatesBulkyFields(t *testing.T) {
	cfg := NewDefaultConfig().Redaction
	cfg.MaxValueLen = 10
	wkt := "POLYGON ((27.5 53.9, 27.6 53.9, 27.6 54.0, 27.5 53.9))"

	out := encodeWith(t, cfg, "msg",
		zap.String("geometry", wkt),
		zap.String("source", "a-rather-long-file-name.pdf"),
	)

	assert.Contains(t, out, `"geometry":"POLYGON ((...(+`)
	assert.NotContains(t, out, "27.6 54.0")
	assert.Contains(t, out, "a-rather-long-file-name.pdf")
}

func TestScrubber_TruncatesOnRuneBoundary(t *testing.T) {
	s, err := newScrubber(RedactionConfig{BulkyFields: []string{"text"}, MaxValueLen: 3})
	require.NoError(t, err)

	got := s.scrub("text", "Участок")
	assert.True(t, strings.HasPrefix(got, "У...(+"), got)
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	out := encodeWith(t, RedactionConfig{}, "msg", zap.String("password", "visible"))
	assert.Contains(t, out, "visible")
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	assert.Error(t, err)
}

func TestRedactingEncoder_Clone(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	clone := enc.Clone()
	clone.AddString("token", "t0k3n")
	buf, err := clone.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(buf.Bytes(), []byte("t0k3n")))
}

func TestSecretField(t *testing.T) {
	assert.Equal(t, "[REDACTED:6]", Secret("api_key", config.Secret("abcdef")).String)
	assert.Equal(t, "[UNSET]", Secret("api_key", config.Secret("")).String)
}

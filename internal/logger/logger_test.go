package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	Info("upload started", KeyJobID, "job-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "upload started", entry["msg"])
	assert.Equal(t, "job-1", entry[KeyJobID])
}

func TestDebugSuppressedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	Debug("should not appear")
	assert.Empty(t, buf.String())
}

func TestInfoCtxInjectsLogContext(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	lc := NewLogContext("session-1").WithJob("job-1", "demo", "alice")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "pre-upload")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "session-1", entry[KeySessionID])
	assert.Equal(t, "job-1", entry[KeyJobID])
	assert.Equal(t, "demo", entry[KeyProjectCode])
	assert.Equal(t, "alice", entry[KeyOperator])
}

func TestSetLevelIgnoresInvalid(t *testing.T) {
	SetLevel("INFO")
	SetLevel("NOT_A_LEVEL")
	assert.Equal(t, int32(LevelInfo), currentLevel.Load())
}

func TestSetFormatIgnoresInvalid(t *testing.T) {
	SetFormat("text")
	SetFormat("xml")
	format, _ := currentFormat.Load().(string)
	assert.Equal(t, "text", format)
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("s1")
	clone := lc.WithJob("j1", "proj", "op")
	assert.NotSame(t, lc, clone)
	assert.Empty(t, lc.JobID)
	assert.Equal(t, "j1", clone.JobID)
}

func TestFromContextNil(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck
}

func TestWithBindsAttributes(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	l := With(KeyProjectCode, "demo")
	l.Info("bound")

	assert.True(t, strings.Contains(buf.String(), "demo"))
}

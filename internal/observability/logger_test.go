package observability

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFromContextAddsSessionID(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, false)
	t.Cleanup(func() { Setup(os.Stderr, false) })

	ctx := WithSessionID(context.Background(), "s1")
	LoggerFromContext(ctx).Info("hello")
	LoggerFromContext(context.Background()).Info("bare")

	out := buf.String()
	assert.Contains(t, out, "msg=hello session_id=s1")
	assert.Contains(t, out, "msg=bare")
	assert.NotContains(t, out, "msg=bare session_id")
}

func TestSetupDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, false)
	Logger().Debug("hidden")
	assert.Empty(t, buf.String())

	Setup(&buf, true)
	t.Cleanup(func() { Setup(os.Stderr, false) })
	WithFields("event", "Stop").Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown event=Stop")
}

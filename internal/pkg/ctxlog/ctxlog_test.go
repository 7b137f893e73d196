package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := With(WithLogger(context.Background(), base), "incident_id", "abc")
	FromContext(ctx).Info("incident transitioned")

	assert.Contains(t, buf.String(), `"incident_id":"abc"`)
	assert.Contains(t, buf.String(), `"msg":"incident transitioned"`)
}

func TestFromContext_Default(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

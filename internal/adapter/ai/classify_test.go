package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanuni/legalai/internal/domain"
)

func TestClassify_Table(t *testing.T) {
	tests := []struct {
		in       string
		kind     Kind
		sentinel error
	}{
		{"gemini: status 401 API key not valid", KindAuth, domain.ErrUpstreamAuth},
		{"rpc error: UNAUTHENTICATED", KindAuth, domain.ErrUpstreamAuth},
		{"PERMISSION_DENIED: project blocked", KindPermission, domain.ErrUpstreamPermission},
		{"status 403 forbidden", KindPermission, domain.ErrUpstreamPermission},
		{"status 429 RESOURCE_EXHAUSTED: Quota exceeded for metric", KindQuota, domain.ErrQuotaExceeded},
		{"status 429: slow down", KindRateLimited, domain.ErrUpstreamRateLimit},
		{"Too Many Requests", KindRateLimited, domain.ErrUpstreamRateLimit},
		{"status 400 INVALID_ARGUMENT", KindBadRequest, domain.ErrUpstreamBadRequest},
		{"status 503 model overloaded", KindServer, domain.ErrUpstreamServer},
		{"INTERNAL error", KindServer, domain.ErrUpstreamServer},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			raw := errors.New(tt.in)
			err := Classify(raw)
			var ae *AIError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.kind, ae.Kind)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.ErrorIs(t, err, raw)
			assert.Contains(t, ae.Message, " / ")
		})
	}
}

func TestClassify_QuotaMessageMentionsQuota(t *testing.T) {
	err := Classify(errors.New("quota exhausted"))
	assert.Contains(t, err.Error(), "quota")
	assert.Contains(t, err.Error(), "سهمیه", "Persian half comes first")
}

func TestClassify_UnclassifiedPassesMessage(t *testing.T) {
	err := Classify(errors.New("model refused: content policy"))
	assert.Equal(t, "model refused: content policy", err.Error())
	assert.Equal(t, KindUnclassified, KindOf(err))
	assert.NotErrorIs(t, err, domain.ErrUpstreamServer)
}

func TestClassify_PassThrough(t *testing.T) {
	assert.NoError(t, Classify(nil))

	wrapped := fmt.Errorf("call: %w", context.Canceled)
	assert.Same(t, wrapped, Classify(wrapped))

	already := Classify(errors.New("401"))
	assert.Same(t, already, Classify(already))

	pe := &ParseError{Stage: StageSchema, Err: errors.New("missing field")}
	assert.Same(t, error(pe), Classify(pe))
}

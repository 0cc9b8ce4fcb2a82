package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanuni/legalai/internal/domain"
)

type stubProvider struct {
	name  string
	reply string
	err   error
	calls atomic.Int32

	mu         sync.Mutex
	lastPrompt string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Call(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastPrompt = prompt
	s.mu.Unlock()
	return s.reply, s.err
}

type usageEvent struct {
	provider string
	ok       bool
	tokens   int
}

type recorderStub struct {
	mu     sync.Mutex
	events []usageEvent
	err    error
}

func (r *recorderStub) RecordCall(_ context.Context, provider string, ok bool, tokens int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, usageEvent{provider, ok, tokens})
	return r.err
}

func providers(ps ...*stubProvider) []domain.Provider {
	out := make([]domain.Provider, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

func TestCallWithFallback_FirstSuccessWins(t *testing.T) {
	a := &stubProvider{name: "a", reply: "hello"}
	b := &stubProvider{name: "b", reply: "unused"}
	o := NewOrchestrator(providers(a, b), WithDelay(0))

	got, err := o.CallWithFallback(context.Background(), "hi", 100, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.EqualValues(t, 1, a.calls.Load())
	assert.EqualValues(t, 0, b.calls.Load())
	assert.Equal(t, []string{"a", "b"}, o.Providers())
}

func TestCallWithFallback_SkipsErrorsAndBlankReplies(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("status 503")}
	b := &stubProvider{name: "b", reply: "  \n "}
	c := &stubProvider{name: "c", reply: "from c"}
	o := NewOrchestrator(providers(a, b, c), WithDelay(0))

	got, err := o.CallWithFallback(context.Background(), "hi", 100, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "from c", got)
	for _, p := range []*stubProvider{a, b, c} {
		assert.EqualValues(t, 1, p.calls.Load(), p.name)
	}
}

func TestCallWithFallback_AllFail(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("status 401")}
	b := &stubProvider{name: "b", reply: ""}
	o := NewOrchestrator(providers(a, b), WithDelay(0))

	_, err := o.CallWithFallback(context.Background(), "hi", 100, 0.5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllProvidersFailed)

	var fe *FallbackError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "all AI services are currently unavailable")
	assert.Contains(t, fe.Error(), "متأسفانه")
	causes := fe.Causes()
	require.Len(t, causes, 2)
	assert.Contains(t, causes[0].Error(), "a: status 401")
	assert.ErrorIs(t, causes[1], errEmptyReply)
}

func TestCallWithFallback_NoProviders(t *testing.T) {
	_, err := NewOrchestrator(nil).CallWithFallback(context.Background(), "hi", 10, 0)
	assert.ErrorIs(t, err, domain.ErrAllProvidersFailed)
}

func TestCallWithFallback_WaitsBetweenProviders(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := &stubProvider{name: "a", err: errors.New("boom")}
	b := &stubProvider{name: "b", reply: "ok"}
	o := NewOrchestrator(providers(a, b), WithClock(fc))

	type result struct {
		reply string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		r, err := o.CallWithFallback(context.Background(), "hi", 10, 0)
		done <- result{r, err}
	}()

	fc.BlockUntil(1)
	assert.EqualValues(t, 0, b.calls.Load(), "second provider must wait for the delay")
	fc.Advance(DefaultFallbackDelay)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "ok", r.reply)
	case <-time.After(2 * time.Second):
		t.Fatal("fallback did not resume after the delay")
	}
}

func TestCallWithFallback_NoWaitAfterLastProvider(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := &stubProvider{name: "a", err: errors.New("boom")}
	o := NewOrchestrator(providers(a), WithClock(fc))

	_, err := o.CallWithFallback(context.Background(), "hi", 10, 0)
	assert.ErrorIs(t, err, domain.ErrAllProvidersFailed)
}

func TestCallWithFallback_CancelledBeforeStart(t *testing.T) {
	a := &stubProvider{name: "a", reply: "ok"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOrchestrator(providers(a)).CallWithFallback(ctx, "hi", 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, a.calls.Load())
}

func TestCallWithFallback_CancelledDuringWait(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := &stubProvider{name: "a", err: errors.New("boom")}
	b := &stubProvider{name: "b", reply: "ok"}
	o := NewOrchestrator(providers(a, b), WithClock(fc))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.CallWithFallback(ctx, "hi", 10, 0)
		done <- err
	}()

	fc.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not stop the chain")
	}
	assert.EqualValues(t, 0, b.calls.Load())
}

func TestCallWithFallback_RecordsUsage(t *testing.T) {
	rec := &recorderStub{err: errors.New("db down")}
	a := &stubProvider{name: "a", err: errors.New("boom")}
	b := &stubProvider{name: "b", reply: "answer"}
	o := NewOrchestrator(providers(a, b), WithDelay(0), WithUsageRecorder(rec))

	got, err := o.CallWithFallback(context.Background(), "question", 10, 0)
	require.NoError(t, err, "recorder errors are not returned")
	assert.Equal(t, "answer", got)

	require.Len(t, rec.events, 2)
	assert.Equal(t, "a", rec.events[0].provider)
	assert.False(t, rec.events[0].ok)
	assert.Equal(t, "b", rec.events[1].provider)
	assert.True(t, rec.events[1].ok)
	assert.Greater(t, rec.events[1].tokens, rec.events[0].tokens)
}

type citation struct {
	Title string `json:"title" validate:"required"`
}

func TestCallWithFallbackJSON(t *testing.T) {
	a := &stubProvider{name: "a", reply: "```json\n{\"title\":\"Civil Code art. 5\"}\n```"}
	o := NewOrchestrator(providers(a), WithDelay(0))

	got, err := CallWithFallbackJSON[citation](context.Background(), o, "find", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "Civil Code art. 5", got.Title)
	assert.Contains(t, a.lastPrompt, "Respond with raw JSON only")
}

func TestCallWithFallbackJSON_ParseErrorNotRetried(t *testing.T) {
	a := &stubProvider{name: "a", reply: "I am not JSON"}
	b := &stubProvider{name: "b", reply: `{"title":"x"}`}
	o := NewOrchestrator(providers(a, b), WithDelay(0))

	_, err := CallWithFallbackJSON[citation](context.Background(), o, "find", 10, 0)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.EqualValues(t, 0, b.calls.Load())

	_, err = CallWithFallbackJSON[citation](context.Background(), NewOrchestrator(providers(&stubProvider{name: "c", reply: `{"title":""}`}), WithDelay(0)), "find", 10, 0)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageSchema, pe.Stage)
}

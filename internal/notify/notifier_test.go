package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailhook/internal/model"
	"github.com/mailhook/internal/webhook"
)

type call struct {
	url string
	req *webhook.Request
}

type fakeSender struct {
	mu    sync.Mutex
	calls []call
	err   error
	panic bool
}

func (f *fakeSender) Send(_ context.Context, url string, req *webhook.Request) (*webhook.Response, error) {
	if f.panic {
		panic("sender exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{url: url, req: req})
	if f.err != nil {
		return nil, f.err
	}
	return &webhook.Response{StatusCode: http.StatusOK}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func configured() model.Settings {
	return model.Settings{
		WebhookURL:         "https://h.test/wh",
		TriggeringPatterns: "urgent",
		AuthType:           model.AuthHeader,
		AuthField:          "X-Key",
		SecurityKey:        "s3cret",
	}
}

func TestObserveShortCircuitsWhenUnconfigured(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Settings)
	}{
		{"empty url", func(s *model.Settings) { s.WebhookURL = "" }},
		{"empty patterns", func(s *model.Settings) { s.TriggeringPatterns = "" }},
		{"blank patterns", func(s *model.Settings) { s.TriggeringPatterns = " \n\r\n " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			n := New(sender, Options{Logger: quietLogger()})
			s := configured()
			tt.mutate(&s)

			got := n.Observe(context.Background(), s, model.Email{Subject: "urgent", Body: "urgent"})
			assert.Equal(t, Skipped, got)
			assert.Zero(t, sender.count())
		})
	}
}

func TestObserveNoMatch(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, Options{Logger: quietLogger()})

	got := n.Observe(context.Background(), configured(), model.Email{Subject: "hello", Body: "world"})
	assert.Equal(t, NoMatch, got)
	assert.Zero(t, sender.count())
}

func TestObserveMatchDispatches(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, Options{Logger: quietLogger()})

	got := n.Observe(context.Background(), configured(), model.Email{Subject: "URGENT: action needed", Body: "..."})
	assert.Equal(t, Sent, got)
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "https://h.test/wh", sender.calls[0].url)
	assert.Equal(t, "s3cret", sender.calls[0].req.Header.Get("X-Key"))
	assert.Equal(t, `{"subject":"URGENT: action needed","body":"..."}`, string(sender.calls[0].req.Body))
}

func TestObserveMatchCase(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, Options{Logger: quietLogger()})
	s := configured()
	s.MatchCase = true

	assert.Equal(t, NoMatch, n.Observe(context.Background(), s, model.Email{Subject: "URGENT"}))
	assert.Equal(t, Sent, n.Observe(context.Background(), s, model.Email{Subject: "urgent"}))
}

func TestObserveTransportFailureIsContained(t *testing.T) {
	sender := &fakeSender{err: &webhook.TransportError{URL: "https://h.test/wh", Err: errors.New("connection refused")}}
	n := New(sender, Options{Logger: quietLogger(), Debug: true})

	mailSent := false
	sendMail := func() {
		n.Observe(context.Background(), configured(), model.Email{Subject: "urgent"})
		mailSent = true
	}

	assert.NotPanics(t, sendMail)
	assert.True(t, mailSent)
	assert.Equal(t, 1, sender.count())
}

func TestObserveRecoversFromPanic(t *testing.T) {
	n := New(&fakeSender{panic: true}, Options{Logger: quietLogger()})

	var got Outcome
	assert.NotPanics(t, func() {
		got = n.Observe(context.Background(), configured(), model.Email{Subject: "urgent"})
	})
	assert.Equal(t, Failed, got)
}

func TestObserveAsync(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, Options{Logger: quietLogger(), Async: true})

	got := n.Observe(context.Background(), configured(), model.Email{Subject: "urgent"})
	assert.Equal(t, Dispatching, got)
	n.Wait()
	assert.Equal(t, 1, sender.count())
}

func TestObserveMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	sender := &fakeSender{}
	n := New(sender, Options{Logger: quietLogger(), Metrics: metrics})

	n.Observe(context.Background(), configured(), model.Email{Subject: "urgent"})
	n.Observe(context.Background(), configured(), model.Email{Subject: "calm"})
	n.Observe(context.Background(), model.Settings{}, model.Email{Subject: "urgent"})
	sender.err = errors.New("down")
	n.Observe(context.Background(), configured(), model.Email{Subject: "urgent"})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues("no_match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues("failed")))
}

func TestEndToEnd(t *testing.T) {
	var (
		mu      sync.Mutex
		posts   int
		header  http.Header
		body    []byte
		path    string
		methods []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		posts++
		header = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		path = r.URL.Path
		methods = append(methods, r.Method)
	}))
	defer srv.Close()

	s := configured()
	s.WebhookURL = srv.URL + "/wh"

	n := New(webhook.NewDispatcher(srv.Client()), Options{Logger: quietLogger()})
	got := n.Observe(context.Background(), s, model.Email{Subject: "URGENT: action needed", Body: "..."})

	assert.Equal(t, Sent, got)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, posts)
	assert.Equal(t, []string{http.MethodPost}, methods)
	assert.Equal(t, "/wh", path)
	assert.Equal(t, "s3cret", header.Get("X-Key"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, `{"subject":"URGENT: action needed","body":"..."}`, string(body))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "sent", Sent.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}

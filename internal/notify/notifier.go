// Package notify evaluates outgoing email against the webhook filter settings
// and dispatches the webhook when a pattern matches.
//
// The notifier is an observer: whatever happens inside it, including a
// transport failure or a panic, is contained and never reaches the caller
// that is sending the mail.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mailhook/internal/filter"
	"github.com/mailhook/internal/model"
	"github.com/mailhook/internal/webhook"
)

// Outcome is the terminal state of one evaluation.
type Outcome int

const (
	// Skipped: webhook URL or patterns missing, nothing evaluated.
	Skipped Outcome = iota
	NoMatch
	// Dispatching: matched and handed to a background send (async mode).
	Dispatching
	Sent
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case NoMatch:
		return "no_match"
	case Dispatching:
		return "dispatching"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Sender performs the webhook call.
type Sender interface {
	Send(ctx context.Context, url string, req *webhook.Request) (*webhook.Response, error)
}

type Options struct {
	// Async sends the webhook from a background goroutine.
	Async bool
	// Debug logs dispatch failures regardless of Settings.Debug.
	Debug   bool
	Metrics *Metrics
	Logger  *slog.Logger
}

// Notifier runs the match-and-dispatch flow for one email at a time. It is
// safe for concurrent use.
type Notifier struct {
	sender  Sender
	opts    Options
	logger  *slog.Logger
	metrics *Metrics

	insensitive filter.Matcher
	sensitive   filter.Matcher

	wg sync.WaitGroup
}

func New(sender Sender, opts Options) *Notifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		sender:    sender,
		opts:      opts,
		logger:    logger,
		metrics:   opts.Metrics,
		sensitive: filter.Matcher{MatchCase: true},
	}
}

func (n *Notifier) matcher(s *model.Settings) *filter.Matcher {
	if s.MatchCase {
		return &n.sensitive
	}
	return &n.insensitive
}

// Observe evaluates email against s and sends the webhook on a match. It
// never returns an error and never panics.
func (n *Notifier) Observe(ctx context.Context, s model.Settings, email model.Email) (outcome Outcome) {
	id := uuid.NewString()
	logger := n.logger.With("evaluation", id)
	debug := n.opts.Debug || s.Debug

	defer func() {
		if r := recover(); r != nil {
			logger.Error("notify: recovered from panic", "panic", r)
			outcome = Failed
		}
		if outcome != Dispatching {
			n.metrics.observeOutcome(outcome)
		}
	}()

	if !s.Configured() {
		return Skipped
	}

	match, ok := n.matcher(&s).FirstMatch(email.Subject, email.Body, s.TriggeringPatterns)
	if !ok {
		logger.Debug("notify: no pattern matched")
		return NoMatch
	}
	logger.Debug("notify: pattern matched", "line", match.Line, "pattern", match.Pattern, "field", match.Field)

	_, req, err := webhook.Build(email, &s)
	if err != nil {
		if debug {
			logger.Warn("notify: build request failed", "err", err)
		}
		return Failed
	}

	if !n.opts.Async {
		return n.dispatch(ctx, logger, s.WebhookURL, req, debug)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("notify: recovered from panic in dispatch", "panic", r)
				n.metrics.observeOutcome(Failed)
			}
		}()
		o := n.dispatch(context.WithoutCancel(ctx), logger, s.WebhookURL, req, debug)
		n.metrics.observeOutcome(o)
	}()
	return Dispatching
}

func (n *Notifier) dispatch(ctx context.Context, logger *slog.Logger, url string, req *webhook.Request, debug bool) Outcome {
	start := time.Now()
	resp, err := n.sender.Send(ctx, url, req)
	n.metrics.observeDispatch(time.Since(start))
	if err != nil {
		if debug {
			logger.Warn("notify: webhook dispatch failed", "url", url, "err", err)
		}
		return Failed
	}
	if resp != nil {
		logger.Debug("notify: webhook sent", "url", url, "status", resp.StatusCode)
	}
	return Sent
}

// Wait blocks until background dispatches started in async mode finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

var (
	ErrNotConfigured = errors.New("mailer: not configured")
	ErrNoRecipients  = errors.New("mailer: no recipients")
)

// Config holds the SMTP submission settings.
type Config struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

func (c *Config) configured() bool {
	return c != nil && c.Host != "" && c.FromAddress != ""
}

// Message is a plain text email.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Hook observes every outgoing message before it is transmitted. Hooks cannot
// alter or stop delivery.
type Hook interface {
	BeforeSend(ctx context.Context, subject, body string)
}

// Mailer sends emails via SMTP.
type Mailer struct {
	mu     sync.RWMutex
	cfg    *Config
	hooks  []Hook
	sendFn func(msg Message) error
}

func New(cfg *Config) *Mailer {
	m := &Mailer{cfg: cfg}
	m.sendFn = m.deliver
	return m
}

// AddHook registers h to run before each send, in registration order.
func (m *Mailer) AddHook(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Reconfigure swaps the SMTP settings used by later sends.
func (m *Mailer) Reconfigure(cfg *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// Send runs the hooks synchronously and then transmits msg. Hooks get a
// context that keeps ctx's values but not its cancellation, so a caller
// going away does not abort a hook halfway.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	m.mu.RLock()
	hooks := append([]Hook(nil), m.hooks...)
	m.mu.RUnlock()

	hookCtx := context.WithoutCancel(ctx)
	for _, h := range hooks {
		h.BeforeSend(hookCtx, msg.Subject, msg.Body)
	}

	return m.sendFn(msg)
}

func (m *Mailer) config() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Mailer) formatMessage(msg Message) ([]byte, error) {
	cfg := m.config()
	if cfg == nil {
		cfg = &Config{}
	}

	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: cfg.FromName, Address: cfg.FromAddress}})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "UTF-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("mailer: create message: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("mailer: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("mailer: close message: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *Mailer) deliver(msg Message) error {
	cfg := m.config()
	if !cfg.configured() {
		return ErrNotConfigured
	}

	raw, err := m.formatMessage(msg)
	if err != nil {
		return err
	}

	var auth sasl.Client
	if cfg.User != "" {
		auth = sasl.NewPlainClient("", cfg.User, cfg.Pass)
	}
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	if err := smtp.SendMail(addr, auth, cfg.FromAddress, msg.To, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

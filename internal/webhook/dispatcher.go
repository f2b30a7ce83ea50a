package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// TransportError reports that the POST did not produce an HTTP response:
// DNS failure, refused connection, TLS failure or timeout.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("webhook: post %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Response is the successful outcome of a dispatch. Any HTTP status counts as
// success; the status is kept for diagnostics only.
type Response struct {
	StatusCode int
}

// Dispatcher performs webhook POSTs.
type Dispatcher struct {
	client *http.Client
}

// NewDispatcher returns a Dispatcher using client, or a fresh client if nil.
func NewDispatcher(client *http.Client) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{client: client}
}

// Send posts req to url. It returns a *TransportError when no response was
// received, including when req.Timeout elapses.
func (d *Dispatcher) Send(ctx context.Context, url string, req *Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return &Response{StatusCode: resp.StatusCode}, nil
}

// Package webhook builds and sends the JSON notification for a matched email.
package webhook

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mailhook/internal/model"
)

// Timeout bounds a single webhook call. It is not configurable.
const Timeout = 5 * time.Second

// Request holds everything needed to perform the POST.
type Request struct {
	Method  string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Build constructs the payload for email and the request that carries it. The
// secret is injected into the body or a header according to s.AuthType, and
// only when both s.AuthField and s.SecurityKey are set.
func Build(email model.Email, s *model.Settings) (*Payload, *Request, error) {
	payload := NewPayload()
	payload.Set("subject", email.Subject)
	payload.Set("body", email.Body)

	if s.AuthEnabled() && s.AuthType == model.AuthBody {
		payload.Set(s.AuthField, s.SecurityKey)
	}

	body, err := payload.MarshalJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("encode payload: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if s.AuthEnabled() && s.AuthType == model.AuthHeader {
		header.Set(s.AuthField, s.SecurityKey)
	}

	return payload, &Request{
		Method:  http.MethodPost,
		Header:  header,
		Body:    body,
		Timeout: Timeout,
	}, nil
}

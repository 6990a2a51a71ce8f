package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

type Kind int

const (
	KindOK Kind = iota
	// KindTransient covers timeouts, connection errors and overloaded servers.
	KindTransient
	// KindProtocol is a non-2xx status not explained by bot protection.
	KindProtocol
	// KindChallenge is a bot verification interstitial.
	KindChallenge
	// KindMalformed is a body that could not be decoded.
	KindMalformed
)

var (
	ErrTransient = errors.New("transient transport failure")
	ErrProtocol  = errors.New("protocol error")
	ErrChallenge = errors.New("challenge page detected")
	ErrMalformed = errors.New("malformed content")
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindTransient:
		return "transient"
	case KindProtocol:
		return "protocol"
	case KindChallenge:
		return "challenge"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

// Err returns the sentinel error of the kind, nil for KindOK.
func (k Kind) Err() error {
	switch k {
	case KindTransient:
		return ErrTransient
	case KindProtocol:
		return ErrProtocol
	case KindChallenge:
		return ErrChallenge
	case KindMalformed:
		return ErrMalformed
	}
	return nil
}

// Classifier maps the outcome of a request to a Kind.
type Classifier func(res *resty.Response, err error) Kind

var challengeMarkers = []string{
	"captcha",
	"javascript",
	"cloudflare",
	"just a moment",
	"cf-chl",
	"challenge-platform",
}

// IsChallenge reports whether body looks like a bot verification page. A body
// that parses as JSON is never a challenge.
func IsChallenge(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// NewClassifier builds a Classifier. expectJSON makes bodies that are not valid
// JSON malformed, detectChallenge enables challenge page detection which takes
// priority over the status code.
func NewClassifier(expectJSON, detectChallenge bool) Classifier {
	return func(res *resty.Response, err error) Kind {
		if err != nil || res == nil {
			return KindTransient
		}
		body := res.Body()
		if detectChallenge && IsChallenge(body) {
			return KindChallenge
		}
		status := res.StatusCode()
		if status == http.StatusTooManyRequests || status >= 500 {
			return KindTransient
		}
		if status < 200 || status > 299 {
			return KindProtocol
		}
		if expectJSON && !json.Valid(bytes.TrimSpace(body)) {
			return KindMalformed
		}
		return KindOK
	}
}

// describe wraps the sentinel of kind with what was observed.
func describe(kind Kind, res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", kind.Err(), err)
	}
	if res == nil {
		return kind.Err()
	}
	return fmt.Errorf("%w: %s %s", kind.Err(), res.Request.Method, res.Status())
}

// Package provider implements domain.Provider for the supported AI backends.
package provider

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// snippetLimit bounds how much of an error body ends up in error messages.
const snippetLimit = 512

// NewHTTPClient returns a resty client whose transport is traced by otelhttp.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Content-Type", "application/json")
}

// statusError keeps the HTTP status and the start of the body in the message
// so ai.Classify can categorize it.
func statusError(provider string, r *resty.Response) error {
	return fmt.Errorf("%s: status %s: %s", provider, r.Status(), snippet(r.String()))
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > snippetLimit {
		return s[:snippetLimit]
	}
	return s
}

func trimBase(base string) string { return strings.TrimRight(base, "/") }

package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seclith/aadprobe/internal/httpx"
)

const (
	// DefaultAuthority is the Microsoft identity platform endpoint the token
	// requests go to. Tests point this at a local server.
	DefaultAuthority = "https://login.microsoftonline.com"

	// DefaultClientSecret is intentionally invalid. The whole detection
	// technique relies on never authenticating: an app that exists rejects
	// the secret (7000215), a missing app is rejected earlier (700016).
	DefaultClientSecret = "invalid_secret"

	// DefaultScope is the default Graph scope for client-credentials flows.
	DefaultScope = "https://graph.microsoft.com/.default"

	maxBodyBytes = 1 << 20
)

// TransportKind buckets request-level failures.
type TransportKind int

const (
	TransportOther TransportKind = iota
	TransportTimeout
	TransportConnectionFailed
	TransportTLS
)

func (k TransportKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportConnectionFailed:
		return "connection_failed"
	case TransportTLS:
		return "tls_error"
	default:
		return "other"
	}
}

// TransportError is a request-level failure. It is always recoverable at the
// candidate level; the dispatcher maps it to an Indeterminate result.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RawResponse is the undecoded remote answer to a single probe.
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// Prober issues one token request per call against a tenant's token endpoint.
type Prober struct {
	client    httpx.Doer
	authority string
	tenant    string
	secret    string
	scope     string
}

func NewProber(client httpx.Doer, authority, tenant, secret, scope string) *Prober {
	if authority == "" {
		authority = DefaultAuthority
	}
	if secret == "" {
		secret = DefaultClientSecret
	}
	if scope == "" {
		scope = DefaultScope
	}
	return &Prober{
		client:    client,
		authority: strings.TrimRight(authority, "/"),
		tenant:    tenant,
		secret:    secret,
		scope:     scope,
	}
}

func (p *Prober) endpoint() string {
	return p.authority + "/" + p.tenant + "/oauth2/v2.0/token"
}

// Do sends exactly one client-credentials token request for clientID and
// returns the raw response. The ID is sent as-is; a malformed ID just gets
// rejected by the remote side like any other unknown app.
func (p *Prober) Do(ctx context.Context, clientID string, timeout time.Duration) (*RawResponse, *TransportError) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {p.secret},
		"scope":         {p.scope},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Kind: TransportOther, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportErr(err)
	}

	return &RawResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func classifyTransportErr(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: TransportTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: TransportTimeout, Err: err}
	}

	var recErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &recErr) || errors.As(err, &certErr) {
		return &TransportError{Kind: TransportTLS, Err: err}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return &TransportError{Kind: TransportConnectionFailed, Err: err}
	}

	return &TransportError{Kind: TransportOther, Err: err}
}

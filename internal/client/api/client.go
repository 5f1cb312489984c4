package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/netx"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

// Client is everything the client needs from the backend.
type Client interface {
	Login(ctx context.Context, email, password string) (*wire.LoginResponse, error)
	SetAccessToken(token string)
	Sync(ctx context.Context, req wire.SyncRequest) (*wire.SyncResponse, error)
	// FetchSubmissions returns the records undecoded; callers decode each
	// one so a malformed record only costs that record.
	FetchSubmissions(ctx context.Context) ([]json.RawMessage, error)
	FetchForms(ctx context.Context) ([]wire.Form, error)
	FetchPending(ctx context.Context) (*wire.Pending, error)
	RequestExport(ctx context.Context, submissionID string) (*wire.Export, error)
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// DefaultTimeout applies when NewHTTPClient is given a zero timeout.
const DefaultTimeout = 30 * time.Second

type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	log     logging.Logger

	mu          sync.RWMutex
	accessToken string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		log:     log.With("module", "api"),
	}, nil
}

func (c *HTTPClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *HTTPClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*wire.LoginResponse, error) {
	var out wire.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", wire.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("login: empty access token")
	}
	c.SetAccessToken(out.AccessToken)
	return &out, nil
}

func (c *HTTPClient) Sync(ctx context.Context, req wire.SyncRequest) (*wire.SyncResponse, error) {
	var out wire.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/sync", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchSubmissions(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/submissions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) FetchForms(ctx context.Context) ([]wire.Form, error) {
	var out []wire.Form
	if err := c.do(ctx, http.MethodGet, "/forms", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) FetchPending(ctx context.Context) (*wire.Pending, error) {
	var out wire.Pending
	if err := c.do(ctx, http.MethodGet, "/sync/pending", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RequestExport(ctx context.Context, submissionID string) (*wire.Export, error) {
	if submissionID == "" {
		return nil, fmt.Errorf("export: %w: empty submission id", common.ErrValidation)
	}
	var out wire.Export
	if err := c.do(ctx, http.MethodPost, "/exports/submissions/"+url.PathEscape(submissionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download fetches an export artifact. Relative urls resolve against the
// server url; absolute ones (presigned object urls) are used as is and never
// receive the access token.
func (c *HTTPClient) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid download url: %w", err)
	}
	target := c.baseURL.ResolveReference(ref).String()

	n, err := netx.Download(ctx, c.http, target, w)
	if err != nil {
		var se *netx.StatusError
		if errors.As(err, &se) {
			return 0, mapStatus(se.Code, strings.TrimSpace(se.Body))
		}
		return 0, c.transportError(ctx, err)
	}
	return n, nil
}

func (c *HTTPClient) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "request failed", "method", method, "path", path, "error", err)
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	c.log.Debug(ctx, "request done", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, err)
	}

	env := wire.Envelope[json.RawMessage]{}
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil {
			msg = strings.TrimSpace(string(raw))
		}
		return mapStatus(resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if env.Error != "" {
		return &ServerError{Status: resp.StatusCode, Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// transportError maps network level failures to ErrUnavailable. A caller
// cancellation is passed through untouched.
func (c *HTTPClient) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

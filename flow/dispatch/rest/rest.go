// Package rest is a generic adapter for image and video generation
// backends without an official Go SDK, speaking POST plus bearer token
// plus JSON.
package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nodecanvas/mediagraph/flow"
	"github.com/nodecanvas/mediagraph/flow/dispatch"
)

// request is the wire shape sent to the backend.
type request struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

// response is the wire shape expected back. Backends return either a
// hosted URL or an inline base64 payload.
type response struct {
	URL     string  `json:"url,omitempty"`
	B64     string  `json:"b64,omitempty"`
	MIME    string  `json:"mime,omitempty"`
	Credits float64 `json:"credits,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Adapter implements dispatch.Adapter over a single REST endpoint.
// Safe for concurrent use.
type Adapter struct {
	provider string
	endpoint string
	kind     flow.HandleKind
	client   *http.Client
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient replaces the HTTP client, for tests and custom
// transports. Timeouts come from the dispatch context, not the client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// New builds an adapter posting to endpoint, producing values of the
// given kind (KindImage or KindVideo). The provider name labels
// classified errors.
func New(provider, endpoint string, kind flow.HandleKind, opts ...Option) *Adapter {
	a := &Adapter{
		provider: provider,
		endpoint: endpoint,
		kind:     kind,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate implements dispatch.Adapter.
func (a *Adapter) Generate(ctx context.Context, req flow.Request, credential string) (map[string][]flow.Value, flow.Usage, error) {
	prompt := dispatch.PromptText(req)
	if prompt == "" {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindInvalidInput,
			"node %s has no prompt text", req.NodeID)
	}

	wireReq := request{
		Model:       req.Config.Model,
		Prompt:      prompt,
		AspectRatio: req.Config.AspectRatio,
	}
	for _, img := range dispatch.InputImages(req) {
		if img.URI != "" {
			wireReq.ImageURLs = append(wireReq.ImageURLs, img.URI)
		}
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindInternal,
			"failed to encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindInternal,
			"failed to build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, flow.Usage{}, dispatch.Classify(a.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, flow.Usage{}, a.statusError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, flow.Usage{}, dispatch.Classify(a.provider, err)
	}

	var wireResp response
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"%s returned invalid JSON", a.provider)
	}

	value := flow.Value{Kind: a.kind, MIME: wireResp.MIME}
	switch {
	case wireResp.URL != "":
		value.URI = wireResp.URL
	case wireResp.B64 != "":
		decoded, err := base64.StdEncoding.DecodeString(wireResp.B64)
		if err != nil {
			return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
				"%s returned undecodable payload", a.provider)
		}
		value.Data = decoded
	default:
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"%s response carried neither url nor payload", a.provider)
	}

	return map[string][]flow.Value{"out": {value}}, flow.Usage{Credits: wireResp.Credits}, nil
}

// statusError maps a non-2xx HTTP response onto the error taxonomy.
// The response body is consulted for a message but never echoed
// verbatim past a sanity cap.
func (a *Adapter) statusError(resp *http.Response) *dispatch.DispatchError {
	detail := ""
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 512)); err == nil {
		var wireResp response
		if json.Unmarshal(body, &wireResp) == nil && wireResp.Error != "" {
			detail = ": " + wireResp.Error
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return dispatch.Errorf(dispatch.KindUnauthorized,
			"%s rejected the API key", a.provider)

	case resp.StatusCode == http.StatusTooManyRequests:
		return &dispatch.DispatchError{
			Kind:       dispatch.KindRateLimited,
			Message:    fmt.Sprintf("%s rate limit exceeded%s", a.provider, detail),
			RetryAfter: retryAfter(resp),
		}

	case resp.StatusCode >= 500:
		return dispatch.Errorf(dispatch.KindBackendUnavailable,
			"%s returned status %d%s", a.provider, resp.StatusCode, detail)
	}

	return dispatch.Errorf(dispatch.KindInvalidInput,
		"%s rejected the request with status %d%s", a.provider, resp.StatusCode, detail)
}

// retryAfter parses the Retry-After header, either delta-seconds or an
// HTTP date. Zero when absent or unparseable.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

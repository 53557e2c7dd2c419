package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paircrypt/internal/domain"
)

// ErrNotFound is returned when the relay has no bundle for a device.
var ErrNotFound = errors.New("relay: not found")

// AckRequest is the body of POST /msg/{device}/ack. Through is the ID of
// the last envelope to drop.
type AckRequest struct {
	Through domain.EnvelopeID `json:"through"`
}

// HTTP is a RelayClient speaking JSON over HTTP.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for the relay at base with the given request
// timeout. A zero timeout means none.
func NewHTTP(base string, timeout time.Duration) *HTTP {
	return &HTTP{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: timeout},
	}
}

// PublishPreKeyBundle uploads bundle, replacing any earlier one.
func (c *HTTP) PublishPreKeyBundle(ctx context.Context, bundle domain.PreKeyBundle) error {
	return c.do(ctx, http.MethodPost, "/bundle", bundle, nil)
}

// FetchPreKeyBundle fetches device's bundle.
func (c *HTTP) FetchPreKeyBundle(ctx context.Context, device domain.DeviceID) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	if err := c.do(ctx, http.MethodGet, "/bundle/"+url.PathEscape(string(device)), nil, &out); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return out, nil
}

// SendEnvelope queues env for env.To.
func (c *HTTP) SendEnvelope(ctx context.Context, env domain.Envelope) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(string(env.To)), env, nil)
}

// FetchEnvelopes returns up to limit queued envelopes for device, oldest
// first. A limit of zero fetches everything.
func (c *HTTP) FetchEnvelopes(ctx context.Context, device domain.DeviceID, limit int) ([]domain.Envelope, error) {
	path := "/msg/" + url.PathEscape(string(device))
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envs []domain.Envelope
	if err := c.do(ctx, http.MethodGet, path, nil, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// AckEnvelopes drops device's queued envelopes up to and including through.
func (c *HTTP) AckEnvelopes(ctx context.Context, device domain.DeviceID, through domain.EnvelopeID) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(string(device))+"/ack", AckRequest{Through: through}, nil)
}

func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode/100 != 2:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay %s %s: %s: %s", strings.ToLower(method), path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ domain.RelayClient = (*HTTP)(nil)

package relaylib

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cdl-rdv/formrelay/pkg/trace"
)

// UpstreamResponse is the fully read reply of the external API.
type UpstreamResponse struct {
	StatusCode int
	StatusText string
	Body       []byte
}

// OK reports a 2xx status.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Upstream posts url-encoded forms to the external webservice.
type Upstream struct {
	client *http.Client
}

// NewUpstream returns an Upstream using client, or http.DefaultClient when
// client is nil.
func NewUpstream(client *http.Client) *Upstream {
	if client == nil {
		client = http.DefaultClient
	}
	return &Upstream{client: client}
}

// PostForm sends form to endpoint and reads the whole reply. Non-2xx
// replies are returned, not turned into errors.
func (u *Upstream) PostForm(ctx context.Context, endpoint string, form url.Values) (*UpstreamResponse, error) {
	ctx, span := trace.NewSpan(ctx, "upstream.PostForm", attribute.String("http.host", hostOf(endpoint)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		trace.Fail(span, err)
		return nil, errors.Wrapf(err, "building request to %s", hostOf(endpoint))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept-Charset", "UTF-8")
	trace.InjectHeaders(ctx, req.Header)

	resp, err := u.client.Do(req)
	if err != nil {
		trace.Fail(span, err)
		return nil, errors.Wrapf(err, "request failed on calling %s", hostOf(endpoint))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		trace.Fail(span, err)
		return nil, errors.Wrap(err, "reading upstream body")
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	return &UpstreamResponse{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Body:       body,
	}, nil
}

// statusText strips the numeric code from resp.Status ("502 Bad Gateway").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// hostOf keeps credentials and query strings out of logs and spans.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "invalid-url"
	}
	return u.Host
}

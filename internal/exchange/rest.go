package exchange

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"nexus/internal/adapter/enum"
	"nexus/internal/obs"
	"nexus/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const defaultRestTimeout = 15 * time.Second

// Request is a signed REST request; Query is already encoded.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Header http.Header
}

// ErrorDecoder inspects a response and returns an *APIError when it carries an error.
type ErrorDecoder func(status int, body []byte) error

// RestClient sends requests to one exchange base url and decodes the responses with sonic.
type RestClient struct {
	exchange    enum.Exchange
	baseURL     string
	client      *http.Client
	decodeError ErrorDecoder
	metrics     *obs.Metrics
}

func NewRestClient(exchange enum.Exchange, baseURL string, client *http.Client, decodeError ErrorDecoder, metrics *obs.Metrics) *RestClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RestClient{
		exchange:    exchange,
		baseURL:     baseURL,
		client:      client,
		decodeError: decodeError,
		metrics:     metrics,
	}
}

func (c *RestClient) BaseURL() string {
	return c.baseURL
}

// Do sends the request and decodes a successful body into out, out may be nil.
func (c *RestClient) Do(ctx context.Context, r Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultRestTimeout)
	defer cancel()

	url := c.baseURL + r.Path
	if len(r.Query) != 0 {
		url += "?" + r.Query
	}

	var body io.Reader
	if len(r.Body) != 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, url, body)
	if err != nil {
		return errors.Wrap(err, "new request").With("path", r.Path)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if len(r.Body) != 0 && len(req.Header.Get("Content-Type")) == 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request").With("path", r.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRest(time.Since(start))
	if err != nil {
		return errors.Wrap(err, "read response body").With("path", r.Path)
	}

	if c.decodeError != nil {
		if err := c.decodeError(resp.StatusCode, data); err != nil {
			return err
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Exchange: c.exchange, Status: resp.StatusCode, Message: string(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := sonic.ConfigFastest.Unmarshal(data, out); err != nil {
		return errors.Wrap(exception.ErrDecodePayload, err.Error()).With("path", r.Path).With("body", string(data))
	}
	return nil
}

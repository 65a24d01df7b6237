package bybit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

var (
	_keyRetCode = []byte(`"retCode"`)
	_keyRetMsg  = []byte(`"retMsg"`)
)

// response is the envelope of every v5 REST response.
type response[T any] struct {
	RetCode int64  `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
	Time    int64  `json:"time"`
}

// decodeError reports a non 2xx status or a non zero retCode, bybit answers business errors with 200.
func decodeError(status int, body []byte) error {
	code, ok := scanner.ScanIntField(body, _keyRetCode)
	if status >= 200 && status < 300 && (!ok || code == 0) {
		return nil
	}
	msg, _ := scanner.ScanStringField(body, _keyRetMsg)
	if len(msg) == 0 {
		msg = body
	}
	return &exchange.APIError{Exchange: enum.ExchangeBybit, Status: status, Code: code, Message: string(msg)}
}

// restClient signs requests with hex(HMAC-SHA256(timestamp + key + recvWindow + payload)).
type restClient struct {
	rest   *exchange.RestClient
	token  adapter.Token
	millis func() int64
}

func newRestClient(baseURL string, client *http.Client, token adapter.Token, env exchange.Env) *restClient {
	return &restClient{
		rest:   exchange.NewRestClient(enum.ExchangeBybit, baseURL, client, decodeError, env.Metrics),
		token:  token,
		millis: env.Millis,
	}
}

func (c *restClient) header(payload string) http.Header {
	ts := strconv.FormatInt(c.millis(), 10)
	h := http.Header{}
	h.Set(_headerAPIKey, c.token.Key)
	h.Set(_headerTimestamp, ts)
	h.Set(_headerRecvWindow, _recvWindow)
	h.Set(_headerSign, exchange.SignHex(c.token.Secret, ts+c.token.Key+_recvWindow+payload))
	return h
}

func (c *restClient) get(ctx context.Context, path string, params url.Values, out any) error {
	query := params.Encode()
	return c.rest.Do(ctx, exchange.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
		Header: c.header(query),
	}, out)
}

// post sends body as JSON with sorted keys, the signature covers the exact bytes sent.
func (c *restClient) post(ctx context.Context, path string, body map[string]any, out any) error {
	data, err := sonic.ConfigStd.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal body").With("path", path)
	}
	return c.rest.Do(ctx, exchange.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   data,
		Header: c.header(string(data)),
	}, out)
}

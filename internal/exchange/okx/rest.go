package okx

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

var (
	_keyCode  = []byte(`"code"`)
	_keyMsg   = []byte(`"msg"`)
	_keySCode = []byte(`"sCode"`)
	_keySMsg  = []byte(`"sMsg"`)
)

// response is the envelope of every v5 REST response, code is a quoted number.
type response[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

// decodeError reports a non 2xx status or a non zero code. A failed order operation
// carries the cause in the sCode and sMsg of its data item.
func decodeError(status int, body []byte) error {
	code, ok := scanner.ScanIntField(body, _keyCode)
	if status >= 200 && status < 300 && (!ok || code == 0) {
		return nil
	}
	msg, _ := scanner.ScanStringField(body, _keyMsg)
	if sCode, ok := scanner.ScanIntField(body, _keySCode); ok && sCode != 0 {
		code = sCode
		msg, _ = scanner.ScanStringField(body, _keySMsg)
	}
	if len(msg) == 0 {
		msg = body
	}
	return &exchange.APIError{Exchange: enum.ExchangeOKX, Status: status, Code: code, Message: string(msg)}
}

// restClient signs base64(HMAC-SHA256(timestamp + method + path + body)) with an ISO 8601 timestamp.
type restClient struct {
	rest      *exchange.RestClient
	token     adapter.Token
	simulated bool
	now       func() time.Time
}

func newRestClient(baseURL string, client *http.Client, token adapter.Token, simulated bool, env exchange.Env) *restClient {
	return &restClient{
		rest:      exchange.NewRestClient(enum.ExchangeOKX, baseURL, client, decodeError, env.Metrics),
		token:     token,
		simulated: simulated,
		now:       env.Clock,
	}
}

func (c *restClient) header(method, path, body string) http.Header {
	ts := c.now().UTC().Format(_timestampLayout)
	h := http.Header{}
	h.Set(_headerKey, c.token.Key)
	h.Set(_headerSign, exchange.SignBase64(c.token.Secret, ts+method+path+body))
	h.Set(_headerTimestamp, ts)
	h.Set(_headerPassphrase, c.token.Passphrase)
	if c.simulated {
		h.Set(_headerSimulated, "1")
	}
	return h
}

func (c *restClient) get(ctx context.Context, path string, params url.Values, out any) error {
	query := params.Encode()
	signed := path
	if len(query) != 0 {
		signed += "?" + query
	}
	return c.rest.Do(ctx, exchange.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
		Header: c.header(http.MethodGet, signed, ""),
	}, out)
}

func (c *restClient) post(ctx context.Context, path string, body any, out any) error {
	data, err := sonic.ConfigStd.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal body").With("path", path)
	}
	return c.rest.Do(ctx, exchange.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   data,
		Header: c.header(http.MethodPost, path, string(data)),
	}, out)
}

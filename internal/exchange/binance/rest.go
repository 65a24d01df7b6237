package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"nexus/internal/adapter"
	"nexus/internal/adapter/enum"
	"nexus/internal/exchange"

	"github.com/bytedance/sonic"
)

type apiErrorBody struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// decodeError reads the {"code":-1121,"msg":"..."} body of a failed request.
func decodeError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var e apiErrorBody
	if err := sonic.ConfigFastest.Unmarshal(body, &e); err != nil || e.Code == 0 {
		return &exchange.APIError{Exchange: enum.ExchangeBinance, Status: status, Message: string(body)}
	}
	return &exchange.APIError{Exchange: enum.ExchangeBinance, Status: status, Code: e.Code, Message: e.Msg}
}

// restClient signs requests with HMAC-SHA256 over the url encoded parameters.
type restClient struct {
	rest   *exchange.RestClient
	token  adapter.Token
	millis func() int64
}

func newRestClient(baseURL string, client *http.Client, token adapter.Token, env exchange.Env) *restClient {
	return &restClient{
		rest:   exchange.NewRestClient(enum.ExchangeBinance, baseURL, client, decodeError, env.Metrics),
		token:  token,
		millis: env.Millis,
	}
}

func (c *restClient) header() http.Header {
	h := http.Header{}
	h.Set(_headerAPIKey, c.token.Key)
	return h
}

// signed sends a request authenticated by timestamp, recvWindow and signature.
func (c *restClient) signed(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.millis(), 10))
	params.Set("recvWindow", _recvWindow)
	query := params.Encode()
	query += "&signature=" + exchange.SignHex(c.token.Secret, query)

	return c.rest.Do(ctx, exchange.Request{
		Method: method,
		Path:   path,
		Query:  query,
		Header: c.header(),
	}, out)
}

// keyed sends a request carrying only the api key, used by listen key endpoints.
func (c *restClient) keyed(ctx context.Context, method, path string, params url.Values, out any) error {
	return c.rest.Do(ctx, exchange.Request{
		Method: method,
		Path:   path,
		Query:  params.Encode(),
		Header: c.header(),
	}, out)
}

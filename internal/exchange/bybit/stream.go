package bybit

import (
	"context"
	"strconv"
	"time"

	"nexus/internal/exchange"
	"nexus/internal/obs"
	"nexus/pkg/backoff"
	"nexus/pkg/exception"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

var (
	_keyTopic = []byte(`"topic"`)
	_keyOp    = []byte(`"op"`)
)

func decodeOp(frame []byte) (opResponse, bool) {
	if scanner.HasField(frame, _keyTopic) || !scanner.HasField(frame, _keyOp) {
		return opResponse{}, false
	}
	var resp opResponse
	if err := sonic.ConfigFastest.Unmarshal(frame, &resp); err != nil {
		return opResponse{}, false
	}
	return resp, true
}

// authHandshake signs "GET/realtime" + expires, sent again after every reconnect.
func authHandshake(key, secret string, millis func() int64) exchange.Handshake {
	return exchange.Handshake{
		Payload: func() any {
			expires := strconv.FormatInt(millis()+_authExpire.Milliseconds(), 10)
			return opRequest{
				Op:   "auth",
				Args: []any{key, expires, exchange.SignHex(secret, "GET/realtime"+expires)},
			}
		},
		Ack: func(frame []byte) (bool, error) {
			resp, ok := decodeOp(frame)
			if !ok || resp.Op != "auth" {
				return false, nil
			}
			if !resp.Success {
				return false, errors.Wrap(exception.ErrAuthenticate, resp.RetMsg)
			}
			return true, nil
		},
	}
}

func subscribeRequest(seq *obs.Sequence, topic string) opRequest {
	return opRequest{
		ReqID: strconv.FormatUint(seq.Next(), 10),
		Op:    "subscribe",
		Args:  []any{topic},
	}
}

func subscribeAck(reqID string) exchange.AckFunc {
	return func(frame []byte) (bool, error) {
		resp, ok := decodeOp(frame)
		if !ok || resp.Op != "subscribe" || resp.ReqID != reqID {
			return false, nil
		}
		if !resp.Success {
			return false, errors.Wrap(exception.ErrSubscribeRejected, resp.RetMsg)
		}
		return true, nil
	}
}

func pongAck(frame []byte) (bool, error) {
	resp, ok := decodeOp(frame)
	if !ok {
		return false, nil
	}
	return resp.Op == "pong" || resp.RetMsg == "pong", nil
}

// heartbeat pings every interval, the server closes a connection idle for more than 30 seconds.
// onFailure is called with the number of consecutive failed pings.
func heartbeat(stream exchange.Stream, seq *obs.Sequence, interval time.Duration, onFailure func(failures int, err error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		failures := 0
		for {
			if err := backoff.Sleep(ctx, interval); err != nil {
				return nil
			}

			req := opRequest{ReqID: strconv.FormatUint(seq.Next(), 10), Op: "ping"}
			pctx, cancel := context.WithTimeout(ctx, interval)
			err := stream.Request(pctx, req, pongAck, false)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			failures++
			onFailure(failures, err)
		}
	}
}

package okx

import (
	"strconv"

	"nexus/internal/exchange"
	"nexus/internal/obs"
	"nexus/pkg/exception"
	"nexus/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

var (
	_keyEvent   = []byte(`"event"`)
	_keyChannel = []byte(`"channel"`)
)

func decodeEvent(frame []byte) (eventFrame, bool) {
	if !scanner.HasField(frame, _keyEvent) {
		return eventFrame{}, false
	}
	var e eventFrame
	if err := sonic.ConfigFastest.Unmarshal(frame, &e); err != nil {
		return eventFrame{}, false
	}
	return e, true
}

// loginHandshake signs timestamp + "GET/users/self/verify" with the timestamp in unix seconds.
func loginHandshake(key, secret, passphrase string, seconds func() int64) exchange.Handshake {
	return exchange.Handshake{
		Payload: func() any {
			ts := strconv.FormatInt(seconds(), 10)
			return opRequest{
				Op: "login",
				Args: []any{loginArg{
					APIKey:     key,
					Passphrase: passphrase,
					Timestamp:  ts,
					Sign:       exchange.SignBase64(secret, ts+"GET/users/self/verify"),
				}},
			}
		},
		Ack: func(frame []byte) (bool, error) {
			e, ok := decodeEvent(frame)
			if !ok {
				return false, nil
			}
			switch e.Event {
			case "login":
				if e.Code != "0" && len(e.Code) != 0 {
					return false, errors.Wrapf(exception.ErrAuthenticate, "code %s: %s", e.Code, e.Msg)
				}
				return true, nil
			case "error":
				return false, errors.Wrapf(exception.ErrAuthenticate, "code %s: %s", e.Code, e.Msg)
			default:
				return false, nil
			}
		},
	}
}

func subscribeRequest(seq *obs.Sequence, a arg) opRequest {
	return opRequest{
		ID:   strconv.FormatUint(seq.Next(), 10),
		Op:   "subscribe",
		Args: []any{a},
	}
}

func subscribeAck(id string) exchange.AckFunc {
	return func(frame []byte) (bool, error) {
		e, ok := decodeEvent(frame)
		if !ok || e.ID != id {
			return false, nil
		}
		switch e.Event {
		case "subscribe":
			return true, nil
		case "error":
			return false, errors.Wrapf(exception.ErrSubscribeRejected, "code %s: %s", e.Code, e.Msg)
		default:
			return false, nil
		}
	}
}

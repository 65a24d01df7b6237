package exception

import (
	stderrors "errors"
	"testing"

	"github.com/yanun0323/errors"
)

func TestWrappedSentinelMatches(t *testing.T) {
	testCases := []struct {
		desc   string
		target error
		err    error
	}{
		{"wrap", ErrUnsupportedSymbol, errors.Wrap(ErrUnsupportedSymbol, "DOGE/USDT")},
		{"wrapf with attrs", ErrOrder, errors.Wrapf(ErrOrder, "wait %s exceeds duration %s", "60s", "30s").With("uuid", "u1")},
		{"wrapped twice", ErrEngineBuild, errors.Wrapf(errors.Wrap(ErrEngineBuild, "bybit linear"), "build private connector")},
		{"rate limiter", ErrRateLimiterCanceled, errors.Wrap(ErrRateLimiterCanceled, "context canceled").With("limiter", "binance")},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if !stderrors.Is(tc.err, tc.target) {
				t.Fatalf("errors.Is mismatch! %v should match %v", tc.err, tc.target)
			}
			if !errors.Is(tc.err, tc.target) {
				t.Fatalf("yanun0323/errors.Is mismatch! %v should match %v", tc.err, tc.target)
			}
			if stderrors.Is(tc.err, ErrInternal) {
				t.Fatalf("errors.Is mismatch! %v should not match %v", tc.err, ErrInternal)
			}
		})
	}
}

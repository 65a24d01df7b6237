package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"

	"github.com/shopspring/decimal"
)

// Decimal parses a wire number, empty or malformed input is zero.
func Decimal(s string) decimal.Decimal {
	if len(s) == 0 {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Float parses a wire number, empty or malformed input is zero.
func Float(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Int parses a wire integer such as a millisecond timestamp.
func Int(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return i
}

// SignHex returns hex(HMAC-SHA256(secret, payload)).
func SignHex(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignBase64 returns base64(HMAC-SHA256(secret, payload)).
func SignBase64(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

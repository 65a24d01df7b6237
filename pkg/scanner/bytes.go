// Package scanner finds top level fields of a JSON frame without decoding it,
// used to route stream frames to the matching decoder.
package scanner

// ScanStringField returns the string value following key, e.g. key `"e"` in {"e":"trade"}.
// The value is not unescaped.
func ScanStringField(payload []byte, key []byte) ([]byte, bool) {
	i, ok := valueIndex(payload, key)
	if !ok || payload[i] != '"' {
		return nil, false
	}
	i++
	start := i
	for i < len(payload) && payload[i] != '"' {
		i++
	}
	if i >= len(payload) {
		return nil, false
	}
	return payload[start:i], true
}

// ScanUintField returns the unsigned integer value following key.
func ScanUintField(payload []byte, key []byte) (uint64, bool) {
	i, ok := valueIndex(payload, key)
	if !ok || !isDigit(payload[i]) {
		return 0, false
	}
	var v uint64
	for i < len(payload) && isDigit(payload[i]) {
		v = v*10 + uint64(payload[i]-'0')
		i++
	}
	return v, true
}

// ScanIntField returns the integer value following key, quoted or not, e.g. "retCode":-1 or "code":"50011".
func ScanIntField(payload []byte, key []byte) (int64, bool) {
	i, ok := valueIndex(payload, key)
	if !ok {
		return 0, false
	}
	if payload[i] == '"' {
		i++
	}
	neg := false
	if i < len(payload) && payload[i] == '-' {
		neg = true
		i++
	}
	if i >= len(payload) || !isDigit(payload[i]) {
		return 0, false
	}
	var v int64
	for i < len(payload) && isDigit(payload[i]) {
		v = v*10 + int64(payload[i]-'0')
		i++
	}
	if neg {
		v = -v
	}
	return v, true
}

// HasField reports whether key is followed by a value.
func HasField(payload []byte, key []byte) bool {
	_, ok := valueIndex(payload, key)
	return ok
}

func valueIndex(payload []byte, key []byte) (int, bool) {
	for offset := 0; offset < len(payload); {
		idx := IndexOf(payload[offset:], key)
		if idx < 0 {
			return 0, false
		}
		i := offset + idx + len(key)
		offset = i
		for i < len(payload) && IsSpace(payload[i]) {
			i++
		}
		// the key appeared as a value, keep looking
		if i >= len(payload) || payload[i] != ':' {
			continue
		}
		i++
		for i < len(payload) && IsSpace(payload[i]) {
			i++
		}
		if i >= len(payload) {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func IndexOf(payload []byte, key []byte) int {
	if len(key) == 0 || len(payload) < len(key) {
		return -1
	}
outer:
	for i := 0; i <= len(payload)-len(key); i++ {
		for j := 0; j < len(key); j++ {
			if payload[i+j] != key[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

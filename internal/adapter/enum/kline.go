package enum

// KlineInterval from one second to one month
type KlineInterval uint8

const (
	_kline_interval_beg KlineInterval = iota
	KlineInterval1s
	KlineInterval1m
	KlineInterval3m
	KlineInterval5m
	KlineInterval15m
	KlineInterval30m
	KlineInterval1h
	KlineInterval2h
	KlineInterval4h
	KlineInterval6h
	KlineInterval8h
	KlineInterval12h
	KlineInterval1d
	KlineInterval3d
	KlineInterval1w
	KlineInterval1M
	_kline_interval_end
)

func (i KlineInterval) IsAvailable() bool {
	return i > _kline_interval_beg && i < _kline_interval_end
}

var _klineIntervalNames = [...]string{
	KlineInterval1s:  "1s",
	KlineInterval1m:  "1m",
	KlineInterval3m:  "3m",
	KlineInterval5m:  "5m",
	KlineInterval15m: "15m",
	KlineInterval30m: "30m",
	KlineInterval1h:  "1h",
	KlineInterval2h:  "2h",
	KlineInterval4h:  "4h",
	KlineInterval6h:  "6h",
	KlineInterval8h:  "8h",
	KlineInterval12h: "12h",
	KlineInterval1d:  "1d",
	KlineInterval3d:  "3d",
	KlineInterval1w:  "1w",
	KlineInterval1M:  "1M",
}

func (i KlineInterval) String() string {
	if !i.IsAvailable() {
		return ""
	}
	return _klineIntervalNames[i]
}

// ParseKlineInterval parses names such as "1m", "4h" and "1M".
func ParseKlineInterval(s string) (KlineInterval, bool) {
	for i := KlineInterval1s; i < _kline_interval_end; i++ {
		if _klineIntervalNames[i] == s {
			return i, true
		}
	}
	return _kline_interval_beg, false
}

// KlineIntervals lists every canonical interval in ascending order.
func KlineIntervals() []KlineInterval {
	out := make([]KlineInterval, 0, int(_kline_interval_end)-1)
	for i := KlineInterval1s; i < _kline_interval_end; i++ {
		out = append(out, i)
	}
	return out
}

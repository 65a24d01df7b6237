package ems

import (
	"testing"

	"nexus/internal/adapter"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToPrecision(t *testing.T) {
	m := adapter.Market{Precision: adapter.Precision{Amount: 3, Price: 1}}

	testCases := []struct {
		desc   string
		value  string
		mode   RoundMode
		amount string
		price  string
	}{
		{"round", "1.23456", RoundModeRound, "1.235", "1.2"},
		{"ceil", "1.23412", RoundModeCeil, "1.235", "1.3"},
		{"floor", "1.23499", RoundModeFloor, "1.234", "1.2"},
		{"already at precision", "1.2", RoundModeCeil, "1.2", "1.2"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			v := d(tc.value)
			amount := AmountToPrecision(m, v, tc.mode)
			if !amount.Equal(d(tc.amount)) {
				t.Fatalf("amount mismatch! should be %s but got %s", tc.amount, amount)
			}
			price := PriceToPrecision(m, v, tc.mode)
			if !price.Equal(d(tc.price)) {
				t.Fatalf("price mismatch! should be %s but got %s", tc.price, price)
			}
		})
	}
}

func TestToPrecisionBounds(t *testing.T) {
	m := adapter.Market{Precision: adapter.Precision{Amount: 2}}
	unit := d("0.01")

	for _, s := range []string{"0.001", "1.005", "3.14159", "99.999", "42"} {
		v := d(s)
		ceil := AmountToPrecision(m, v, RoundModeCeil)
		floor := AmountToPrecision(m, v, RoundModeFloor)

		assert.True(t, ceil.GreaterThanOrEqual(v), "ceil %s of %s", ceil, v)
		assert.True(t, ceil.Sub(v).LessThan(unit), "ceil %s of %s", ceil, v)
		assert.True(t, floor.LessThanOrEqual(v), "floor %s of %s", floor, v)
		assert.True(t, v.Sub(floor).LessThan(unit), "floor %s of %s", floor, v)

		for _, mode := range []RoundMode{RoundModeRound, RoundModeCeil, RoundModeFloor} {
			once := AmountToPrecision(m, v, mode)
			assert.True(t, once.Equal(AmountToPrecision(m, once, mode)), "%s is not idempotent on %s", mode, v)
		}
	}
}

func TestMinOrderAmount(t *testing.T) {
	m := adapter.Market{
		Precision: adapter.Precision{Amount: 1},
		Limits: adapter.Limits{
			Amount: adapter.Limit{Min: d("1")},
			Cost:   adapter.Limit{Min: d("5")},
		},
	}

	testCases := []struct {
		desc     string
		mid      decimal.Decimal
		expected string
	}{
		{"cost bound", d("1"), "5.5"},
		{"amount bound", d("100"), "1"},
		{"ceil to precision", d("3"), "1.9"},
		{"no mid", decimal.Zero, "1"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			amount := MinOrderAmount(m, tc.mid)
			if !amount.Equal(d(tc.expected)) {
				t.Fatalf("min amount mismatch! should be %s but got %s", tc.expected, amount)
			}
		})
	}
}

func TestParseRoundMode(t *testing.T) {
	for _, mode := range []RoundMode{RoundModeRound, RoundModeCeil, RoundModeFloor} {
		if got := ParseRoundMode(mode.String()); got != mode {
			t.Fatalf("mode mismatch! should be %s but got %s", mode, got)
		}
	}
	assert.Equal(t, RoundModeRound, ParseRoundMode("nearest"))
}

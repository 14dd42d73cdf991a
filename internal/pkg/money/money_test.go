package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		want     string
		currency string
		ok       bool
	}{
		{"simple dollar", "$999", "999", "USD", true},
		{"thousands comma", "$1,299.99", "1299.99", "USD", true},
		{"from prefix", "From $999", "999", "USD", true},
		{"range takes lower bound", "$999-$1,299", "999", "USD", true},
		{"bare number", "999.99", "999.99", "", true},
		{"euro", "€89.50", "89.5", "EUR", true},
		{"not available", "Price not available", "", "", false},
		{"n/a", "N/A", "", "", false},
		{"empty", "", "", "", false},
		{"no digits", "call for price", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, cur, ok := Parse(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				want, _ := decimal.NewFromString(tc.want)
				assert.True(t, got.Equal(want), "got %s want %s", got, want)
				assert.Equal(t, tc.currency, cur)
			}
		})
	}
}

func TestDropPct(t *testing.T) {
	old := decimal.NewFromInt(100)
	newPrice := decimal.NewFromInt(80)
	assert.Equal(t, "20", DropPct(old, newPrice).String())

	// old<=0 时不产生百分比
	assert.True(t, DropPct(decimal.Zero, newPrice).IsZero())
}

func TestDiffPct(t *testing.T) {
	base := decimal.NewFromInt(100)
	assert.Equal(t, "15", DiffPct(base, decimal.NewFromInt(115)).String())
	assert.Equal(t, "15", DiffPct(base, decimal.NewFromInt(85)).String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "USD 1299.99", Format(decimal.NewFromFloat(1299.99), "USD"))
	assert.Equal(t, "999.00", Format(decimal.NewFromInt(999), ""))
}

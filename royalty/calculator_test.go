package royalty

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeClientShare(t *testing.T) {
	cases := []struct {
		name  string
		gross string
		ppd   string
		want  string
	}{
		{"typical kontor statement line", "1234.50", "75", "925.875"},
		{"full rate", "100", "100", "100"},
		{"zero rate is a valid rate", "1234.50", "0", "0"},
		{"zero gross", "0", "75", "0"},
		{"sub-cent streaming revenue", "0.0731", "66.6666666666", "0.0487333333"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ComputeClientShare(dec(c.gross), dec(c.ppd))
			if !got.Equal(dec(c.want)) {
				t.Errorf("ComputeClientShare(%s, %s) = %s, want %s", c.gross, c.ppd, got, c.want)
			}
		})
	}
}

func TestComputeClientShare_TruncatesNotRounds(t *testing.T) {
	// 0.9999999999999 * 100 / 100 keeps 13 fractional digits before the cut;
	// rounding would give 1, truncation keeps the 10-digit prefix.
	got := ComputeClientShare(dec("0.9999999999999"), dec("100"))
	if want := dec("0.9999999999"); !got.Equal(want) {
		t.Errorf("share = %s, want %s", got, want)
	}
}

func TestComputeClientShare_NegativeFallsBackToGross(t *testing.T) {
	gross := dec("-12.40")
	got := ComputeClientShare(gross, dec("75"))
	if !got.Equal(gross) {
		t.Errorf("share = %s, want raw gross %s", got, gross)
	}
}

func TestComputeClientShare_NeverExceedsGross(t *testing.T) {
	grosses := []string{"0.01", "1", "99.99", "1234.5", "1000000"}
	ppds := []string{"0", "10", "50", "99.9999999999", "100"}
	for _, g := range grosses {
		for _, p := range ppds {
			share := ComputeClientShare(dec(g), dec(p))
			if share.GreaterThan(dec(g)) {
				t.Errorf("share %s exceeds gross %s at ppd %s", share, g, p)
			}
			if share.IsNegative() {
				t.Errorf("share %s negative for gross %s ppd %s", share, g, p)
			}
		}
	}
}

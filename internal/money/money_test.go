package money_test

import (
	"errors"
	"math"
	"testing"

	"github.com/nextlevel/funds-api/internal/money"
)

func TestNormalize(t *testing.T) {
	n := money.Normalizer{}
	cases := []struct {
		name    string
		amount  float64
		want    int64
		invalid bool
	}{
		{name: "whole dollars", amount: 5, want: 500},
		{name: "minimum", amount: 1.00, want: 100},
		{name: "cents", amount: 12.34, want: 1234},
		{name: "fractional cent rounds up", amount: 2.005, want: 201},
		{name: "fractional cent rounds down", amount: 2.0049, want: 200},
		{name: "below minimum", amount: 0.99, invalid: true},
		{name: "zero", amount: 0, invalid: true},
		{name: "negative", amount: -3, invalid: true},
		{name: "nan", amount: math.NaN(), invalid: true},
		{name: "positive infinity", amount: math.Inf(1), invalid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := n.Normalize(tc.amount)
			if tc.invalid {
				if !errors.Is(err, money.ErrInvalidAmount) {
					t.Fatalf("expected ErrInvalidAmount, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestNormalizeCustomMinimum(t *testing.T) {
	n := money.Normalizer{Minimum: 10}
	if _, err := n.Normalize(5); !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	got, err := n.Normalize(10)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != 1000 {
		t.Fatalf("expected 1000, got %d", got)
	}
}

func TestFormat(t *testing.T) {
	n := money.Normalizer{}
	if s := n.Format(500); s != "5.00" {
		t.Fatalf("unexpected format %q", s)
	}
	if v := n.ToMajor(1234); v != 12.34 {
		t.Fatalf("unexpected major value %v", v)
	}
}

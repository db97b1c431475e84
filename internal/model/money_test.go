package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{"15", 1500},
		{"12,50 €", 1250},
		{"€12.5", 1250},
		{"1.234,56", 123456},
		{"1,234.56", 123456},
		{"1.234", 123400},
		{"0,99", 99},
		{"-3.10", -310},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMoney_Invalid(t *testing.T) {
	for _, in := range []string{"", "gratis", "-", "1-2"} {
		_, err := ParseMoney(in)
		require.ErrorIs(t, err, ErrInvalid, in)
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "12.05", Money(1205).String())
	assert.Equal(t, "-0.50", Money(-50).String())
}

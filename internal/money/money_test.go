package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		precision int32
		want      Amount
		wantErr   error
	}{
		{name: "integer", input: "90", precision: 2, want: 9000},
		{name: "fraction", input: "12.5", precision: 2, want: 1250},
		{name: "thousands separator", input: "1,234.56", precision: 2, want: 123456},
		{name: "grouped millions", input: "-1,234,567", precision: 0, want: -1234567},
		{name: "negative", input: "-3.01", precision: 2, want: -301},
		{name: "whitespace", input: "  7 ", precision: 0, want: 7},
		{name: "too precise", input: "1.005", precision: 2, wantErr: ErrPrecision},
		{name: "overflow", input: "99999999999999999999", precision: 2, wantErr: ErrOverflow},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.input, tt.precision)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Parse("", 2)
	require.Error(t, err)

	_, err = Parse("ten", 2)
	require.Error(t, err)

	// Commas only group thousands.
	for _, input := range []string{"12,50", "1,2", "1,,0", ",100", "1,234,5", "12,345,67.8"} {
		_, err = Parse(input, 2)
		require.Error(t, err, input)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "60.00", Amount(6000).Format(2))
	assert.Equal(t, "-0.05", Amount(-5).Format(2))
	assert.Equal(t, "12", Amount(12).Format(0))
	assert.True(t, Amount(1250).Decimal(2).Equal(dec("12.5")))
}

func TestAbsMinSum(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Amount(5), Amount(-5).Abs())
	assert.Equal(t, Amount(3), Min(3, 4))
	assert.Equal(t, Amount(-4), Min(3, -4))
	assert.Equal(t, Amount(6), Sum(1, 2, 3))
	assert.Equal(t, Amount(0), Sum())
}

func TestAllocate(t *testing.T) {
	t.Parallel()

	third := decimal.NewFromInt(1).Div(decimal.NewFromInt(3))

	tests := []struct {
		name    string
		total   Amount
		weights []decimal.Decimal
		want    []Amount
	}{
		{
			name:    "even split",
			total:   9000,
			weights: []decimal.Decimal{third, third, third},
			want:    []Amount{3000, 3000, 3000},
		},
		{
			name:    "remainder goes to first on ties",
			total:   100,
			weights: []decimal.Decimal{third, third, third},
			want:    []Amount{34, 33, 33},
		},
		{
			name:    "largest remainder wins",
			total:   10,
			weights: []decimal.Decimal{dec("0.14"), dec("0.26"), dec("0.6")},
			want:    []Amount{1, 3, 6},
		},
		{
			name:    "zero weight gets nothing",
			total:   500,
			weights: []decimal.Decimal{dec("0"), dec("1")},
			want:    []Amount{0, 500},
		},
		{
			name:    "weights need not sum to one",
			total:   300,
			weights: []decimal.Decimal{dec("2"), dec("1")},
			want:    []Amount{200, 100},
		},
		{
			name:    "zero total ignores weights",
			total:   0,
			weights: []decimal.Decimal{dec("0"), dec("0")},
			want:    []Amount{0, 0},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Allocate(tt.total, tt.weights)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, Sum(got...))
		})
	}
}

func TestAllocate_Errors(t *testing.T) {
	t.Parallel()

	_, err := Allocate(100, []decimal.Decimal{dec("0"), dec("0")})
	require.ErrorIs(t, err, ErrZeroWeights)

	_, err = Allocate(100, []decimal.Decimal{dec("-0.5"), dec("1.5")})
	require.ErrorIs(t, err, ErrNegativeWeight)
}

func TestAllocate_AlwaysConserves(t *testing.T) {
	t.Parallel()

	weights := []decimal.Decimal{dec("0.1"), dec("0.2"), dec("0.3"), dec("0.4")}
	for total := Amount(1); total < 500; total += 7 {
		parts, err := Allocate(total, weights)
		require.NoError(t, err)
		require.Equal(t, total, Sum(parts...), "total %d", total)
	}
}

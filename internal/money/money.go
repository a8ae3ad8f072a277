// =============================================================================
// Concourse - Money
// =============================================================================
//
// Monetary amounts are carried as integer minor units (cents for a precision
// of 2). Text is converted at the boundary through shopspring/decimal so that
// no value ever passes through float64.
//
// ALLOCATION:
//   Allocate splits a total across weighted parties with the largest
//   remainder method. The parts always sum to the total exactly, which is
//   what keeps the balance conservation law exact instead of approximate.
//
// =============================================================================

package money

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor units.
type Amount int64

var (
	// ErrPrecision is returned when a value has more fractional digits than
	// the ledger precision allows.
	ErrPrecision = errors.New("too many fractional digits")

	// ErrOverflow is returned when a value does not fit into an Amount.
	ErrOverflow = errors.New("amount out of range")

	// ErrZeroWeights is returned by Allocate when a non-zero total has to
	// be split across weights that sum to zero.
	ErrZeroWeights = errors.New("weights sum to zero")

	// ErrNegativeWeight is returned by Allocate for a negative weight.
	ErrNegativeWeight = errors.New("negative weight")
)

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// groupedDigits matches a number whose integer part is grouped in threes,
// such as "1,234.56".
var groupedDigits = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseDecimal reads decimal text in major units. Commas are accepted only
// as thousands separators; "12,50" is an error, not 1250.
func ParseDecimal(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("parse amount: empty value")
	}

	if strings.Contains(clean, ",") {
		if !groupedDigits.MatchString(clean) {
			return decimal.Zero, fmt.Errorf("parse amount %q: misplaced thousands separator", s)
		}
		clean = strings.ReplaceAll(clean, ",", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// Parse converts decimal text such as "12.5" or "1,234.56" into minor units.
func Parse(s string, precision int32) (Amount, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}

	return FromDecimal(d, precision)
}

// FromDecimal converts a decimal value in major units into minor units.
func FromDecimal(d decimal.Decimal, precision int32) (Amount, error) {
	shifted := d.Shift(precision)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrPrecision, d.String(), precision)
	}

	if shifted.GreaterThan(maxAmount) || shifted.LessThan(minAmount) {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, d.String())
	}

	return Amount(shifted.IntPart()), nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal(precision int32) decimal.Decimal {
	return decimal.New(int64(a), -precision)
}

// Format renders the amount in major units with exactly precision decimals.
func (a Amount) Format(precision int32) string {
	return a.Decimal(precision).StringFixed(precision)
}

// Abs returns the absolute value of a.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Sum adds up amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocate splits total into len(weights) parts proportional to weights.
//
// PARAMETERS:
//   - total: The amount to split, in minor units.
//   - weights: Non-negative weights. They do not need to sum to one.
//
// RETURNS:
//   - One part per weight. The parts sum to total exactly.
//   - ErrNegativeWeight or ErrZeroWeights for weights that cannot split a
//     non-zero total.
//
// ROUNDING:
//   Every part starts at the floor of its exact share. The minor units left
//   over go one each to the parts with the largest fractional remainders.
//   Equal remainders are served in input order, so callers that pass weights
//   in participant order get a participant-order tie-break.
func Allocate(total Amount, weights []decimal.Decimal) ([]Amount, error) {
	parts := make([]Amount, len(weights))

	// A zero total never divides; the recorded weights are irrelevant.
	if total == 0 {
		return parts, nil
	}

	sum := decimal.Zero
	for _, w := range weights {
		if w.IsNegative() {
			return nil, fmt.Errorf("%w: %s", ErrNegativeWeight, w.String())
		}
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		return nil, ErrZeroWeights
	}

	type remainder struct {
		index int
		frac  decimal.Decimal
	}

	t := decimal.NewFromInt(int64(total))
	remainders := make([]remainder, len(weights))
	var allocated Amount

	for i, w := range weights {
		exact := t.Mul(w).Div(sum)
		floor := exact.Floor()
		parts[i] = Amount(floor.IntPart())
		allocated += parts[i]
		remainders[i] = remainder{index: i, frac: exact.Sub(floor)}
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac.GreaterThan(remainders[b].frac)
	})

	left := total - allocated
	for i := 0; left > 0; i++ {
		parts[remainders[i%len(remainders)].index]++
		left--
	}

	return parts, nil
}

package infra

import (
	"math"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericToInt64_Kopecks(t *testing.T) {
	// 70.00 rub held for a hundred-unit order.
	n := Int64ToNumeric(7000)
	v, err := NumericToInt64(n)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), v)
}

func TestNumericToInt64_Negative(t *testing.T) {
	n := Int64ToNumeric(-2500)
	v, err := NumericToInt64(n)
	require.NoError(t, err)
	assert.Equal(t, int64(-2500), v)
}

func TestNumericToInt64_MaxColumnValue(t *testing.T) {
	// numeric(15,0) tops out at 999_999_999_999_999.
	maxVal := int64(999_999_999_999_999)
	n := Int64ToNumeric(maxVal)
	v, err := NumericToInt64(n)
	require.NoError(t, err)
	assert.Equal(t, maxVal, v)
}

func TestNumericToInt64_NullReturnsError(t *testing.T) {
	_, err := NumericToInt64(pgtype.Numeric{Valid: false})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NULL")
}

func TestNumericToInt64_PositiveExponent(t *testing.T) {
	// 70 * 10^2 = 7000
	n := pgtype.Numeric{Int: big.NewInt(70), Exp: 2, Valid: true}
	v, err := NumericToInt64(n)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), v)
}

func TestNumericToInt64_NegativeExponentTruncates(t *testing.T) {
	// 700099 * 10^-2 = 7000 (fraction dropped)
	n := pgtype.Numeric{Int: big.NewInt(700099), Exp: -2, Valid: true}
	v, err := NumericToInt64(n)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), v)
}

func TestNumericToInt64_Overflow(t *testing.T) {
	overflow := new(big.Int).SetInt64(math.MaxInt64)
	overflow.Add(overflow, big.NewInt(1))
	n := pgtype.Numeric{Int: overflow, Exp: 0, Valid: true}
	_, err := NumericToInt64(n)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "overflows")
}

func TestInt64ToNumeric_Roundtrip(t *testing.T) {
	values := []int64{0, 1, -1, 1000, 7000, 999_999_999_999_999, math.MaxInt64, math.MinInt64}
	for _, v := range values {
		n := Int64ToNumeric(v)
		got, err := NumericToInt64(n)
		require.NoError(t, err, "value: %d", v)
		assert.Equal(t, v, got, "value: %d", v)
	}
}

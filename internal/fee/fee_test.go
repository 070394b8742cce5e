package fee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/money"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		feeType string
		rate    float64
		base    float64
		volume  int
		divisor float64
		want    float64
	}{
		{"percentage", "percentage", 2.5, 1000, 0, 100, 25.0},
		{"percentage per mille", "percentage", 5, 1000, 0, 1000, 5.0},
		{"flat ignores base and volume", "flat", 10, 99999, 42, 100, 10},
		{"per volume", "per_volume", 0.2, 1000, 50, 100, 10.0},
		{"case and spaces", " Percentage ", 1.5, 200, 0, 100, 3.0},
		{"rounds to cents", "percentage", 1.25, 10.01, 0, 100, 0.13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.feeType, tt.rate, tt.base, tt.volume, tt.divisor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeUnknownType(t *testing.T) {
	_, err := Compute("tiered", 1, 100, 1, 100)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOptional(t *testing.T) {
	got, err := Optional("", money.Ptr(2), 100, 1, 100)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = Optional("flat", nil, 100, 1, 100)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = Optional("bogus", money.Ptr(2), 100, 1, 100)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Nil(t, got)

	got, err = Optional("flat", money.Ptr(2), 100, 1, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2.0, *got)
}

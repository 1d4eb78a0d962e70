package bs1200

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name    string
		ids     []int
		want    []UnitID
		wantErr bool
	}{
		{"single", []int{1}, []UnitID{1}, false},
		{"sorted and folded", []int{3, 1, 3, 15}, []UnitID{1, 3, 15}, false},
		{"empty", nil, []UnitID{}, false},
		{"zero", []int{0}, nil, true},
		{"sixteen", []int{1, 16}, nil, true},
		{"negative", []int{-1}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(tt.ids...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidUnitID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Units())
		})
	}
}

func TestRegistryCheck(t *testing.T) {
	r, err := NewRegistry(1, 2)
	require.NoError(t, err)

	assert.True(t, r.Validate(1))
	assert.False(t, r.Validate(3))
	assert.NoError(t, r.Check(2))

	err = r.Check(3)
	var ue *UnitIDError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 3, ue.ID)
	assert.Contains(t, err.Error(), "not registered")

	units := r.Units()
	units[0] = 9
	assert.Equal(t, []UnitID{1, 2}, r.Units(), "Units must return a copy")
}

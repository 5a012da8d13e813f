package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionValidate(t *testing.T) {
	bounds := Dimensions{Width: 1920, Height: 1080}

	valid := []struct {
		name   string
		region Region
	}{
		{"full display", Region{X: 0, Y: 0, Width: 1920, Height: 1080}},
		{"single pixel", Region{X: 0, Y: 0, Width: 1, Height: 1}},
		{"bottom right pixel", Region{X: 1919, Y: 1079, Width: 1, Height: 1}},
		{"interior region", Region{X: 100, Y: 200, Width: 800, Height: 600}},
		{"flush right edge", Region{X: 1120, Y: 0, Width: 800, Height: 600}},
		{"flush bottom edge", Region{X: 0, Y: 480, Width: 800, Height: 600}},
	}
	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.region.Validate(bounds))
		})
	}

	invalid := []struct {
		name   string
		region Region
	}{
		{"negative x", Region{X: -1, Y: 0, Width: 100, Height: 100}},
		{"negative y", Region{X: 0, Y: -1, Width: 100, Height: 100}},
		{"zero width", Region{X: 0, Y: 0, Width: 0, Height: 100}},
		{"zero height", Region{X: 0, Y: 0, Width: 100, Height: 0}},
		{"zero size", Region{X: 0, Y: 0, Width: 0, Height: 0}},
		{"past right edge", Region{X: 1121, Y: 0, Width: 800, Height: 600}},
		{"past bottom edge", Region{X: 0, Y: 481, Width: 800, Height: 600}},
		{"origin outside", Region{X: 5000, Y: 5000, Width: 1, Height: 1}},
		{"width wraps uint32", Region{X: 1, Y: 0, Width: 0xffffffff, Height: 1}},
		{"height wraps uint32", Region{X: 0, Y: 1, Width: 1, Height: 0xffffffff}},
		{"max origin max size", Region{X: 0x7fffffff, Y: 0x7fffffff, Width: 0xffffffff, Height: 0xffffffff}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.region.Validate(bounds), ErrInvalidRegion)
		})
	}
}

func TestRegionValidateZeroBounds(t *testing.T) {
	// An uninitialized display size rejects everything.
	err := Region{X: 0, Y: 0, Width: 1, Height: 1}.Validate(Dimensions{})
	require.ErrorIs(t, err, ErrInvalidRegion)
}

// Package display enumerates the machine's active display outputs.
package display

import (
	"errors"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplays reports that no active display output was found.
var ErrNoDisplays = errors.New("no active displays found")

// Info describes one active display output. Coordinates are in virtual
// screen space, so secondary outputs can carry negative origins.
type Info struct {
	Index   int  `json:"index"`
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
	Primary bool `json:"primary"`
}

// List returns every active display ordered by index. Index 0 is the
// primary output.
func List() ([]Info, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplays
	}

	displays := make([]Info, 0, n)
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		displays = append(displays, Info{
			Index:   i,
			X:       bounds.Min.X,
			Y:       bounds.Min.Y,
			Width:   bounds.Dx(),
			Height:  bounds.Dy(),
			Primary: i == 0,
		})
	}
	return displays, nil
}

// Primary returns the primary display.
func Primary() (Info, error) {
	displays, err := List()
	if err != nil {
		return Info{}, err
	}
	return displays[0], nil
}

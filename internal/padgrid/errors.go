package padgrid

import (
	"errors"
	"fmt"

	"github.com/fcal-reco/beamcal/internal/geometry"
)

var (
	// ErrOutOfRange is wrapped by OutOfRangeError.
	ErrOutOfRange = errors.New("pad index out of range")
	// ErrGeometryMismatch is returned when combining grids of different
	// shape or side.
	ErrGeometryMismatch = errors.New("pad grid geometry mismatch")
)

// OutOfRangeError reports the offending pad index.
type OutOfRangeError struct {
	Side   geometry.Side
	Layer  int
	Ring   int
	Sector int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%v: side=%v layer=%d ring=%d sector=%d",
		ErrOutOfRange, e.Side, e.Layer, e.Ring, e.Sector)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

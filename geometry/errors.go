package geometry

// Error types attached to the errors returned by this package. They can be
// checked with errors.IsType from github.com/aukilabs/go-tooling/pkg/errors.
const (
	ErrTypeInvalidDimension    = "invalid-dimension"
	ErrTypeInvalidGeometry     = "invalid-geometry"
	ErrTypeDimensionMismatch   = "dimension-mismatch"
	ErrTypeUnsupportedGeometry = "unsupported-geometry"
)

const (
	// MinDim and MaxDim bound the number of spatial axes.
	MinDim = 1
	MaxDim = 3
)

package pricing

import "errors"

var (
	// ErrUnsupportedAsset indicates no rate source is registered for the asset's symbol.
	ErrUnsupportedAsset = errors.New("pricing: unsupported asset")

	// ErrInvalidRate indicates a rate source returned a zero or negative rate.
	ErrInvalidRate = errors.New("pricing: invalid rate")

	// ErrStaleRate indicates the latest rate is older than the configured maximum age.
	ErrStaleRate = errors.New("pricing: stale rate")

	// ErrInvalidSymbol indicates an empty asset symbol.
	ErrInvalidSymbol = errors.New("pricing: invalid symbol")

	// ErrNilSource indicates a nil rate source was registered.
	ErrNilSource = errors.New("pricing: nil rate source")
)

package model

import "github.com/pkg/errors"

var (
	// ErrConfiguration is returned when a strip is set up with values the
	// hardware or the buffer cannot honour.
	ErrConfiguration = errors.New("configuration error")
	// ErrIndex is returned for a pixel index outside [0, Len()).
	ErrIndex = errors.New("pixel index out of range")
	// ErrUnknownColor is returned for a color name Named does not know.
	ErrUnknownColor = errors.New("unknown color name")
)

package track

import "errors"

var (
	// ErrConfig marks a decoration-time configuration mistake: conflicting or
	// missing options, or an option naming a parameter the signature lacks.
	ErrConfig = errors.New("track: invalid configuration")

	// ErrArgument marks a call-time argument of an unusable type, such as a
	// non-string directory parameter.
	ErrArgument = errors.New("track: invalid argument")

	// ErrSeedType is returned when the bound seed parameter is neither an
	// integer nor nil.
	ErrSeedType = errors.New("track: seed parameter must be an integer or nil")

	// ErrDirectoryNotEmpty is returned when the output directory must be
	// empty but is not.
	ErrDirectoryNotEmpty = errors.New("track: output directory is not empty")
)

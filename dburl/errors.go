package dburl

import "github.com/go-faster/errors"

var (
	// ErrInvalidDatabaseScheme is returned by Parse when the URL scheme is not registered
	ErrInvalidDatabaseScheme = errors.New("invalid database scheme")
	// ErrUnknownFileHeader is returned when an existing file does not match any registered file type
	ErrUnknownFileHeader = errors.New("unknown file header")
	// ErrUnknownFileExtension is returned when a missing file's extension does not match any
	// registered file type
	ErrUnknownFileExtension = errors.New("unknown file extension")
	// ErrInvalidTransportProtocol is returned when the +transport in a scheme is not supported by
	// the scheme
	ErrInvalidTransportProtocol = errors.New("invalid transport protocol")
	// ErrRelativePathNotSupported is returned for relative paths on schemes that need absolute ones
	ErrRelativePathNotSupported = errors.New("relative path not supported")
	// ErrMissingHost is returned when a DSN generator requires a host
	ErrMissingHost = errors.New("missing host")
	// ErrMissingPath is returned when a DSN generator requires a path
	ErrMissingPath = errors.New("missing path")
	// ErrMissingUser is returned when a DSN generator requires a user
	ErrMissingUser = errors.New("missing user")
)

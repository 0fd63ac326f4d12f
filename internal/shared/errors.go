package shared

import "errors"

var (
	// Configuration errors
	ErrMissingConfig = errors.New("configuration not found")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Remote errors. A re-run of the failed pipeline is the recovery path for both.
	ErrAPIRequest = errors.New("marketplace request failed")
	ErrStorage    = errors.New("remote storage request failed")

	// ErrDocumentNotFound means a hosted document answered 404 or 410.
	ErrDocumentNotFound = errors.New("remote document not found")

	// ErrUnreviewedContent is returned instead of deleting a unit that still holds an unreviewed submission.
	ErrUnreviewedContent = errors.New("unit has unreviewed submitted work")

	// ErrConfigMismatch means a recorded URL does not live under the configured remote base.
	ErrConfigMismatch = errors.New("recorded URL does not match configured remote storage")

	// ErrMalformedReference means a URL, annotation or record cell did not have the expected structure.
	ErrMalformedReference = errors.New("malformed reference")

	// Lookup errors
	ErrCacheMiss    = errors.New("cache miss")
	ErrUnitNotFound = errors.New("unit not found")
	ErrRowNotFound  = errors.New("row not found")

	// Input validation errors
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

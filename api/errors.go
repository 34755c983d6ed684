package api

import "errors"

var (
	// ErrMissingCaller indicates a request without a usable X-Caller header.
	ErrMissingCaller = errors.New("api: missing or invalid caller header")

	// ErrBadRequest indicates a malformed path, query or body.
	ErrBadRequest = errors.New("api: bad request")

	// ErrUnknownAsset indicates an asset address absent from the catalog.
	ErrUnknownAsset = errors.New("api: unknown asset")

	// ErrMissingDependency indicates a server built without a collaborator.
	ErrMissingDependency = errors.New("api: missing dependency")
)

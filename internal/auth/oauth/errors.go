package oauth

import "errors"

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrUnauthorized     = errors.New("unauthorized")
)

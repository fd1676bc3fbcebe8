package splitrpc

import "errors"

var (
	// ErrInvalidConfig is returned when the client configuration is incomplete
	ErrInvalidConfig = errors.New("invalid split procedure config")

	// ErrNetworkError is returned on transport failures, including timeouts
	ErrNetworkError = errors.New("network error")

	// ErrUnexpectedStatus is returned for any non-2xx response
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrInvalidResponse is returned when the body does not satisfy the contract
	ErrInvalidResponse = errors.New("invalid split procedure response")

	// ErrUnsuccessful is returned when the procedure answers success:false
	ErrUnsuccessful = errors.New("split procedure reported failure")
)

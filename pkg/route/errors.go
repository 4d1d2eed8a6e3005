package route

import "fmt"

// ModelNotFoundError is returned when a logical model id cannot be resolved
// to a connection, or when a non-privileged caller asks for a model with no
// local record. Surfaced downstream as 404.
type ModelNotFoundError struct {
	Model string
}

// Error implements the error interface.
func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.Model)
}

// AccessDeniedError is returned when the caller lacks read access to the
// requested model. Surfaced downstream as 403.
type AccessDeniedError struct {
	Model string
}

// Error implements the error interface.
func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access to model %q denied", e.Model)
}

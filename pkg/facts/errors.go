package facts

import "fmt"

// NoSuchFactError indicates an operation referenced a handle that is not
// live in the store: either it was never issued or its fact has been
// retracted. Recoverable; the caller decides whether to ignore or surface it.
type NoSuchFactError struct {
	Handle Handle

	// Retracted is true when the handle existed but its fact was retracted,
	// as opposed to a handle the store never issued.
	Retracted bool
}

// Error returns the error message.
func (e *NoSuchFactError) Error() string {
	if e.Retracted {
		return fmt.Sprintf("no such fact: %s (retracted)", e.Handle)
	}
	return fmt.Sprintf("no such fact: %s", e.Handle)
}

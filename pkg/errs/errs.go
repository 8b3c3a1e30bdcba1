package errs

import "errors"

// Error kinds shared by every service. Wrap them with fmt.Errorf("%w: ...") and
// branch with errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrTimeout     = errors.New("timeout")
)

// Kind returns the sentinel wrapped by err, or nil when err carries none.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrInvalid, ErrExpired, ErrAlreadyUsed, ErrTimeout} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

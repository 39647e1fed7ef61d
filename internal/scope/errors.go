package scope

import "errors"

var (
	// ErrResolution marks a resolution failure that cannot be recovered
	// without operator action (bad credentials, no organizations).
	ErrResolution = errors.New("organization scope resolution failed")

	// ErrNotReady is returned by Wait when the caller gives up before
	// resolution finishes.
	ErrNotReady = errors.New("organization scope not yet resolved")
)

// ResolutionError describes why no scope could be selected.
type ResolutionError struct {
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return ErrResolution.Error() + ": " + e.Reason + ": " + e.Err.Error()
	case e.Err != nil:
		return ErrResolution.Error() + ": " + e.Err.Error()
	case e.Reason != "":
		return ErrResolution.Error() + ": " + e.Reason
	}
	return ErrResolution.Error()
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is reports every ResolutionError as ErrResolution.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

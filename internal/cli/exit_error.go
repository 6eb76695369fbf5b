package cli

import "fmt"

// ExitError signals a non-zero exit code without calling os.Exit in RunE
// handlers. Reported errors have already been shown to the user.
type ExitError struct {
	Code     int
	Reported bool
	Err      error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

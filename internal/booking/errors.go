package booking

import "errors"

var (
	ErrInvalidInterval  = errors.New("end_time must be after start_time")
	ErrInvalidReference = errors.New("invalid reference id")
	ErrSlotConflict     = errors.New("time slot already booked")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("appointment not found")
	ErrInvalidStatus    = errors.New("invalid status")
)

// StoreError wraps an underlying persistence failure. Callers may retry the
// whole operation; nothing was written.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapStore passes domain sentinels through untouched and wraps everything
// else as a StoreError.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrForbidden) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

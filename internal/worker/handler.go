package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// JobHandler runs one job type. Type must match the job_type column the
// job was enqueued with.
type JobHandler interface {
	Type() string
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a job failure that retrying cannot fix, such as a
// payload that does not decode. The job goes straight to 'failed'.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// DecodePayload unmarshals a job payload. A decode failure is permanent.
// An empty payload leaves v at its zero value.
func DecodePayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return NewPermanentError(fmt.Errorf("unmarshal payload: %w", err))
	}
	return nil
}

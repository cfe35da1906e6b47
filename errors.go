package webstash

import (
	"context"
	"errors"
	"fmt"
)

// ErrLoadCancelled is the routine cancellation loaders report when a load is
// stopped on purpose. Sessions seeing it (or context.Canceled) tear down
// silently without invoking any handler.
var ErrLoadCancelled = errors.New("webstash: load cancelled")

// CaptureError wraps the error that ended a capture session. It is what the
// failure handler receives and what BeginCapture returns when the root
// navigation cannot even be issued.
type CaptureError struct {
	RootURL string
	Err     error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %q failed: %v", e.RootURL, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

func routineCancel(err error) bool {
	return errors.Is(err, ErrLoadCancelled) || errors.Is(err, context.Canceled)
}

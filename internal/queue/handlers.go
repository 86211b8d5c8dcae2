package queue

import (
	"context"
	"fmt"
	"time"
)

// Handler executes a job's payload and returns the job's result, or an
// error that drives a retry/dead-letter decision.
type Handler func(ctx context.Context, payload map[string]interface{}) (interface{}, error)

// Registry maps a job's Type to the Handler that executes it. A job
// whose type has no registered handler is failed without running any
// handler and then follows the normal retry/dead-letter path, the way
// process_one does, rather than panicking.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a registry preloaded with the built-in echo and
// sleep task types.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("echo", HandleEcho)
	r.Register("sleep", HandleSleep)
	return r
}

// Register adds or replaces the handler for a job type.
func (r *Registry) Register(jobType string, h Handler) {
	r.handlers[jobType] = h
}

// Lookup returns the handler for a job type, if one is registered.
func (r *Registry) Lookup(jobType string) (Handler, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}

// HandleEcho returns its payload unchanged after a fixed delay,
// matching handle_echo's sleep(0.1) pacing.
func HandleEcho(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]interface{}{"echo": payload}, nil
}

// HandleSleep sleeps for payload["seconds"] (default 1.0) and reports
// how long it slept, matching handle_sleep.
func HandleSleep(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
	seconds := 1.0
	if v, ok := payload["seconds"]; ok {
		switch n := v.(type) {
		case float64:
			seconds = n
		case int:
			seconds = float64(n)
		}
	}

	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]interface{}{"slept": seconds}, nil
}

// UnknownTaskTypeError builds the error handed to MarkFailedOrRetry
// when a job's type has no registered handler.
func UnknownTaskTypeError(jobType string) error {
	return fmt.Errorf("unknown task type: %s", jobType)
}

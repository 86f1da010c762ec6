package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	obsmetrics "github.com/smallbiznis/eroom/internal/observability/metrics"
	"go.uber.org/zap"
)

// safeRun turns a panicking job into an error so RunForever keeps ticking.
func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%v: %v", obsmetrics.ErrJobPanic, e.value)
}

func (e *panicError) Unwrap() error { return obsmetrics.ErrJobPanic }

func panicFields(err error) []zap.Field {
	var p *panicError
	if errors.As(err, &p) {
		return []zap.Field{zap.ByteString("stack", p.stack)}
	}
	return nil
}

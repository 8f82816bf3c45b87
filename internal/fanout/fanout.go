// Package fanout runs a unary call over many inputs with a cap on the number
// of in-flight invocations and returns one Result per input.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/telemetry"
)

// DefaultLimit is the number of concurrent calls used when Run is given a
// non-positive limit.
const DefaultLimit = 10

// Result is the outcome of a single call.
type Result[I any] struct {
	// Item is the input the call was made with.
	Item I

	// Err is the error returned by the call, a *PanicError if the call
	// panicked, or the context error if the call was never started.
	Err error

	// Elapsed is the wall time of the call. Zero for calls never started.
	Elapsed time.Duration
}

// OK reports whether the call completed without error.
func (r Result[I]) OK() bool { return r.Err == nil }

// PanicError wraps a value recovered from a panicking call.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("call panicked: %v", e.Value)
}

// Run invokes fn once per item with at most limit calls in flight and blocks
// until every started call has returned.
//
// Results are returned in input order. Items that could not be started
// because ctx was cancelled carry ctx.Err() and fn is not invoked for them;
// calls already running are not interrupted beyond the ctx they receive.
func Run[I any](ctx context.Context, limit int, items []I, fn func(context.Context, I) error) []Result[I] {
	results := make([]Result[I], len(items))
	if len(items) == 0 {
		return results
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	tracer := otel.Tracer("dp-gcp/fanout")
	sem := make(chan struct{}, limit)
	var g errgroup.Group

ITEMS:
	for i, item := range items {
		results[i].Item = item

		if ctx.Err() != nil {
			markNotStarted(ctx, results[i:], items[i:])
			break ITEMS
		}
		select {
		case sem <- struct{}{}: // acquire slot; blocks when at capacity
		case <-ctx.Done():
			markNotStarted(ctx, results[i:], items[i:])
			break ITEMS
		}
		// select picks at random when a slot frees as ctx is cancelled.
		if ctx.Err() != nil {
			<-sem
			markNotStarted(ctx, results[i:], items[i:])
			break ITEMS
		}

		g.Go(func() error {
			defer func() { <-sem }()

			spanCtx, span := tracer.Start(ctx, "fanout.call",
				trace.WithAttributes(attribute.Int("fanout.index", i)),
			)
			start := time.Now()
			err := safeCall(spanCtx, fn, item)
			elapsed := time.Since(start)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()

			telemetry.ObserveFanoutCall(elapsed, err)
			results[i].Err = err
			results[i].Elapsed = elapsed
			return nil
		})
	}

	_ = g.Wait() // goroutines never return an error; failures live in results
	return results
}

func markNotStarted[I any](ctx context.Context, results []Result[I], items []I) {
	for j := range items {
		results[j].Item = items[j]
		results[j].Err = ctx.Err()
	}
}

// safeCall invokes fn and converts a panic into a *PanicError.
func safeCall[I any](ctx context.Context, fn func(context.Context, I) error, item I) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, item)
}

// Failed returns the results whose call did not succeed, in input order.
func Failed[I any](results []Result[I]) []Result[I] {
	var failed []Result[I]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Errors joins every per-item failure into one error, each annotated with
// its item. Returns nil when all calls succeeded.
func Errors[I any](results []Result[I]) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", r.Item, r.Err))
		}
	}
	return errors.Join(errs...)
}

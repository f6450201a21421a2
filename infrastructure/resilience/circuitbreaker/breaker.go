// Package circuitbreaker protects calls to remote dependencies.
//
// A Breaker is a failsafe-go pipeline of fallback, circuit breaker and
// timeout. The circuit breaker tracks a time-based failure rate over the
// rolling window. When the failure share exceeds the configured percentage the
// breaker opens and calls fail fast (or go straight to the fallback). After the
// reset timeout a single trial call is let through: success closes the
// breaker, failure opens it again.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"order-service/domain/shared"

	"github.com/failsafe-go/failsafe-go"
	fscb "github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/fallback"
	"github.com/failsafe-go/failsafe-go/timeout"
	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is a breaker notification delivered to listeners.
type Event string

const (
	EventOpened   Event = "opened"
	EventClosed   Event = "closed"
	EventHalfOpen Event = "halfOpen"
	EventFallback Event = "fallbackInvoked"
)

// Listener receives breaker events synchronously on the calling goroutine.
// It must not call back into the breaker.
type Listener func(name string, event Event)

var (
	ErrOpenState         = errors.New("circuit breaker is open")
	ErrTimeout           = errors.New("circuit breaker call timed out")
	ErrUnknownDependency = errors.New("unknown circuit breaker dependency")
)

// OpenStateError is returned when a call is rejected without running.
type OpenStateError struct {
	Name string
}

func (e *OpenStateError) Error() string {
	return "circuit breaker " + e.Name + " is open"
}

func (e *OpenStateError) Unwrap() []error {
	return []error{ErrOpenState, shared.ErrUnavailable}
}

// TimeoutError is returned when a call outlives the call timeout.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("circuit breaker %s: call timed out after %s", e.Name, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// abandonedError marks a call the caller gave up on. It is neither a failure
// of the dependency nor a reason to fall back.
type abandonedError struct{ err error }

func (e *abandonedError) Error() string { return e.err.Error() }
func (e *abandonedError) Unwrap() error { return e.err }

func isAbandoned(err error) bool {
	var a *abandonedError
	return errors.As(err, &a)
}

type Settings struct {
	// ErrorThresholdPercentage opens the breaker once failures exceed this share of the window.
	ErrorThresholdPercentage float64
	ResetTimeout             time.Duration
	RollingWindow            time.Duration
	CallTimeout              time.Duration
	// VolumeThreshold is the minimum number of calls in the window before the breaker may open.
	VolumeThreshold int
}

func DefaultSettings() Settings {
	return Settings{
		ErrorThresholdPercentage: 50,
		ResetTimeout:             10 * time.Second,
		RollingWindow:            10 * time.Second,
		CallTimeout:              3 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ErrorThresholdPercentage <= 0 {
		s.ErrorThresholdPercentage = d.ErrorThresholdPercentage
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = d.ResetTimeout
	}
	if s.RollingWindow <= 0 {
		s.RollingWindow = d.RollingWindow
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = d.CallTimeout
	}
	if s.VolumeThreshold < 0 {
		s.VolumeThreshold = 0
	}
	return s
}

// failureRate is the whole percentage failsafe-go must reach for the failure
// share to exceed ErrorThresholdPercentage.
func (s Settings) failureRate() uint {
	rate := uint(math.Floor(s.ErrorThresholdPercentage)) + 1
	if rate > 100 {
		rate = 100
	}
	return rate
}

func (s Settings) minExecutions() uint {
	if s.VolumeThreshold < 1 {
		return 1
	}
	return uint(s.VolumeThreshold)
}

type Option func(*Breaker)

func WithListener(l Listener) Option {
	return func(b *Breaker) { b.listeners = append(b.listeners, l) }
}

// Func is the protected operation.
type Func func(ctx context.Context) (any, error)

// Fallback produces a substitute result. err is why the primary path was not used.
type Fallback func(ctx context.Context, err error) (any, error)

type Breaker struct {
	name      string
	settings  Settings
	listeners []Listener

	cb      fscb.CircuitBreaker[any]
	timeout timeout.Timeout[any]
}

func New(name string, settings Settings, opts ...Option) *Breaker {
	settings = settings.withDefaults()
	b := &Breaker{name: name, settings: settings}
	for _, opt := range opts {
		opt(b)
	}

	b.cb = fscb.Builder[any]().
		HandleIf(func(_ any, err error) bool { return err != nil && !isAbandoned(err) }).
		WithFailureRateThreshold(settings.failureRate(), settings.minExecutions(), settings.RollingWindow).
		WithDelay(settings.ResetTimeout).
		WithSuccessThreshold(1).
		OnOpen(func(fscb.StateChangedEvent) { b.emit(EventOpened) }).
		OnHalfOpen(func(fscb.StateChangedEvent) { b.emit(EventHalfOpen) }).
		OnClose(func(fscb.StateChangedEvent) { b.emit(EventClosed) }).
		Build()
	b.timeout = timeout.Builder[any](settings.CallTimeout).Build()
	return b
}

func (b *Breaker) Name() string       { return b.name }
func (b *Breaker) Settings() Settings { return b.settings }

// State reports the current state. An open breaker whose reset timeout has
// passed reports HALF_OPEN: the next call is the trial.
func (b *Breaker) State() State {
	switch {
	case b.cb.IsHalfOpen():
		return StateHalfOpen
	case b.cb.IsOpen():
		if b.cb.RemainingDelay() <= 0 {
			return StateHalfOpen
		}
		return StateOpen
	default:
		return StateClosed
	}
}

// Counts returns the outcomes recorded in the current state's window.
func (b *Breaker) Counts() (successes, failures int) {
	m := b.cb.Metrics()
	return int(m.Successes()), int(m.Failures())
}

// Execute runs fn through the breaker.
//
// While OPEN fn is not called: the fallback result is returned, or an
// *OpenStateError without one. A failure or timeout of fn also goes to the
// fallback when one is supplied. A call abandoned because ctx ended is
// returned as is and not counted against the dependency.
func (b *Breaker) Execute(ctx context.Context, fn Func, fb Fallback) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	policies := []failsafe.Policy[any]{b.cb, b.timeout}
	if fb != nil {
		policies = append([]failsafe.Policy[any]{b.fallbackPolicy(ctx, fb)}, policies...)
	}

	v, err := failsafe.NewExecutor[any](policies...).
		WithContext(ctx).
		GetWithExecution(b.attempt(ctx, fn))
	if err != nil {
		return nil, b.translate(err)
	}
	return v, nil
}

type callResult struct {
	value any
	err   error
}

// attempt runs fn in its own goroutine so a call that ignores cancellation
// still returns at the timeout. Its late result lands in the buffered channel
// and is dropped.
func (b *Breaker) attempt(ctx context.Context, fn Func) func(failsafe.Execution[any]) (any, error) {
	return func(exec failsafe.Execution[any]) (any, error) {
		callCtx, cancel := context.WithCancel(exec.Context())
		defer cancel()

		done := make(chan callResult, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- callResult{err: fmt.Errorf("circuit breaker %s: panic: %v", b.name, r)}
				}
			}()
			v, err := fn(callCtx)
			done <- callResult{value: v, err: err}
		}()

		select {
		case r := <-done:
			if r.err != nil && ctx.Err() != nil {
				return nil, &abandonedError{err: ctx.Err()}
			}
			return r.value, r.err
		case <-ctx.Done():
			return nil, &abandonedError{err: ctx.Err()}
		case <-exec.Canceled():
			if err := ctx.Err(); err != nil {
				return nil, &abandonedError{err: err}
			}
			return nil, timeout.ErrExceeded
		}
	}
}

func (b *Breaker) fallbackPolicy(ctx context.Context, fb Fallback) fallback.Fallback[any] {
	return fallback.BuilderWithFunc[any](func(exec failsafe.Execution[any]) (any, error) {
		b.emit(EventFallback)
		return fb(ctx, b.translate(exec.LastError()))
	}).
		HandleIf(func(_ any, err error) bool { return err != nil && !isAbandoned(err) }).
		Build()
}

// translate maps failsafe-go errors onto this package's error types.
func (b *Breaker) translate(err error) error {
	var abandoned *abandonedError
	switch {
	case errors.As(err, &abandoned):
		return abandoned.err
	case errors.Is(err, fscb.ErrOpen):
		return &OpenStateError{Name: b.name}
	case errors.Is(err, timeout.ErrExceeded):
		return &TimeoutError{Name: b.name, Timeout: b.settings.CallTimeout}
	}
	return err
}

func (b *Breaker) emit(event Event) {
	for _, l := range b.listeners {
		l(b.name, event)
	}
}

// Run is Execute with typed results.
func Run[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error), onFailure func(context.Context, error) (T, error)) (T, error) {
	var fb Fallback
	if onFailure != nil {
		fb = func(ctx context.Context, err error) (any, error) { return onFailure(ctx, err) }
	}
	v, err := b.Execute(ctx, func(ctx context.Context) (any, error) { return fn(ctx) }, fb)
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

// LogListener logs every breaker event.
func LogListener(log *zap.Logger) Listener {
	return func(name string, event Event) {
		fields := []zap.Field{zap.String("breaker", name), zap.String("event", string(event))}
		switch event {
		case EventOpened:
			log.Warn("circuit breaker opened", fields...)
		case EventHalfOpen:
			log.Info("circuit breaker half-open", fields...)
		case EventClosed:
			log.Info("circuit breaker closed", fields...)
		case EventFallback:
			log.Warn("circuit breaker fallback invoked", fields...)
		}
	}
}

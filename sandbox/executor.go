package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/sagarc03/cryptosheet"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxTimeout    = 5000 * time.Millisecond
	DefaultMaxConcurrent = 16
	DefaultMaxCallStack  = 1024
)

// Outcome labels passed to Config.Observe.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Job is a single script run.
type Job struct {
	Source       string
	Capabilities []string
	// Timeout bounds the run. Zero uses the executor's default timeout.
	Timeout time.Duration
}

// Result holds the JSON-ready value the script evaluated to.
type Result struct {
	Value    any
	Duration time.Duration
}

// Config configures an Executor. Zero values fall back to the defaults.
type Config struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	MaxConcurrent  int64
	MaxCallStack   int
	Registry       *Registry
	// Observe, when set, is called after every run.
	Observe func(outcome string, d time.Duration)
}

// Executor runs jobs in isolated runtimes. Each job gets a fresh runtime
// with only the registry's capabilities installed: no module loader, file
// system, network, process or timer APIs exist inside it.
type Executor struct {
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	maxCallStack   int
	registry       *Registry
	sem            *semaphore.Weighted
	observe        func(string, time.Duration)
}

func New(cfg Config) *Executor {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = DefaultMaxTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxCallStack <= 0 {
		cfg.MaxCallStack = DefaultMaxCallStack
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if cfg.Observe == nil {
		cfg.Observe = func(string, time.Duration) {}
	}

	return &Executor{
		defaultTimeout: cfg.DefaultTimeout,
		maxTimeout:     cfg.MaxTimeout,
		maxCallStack:   cfg.MaxCallStack,
		registry:       cfg.Registry,
		sem:            semaphore.NewWeighted(cfg.MaxConcurrent),
		observe:        cfg.Observe,
	}
}

// DefaultTimeout is the timeout used for jobs that do not set one.
func (e *Executor) DefaultTimeout() time.Duration {
	return e.defaultTimeout
}

// ParseTimeout converts a caller-supplied timeout in milliseconds into a
// duration. raw may be a JSON number or a numeric string. Values that are
// not numbers, or not strictly below the executor's maximum, are rejected
// with "timeout too large" rather than clamped.
func (e *Executor) ParseTimeout(raw any) (time.Duration, error) {
	var ms float64
	switch v := raw.(type) {
	case float64:
		ms = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, timeoutTooLarge(raw)
		}
		ms = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, timeoutTooLarge(raw)
		}
		ms = f
	default:
		return 0, timeoutTooLarge(raw)
	}

	if math.IsNaN(ms) || ms >= float64(e.maxTimeout.Milliseconds()) {
		return 0, timeoutTooLarge(raw)
	}
	if ms <= 0 {
		return 0, cryptosheet.BadRequest("invalid timeout").With("timeout", raw)
	}

	return time.Duration(ms * float64(time.Millisecond)), nil
}

func timeoutTooLarge(raw any) error {
	return cryptosheet.BadRequest("timeout too large").With("timeout", raw)
}

// Execute runs job and returns its result. Script failures are returned as
// *cryptosheet.RequestError wrapping cryptosheet.ErrScript, and timeouts
// wrap cryptosheet.ErrTimeout. The job timeout covers the wait for a free
// slot as well as the run itself.
func (e *Executor) Execute(ctx context.Context, job Job) (Result, error) {
	if strings.TrimSpace(job.Source) == "" {
		return Result{}, cryptosheet.BadRequest("no script provided")
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	deadline := time.Now().Add(timeout)

	start := time.Now()
	acquireCtx, cancel := context.WithDeadline(ctx, deadline)
	err := e.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("execute: %w", ctx.Err())
		}
		e.observe(OutcomeTimeout, time.Since(start))
		return Result{}, timedOut(timeout)
	}
	defer e.sem.Release(1)

	budget := time.Until(deadline)
	if budget <= 0 {
		e.observe(OutcomeTimeout, time.Since(start))
		return Result{}, timedOut(timeout)
	}

	value, err := e.run(ctx, job, budget, timeout)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, cryptosheet.ErrTimeout):
		e.observe(OutcomeTimeout, elapsed)
	case err != nil:
		e.observe(OutcomeError, elapsed)
	default:
		e.observe(OutcomeOK, elapsed)
	}
	if err != nil {
		return Result{}, err
	}

	return Result{Value: value, Duration: elapsed}, nil
}

type interruptReason struct {
	err error
}

// run evaluates job in a fresh runtime, interrupting it once budget has
// elapsed. timeout is the job timeout reported in the error.
func (e *Executor) run(ctx context.Context, job Job, budget, timeout time.Duration) (value any, err error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(e.maxCallStack)

	defer func() {
		if r := recover(); r != nil {
			value = nil
			if rerr, ok := r.(error); ok {
				err = classify(rerr, timeout)
				return
			}
			err = scriptError(fmt.Errorf("runtime panic: %v", r))
		}
	}()

	if err := e.registry.Install(vm, job.Capabilities); err != nil {
		return nil, cryptosheet.BadRequest(err.Error())
	}

	timer := time.AfterFunc(budget, func() {
		vm.Interrupt(interruptReason{err: cryptosheet.ErrTimeout})
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(interruptReason{err: ctx.Err()})
	})
	defer stop()

	// Promise jobs queued by the script run before RunString returns, under
	// the same interrupt.
	v, runErr := vm.RunString(job.Source)
	if runErr != nil {
		return nil, classify(runErr, timeout)
	}

	return settle(v)
}

// settle unwraps a promise result. A fulfilled promise yields its value and
// a rejected one becomes a script error. A promise that is still pending
// can never settle because the runtime has no event loop.
func settle(v goja.Value) (any, error) {
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return export(v), nil
	}

	switch p.State() {
	case goja.PromiseStateFulfilled:
		return export(p.Result()), nil
	case goja.PromiseStateRejected:
		return nil, scriptError(fmt.Errorf("promise rejected: %s", p.Result()))
	default:
		return nil, scriptError(errors.New("promise never settled"))
	}
}

func classify(err error, timeout time.Duration) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if reason, ok := interrupted.Value().(interruptReason); ok {
			if errors.Is(reason.err, cryptosheet.ErrTimeout) {
				return timedOut(timeout)
			}
			return fmt.Errorf("execute: %w", reason.err)
		}
	}

	return scriptError(err)
}

func timedOut(timeout time.Duration) *cryptosheet.RequestError {
	return &cryptosheet.RequestError{
		Kind:    cryptosheet.ErrTimeout,
		Message: fmt.Sprintf("script execution timed out after %s", timeout),
	}
}

func scriptError(err error) *cryptosheet.RequestError {
	return &cryptosheet.RequestError{Kind: cryptosheet.ErrScript, Message: err.Error(), Err: err}
}

// export converts a script value into something encoding/json can marshal.
// Values that cannot be marshalled (functions, cyclic objects, NaN) are
// returned as their string form.
func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}

	exported := v.Export()
	if _, err := json.Marshal(exported); err != nil {
		return v.String()
	}
	return exported
}

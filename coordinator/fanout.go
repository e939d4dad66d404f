package coordinator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/stingtools/council/core"
)

// reply is one evaluator's successful answer in a fan-out.
type reply[T any] struct {
	evaluator core.Evaluator
	value     T
}

// fanOut calls fn for every evaluator concurrently and joins on all of them.
// Failed calls are logged by invoke and dropped; the successful replies keep
// the order of evaluators.
func fanOut[T any](ctx context.Context, c *Coordinator, operation string, evaluators []core.Evaluator, fn func(context.Context, core.Evaluator) (T, error)) []reply[T] {
	type slot struct {
		value T
		ok    bool
	}
	slots := make([]slot, len(evaluators))

	var wg sync.WaitGroup
	for i, e := range evaluators {
		wg.Add(1)
		go func(i int, e core.Evaluator) {
			defer wg.Done()
			v, ok := invoke(ctx, c, operation, e, fn)
			slots[i] = slot{value: v, ok: ok}
		}(i, e)
	}
	wg.Wait()

	out := make([]reply[T], 0, len(evaluators))
	for i, s := range slots {
		if s.ok {
			out = append(out, reply[T]{evaluator: evaluators[i], value: s.value})
		}
	}
	return out
}

// invoke runs one evaluator call under the configured timeout. The call is
// abandoned when the derived context ends, even if the evaluator ignores it.
// Errors, timeouts and panics are logged and reported as ok=false.
func invoke[T any](ctx context.Context, c *Coordinator, operation string, e core.Evaluator, fn func(context.Context, core.Evaluator) (T, error)) (T, bool) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.EvaluatorTimeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("evaluator panicked",
					"evaluator_id", e.ID(), "specialty", e.Specialty().String(), "operation", operation,
					"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("%s panicked: %v", operation, r)}
			}
		}()
		v, err := fn(callCtx, e)
		done <- outcome{value: v, err: err}
	}()

	var zero T
	select {
	case out := <-done:
		if out.err != nil {
			c.logger.Warn("evaluator call failed",
				"evaluator_id", e.ID(), "specialty", e.Specialty().String(), "operation", operation, "error", out.err)
			return zero, false
		}
		return out.value, true
	case <-callCtx.Done():
		c.logger.Warn("evaluator call abandoned",
			"evaluator_id", e.ID(), "specialty", e.Specialty().String(), "operation", operation, "error", callCtx.Err())
		return zero, false
	}
}

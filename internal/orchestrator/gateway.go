package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/agentgate/pkg/models"
)

// Runner is the loop a Gateway drives.
type Runner interface {
	Run(ctx context.Context, input string) (models.Answer, error)
}

// Gateway gives callers a blocking, panic-safe way to get one answer.
type Gateway struct {
	runner Runner
}

// NewGateway wraps a runner, normally an *Orchestrator.
func NewGateway(r Runner) *Gateway {
	return &Gateway{runner: r}
}

// IterationRunner is a Runner that accepts an iteration budget per call.
type IterationRunner interface {
	Runner
	RunIterations(ctx context.Context, input string, maxIterations int) (models.Answer, error)
}

var _ IterationRunner = (*Orchestrator)(nil)

// Call runs the loop on a dedicated goroutine and blocks until it finishes.
// A panic inside the loop is converted into ErrNoResponse.
func (g *Gateway) Call(ctx context.Context, input string) (models.Answer, error) {
	return g.call(func() (models.Answer, error) {
		return g.runner.Run(ctx, input)
	})
}

// CallWithIterations is Call with an iteration budget for this request.
// A budget of zero keeps the runner's configured budget.
func (g *Gateway) CallWithIterations(ctx context.Context, input string, maxIterations int) (models.Answer, error) {
	if maxIterations == 0 {
		return g.Call(ctx, input)
	}
	ir, ok := g.runner.(IterationRunner)
	if !ok {
		return models.Answer{}, fmt.Errorf("%w: runner does not accept an iteration budget", ErrInvalidConfig)
	}
	return g.call(func() (models.Answer, error) {
		return ir.RunIterations(ctx, input, maxIterations)
	})
}

func (g *Gateway) call(run func() (models.Answer, error)) (models.Answer, error) {
	type result struct {
		answer models.Answer
		err    error
	}
	done := make(chan result, 1)

	go func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res = result{err: fmt.Errorf("%w: panic: %v", ErrNoResponse, r)}
			}
			done <- res
		}()
		res.answer, res.err = run()
	}()

	res := <-done
	return res.answer, res.err
}

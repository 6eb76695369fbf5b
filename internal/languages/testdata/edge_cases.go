package fixtures

import (
	"context"
	"fmt"
)

type Service interface {
	Run(ctx context.Context) error
}

type Worker struct{}

func (w *Worker) Run(ctx context.Context) error {
	logStart()
	retry := func(n int) error {
		return helper(ctx, n)
	}
	return retry(3)
}

func helper(ctx context.Context, attempts int) error {
	fmt.Println("running", attempts)
	return nil
}

var logStart = func() {
	fmt.Println("start")
}

package grab

import "context"

// Task is a pipeline run executing in the background.
type Task struct {
	cancel  context.CancelFunc
	done    chan struct{}
	outcome *Outcome
}

// Start runs the pipeline as one cancellable background unit. Cancelling the
// task, or ctx, terminates any child process it started.
func (p *Pipeline) Start(ctx context.Context, inv Invocation) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer cancel()
		t.outcome = p.Run(ctx, inv)
		close(t.done)
	}()
	return t
}

// Done is closed once the outcome is available.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the terminal outcome, or nil while the task is running.
func (t *Task) Outcome() *Outcome {
	select {
	case <-t.done:
		return t.outcome
	default:
		return nil
	}
}

// Wait blocks until the task finishes and returns its outcome.
func (t *Task) Wait() *Outcome {
	<-t.done
	return t.outcome
}

// Cancel stops the task. The outcome still arrives through Done.
func (t *Task) Cancel() {
	t.cancel()
}

package async

import (
	"context"
	"errors"
	"fmt"
)

// Task is a named operation.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel starts every task, waits for all of them and returns their
// errors joined, each prefixed with the task name. Tasks share ctx; a task
// that should stop the others must cancel it itself.
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	errs := make([]error, len(tasks))
	done := make(chan struct{}, len(tasks))

	for i, task := range tasks {
		go func() {
			defer func() { done <- struct{}{} }()
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
		}()
	}
	for range len(tasks) {
		<-done
	}

	return errors.Join(errs...)
}

package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes all tasks concurrently and waits for every one.
// Failures are joined into a single error; a failing task never stops
// its siblings.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "key pair", Func: deleteKeyPair},
//	    {Name: "firewall", Func: deleteFirewall},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
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

	for range tasks {
		<-done
	}

	return errors.Join(errs...)
}

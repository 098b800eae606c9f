package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Safe wraps fn so a panic inside it is recovered and surfaced as an error
// instead of taking the process down. fn's own error wins over a recovered
// panic.
func Safe(fn func() error) func() error {
	return func() error {
		var catcher panics.Catcher
		var err error
		catcher.Try(func() {
			err = fn()
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

// SafeContext is Safe for context-taking functions, typically long-running
// goroutines.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var catcher panics.Catcher
		var err error
		catcher.Try(func() {
			err = fn(ctx)
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

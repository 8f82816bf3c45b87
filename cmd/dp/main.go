package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	err := a.rootCmd().ExecuteContext(ctx)
	a.finish(context.Background())

	var exitErr *exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		// The command already reported the failure on stdout.
		return exitErr.code
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}

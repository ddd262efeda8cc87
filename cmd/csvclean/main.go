// Command csvclean cleans CSV exports with declarative per-file rules and
// writes the cleaned rows and an error report next to each other.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvclean/internal/core"
)

func main() {
	// Values already in the environment win over .env.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes one line per underlying error, with its user message
// when one is known.
func printError(w io.Writer, err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			printError(w, e)
		}
		return
	}

	var fileErr *core.FileError
	prefix := "error"
	if errors.As(err, &fileErr) {
		prefix = fileErr.Path
	}
	if core.IsUserFacing(err) {
		fmt.Fprintf(w, "%s: %s\n  %v\n", prefix, core.FormatUserError(err), err)
		return
	}
	fmt.Fprintf(w, "%s: %v\n", prefix, err)
}

// Command goscrypt hashes and verifies passwords with scrypt and can serve
// the same operations over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	dotenv "github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = dotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr, nil)
	cancel()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code. environ
// replaces the process environment when non-nil.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, environ map[string]string) int {
	s := &session{stdin: stdin, environ: environ}
	defer s.close()

	app := &cli.App{
		Name:      "goscrypt",
		Usage:     "scrypt password hashing",
		Writer:    stdout,
		ErrWriter: stderr,
		Before:    s.setup,
		Commands: []*cli.Command{
			s.hashCommand(),
			s.encodeCommand(),
			s.verifyCommand(),
			s.paramsCommand(),
			s.serveCommand(),
		},
		// Exit codes are decided here rather than by os.Exit inside the app.
		ExitErrHandler: func(*cli.Context, error) {},
	}

	err := app.RunContext(ctx, args)
	if err == nil {
		return 0
	}

	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		if msg := exit.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return exit.ExitCode()
	}

	fmt.Fprintf(stderr, "goscrypt: %v\n", err)
	return 2
}

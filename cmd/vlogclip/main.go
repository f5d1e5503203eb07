package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"vlogclip/internal/appdirs"
	"vlogclip/pkg/client"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	g, handled, code := parseGlobalFlags(args, stderr)
	if handled {
		return code
	}
	if len(g.rest) == 0 {
		fmt.Fprintln(stderr, "missing command; run vlogclip -h for usage")
		return 2
	}

	sessionPath := g.session
	if sessionPath == "" {
		paths, err := appdirs.Resolve()
		if err != nil {
			fmt.Fprintf(stderr, "cannot resolve session path: %v\n", err)
			return 1
		}
		sessionPath = appdirs.SessionFileFor(paths)
	}

	api := client.New(g.server)
	cli := &cli{
		api:    api,
		store:  client.OpenState(sessionPath, api),
		stdout: stdout,
		stderr: stderr,
	}

	cmd, cmdArgs := g.rest[0], g.rest[1:]
	switch cmd {
	case "generate":
		return cli.generate(ctx, cmdArgs, false)
	case "batch":
		return cli.generate(ctx, cmdArgs, true)
	case "status":
		return cli.status(ctx, cmdArgs)
	case "cancel":
		return cli.cancel(ctx)
	case "reset":
		return cli.reset()
	case "last":
		return cli.last(ctx, cmdArgs)
	case "download":
		return cli.download(ctx, cmdArgs)
	case "health":
		return cli.health(ctx)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return 2
	}
}

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"vlogclip/config"
	"vlogclip/internal/appdirs"
	"vlogclip/internal/deps"
	"vlogclip/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultServer = "http://127.0.0.1:8888"

type globalFlags struct {
	server  string
	session string
	rest    []string
}

// parseGlobalFlags handles the flags that come before the command. It
// reports handled when -version or -diagnose answered the invocation.
func parseGlobalFlags(args []string, stderr io.Writer) (globalFlags, bool, int) {
	flags := flag.NewFlagSet("vlogclip", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { printUsage(stderr, flags) }

	showVersion := flags.Bool("version", false, "print version information")
	showDiagnose := flags.Bool("diagnose", false, "print runtime diagnostics")
	server := flags.String("server", envOr("VLOGCLIP_SERVER", defaultServer), "vlogclip server address")
	session := flags.String("session", "", "session file (default: <cache dir>/session.json)")

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return globalFlags{}, true, 0
		}
		return globalFlags{}, true, 2
	}

	if *showVersion || *showDiagnose {
		if *showVersion {
			printVersion()
		}
		if *showDiagnose {
			if *showVersion {
				fmt.Println()
			}
			printDiagnose()
		}
		return globalFlags{}, true, 0
	}

	return globalFlags{server: *server, session: *session, rest: flags.Args()}, false, 0
}

func printUsage(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(w, "usage: vlogclip [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  generate [-duration s] [-plan p] [-download dir] <url>")
	fmt.Fprintln(w, "  batch [-duration s] [-plan p] [-download dir] <url>...")
	fmt.Fprintln(w, "  status [-follow]      show the session, optionally following its job")
	fmt.Fprintln(w, "  cancel                cancel the session's job")
	fmt.Fprintln(w, "  reset                 forget the session")
	fmt.Fprintln(w, "  last [-limit n]       list the most recent clips")
	fmt.Fprintln(w, "  download [-dir d] <clip file>")
	fmt.Fprintln(w, "  health                show server health")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	flags.PrintDefaults()
}

func printVersion() {
	fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
}

func printDiagnose() {
	fmt.Printf("runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("version: %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("date: %s\n", date)

	if wd, err := os.Getwd(); err == nil {
		fmt.Printf("working_dir: %s\n", wd)
	} else {
		fmt.Printf("working_dir: <error: %v>\n", err)
	}

	paths, err := appdirs.Resolve()
	if err != nil {
		fmt.Printf("paths: <error: %v>\n", err)
	} else {
		fmt.Printf("portable: %t\n", paths.Portable)
		printPath("config", paths.ConfigFile)
		printPath("clips", appdirs.ClipRootFor(paths))
		printPath("temp", appdirs.TempRootFor(paths))
		printPath("db", appdirs.DBPathFor(paths))
		printPath("session", appdirs.SessionFileFor(paths))
	}
	if logDir, err := log.ResolveLogDir(); err == nil {
		printPath("effective_log_dir", logDir)
	} else {
		fmt.Printf("path.effective_log_dir: <error: %v>\n", err)
	}

	fmt.Println(deps.FormatDependencyReport(deps.ResolveDependencyInventory(config.Conf.Ffmpeg.Path, config.Conf.Ffmpeg.ProbePath)))
}

func printPath(name, value string) {
	_, err := os.Stat(value)
	switch {
	case err == nil:
		fmt.Printf("path.%s: %s (exists)\n", name, value)
	case os.IsNotExist(err):
		fmt.Printf("path.%s: %s (missing)\n", name, value)
	default:
		fmt.Printf("path.%s: %s (error=%v)\n", name, value, err)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

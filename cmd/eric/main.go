// Command eric validates and submits ELSTER documents through a locally
// installed ERiC engine, or serves the engine to other processes over ZeroMQ.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/VanDung-dev/eric-go/config"
	"github.com/VanDung-dev/eric-go/ffi"
	"github.com/VanDung-dev/eric-go/logging"
)

const name = "eric"

// Exit codes.
const (
	exitOK       = 0
	exitRejected = 1
	exitUsage    = 2
	exitFailure  = 3
)

// openLibrary binds the engine. Tests replace it with a fake.
var openLibrary = ffi.Load

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command struct {
	summary string
	run     func(env *environment, args []string) error
}

var commands = map[string]command{
	"versions": {"list supported ERiC releases and the detected installation", runVersions},
	"validate": {"validate XML documents", runValidate},
	"check":    {"schema-check XML documents with EricCheckXML", runCheck},
	"send":     {"validate and submit one XML document", runSend},
	"serve":    {"serve the engine session over ZeroMQ", runServe},
}

var order = []string{"versions", "validate", "check", "send", "serve"}

// environment carries what every subcommand needs.
type environment struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	log    zerolog.Logger
}

// usageError marks errors caused by bad invocation.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// rejectedError marks documents the engine did not accept.
type rejectedError struct{ failed, total int }

func (e *rejectedError) Error() string {
	return fmt.Sprintf("%d of %d documents rejected", e.failed, e.total)
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "%s: unknown command %q\n\n", name, args[0])
		printUsage(stderr)
		return exitUsage
	}

	env := &environment{stdout: stdout, stderr: stderr}
	err := cmd.run(env, args[1:])

	var (
		usage    *usageError
		rejected *rejectedError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.As(err, &usage):
		fmt.Fprintf(stderr, "%s %s: %v\n", name, args[0], err)
		return exitUsage
	case errors.As(err, &rejected):
		fmt.Fprintf(stderr, "%s %s: %v\n", name, args[0], err)
		return exitRejected
	default:
		fmt.Fprintf(stderr, "%s %s: %v\n", name, args[0], err)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "usage: %s <command> [flags] [args]\n\ncommands:\n", name)
	for _, n := range order {
		fmt.Fprintf(w, "  %-9s %s\n", n, commands[n].summary)
	}
	fmt.Fprintf(w, "\nRun '%s <command> -h' for command flags.\n", name)
}

// commonFlags registers the flags shared by all subcommands and returns a
// function that loads configuration once the set is parsed.
func commonFlags(fs *flag.FlagSet, env *environment) func() error {
	configPath := fs.String("config", "", "TOML configuration file")
	envFile := fs.String("env-file", "", "dotenv file (default: .env if present)")
	home := fs.String("home", "", "ERiC installation root (overrides ERIC_HOME)")
	logLevel := fs.String("log-level", "", "log level: trace, debug, info, warn, error")
	console := fs.Bool("console", true, "human-readable log output")

	return func() error {
		if err := config.LoadDotenv(*envFile); err != nil {
			return err
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		if *home != "" {
			cfg.Home = *home
		}
		if *logLevel != "" {
			if _, ok := logging.ParseLevel(*logLevel); !ok {
				return &usageError{msg: fmt.Sprintf("invalid log level %q", *logLevel)}
			}
			cfg.LogLevel = *logLevel
		}
		env.cfg = cfg
		env.log = logging.New(logging.Options{
			Writer:  env.stderr,
			Level:   cfg.LogLevel,
			Console: *console,
			App:     name,
		})
		return nil
	}
}

func newFlagSet(env *environment, cmd string) *flag.FlagSet {
	fs := flag.NewFlagSet(name+" "+cmd, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	}
	return nil
}

// Command hexy inspects a composition file without running any provider.
//
// Usage:
//
//	hexy lint  -config hexy.yaml [-env .env]
//	hexy graph -config hexy.yaml [-format dot|mermaid|json]
//
// lint reports missing dependencies, dependency cycles and layer violations.
// Layer violations fail the command only when layers.strict is set (or
// HEXY_STRICT_LAYERS=true). graph prints the declared dependency graph.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	hexy "github.com/regd25/hexy-sub004"
	"github.com/regd25/hexy-sub004/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "lint":
		return runLint(args[1:], stdout, stderr)
	case "graph":
		return runGraph(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: hexy lint -config <file.yaml> [-env <file.env>]")
	_, _ = fmt.Fprintln(w, "       hexy graph -config <file.yaml> [-format dot|mermaid|json]")
}

type commonFlags struct {
	config *string
	env    *string
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, commonFlags) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(stderr)
	return flags, commonFlags{
		config: flags.String("config", "", "path to the composition file"),
		env:    flags.String("env", "", "optional .env file"),
	}
}

// load reads the configuration and builds the declared application.
func load(cf commonFlags, stderr io.Writer) (*config.Config, *hexy.Application, *zap.Logger, bool) {
	if strings.TrimSpace(*cf.config) == "" {
		usage(stderr)
		return nil, nil, nil, false
	}
	var envFiles []string
	if *cf.env != "" {
		envFiles = append(envFiles, *cf.env)
	}

	cfg, err := config.Load(*cf.config, envFiles...)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, nil, false
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, nil, false
	}
	app, err := cfg.Application(hexy.WithLogger(logger))
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, nil, false
	}
	return cfg, app, logger, true
}

func runLint(args []string, stdout, stderr io.Writer) int {
	flags, cf := newFlagSet("lint", stderr)
	if err := flags.Parse(args); err != nil {
		return 2
	}
	cfg, app, logger, ok := load(cf, stderr)
	if !ok {
		return 2
	}
	defer func() { _ = logger.Sync() }()

	failed := false
	if err := app.Container().Validate(); err != nil {
		failed = true
		for _, line := range splitJoined(err) {
			_, _ = fmt.Fprintln(stdout, "error:", line)
		}
	}

	violations := app.ValidateLayerDependencies(cfg.LayerPolicy())
	label := "warning:"
	if cfg.Layers.Strict {
		label = "error:"
		failed = failed || len(violations) > 0
	}
	for _, v := range violations {
		_, _ = fmt.Fprintln(stdout, label, v.String())
	}

	logger.Debug("lint finished",
		zap.Int("modules", len(app.Modules())),
		zap.Int("violations", len(violations)),
		zap.Bool("strict", cfg.Layers.Strict),
	)
	if failed {
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "ok: %d modules, %d providers\n", len(app.Modules()), app.Container().Registry().Len())
	return 0
}

func runGraph(args []string, stdout, stderr io.Writer) int {
	flags, cf := newFlagSet("graph", stderr)
	format := flags.String("format", "dot", "output format: dot, mermaid or json")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	_, app, logger, ok := load(cf, stderr)
	if !ok {
		return 2
	}
	defer func() { _ = logger.Sync() }()

	graph, err := app.Container().Graph()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	switch *format {
	case "dot":
		_, _ = io.WriteString(stdout, graph.DOT())
	case "mermaid":
		_, _ = io.WriteString(stdout, graph.Mermaid())
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(graph); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return 2
	}
	return 0
}

// splitJoined flattens an errors.Join result into one message per error.
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

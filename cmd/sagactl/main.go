// sagactl runs a saga declared in a TOML file against a set of built-in demo
// actions and prints the outcome as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortressi/saga"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sagactl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		file     = fs.String("file", "", "TOML saga declaration (required)")
		mode     = fs.String("mode", "orchestrate", "execution mode: orchestrate or choreograph")
		dotOut   = fs.Bool("dot", false, "print the execution plan in Graphviz format instead of running")
		logLevel = fs.String("log-level", "info", "log level: debug, info, warn, error, disabled")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, `sagactl - run a saga declaration

Usage:
  sagactl -file saga.toml [-mode orchestrate|choreograph] [-dot] [-log-level level]

Built-in actions:
  %s
`, strings.Join(actionNames(), ", "))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *file == "" {
		fs.Usage()
		return exitUsage
	}

	execMode, err := parseMode(*mode)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	logger, err := newLogger(stderr, *logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	s, err := saga.LoadFile(*file, demoRegistry(), saga.WithLogger(logger))
	if err != nil {
		logger.Error().Err(err).Str("path", *file).Msg("failed to load saga")
		return exitUsage
	}
	logger.Info().Str("path", *file).Str("saga", s.Name().String()).Int("operations", s.Len()).Msg("loaded saga")

	if *dotOut {
		plan, err := s.Plan(execMode)
		if err != nil {
			logger.Error().Err(err).Msg("failed to build plan")
			return exitUsage
		}
		out, err := plan.ExportToDot(s.Name().String())
		if err != nil {
			logger.Error().Err(err).Msg("failed to export plan")
			return exitUsage
		}
		fmt.Fprintln(stdout, out)
		return exitOK
	}

	exec, runErr := s.Run(ctx, execMode)
	if exec == nil {
		logger.Error().Err(runErr).Msg("saga did not start")
		return exitUsage
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newReport(s, exec, runErr)); err != nil {
		logger.Error().Err(err).Msg("failed to write report")
		return exitFailed
	}
	if runErr != nil {
		return exitFailed
	}
	return exitOK
}

func parseMode(v string) (saga.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "orchestrate", "orchestration", "orchestrator":
		return saga.Orchestration, nil
	case "choreograph", "choreography":
		return saga.Choreography, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want orchestrate or choreograph)", v)
	}
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(console).Level(lvl).With().Timestamp().Str("app", "sagactl").Logger(), nil
}

type report struct {
	SagaID     string            `json:"saga_id"`
	Saga       string            `json:"saga"`
	Mode       string            `json:"mode"`
	State      string            `json:"state"`
	DurationMS int64             `json:"duration_ms"`
	Results    []saga.ActionData `json:"results,omitempty"`
	Failure    *failureReport    `json:"failure,omitempty"`
	Log        []eventReport     `json:"log"`
}

type failureReport struct {
	OperationIndex            int               `json:"operation_index"`
	OperationName             string            `json:"operation_name"`
	OperationError            string            `json:"operation_error"`
	CompensationSuccessResult []saga.ActionData `json:"compensation_success_result"`
	CompensationErrors        []string          `json:"compensation_errors"`
}

type eventReport struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Event    string `json:"event"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newReport(s *saga.Saga, exec *saga.Execution, runErr error) report {
	r := report{
		SagaID:     exec.ID.String(),
		Saga:       s.Name().String(),
		Mode:       exec.Mode.String(),
		State:      exec.State.String(),
		DurationMS: exec.Duration().Milliseconds(),
		Results:    exec.Results,
	}
	for _, ev := range exec.Log.Events() {
		er := eventReport{
			Index:    ev.Index,
			Name:     string(ev.Name),
			Event:    ev.EventType.String(),
			Attempts: ev.Attempts,
		}
		if ev.Err != nil {
			er.Error = ev.Err.Error()
		}
		r.Log = append(r.Log, er)
	}

	var sagaErr *saga.SagaError
	if errors.As(runErr, &sagaErr) {
		f := &failureReport{
			OperationIndex:            sagaErr.OperationIndex,
			OperationName:             string(sagaErr.OperationName),
			OperationError:            sagaErr.OperationError.Error(),
			CompensationSuccessResult: sagaErr.CompensationSuccessResult,
			CompensationErrors:        []string{},
		}
		if f.CompensationSuccessResult == nil {
			f.CompensationSuccessResult = []saga.ActionData{}
		}
		for _, err := range sagaErr.CompensationErrors {
			f.CompensationErrors = append(f.CompensationErrors, err.Error())
		}
		r.Failure = f
	}
	return r
}

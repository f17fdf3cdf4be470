// Command finwise-report writes the monthly analysis of one user to a file.
//
// Settings come from the same environment as the server; flags override the
// record source for a single run:
//
//	finwise-report -source memory -data ./data/seed -month 2024-01 -format pdf
//	FINWISE_TOKEN=... finwise-report -format xlsx -out january.xlsx
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"finwise/internal/api"
	"finwise/internal/cli"
	"finwise/internal/config"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/report"
)

// localSubject owns the records of sources that need no token.
const localSubject = "local"

type options struct {
	source string
	data   string
	month  string
	format string
	out    string
	token  string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("finwise-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.source, "source", "", "record source: api, sqlite or memory (default $DATA_SOURCE)")
	fs.StringVar(&o.data, "data", "", "seed directory for the memory source (default $DATA_DIR)")
	fs.StringVar(&o.month, "month", "", "month to report as YYYY-MM (default: current month)")
	fs.StringVar(&o.format, "format", string(report.FormatPDF), "output format: json, pdf or xlsx")
	fs.StringVar(&o.out, "out", "", "output file, - for stdout (default: FinWise-Analysis-<month>.<format>)")
	fs.StringVar(&o.token, "token", "", "bearer token (default $FINWISE_TOKEN, then $SERVICE_TOKEN)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.token == "" {
		o.token = os.Getenv("FINWISE_TOKEN")
	}
	return o, nil
}

func main() {
	cli.LoadEnvFile()
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, time.Now); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "finwise-report:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, now func() time.Time) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg := config.Load()
	if opts.source != "" {
		cfg.DataSource = opts.source
	}
	if opts.data != "" {
		cfg.DataDir = opts.data
	}
	if opts.token == "" {
		opts.token = cfg.ServiceToken
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.LogLevel)
	logCfg.Output = stderr
	logger := log.New(logCfg)

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	month := core.CurrentMonth(now())
	if opts.month != "" {
		if month, err = core.ParseMonthKey(opts.month); err != nil {
			return err
		}
	}

	sess, err := session(cfg, opts.token, now())
	if err != nil {
		return err
	}

	app, err := cli.NewApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer app.Close()

	analysis, err := app.Analysis.Analyze(ctx, sess, month)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", month, err)
	}
	data, err := report.Render(format, analysis.Summary(sess.Subject, now()))
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}

	if opts.out == "-" {
		_, err = stdout.Write(data)
		return err
	}
	out := opts.out
	if out == "" {
		out = report.FileName(month, format)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	logger.Info("Report written",
		"file", out,
		"month", month.String(),
		"format", string(format),
		"bytes", len(data),
		log.FieldUser, sess.Subject)
	return nil
}

// session resolves whose records are read. The memory source holds a single
// data set and runs without a token. With JWT_SECRET set the token's
// signature is checked; otherwise the backend checks it on every call.
func session(cfg *config.Config, token string, now time.Time) (core.Session, error) {
	if token == "" {
		if cfg.DataSource == config.SourceMemory {
			return core.Session{Subject: localSubject, Role: core.RoleUser}, nil
		}
		return core.Session{}, errors.New("a token is required for the api and sqlite sources: use -token or FINWISE_TOKEN")
	}
	if cfg.JWTSecret != "" {
		return api.NewVerifier(cfg.JWTSecret).Session(token, now)
	}
	return api.ParseSession(token, now)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"

	"github.com/pitabwire/cascade"
	"github.com/pitabwire/cascade/config"
	"github.com/pitabwire/cascade/localization"
	"github.com/pitabwire/cascade/telemetry"
	"github.com/pitabwire/cascade/version"
)

const minArgsCommand = 2

func main() {
	if len(os.Args) < minArgsCommand {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch os.Args[1] {
	case "get":
		exitOnErr(cmdGet(ctx, os.Args[2:]))
	case "options":
		exitOnErr(cmdOptions(ctx, os.Args[2:]))
	case "version":
		cmdVersion()
	case "help", "-h", "--help":
		usage()
	default:
		// #nosec G705 -- CLI output is not rendered in an HTML context.
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stdout, "cascade <command> [args]")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Commands:")
	fmt.Fprintln(
		os.Stdout,
		"  get -module M -key K [-lang L] [-accept A] [-persona P] [-mode M] [-user-type U] [-default D] [-config FILE] [-trace]",
	)
	fmt.Fprintln(os.Stdout, "  options [-config FILE] [-trace]")
	fmt.Fprintln(os.Stdout, "  version")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Configuration is read from CASCADE_* environment variables.")
}

// common holds the flags every engine backed command accepts.
type common struct {
	configFile string
	trace      bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "yaml configuration file, overrides the environment")
	fs.BoolVar(&c.trace, "trace", false, "print spans and log records to stderr")
}

func (c *common) loadConfig() (config.ConfigurationDefault, error) {
	if c.configFile != "" {
		return config.LoadFile[config.ConfigurationDefault](c.configFile)
	}
	return config.FromEnv[config.ConfigurationDefault]()
}

// setup builds the telemetry, logger and engine for a command. The returned
// shutdown releases all of them.
func (c *common) setup(
	ctx context.Context,
	cfg *config.ConfigurationDefault,
	opts ...cascade.Option,
) (context.Context, *cascade.Engine, func(), error) {
	var mgr telemetry.Manager
	if c.trace {
		spans, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return ctx, nil, nil, err
		}
		logs, err := stdoutlog.New(stdoutlog.WithWriter(os.Stderr))
		if err != nil {
			return ctx, nil, nil, err
		}

		mgr = telemetry.NewManager(ctx, cfg,
			telemetry.WithServiceName("cascade"),
			telemetry.WithServiceVersion(version.Version),
			telemetry.WithTraceExporter(spans),
			telemetry.WithLogsExporter(logs),
		)
		if err = mgr.Init(ctx); err != nil {
			return ctx, nil, nil, err
		}
		opts = append(opts, cascade.WithTelemetry(mgr.Metrics()))
	}

	var logOpts []util.Option
	if mgr != nil && mgr.LogHandler() != nil {
		logOpts = append(logOpts, util.WithLogHandler(mgr.LogHandler()))
	}
	ctx = util.ContextWithLogger(ctx, newLogger(ctx, cfg, logOpts...))
	log := util.Log(ctx)

	engine, err := cascade.FromConfig(ctx, cfg, opts...)
	if err != nil {
		if mgr != nil {
			_ = mgr.Shutdown(ctx)
		}
		return ctx, nil, nil, err
	}

	shutdown := func() {
		if closeErr := engine.Close(ctx); closeErr != nil {
			log.WithError(closeErr).Warn("could not release engine resources")
		}
		if mgr != nil {
			if shutdownErr := mgr.Shutdown(ctx); shutdownErr != nil {
				log.WithError(shutdownErr).Warn("could not flush telemetry")
			}
		}
	}
	return ctx, engine, shutdown, nil
}

func newLogger(ctx context.Context, cfg config.ConfigurationLogLevel, extra ...util.Option) *util.LogEntry {
	var opts []util.Option
	if level, err := util.ParseLevel(cfg.LoggingLevel()); err == nil {
		opts = append(opts, util.WithLogLevel(level))
	}
	opts = append(opts,
		util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
		util.WithLogNoColor(!cfg.LoggingColored()),
		util.WithLogOutput(os.Stderr),
	)
	if cfg.LoggingShowStackTrace() {
		opts = append(opts, util.WithLogStackTrace())
	}
	return util.NewLogger(ctx, append(opts, extra...)...)
}

func cmdGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	var c common
	c.register(fs)
	module := fs.String("module", "", "module to resolve the key in")
	key := fs.String("key", "", "dot separated key path")
	lang := fs.String("lang", "", "language, negotiated against the manifest languages")
	accept := fs.String("accept", "", "Accept-Language value used when -lang is empty, defaults to LC_ALL, LC_MESSAGES or LANG")
	persona := fs.String("persona", "", "persona")
	mode := fs.String("mode", "", "mode")
	userType := fs.String("user-type", "", "user type")
	defaultValue := fs.String("default", "", "value printed when the key does not resolve, defaults to the key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *module == "" || *key == "" {
		return errors.New("-module and -key are required")
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	ctx, engine, shutdown, err := c.setup(ctx, &cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	if res := engine.Init(ctx); res.Err != nil {
		util.Log(ctx).WithError(res.Err).WithField("status", res.Status).Warn("engine not ready")
	}

	current := engine.Context()
	language := current.Language
	if preferred := preferredLanguages(*lang, *accept); len(preferred) > 0 {
		language = engine.NegotiateLanguage(localization.ToContext(ctx, preferred))
	}

	if err = engine.SetContext(ctx,
		language,
		orCurrent(*persona, current.Persona),
		orCurrent(*mode, current.Mode),
		orCurrent(*userType, current.UserType),
	); err != nil {
		return err
	}

	fallback := *defaultValue
	if fallback == "" {
		fallback = *key
	}

	fmt.Fprintln(os.Stdout, engine.Lookup(ctx, *module, *key, fallback))
	return nil
}

func cmdOptions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("options", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	ctx, engine, shutdown, err := c.setup(ctx, &cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	available := engine.Options(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Status string `json:"status"`
		cascade.Available
	}{
		Status:    engine.Status().String(),
		Available: available,
	})
}

func cmdVersion() {
	fmt.Fprintf(os.Stdout, "cascade %s\n", strings.TrimSpace(orCurrent(version.Version, "dev")))
	if version.Commit != "" {
		fmt.Fprintf(os.Stdout, "commit %s\n", version.Commit)
	}
	if version.Date != "" {
		fmt.Fprintf(os.Stdout, "built %s\n", version.Date)
	}
	if version.Repository != "" {
		fmt.Fprintf(os.Stdout, "repository %s\n", version.Repository)
	}
}

// preferredLanguages lists the languages asked for by -lang, then -accept,
// then the locale environment.
func preferredLanguages(lang, accept string) []string {
	if lang != "" {
		return []string{lang}
	}
	if preferred := localization.ParseAcceptLanguage(accept); len(preferred) > 0 {
		return preferred
	}
	return localization.FromLocale(os.Getenv("LC_ALL"), os.Getenv("LC_MESSAGES"), os.Getenv("LANG"))
}

func orCurrent(value, current string) string {
	if value == "" {
		return current
	}
	return value
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

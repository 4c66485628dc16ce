package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/tts-survey-eval/pkg/analyses"
	"github.com/example/tts-survey-eval/pkg/cache"
	"github.com/example/tts-survey-eval/pkg/config"
	"github.com/example/tts-survey-eval/pkg/metrics"
)

// options holds the persistent flags. Flags override the config file only
// when set on the command line.
type options struct {
	configFile      string
	logLevel        string
	logFormat       string
	survey          string
	outputDir       string
	redisAddr       string
	metricsFile     string
	metricsAddr     string
	seed            uint64
	bootstrapMethod string
	scoring         string
	strict          bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "surveyeval",
		Short: "Statistical evaluation of the emotional TTS listening survey",
		Long: `surveyeval reads the survey export (Survey_Entries.csv), computes best-worst
scaling net scores and runs the significance tests on system preference and
realism ratings. Every run writes its files and a checksum manifest to the
output directory.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "YAML configuration file (defaults apply when empty)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "console", "Log encoding (console or json)")
	pf.StringVar(&opts.survey, "survey", "", "Survey export to read")
	pf.StringVar(&opts.outputDir, "output-dir", "", "Directory for result files")
	pf.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for caching computed results")
	pf.StringVar(&opts.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the run is in progress")
	pf.Uint64Var(&opts.seed, "seed", 0, "Seed for Monte-Carlo and bootstrap resampling")
	pf.StringVar(&opts.bootstrapMethod, "bootstrap-method", "", "Bootstrap interval (bca or percentile)")
	pf.StringVar(&opts.scoring, "scoring", "", "Net-score scoring (plain or flip-incongruent)")
	pf.BoolVar(&opts.strict, "strict", false, "Fail on malformed survey rows instead of skipping them")

	for _, a := range analyses.Registry {
		root.AddCommand(newAnalysisCmd(opts, a))
	}
	root.AddCommand(newAllCmd(opts), newListCmd(), newVerifyCmd(opts), newConfigCmd(opts))
	return root
}

// load resolves the configuration: defaults, then the config file, then flags.
func (o *options) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("log-level", func() { cfg.Logging.Level = o.logLevel })
	set("log-format", func() { cfg.Logging.Format = o.logFormat })
	set("survey", func() { cfg.Files.Survey = o.survey })
	set("output-dir", func() { cfg.OutputDir = o.outputDir })
	set("redis-addr", func() { cfg.Redis.Addr = o.redisAddr })
	set("metrics-file", func() { cfg.MetricsFile = o.metricsFile })
	set("metrics-addr", func() { cfg.MetricsAddr = o.metricsAddr })
	set("seed", func() { cfg.Statistics.Seed = o.seed })
	set("bootstrap-method", func() { cfg.BootstrapMethod = o.bootstrapMethod })
	set("scoring", func() { cfg.Scoring = o.scoring })
	set("strict", func() { cfg.Strict = o.strict })

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds a production zap logger writing to stderr. The console
// format swaps in the development encoder for readable terminal output.
func newLogger(l config.Logging) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	switch l.Format {
	case "json", "":
	case "console":
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", l.Format)
	}
	return zc.Build()
}

// openCache connects to Redis when an address is configured. An unreachable
// server disables caching for the run instead of failing it.
func openCache(ctx context.Context, r config.Redis, logger *zap.Logger) (cache.ResultCache, func()) {
	if r.Addr == "" {
		return cache.NopCache{}, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
	rc := cache.NewRedisCache(client, logger, r.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("Result cache disabled", zap.String("addr", r.Addr), zap.Error(err))
		client.Close()
		return cache.NopCache{}, func() {}
	}
	logger.Info("Using Redis result cache", zap.String("addr", r.Addr), zap.Duration("ttl", r.TTL))
	return rc, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
}

// serveMetrics exposes the metrics registry over HTTP until the returned
// function is called.
func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
}

// run sets up logging, caching and the output store, calls fn and then
// writes the run manifest and the metrics textfile.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, env *analyses.Env, w io.Writer) error) error {
	cfg, err := o.load(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	rc, closeCache := openCache(ctx, cfg.Redis, logger)
	defer closeCache()

	metrics.Register()
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, logger)
		defer stop()
	}
	env := analyses.NewEnv(logger, cfg, rc)
	logger.Info("Starting survey evaluation",
		zap.String("runId", env.Outputs.RunID()),
		zap.String("survey", cfg.Files.Survey),
		zap.String("outputDir", cfg.OutputDir),
		zap.Uint64("seed", cfg.Statistics.Seed))

	runErr := fn(ctx, env, cmd.OutOrStdout())

	errs := []error{runErr}
	if _, err := env.Outputs.Finalize(ctx); err != nil {
		errs = append(errs, err)
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

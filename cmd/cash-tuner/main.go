package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iwvelando/cash-tuner/internal/config"
	"github.com/iwvelando/cash-tuner/internal/forecast"
	"github.com/iwvelando/cash-tuner/internal/server"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/output"
	"github.com/iwvelando/cash-tuner/pkg/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	var zapConfig zap.Config
	switch loggingConfig.Format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "", "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", loggingConfig.Format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}
		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": %q}\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	envFile := flag.String("env-file", ".env", "path to an optional .env file")
	inputFile := flag.String("input", "", "forecast input file override (JSON or YAML)")
	paramsToken := flag.String("params-token", "", "parameter share token override")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	serve := flag.Bool("serve", false, "run the HTTP API instead of a single forecast")
	serverConfig := flag.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fatalf("%v", err)
	}

	if *serve {
		runServer(*serverConfig, *logLevel)
		return
	}

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fatalf("failed to load configuration at %s: %v", *configLocation, err)
	}
	if *inputFile != "" {
		conf.Input.File = *inputFile
	}
	if *paramsToken != "" {
		conf.Input.ParametersToken = *paramsToken
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	input, err := forecast.LoadInput(conf.Input.File)
	if err != nil {
		logger.Fatal("failed to load forecast input",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	raw, err := conf.RawParameters()
	if err != nil {
		logger.Fatal("failed to resolve parameters",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	report := forecast.NewEngine(logger, conf.NewBuilder(logger)).Run(input, raw)
	for _, warning := range report.Warnings {
		logger.Debug(warning,
			zap.String("op", "main"),
		)
	}

	if err := output.Write(os.Stdout, outputFormat, report); err != nil {
		logger.Fatal("failed to write report",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}

func runServer(configPath, logLevel string) {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		fatalf("failed to load server configuration at %s: %v", configPath, err)
	}

	logger, err := initializeLogger(cfg.Logging, logLevel)
	if err != nil {
		fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	engine := forecast.NewEngine(logger, cfg.Application().NewBuilder(logger))
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           server.NewHandler(logger, engine, cfg.BodyLimit(), version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed",
				zap.String("op", "main.runServer"),
				zap.Error(err),
			)
		}
	}()

	logger.Info("serving forecast API",
		zap.String("op", "main.runServer"),
		zap.String("address", cfg.Address),
		zap.Int64("max_body_bytes", cfg.BodyLimit()),
		zap.String("version", version),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed",
			zap.String("op", "main.runServer"),
			zap.Error(err),
		)
	}
}

// Command quizagent serves the quiz-solving agent over HTTP, or over MCP on
// stdio with -mcp.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/quizagent/docpipe"
	"github.com/hazyhaar/quizagent/quiz"
	"github.com/hazyhaar/quizagent/shield"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var version = "dev"

func main() {
	envErr := godotenv.Load()

	configPath := flag.String("config", env("QUIZ_CONFIG", ""), "path to a YAML config file")
	addr := flag.String("addr", env("QUIZ_ADDR", ":8080"), "HTTP listen address")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "debug, info, warn or error")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio instead of HTTP")
	flag.Parse()

	var lvl slog.Level
	switch *logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// Stdout carries the MCP stream in -mcp mode.
	out := os.Stdout
	if *mcpMode {
		out = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := quiz.MustNewMetrics(prometheus.DefaultRegisterer)
	agent, err := quiz.New(cfg, quiz.WithLogger(logger), quiz.WithMetrics(metrics))
	if err != nil {
		logger.Error("agent", "error", err)
		os.Exit(1)
	}
	if err := agent.Start(ctx); err != nil {
		logger.Error("agent start", "error", err)
		os.Exit(1)
	}
	defer agent.Close()

	if *mcpMode {
		runMCP(ctx, agent, cfg, logger)
		return
	}

	rl := shield.NewRateLimiter(cfg.RateLimit)
	rl.StartGC(ctx.Done())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           quiz.NewHandler(agent, rl, promhttp.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", *addr, "mode", cfg.Browser.Mode, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	// Sessions are bounded by their own deadline; wait for them before the
	// browser goes away.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.SessionBudget()+5*time.Second)
	defer waitCancel()
	if err := agent.Wait(waitCtx); err != nil {
		logger.Warn("sessions still running at exit", "error", err)
	}
	logger.Info("server stopped")
}

func runMCP(ctx context.Context, agent *quiz.Agent, cfg *quiz.Config, logger *slog.Logger) {
	srv := mcp.NewServer(&mcp.Implementation{Name: "quizagent", Version: version}, nil)
	agent.RegisterMCP(srv)
	docpipe.New(docpipe.Config{Logger: logger}).RegisterMCP(srv)

	logger.Info("mcp serving on stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp", "error", err)
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.SessionBudget()+5*time.Second)
	defer waitCancel()
	if err := agent.Wait(waitCtx); err != nil {
		logger.Warn("sessions still running at exit", "error", err)
	}
}

func loadConfig(path string) (*quiz.Config, error) {
	cfg := &quiz.Config{}
	if path != "" {
		var err error
		if cfg, err = quiz.LoadConfigFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyDefaults()
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

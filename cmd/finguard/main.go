package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/finguard-labs/finguard/pkg/adapter"
	"github.com/finguard-labs/finguard/pkg/agent"
	"github.com/finguard-labs/finguard/pkg/analysis"
	"github.com/finguard-labs/finguard/pkg/api"
	"github.com/finguard-labs/finguard/pkg/capability"
	"github.com/finguard-labs/finguard/pkg/config"
	"github.com/finguard-labs/finguard/pkg/contracts"
	"github.com/finguard-labs/finguard/pkg/gateway"
	"github.com/finguard-labs/finguard/pkg/observability"
	"github.com/finguard-labs/finguard/pkg/orchestrator"
	"github.com/finguard-labs/finguard/pkg/scoring"
)

const version = "1.0.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServe(stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return runServe(stdout, stderr)
	case "gateway":
		return runGateway(stdout, stderr)
	case "analyze":
		return runAnalyze(args[2:], stdout, stderr)
	case "health":
		return runHealthCmd(stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "finguard v%s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorBlue  = "\033[34m"
	ColorGreen = "\033[32m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sFinGuard %s%s\n", ColorBold+ColorBlue, "v"+version, ColorReset)
	fmt.Fprintf(w, "%sStaged fraud screening with capability-scoped agents.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  finguard <command> [flags]")
	fmt.Fprintln(w, "")
	printCommand(w, "serve", "Run the gateway and analysis API (default)")
	printCommand(w, "gateway", "Run only the action gateway")
	printCommand(w, "analyze", "Screen content from the command line (--text, --mode, --media)")
	printCommand(w, "health", "Check analysis API health (HTTP)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-10s%s %s\n", ColorGreen, name, ColorReset, desc)
}

func buildLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN", "WARNING":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func buildEngine(cfg *config.Config) (*scoring.Engine, error) {
	if cfg.ScoringProfile == "" {
		return scoring.NewDefaultEngine(), nil
	}
	tables, err := scoring.LoadProfile(cfg.ScoringProfile)
	if err != nil {
		return nil, fmt.Errorf("load scoring profile: %w", err)
	}
	return scoring.NewEngine(tables), nil
}

func buildPipeline(cfg *config.Config, logger *slog.Logger, confirm agent.ConfirmFunc) (*orchestrator.Orchestrator, error) {
	authority, err := capability.NewLocalAuthority([]byte(cfg.SigningKey), agent.DefaultPolicies())
	if err != nil {
		return nil, fmt.Errorf("build authority: %w", err)
	}
	return orchestrator.New(agent.Deps{
		Authority:      authority,
		Gateway:        adapter.NewClient(cfg.GatewayURL, logger),
		Logger:         logger,
		Confirm:        confirm,
		ConfirmTimeout: cfg.ConfirmTimeout,
	}), nil
}

func runServe(stdout, stderr io.Writer) int {
	cfg := config.Load()
	logger := buildLogger(cfg.LogLevel, stderr)

	obsCfg := observability.DefaultConfig()
	obsCfg.Environment = cfg.Environment
	obsCfg.Enabled = cfg.OTLPEndpoint != ""
	if cfg.OTLPEndpoint != "" {
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	obs, err := observability.New(context.Background(), obsCfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	registry, err := gateway.DefaultRegistry(engine, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	gatewaySrv := &http.Server{
		Addr:              ":" + cfg.GatewayPort,
		Handler:           obs.Middleware("gateway")(gateway.NewServer(registry, logger).Routes()),
		ReadHeaderTimeout: 30 * time.Second,
	}

	pipeline, err := buildPipeline(cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	limiter := api.NewPerIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	apiHandler := limiter.Middleware(analysis.NewServer(pipeline, logger).Routes())
	apiSrv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           obs.Middleware("analysis_api")(apiHandler),
		ReadHeaderTimeout: 30 * time.Second,
	}

	fmt.Fprintf(stdout, "%sFinGuard starting...%s\n", ColorBold+ColorBlue, ColorReset)
	errCh := make(chan error, 2)
	go func() {
		logger.Info("gateway listening", "addr", gatewaySrv.Addr)
		errCh <- gatewaySrv.ListenAndServe()
	}()
	go func() {
		logger.Info("analysis api listening", "addr", apiSrv.Addr)
		errCh <- apiSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	case <-sigCh:
		logger.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(ctx)
	_ = gatewaySrv.Shutdown(ctx)
	_ = obs.Shutdown(ctx)
	return 0
}

func runGateway(stdout, stderr io.Writer) int {
	cfg := config.Load()
	logger := buildLogger(cfg.LogLevel, stderr)

	engine, err := buildEngine(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	registry, err := gateway.DefaultRegistry(engine, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	srv := &http.Server{
		Addr:              ":" + cfg.GatewayPort,
		Handler:           gateway.NewServer(registry, logger).Routes(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("gateway listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// runAnalyze screens a single piece of content with an in-process gateway,
// so it works without any running service.
func runAnalyze(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	text := fs.String("text", "", "content to screen")
	mode := fs.String("mode", string(contracts.ModeCommand), "execution mode: ASK or COMMAND")
	media := fs.String("media", string(contracts.MediaText), "media type of the content")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *text == "" {
		fmt.Fprintln(stderr, "Usage: finguard analyze --text <content> [--mode ASK|COMMAND] [--media text]")
		return 2
	}

	cfg := config.Load()
	logger := buildLogger(cfg.LogLevel, stderr)

	engine, err := buildEngine(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	registry, err := gateway.DefaultRegistry(engine, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	gatewaySrv := &http.Server{
		Handler:           gateway.NewServer(registry, logger).Routes(),
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() { _ = gatewaySrv.Serve(ln) }()
	defer gatewaySrv.Close()
	cfg.GatewayURL = "http://" + ln.Addr().String()

	pipeline, err := buildPipeline(cfg, logger, terminalConfirm(stdout))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	report, err := pipeline.Process(context.Background(), orchestrator.Request{
		Input:     *text,
		MediaType: *media,
		Mode:      *mode,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// terminalConfirm prompts on the terminal for ASK-mode escalation approval.
func terminalConfirm(stdout io.Writer) agent.ConfirmFunc {
	reader := bufio.NewReader(os.Stdin)
	return func(ctx context.Context, prompt string) (bool, error) {
		fmt.Fprintf(stdout, "\n%s%s%s [y/N]: ", ColorBold, prompt, ColorReset)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

func runHealthCmd(stdout, stderr io.Writer) int {
	cfg := config.Load()
	resp, err := http.Get("http://localhost:" + cfg.APIPort + "/health")
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	body, _ := io.ReadAll(resp.Body)
	fmt.Fprintf(stdout, "%s", body)
	return 0
}

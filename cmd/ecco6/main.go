// Ecco6 is the server behind the Ecco6 voice assistant button.
//
// It answers spoken and typed requests with a tool-calling language
// model, keeps per-user alarms and announces them to connected devices.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	ecco6 serve              Start the API server
//	ecco6 init [dir]         Write an example config into dir
//	ecco6 ask <question>     Ask a single question (for testing)
//	ecco6 version            Print version and build information
//	ecco6 -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/agent"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/api"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/buildinfo"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/memory"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/mqtt"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/notify"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/session"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/speech"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
	_ "time/tzdata"                  // devices may run without a zoneinfo database
)

// main only builds the OS environment and hands off to [run], so the
// whole lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Logs go to stdout; args is os.Args[1:].
// Arguments are parsed by hand to keep flag's package globals out of
// tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: ecco6 ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Ecco6 - voice assistant server")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: ecco6 [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Write an example config.yaml (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/ecco6/config.yaml, /etc/ecco6/config.yaml")
	return nil
}

// runAsk answers one question as a throwaway session for the
// configured user. Alarm and task tools write to the real stores.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	alarmStore, err := alarm.OpenStore(filepath.Join(cfg.DataDir, "alarms.db"))
	if err != nil {
		return fmt.Errorf("open alarm store: %w", err)
	}
	defer alarmStore.Close()
	alarms := alarm.NewService(alarmStore, logger)

	reg, closeAll, err := buildRegistry(ctx, cfg, loc, alarms, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	loop := agent.NewLoop(agent.Config{
		Model:         cfg.Agent.Model,
		MaxIterations: cfg.Agent.MaxIterations,
		Location:      loc,
	}, createLLMClient(cfg, logger), reg, memory.NewStore(cfg.Agent.HistoryLimit), logger)

	sess := &session.Session{Token: "cli", UserID: session.UserID("cli@localhost"), Email: "cli@localhost"}
	resp, err := loop.Run(ctx, agent.Request{
		Session:  sess,
		Messages: []agent.Message{{Role: "user", Content: strings.Join(args, " ")}},
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, resp.Content)
	return nil
}

// runServe is the primary operating mode. It opens the stores, starts
// per-user alarm notifiers for every open session and serves the API
// until SIGINT or SIGTERM.
//
// Shutdown order:
//  1. the signal cancels ctx, which stops every notifier
//  2. devices are told the server is going away
//  3. in-flight HTTP requests drain
//  4. stores close via defers
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stdout, cfg)
	logger.Info("starting Ecco6", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)
	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"data_dir", cfg.DataDir,
		"provider", cfg.Agent.Provider,
		"model", cfg.Agent.Model,
	)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Stores ---
	alarmStore, err := alarm.OpenStore(filepath.Join(cfg.DataDir, "alarms.db"))
	if err != nil {
		return fmt.Errorf("open alarm store: %w", err)
	}
	defer alarmStore.Close()
	alarms := alarm.NewService(alarmStore, logger)

	sessionStore, err := session.OpenStore(filepath.Join(cfg.DataDir, "sessions.db"))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessionStore.Close()

	// --- Speech ---
	var voice api.Speech
	if cfg.OpenAI.APIKey != "" {
		voice = speech.New(cfg.OpenAI, logger)
	} else {
		logger.Info("speech disabled (openai.api_key not set)")
	}

	// --- Announcement sinks ---
	hub := api.NewHub(voice, logger)
	sinks := notify.NewMulti(logger, notify.Log(logger), hub)

	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Configured() {
		mqttPub = mqtt.New(cfg.MQTT, logger)
		if err := mqttPub.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt publisher: %w", err)
		}
		sinks.Add(mqttPub)
		logger.Info("mqtt announcements enabled", "broker", cfg.MQTT.Broker)
	} else {
		logger.Info("mqtt announcements disabled (not configured)")
	}

	// --- Alarm notifiers ---
	notifier := alarm.NewNotifier(alarms, sinks, alarm.NotifierConfig{
		Interval: cfg.Alarm.PollInterval,
		Timeout:  cfg.Alarm.NotifyTimeout,
		Location: loc,
	}, logger)
	supervisor := alarm.NewSupervisor(ctx, notifier.Run, logger)
	defer supervisor.StopAll()

	sessions := session.NewManager(sessionStore, supervisor, logger)
	resumed, err := sessions.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume sessions: %w", err)
	}
	logger.Info("alarm notifiers resumed", "users", resumed)

	// --- Agent ---
	reg, closeAll, err := buildRegistry(ctx, cfg, loc, alarms, logger)
	if err != nil {
		return err
	}
	defer closeAll()
	logger.Info("tools registered", "count", len(reg.Names()), "tools", reg.Names())

	llmClient := createLLMClient(cfg, logger)
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := llmClient.Ping(pingCtx); err != nil {
		// The provider may come up later; requests will fail until it does.
		logger.Warn("language model unreachable", "provider", cfg.Agent.Provider, "error", err)
	}
	pingCancel()

	loop := agent.NewLoop(agent.Config{
		Model:         cfg.Agent.Model,
		MaxIterations: cfg.Agent.MaxIterations,
		Location:      loc,
	}, llmClient, reg, memory.NewStore(cfg.Agent.HistoryLimit), logger)

	// --- API server ---
	server := api.NewServer(api.Config{
		Address:   cfg.Listen.Address,
		Port:      cfg.Listen.Port,
		PublicURL: cfg.Listen.PublicURL,
	}, sessions, loop, alarms, voice, hub, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if mqttPub != nil {
			if err := mqttPub.Stop(shutdownCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Ecco6 stopped")
	return nil
}

// newLogger builds the configured process logger.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	// ParseLogLevel was already checked by config.Validate.
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return config.NewLogger(w, level, cfg.LogFormat)
}

// loadConfig locates and parses the YAML configuration file. Returns
// the parsed config and the path that was loaded.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

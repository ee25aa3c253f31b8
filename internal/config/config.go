// Package config loads PTL's runtime configuration from a .env file,
// then environment variables, then command-line flags, in increasing
// priority.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RunMode selects which introspection surfaces the daemon exposes.
type RunMode string

const (
	RunModeHTTP RunMode = "http"
	RunModeMCP  RunMode = "mcp"
	RunModeBoth RunMode = "both"
)

// ServerConfig holds the admin HTTP surface settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	// JSON selects the JSON handler over the default text handler, for
	// deployments that feed logs into an aggregator rather than a
	// terminal.
	JSON bool
}

// SchedulerConfig holds the core engine's tunables.
type SchedulerConfig struct {
	TickDuration   time.Duration
	DefaultPolicy  string // "SKIP", "KILL", or "CATCH_UP"
	TracingEnabled bool
	MaxTasks       int
}

// DiagConfig holds the diagnostics-heartbeat settings.
type DiagConfig struct {
	CronExpr string
}

// BarkConfig holds Bark notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// NotificationConfig holds all notification settings.
type NotificationConfig struct {
	Bark BarkConfig
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Scheduler    SchedulerConfig
	Diag         DiagConfig
	Notification NotificationConfig

	Mode RunMode
	// StateDir is the directory for the optional trace/registry archive.
	// Empty disables the archiver entirely.
	StateDir      string
	ShutdownGrace time.Duration
}

const (
	defaultAddr          = "0.0.0.0:7070"
	defaultLogLevel      = "info"
	defaultTickDuration  = time.Millisecond
	defaultPolicy        = "SKIP"
	defaultMaxTasks      = 8
	defaultDiagCron      = "* * * * *"
	defaultShutdownGrace = 5 * time.Second
	defaultMode          = RunModeHTTP
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse parses command line flags and environment variables into Config.
// Priority: CLI flags > environment variables > .env file > defaults.
func Parse() (*Config, error) {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "ptl", ".env"))
	}
	_ = godotenv.Load(envFiles...) // optional file

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("PTL_ADDR", defaultAddr),
			AuthToken: getEnvString("PTL_AUTH_TOKEN", ""),
		},
		Log: LogConfig{
			Level: getEnvString("PTL_LOG_LEVEL", defaultLogLevel),
			JSON:  getEnvBool("PTL_LOG_JSON", false),
		},
		Scheduler: SchedulerConfig{
			TickDuration:   getEnvDuration("PTL_TICK_DURATION", defaultTickDuration),
			DefaultPolicy:  getEnvString("PTL_DEFAULT_POLICY", defaultPolicy),
			TracingEnabled: getEnvBool("PTL_TRACING_ENABLED", true),
			MaxTasks:       getEnvInt("PTL_MAX_TASKS", defaultMaxTasks),
		},
		Diag: DiagConfig{
			CronExpr: getEnvString("PTL_DIAG_CRON", defaultDiagCron),
		},
		Notification: NotificationConfig{
			Bark: BarkConfig{
				URL:     getEnvString("PTL_BARK_URL", ""),
				Enabled: getEnvBool("PTL_BARK_ENABLED", false),
			},
		},
		Mode:          RunMode(getEnvString("PTL_MODE", string(defaultMode))),
		StateDir:      getEnvString("PTL_STATE_DIR", ""),
		ShutdownGrace: getEnvDuration("PTL_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	var addr, logLevel, policy, mode, diagCron, stateDir string
	var tracingEnabled bool
	var maxTasks int
	var shutdownGrace time.Duration
	var logJSON bool

	flag.StringVar(&addr, "addr", "", "HTTP admin listen address (overrides env)")
	flag.StringVar(&stateDir, "state-dir", "", "directory for the optional trace/registry archive")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.BoolVar(&logJSON, "log-json", false, "emit logs as JSON instead of text")
	flag.StringVar(&policy, "default-policy", "", "default overrun policy (SKIP, KILL, CATCH_UP)")
	flag.StringVar(&mode, "mode", "", "introspection surface: http, mcp, or both")
	flag.StringVar(&diagCron, "diag-cron", "", "cron expression for the diagnostics heartbeat")
	flag.BoolVar(&tracingEnabled, "tracing", true, "enable the trace ring buffer")
	flag.IntVar(&maxTasks, "max-tasks", 0, "maximum registered task count")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "grace period when shutting down")

	flag.Parse()

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if policy != "" {
		cfg.Scheduler.DefaultPolicy = policy
	}
	if mode != "" {
		cfg.Mode = RunMode(mode)
	}
	if diagCron != "" {
		cfg.Diag.CronExpr = diagCron
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if maxTasks > 0 {
		cfg.Scheduler.MaxTasks = maxTasks
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tracing":
			cfg.Scheduler.TracingEnabled = tracingEnabled
		case "shutdown-grace":
			cfg.ShutdownGrace = shutdownGrace
		case "log-json":
			cfg.Log.JSON = logJSON
		}
	})

	if cfg.Scheduler.MaxTasks < 1 {
		cfg.Scheduler.MaxTasks = defaultMaxTasks
	}
	switch cfg.Mode {
	case RunModeHTTP, RunModeMCP, RunModeBoth:
	default:
		return nil, fmt.Errorf("invalid run mode %q: want http, mcp, or both", cfg.Mode)
	}

	return cfg, nil
}

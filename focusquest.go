// Package focusquest wires the scoring engine together: configuration,
// storage, the event bus, the orchestrator, the badge evaluator, the
// demotion sweeper, and the HTTP surfaces.
package focusquest

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/internal/audit"
	"github.com/focusquest-dev/focusquest/internal/observability"
	"github.com/focusquest-dev/focusquest/internal/pipeline"
	"github.com/focusquest-dev/focusquest/internal/sweep"
	"github.com/focusquest-dev/focusquest/pkg/api"
	"github.com/focusquest-dev/focusquest/pkg/badges"
	"github.com/focusquest-dev/focusquest/pkg/bus"
	obs "github.com/focusquest-dev/focusquest/pkg/observability"
	"github.com/focusquest-dev/focusquest/pkg/store"
)

// maxConfigBytes bounds the config file size before parsing.
const maxConfigBytes = 1 << 20

// Config represents the top-level configuration
type Config struct {
	Store store.Config `yaml:"store,omitempty"`
	Bus   BusConfig    `yaml:"bus,omitempty"`
	Audit AuditConfig  `yaml:"audit,omitempty"`
	API   APIConfig    `yaml:"api,omitempty"`
	Ops   OpsConfig    `yaml:"ops,omitempty"`
	Sweep SweepConfig  `yaml:"sweep,omitempty"`
}

// BusConfig configures the in-process event bus.
type BusConfig struct {
	// BufferSize is the per-subscriber channel buffer.
	// Default: 100.
	BufferSize int `yaml:"buffer_size"`
}

// AuditConfig configures the soft audit engine.
type AuditConfig struct {
	// Mode selects the validity threshold.
	// Options: "soft" (threshold 70), "strict" (threshold 50).
	// Default: "soft".
	Mode string `yaml:"mode"`
}

// APIConfig configures the public HTTP API.
type APIConfig struct {
	// Enabled determines whether the API server runs.
	Enabled bool `yaml:"enabled"`

	// Port is the listen port. Default: 8080.
	Port int `yaml:"port"`

	// RequestsPerSecond is the per-user rate budget. Default: 5.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the per-user burst allowance. Default: 10.
	Burst int `yaml:"burst"`
}

// OpsConfig configures the health/metrics server.
type OpsConfig struct {
	// Enabled determines whether the ops server runs.
	Enabled bool `yaml:"enabled"`

	// Port is the listen port. Default: 9090.
	Port int `yaml:"port"`
}

// SweepConfig configures the inactivity demotion sweeper.
type SweepConfig struct {
	// Enabled determines whether the sweep is scheduled.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression. Default: daily at 03:00.
	Schedule string `yaml:"schedule"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Store: store.Config{Driver: "memory"},
		Bus:   BusConfig{BufferSize: bus.DefaultBufferSize},
		Audit: AuditConfig{Mode: string(game.AuditSoft)},
		API:   APIConfig{Enabled: true, Port: 8080, RequestsPerSecond: 5, Burst: 10},
		Ops:   OpsConfig{Enabled: true, Port: 9090},
		Sweep: SweepConfig{Enabled: true, Schedule: sweep.DefaultSchedule},
	}
}

// FileReader interface for reading files (testable)
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileReader implements FileReader using os.ReadFile
type OSFileReader struct{}

func (r *OSFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) // #nosec G304 - path is from trusted CLI input
}

// ConfigLoader loads configuration from a file
type ConfigLoader struct {
	fileReader FileReader
}

// NewConfigLoader creates a new config loader
func NewConfigLoader(fr FileReader) *ConfigLoader {
	return &ConfigLoader{fileReader: fr}
}

// LoadConfig loads and parses a config file. Fields absent from the file
// keep their defaults; environment variables fill the remaining gaps.
func (cl *ConfigLoader) LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := cl.fileReader.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if len(data) > maxConfigBytes {
			return nil, fmt.Errorf("config file exceeds %d bytes", maxConfigBytes)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv fills unset fields from environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("FOCUSQUEST_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("FOCUSQUEST_STORE_DIR"); v != "" {
		c.Store.BaseDir = v
	}
	if v := os.Getenv("FOCUSQUEST_REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("FOCUSQUEST_AUDIT_MODE"); v != "" {
		c.Audit.Mode = v
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Audit.Mode {
	case string(game.AuditSoft), string(game.AuditStrict), "":
	default:
		return fmt.Errorf("unknown audit mode %q", c.Audit.Mode)
	}
	if c.API.Enabled && c.API.Port <= 0 {
		return fmt.Errorf("api port must be positive, got %d", c.API.Port)
	}
	if c.Ops.Enabled && c.Ops.Port <= 0 {
		return fmt.Errorf("ops port must be positive, got %d", c.Ops.Port)
	}
	if c.API.Enabled && c.Ops.Enabled && c.API.Port == c.Ops.Port {
		return fmt.Errorf("api and ops servers cannot share port %d", c.API.Port)
	}
	if c.Bus.BufferSize < 0 {
		return fmt.Errorf("bus buffer size must not be negative, got %d", c.Bus.BufferSize)
	}
	return nil
}

// Engine is the assembled scoring system.
type Engine struct {
	Config       *Config
	Store        store.Store
	Bus          *bus.Bus
	Orchestrator *pipeline.Orchestrator
	Badges       *badges.Evaluator
	Sweeper      *sweep.Sweeper

	apiServer *api.Server
	opsServer *obs.Server
}

// Open assembles an engine from the given config.
func Open(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	st, err := store.New(config.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var busOpts []bus.Option
	if config.Bus.BufferSize > 0 {
		busOpts = append(busOpts, bus.WithBufferSize(config.Bus.BufferSize))
	}
	b := bus.New(busOpts...)

	auditEngine := audit.New(game.AuditMode(config.Audit.Mode))
	orchestrator := pipeline.New(st, auditEngine, pipeline.WithBus(b))

	e := &Engine{
		Config:       config,
		Store:        st,
		Bus:          b,
		Orchestrator: orchestrator,
		Badges:       badges.NewEvaluator(nil, b),
	}

	if config.Sweep.Enabled {
		e.Sweeper = sweep.New(st, sweep.WithBus(b), sweep.WithSchedule(config.Sweep.Schedule))
	}
	if config.API.Enabled {
		limiter := api.NewRateLimiter(config.API.RequestsPerSecond, config.API.Burst)
		e.apiServer = api.NewServer(config.API.Port, e, st, api.WithRateLimit(limiter))
	}
	if config.Ops.Enabled {
		e.opsServer = obs.NewServer(config.Ops.Port)
	}

	return e, nil
}

// Process scores one session and evaluates badge unlocks on the result.
func (e *Engine) Process(ctx context.Context, session *game.Session, source game.Source) (*game.SessionSummary, error) {
	summary, err := e.Orchestrator.Process(ctx, session, source)
	if err != nil {
		return nil, err
	}
	e.Badges.Evaluate(summary)
	return summary, nil
}

// Run starts the configured servers and the sweep schedule, then blocks
// until interrupted.
func Run(configPath string) error {
	// Initialize observability from environment variables
	if err := observability.InitFromEnv(); err != nil {
		log.Printf("Warning: Failed to initialize observability: %v", err)
		// Continue even if observability fails
	}

	loader := NewConfigLoader(&OSFileReader{})
	config, err := loader.LoadConfig(configPath)
	if err != nil {
		return err
	}

	engine, err := Open(config)
	if err != nil {
		return err
	}
	return engine.Run()
}

// Run starts the engine's servers and blocks until interrupted.
func (e *Engine) Run() error {
	obs.InitMetrics()

	checker := obs.InitHealthChecker()
	checker.RegisterCheck(obs.StoreCheck(func(ctx context.Context) error {
		_, err := e.Store.ListStates(ctx)
		return err
	}))
	checker.RegisterCheck(obs.BusCheck(e.Bus.Dropped))

	if e.Sweeper != nil {
		if err := e.Sweeper.Start(); err != nil {
			return fmt.Errorf("starting sweep: %w", err)
		}
		log.Printf("Demotion sweep scheduled: %s", e.Config.Sweep.Schedule)
	}

	errCh := make(chan error, 2)

	if e.opsServer != nil {
		go func() {
			log.Printf("Ops server listening on :%d", e.Config.Ops.Port)
			if err := e.opsServer.Start(); err != nil {
				errCh <- fmt.Errorf("ops server: %w", err)
			}
		}()
	}
	if e.apiServer != nil {
		go func() {
			log.Printf("API server listening on :%d", e.Config.API.Port)
			if err := e.apiServer.Start(); err != nil {
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	log.Println("Engine started. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down...", sig)
	case err := <-errCh:
		log.Printf("Server failed: %v", err)
		e.Close()
		return err
	}

	return e.Close()
}

// Close stops the servers, the sweep, the bus, and the store.
func (e *Engine) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if e.apiServer != nil {
		if err := e.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: Failed to shutdown API server: %v", err)
		}
	}
	if e.opsServer != nil {
		if err := e.opsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: Failed to shutdown ops server: %v", err)
		}
	}
	if e.Sweeper != nil {
		e.Sweeper.Stop()
	}
	if err := e.Bus.Close(); err != nil {
		log.Printf("Warning: Failed to close bus: %v", err)
	}

	if err := observability.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Failed to shutdown observability: %v", err)
	}

	return e.Store.Close()
}

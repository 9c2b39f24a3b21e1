package store

import (
	"fmt"
	"sync"
)

// Factory is a function that creates a Store from a Config.
type Factory func(config Config) (Store, error)

// Config selects and configures a store driver.
type Config struct {
	// Driver names the backend: "memory", "file", "redis", or "firestore".
	Driver string `yaml:"driver"`
	// BaseDir is the base directory for the file driver.
	BaseDir string `yaml:"base_dir,omitempty"`
	// Redis configures the redis driver.
	Redis RedisConfig `yaml:"redis,omitempty"`
	// Firestore configures the firestore driver.
	Firestore FirestoreConfig `yaml:"firestore,omitempty"`
}

// FirestoreConfig configures the firestore driver.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// registry holds all registered store drivers.
var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a store driver to the registry. Drivers register themselves
// from init; external backends (firestore) register from their own package
// so their SDK is only linked when imported.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if factory == nil {
		panic("store: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("store: Register called twice for driver " + name)
	}
	registry[name] = factory
}

// New creates a Store for the driver named in the config.
func New(config Config) (Store, error) {
	mu.RLock()
	factory, ok := registry[config.Driver]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver: %s (available: %v)", config.Driver, ListDrivers())
	}
	return factory(config)
}

// ListDrivers returns all registered driver names.
func ListDrivers() []string {
	mu.RLock()
	defer mu.RUnlock()

	drivers := make([]string, 0, len(registry))
	for name := range registry {
		drivers = append(drivers, name)
	}
	return drivers
}

func init() {
	Register("memory", func(Config) (Store, error) {
		return NewMemoryStore(), nil
	})
	Register("file", func(config Config) (Store, error) {
		return NewFileStore(config.BaseDir)
	})
	Register("redis", func(config Config) (Store, error) {
		return NewRedisStore(config.Redis)
	})
}

package app

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/examtable/internal/scheduling"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type Config struct {
	Server struct {
		Port string `toml:"port"`
	} `toml:"server"`

	API struct {
		RequiredHeaders []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Locking struct {
		RedisURL    string `toml:"redis_url"`
		Key         string `toml:"key"`
		TTLSeconds  int    `toml:"ttl_seconds"`
		WaitSeconds int    `toml:"wait_seconds"`
	} `toml:"locking"`

	Scheduling struct {
		SearchDays int      `toml:"search_days"`
		Slots      []string `toml:"slots"`
	} `toml:"scheduling"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	config.applyDefaults()

	if _, err := config.CanonicalSlots(); err != nil {
		return nil, err
	}

	logger.Debug.Printf("Loaded scheduling config: %+v", config.Scheduling)

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "./migrations"
	}
	if c.Locking.Key == "" {
		c.Locking.Key = "examtable:locks"
	}
	if c.Locking.TTLSeconds <= 0 {
		c.Locking.TTLSeconds = 30
	}
	if c.Locking.WaitSeconds <= 0 {
		c.Locking.WaitSeconds = 10
	}
	if c.Scheduling.SearchDays <= 0 {
		c.Scheduling.SearchDays = scheduling.DefaultSearchDays
	}
}

// CanonicalSlots parses the configured slots, falling back to the
// morning and afternoon defaults.
func (c *Config) CanonicalSlots() ([]scheduling.Slot, error) {
	if len(c.Scheduling.Slots) == 0 {
		return scheduling.DefaultSlots, nil
	}
	slots := make([]scheduling.Slot, 0, len(c.Scheduling.Slots))
	for _, raw := range c.Scheduling.Slots {
		slot, err := scheduling.ParseSlot(raw)
		if err != nil {
			return nil, fmt.Errorf("scheduling.slots: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Locking.TTLSeconds) * time.Second
}

func (c *Config) LockWait() time.Duration {
	return time.Duration(c.Locking.WaitSeconds) * time.Second
}

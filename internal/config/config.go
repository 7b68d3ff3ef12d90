package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Environment overrides, applied after the file is read.
const (
	EnvConfig = "VIGIL_CONFIG"
	EnvDBPath = "VIGIL_DB_PATH"
	EnvListen = "VIGIL_LISTEN"
)

// Config holds all vigil configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Safe     SafeConfig     `toml:"safe"`
	Liveness LivenessConfig `toml:"liveness"`
	Guardian GuardianConfig `toml:"guardian"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"` // empty resolves to store.DefaultDBPath()
}

// SafeConfig describes the wallet the server hosts.
type SafeConfig struct {
	Address common.Address   `toml:"address"`
	Owners  []common.Address `toml:"owners"`
	// Threshold of 0 means the ratio threshold for len(Owners).
	Threshold int `toml:"threshold"`
}

type LivenessConfig struct {
	Interval Duration `toml:"interval"`
	// GuardAddress overrides the tracker identity derived from the wallet.
	GuardAddress common.Address `toml:"guard_address"`
	ScanInterval Duration       `toml:"scan_interval"`
}

type GuardianConfig struct {
	MinOwners     int            `toml:"min_owners"`
	FallbackOwner common.Address `toml:"fallback_owner"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	NoColor bool   `toml:"no_color"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37877,
		},
		Liveness: LivenessConfig{
			Interval:     Duration(30 * 24 * time.Hour),
			ScanInterval: Duration(time.Hour),
		},
		Guardian: GuardianConfig{
			MinOwners: 1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config path: ~/.vigil/vigil.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".vigil", "vigil.toml"), nil
}

// Load reads the TOML file at path over Default and applies environment
// overrides. A missing file at the default location is not an error.
// Unknown keys are.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvConfig); env != "" {
			path, explicit = env, true
		} else {
			p, err := DefaultPath()
			if err != nil {
				return Config{}, err
			}
			path = p
		}
	}

	meta, err := toml.DecodeFile(path, &cfg)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	default:
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return Config{}, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		host, port, ok := strings.Cut(v, ":")
		if !ok {
			return fmt.Errorf("%s: want host:port, got %q", EnvListen, v)
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%s: bad port %q: %w", EnvListen, port, err)
		}
		c.Server.Bind, c.Server.Port = host, n
	}
	return nil
}

// Validate checks the settings serve needs to host a wallet.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Safe.Address == (common.Address{}) {
		return errors.New("safe.address is required")
	}
	if len(c.Safe.Owners) == 0 {
		return errors.New("safe.owners is empty")
	}
	if c.Safe.Threshold < 0 || c.Safe.Threshold > len(c.Safe.Owners) {
		return fmt.Errorf("safe.threshold %d out of range for %d owners", c.Safe.Threshold, len(c.Safe.Owners))
	}
	if c.Liveness.Interval <= 0 {
		return errors.New("liveness.interval must be positive")
	}
	if c.Liveness.ScanInterval < 0 {
		return errors.New("liveness.scan_interval must not be negative")
	}
	if c.Guardian.FallbackOwner == (common.Address{}) {
		return errors.New("guardian.fallback_owner is required")
	}
	if c.Guardian.MinOwners < 1 {
		return errors.New("guardian.min_owners must be at least 1")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Duration is a time.Duration read from a string such as "720h" or "30d".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(n * float64(24*time.Hour))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

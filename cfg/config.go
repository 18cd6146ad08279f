package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

// Engine backends
const (
	BackendLite   = "lite"
	BackendMatlab = "matlab"
)

// EngineConfiguration controls how sessions reach the engine
type EngineConfiguration struct {
	Backend        string `toml:"backend"`          // "lite" or "matlab"
	StartCommand   string `toml:"start_command"`    // Empty = engine default invocation
	StartEngine    bool   `toml:"start_engine"`     // false = sessions refuse to open
	Debug          string `toml:"debug"`            // y/n/t/f/1/0
	OutputCapacity int    `toml:"output_capacity"`  // Console capture buffer in bytes
	CloseAfterEval bool   `toml:"close_after_eval"` // Send "close;" after every evaluation
	CallTimeoutMS  int    `toml:"call_timeout_ms"`  // Upper bound on waiting for one engine call
}

// APIConfiguration for the HTTP host API
type APIConfiguration struct {
	Enabled          bool     `toml:"enabled"`
	BindAddress      string   `toml:"bind_address"`
	Port             int      `toml:"port"`
	Secret           string   `toml:"secret"`            // Pre-shared secret, empty = no auth
	VariablePatterns []string `toml:"variable_patterns"` // Glob patterns for accessible variables, empty = all
	MaxSessions      int      `toml:"max_sessions"`
	CompressionLevel int      `toml:"compression_level"` // zstd level 0-4, 0 = disabled
}

// JournalConfiguration controls the evaluation history store
type JournalConfiguration struct {
	Enabled         bool   `toml:"enabled"`
	Path            string `toml:"path"` // Empty = <data_dir>/journal.db
	BatchSize       int    `toml:"batch_size"`
	FlushIntervalMS int    `toml:"flush_interval_ms"`
	HistoryLimit    int    `toml:"history_limit"` // Default page size for history queries
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled                bool `toml:"enabled"`
	CollectIntervalSeconds int  `toml:"collect_interval_seconds"`
}

// Configuration is the main configuration structure
type Configuration struct {
	InstanceID uint64 `toml:"instance_id"`
	DataDir    string `toml:"data_dir"`

	Engine     EngineConfiguration     `toml:"engine"`
	API        APIConfiguration        `toml:"api"`
	Journal    JournalConfiguration    `toml:"journal"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag    = flag.String("data-dir", "", "Data directory (overrides config)")
	InstanceIDFlag = flag.Uint64("instance-id", 0, "Instance ID (overrides config, 0=auto)")
	BackendFlag    = flag.String("backend", "", "Engine backend: lite or matlab (overrides config)")
	DebugFlag      = flag.String("debug", "", "Per-call engine tracing: y/n/t/f/1/0 (overrides config)")
	APIPortFlag    = flag.Int("api-port", 0, "Host API port (overrides config)")
	CommandFlag    = flag.String("e", "", "Evaluate one command, print the result and exit")
	ResultFlag     = flag.String("result", "ans", "Variable to fetch after -e")
)

// Default configuration
var Config = &Configuration{
	InstanceID: 0, // Auto-generate
	DataDir:    "./mxbridge-data",

	Engine: EngineConfiguration{
		Backend:        BackendLite,
		StartCommand:   "",
		StartEngine:    true,
		Debug:          "n",
		OutputCapacity: 8192,
		CloseAfterEval: false,
		CallTimeoutMS:  30000,
	},

	API: APIConfiguration{
		Enabled:          true,
		BindAddress:      "127.0.0.1",
		Port:             8750,
		Secret:           "",
		VariablePatterns: []string{},
		MaxSessions:      64,
		CompressionLevel: 1,
	},

	Journal: JournalConfiguration{
		Enabled:         true,
		Path:            "",
		BatchSize:       64,
		FlushIntervalMS: 50,
		HistoryLimit:    100,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled:                true,
		CollectIntervalSeconds: 5,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	// Load from file if it exists
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	// Apply CLI overrides
	if *DataDirFlag != "" {
		Config.DataDir = *DataDirFlag
	}
	if *InstanceIDFlag != 0 {
		Config.InstanceID = *InstanceIDFlag
	}
	if *BackendFlag != "" {
		Config.Engine.Backend = *BackendFlag
	}
	if *DebugFlag != "" {
		Config.Engine.Debug = *DebugFlag
	}
	if *APIPortFlag != 0 {
		Config.API.Port = *APIPortFlag
	}

	// Auto-generate instance ID if not set
	if Config.InstanceID == 0 {
		var err error
		Config.InstanceID, err = generateInstanceID()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}
		log.Info().Uint64("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	// Ensure data directory exists when something is stored in it
	if Config.Journal.Enabled && Config.Journal.Path == "" {
		if err := os.MkdirAll(Config.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return nil
}

// generateInstanceID creates a unique instance ID based on machine ID
func generateInstanceID() (uint64, error) {
	id, err := machineid.ProtectedID("mxbridge")
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64(), nil
}

// ParseDebugFlag interprets a debug setting by its first character:
// y, t or 1 enable tracing; n, f or 0 disable it. Empty means disabled.
func ParseDebugFlag(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return false, nil
	}
	switch value[0] {
	case 'y', 't', '1':
		return true, nil
	case 'n', 'f', '0':
		return false, nil
	}
	return false, fmt.Errorf("invalid debug flag %q: want y/n, t/f or 1/0", value)
}

// Validate checks configuration for errors
func Validate() error {
	switch Config.Engine.Backend {
	case BackendLite, BackendMatlab:
	default:
		return fmt.Errorf("invalid engine backend: %q", Config.Engine.Backend)
	}

	if _, err := ParseDebugFlag(Config.Engine.Debug); err != nil {
		return err
	}

	if Config.Engine.OutputCapacity < 0 {
		return fmt.Errorf("engine output capacity must be >= 0")
	}

	if Config.Engine.CallTimeoutMS < 0 {
		return fmt.Errorf("engine call timeout must be >= 0")
	}

	if Config.API.Enabled {
		if Config.API.Port < 1 || Config.API.Port > 65535 {
			return fmt.Errorf("invalid API port: %d", Config.API.Port)
		}
		if Config.API.MaxSessions < 1 {
			return fmt.Errorf("API max sessions must be >= 1")
		}
		if Config.API.CompressionLevel < 0 || Config.API.CompressionLevel > 4 {
			return fmt.Errorf("API compression level must be between 0 and 4")
		}
	}

	for _, pattern := range Config.API.VariablePatterns {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid variable pattern %q: %w", pattern, err)
		}
	}

	if Config.Journal.Enabled {
		if Config.Journal.BatchSize < 1 {
			return fmt.Errorf("journal batch size must be >= 1")
		}
		if Config.Journal.FlushIntervalMS < 1 {
			return fmt.Errorf("journal flush interval must be >= 1ms")
		}
		if Config.Journal.HistoryLimit < 1 {
			return fmt.Errorf("journal history limit must be >= 1")
		}
	}

	if Config.Prometheus.Enabled && Config.Prometheus.CollectIntervalSeconds < 1 {
		return fmt.Errorf("prometheus collect interval must be >= 1 second")
	}

	return nil
}

// GetJournalPath returns the path of the evaluation journal database
func GetJournalPath() string {
	if Config.Journal.Path != "" {
		return Config.Journal.Path
	}
	return path.Join(Config.DataDir, "journal.db")
}

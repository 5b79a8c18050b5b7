package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the catpoint binaries.
type Config struct {
	// ServerAddress is the gRPC address of the security server.
	ServerAddress string `yaml:"server_addr"`
	// HTTPAddress is the listen address of the HTTP API; empty disables it.
	HTTPAddress string `yaml:"http_addr"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level of emitted log messages.
	LogLevel string `yaml:"log_level"`
	// LogFormat selects the log encoder: "console" or "json".
	LogFormat string `yaml:"log_format"`
	// ConfidenceThreshold is the minimum confidence for a cat verdict, in percent.
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
	// Storage selects where the security state is kept.
	Storage StorageConfig `yaml:"storage"`
	// Analyzer selects the image analyzer backend.
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	// Camera configures the snapshot folder watcher.
	Camera CameraConfig `yaml:"camera"`
	// MQTT configures the broker connection used for notifications and sensors.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// StorageConfig selects the repository implementation.
type StorageConfig struct {
	// Driver is one of "memory", "file" or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the state file or database location.
	Path string `yaml:"path"`
}

// AnalyzerConfig selects and tunes the image analyzer.
type AnalyzerConfig struct {
	// Kind is "fake" or "http".
	Kind string `yaml:"kind"`
	// Endpoint is the recognition API URL used by the "http" kind.
	Endpoint string `yaml:"endpoint"`
	// APIKey is sent as a bearer token to the recognition API.
	APIKey string `yaml:"api_key"`
	// Timeout bounds a single recognition call.
	Timeout time.Duration `yaml:"timeout"`
	// RatePerSecond limits recognition calls; zero means unlimited.
	RatePerSecond float64 `yaml:"rate_per_second"`
	// Burst is the number of calls allowed above the rate.
	Burst int `yaml:"burst"`
	// CatProbability is the chance of a cat verdict for the "fake" kind.
	CatProbability float64 `yaml:"cat_probability"`
}

// CameraConfig configures the folder watcher that feeds snapshots to the controller.
type CameraConfig struct {
	// Directory is watched for new snapshots; empty disables the watcher.
	Directory string `yaml:"directory"`
	// SettleDelay is how long a file must stay unchanged before it is analyzed.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://127.0.0.1:1883; empty disables MQTT.
	Broker string `yaml:"broker"`
	// ClientID identifies this server to the broker.
	ClientID string `yaml:"client_id"`
	// Username is the optional broker user.
	Username string `yaml:"username"`
	// Password is the optional broker password.
	Password string `yaml:"password"`
	// TopicPrefix is prepended to every topic.
	TopicPrefix string `yaml:"topic_prefix"`
	// QoS is the quality of service for publish and subscribe.
	QoS byte `yaml:"qos"`
	// SensorBridge subscribes to sensor topics and feeds them to the controller.
	SensorBridge bool `yaml:"sensor_bridge"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "catpoint-settings.yaml"

	// DefaultStateFilename is the default filename for the state file.
	DefaultStateFilename = "catpoint-state.json"

	// DefaultServerAddress is the gRPC address used when none is configured.
	DefaultServerAddress = "127.0.0.1:50051"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultConfidenceThreshold is the minimum confidence of a cat verdict, in percent.
	DefaultConfidenceThreshold float32 = 50

	// DefaultSettleDelay is how long a snapshot must stay unchanged before analysis.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultTopicPrefix is the MQTT topic prefix.
	DefaultTopicPrefix = "catpoint"

	// DefaultClientID is the MQTT client identifier.
	DefaultClientID = "catpoint-server"

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// Storage drivers.
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"

	// Analyzer kinds.
	AnalyzerFake = "fake"
	AnalyzerHTTP = "http"

	// maxQoS is the highest MQTT quality of service level.
	maxQoS = 2
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownStorage is returned for an unsupported storage driver.
	errUnknownStorage = errors.New("unknown storage driver")
	// errUnknownAnalyzer is returned for an unsupported analyzer kind.
	errUnknownAnalyzer = errors.New("unknown analyzer kind")
	// errEndpointRequired is returned when the http analyzer has no endpoint.
	errEndpointRequired = errors.New("analyzer endpoint must be provided")
	// errInvalidThreshold is returned for a confidence threshold outside 0..100.
	errInvalidThreshold = errors.New("confidence threshold must be within 0..100")
	// errInvalidProbability is returned for a cat probability outside 0..1.
	errInvalidProbability = errors.New("cat probability must be within 0..1")
	// errInvalidQoS is returned for an MQTT QoS above 2.
	errInvalidQoS = errors.New("mqtt qos must be 0, 1 or 2")
	// errUnknownLogFormat is returned for an unsupported log encoder.
	errUnknownLogFormat = errors.New("log format must be console or json")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServerAddress == "" {
		cfg.ServerAddress = DefaultServerAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if cfg.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http socket: %w", err)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "console"
	case "console", "json":
	default:
		return fmt.Errorf("%w: %q", errUnknownLogFormat, cfg.LogFormat)
	}

	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 100 {
		return errInvalidThreshold
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return err
	}

	if err := validateAnalyzer(&cfg.Analyzer, cfg.Timeout); err != nil {
		return err
	}

	if cfg.Camera.SettleDelay <= 0 {
		cfg.Camera.SettleDelay = DefaultSettleDelay
	}

	return validateMQTT(&cfg.MQTT)
}

// validateStorage checks the storage driver and fills in its default path.
func validateStorage(storage *StorageConfig) error {
	storage.Driver = strings.ToLower(strings.TrimSpace(storage.Driver))

	switch storage.Driver {
	case "":
		storage.Driver = StorageMemory
	case StorageMemory:
	case StorageFile:
		if storage.Path == "" {
			storage.Path = DefaultStateFilename
		}
	case StorageSQLite:
		if storage.Path == "" {
			storage.Path = "catpoint.db"
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownStorage, storage.Driver)
	}

	return nil
}

// validateAnalyzer checks the analyzer kind and its kind-specific settings.
func validateAnalyzer(analyzer *AnalyzerConfig, timeout time.Duration) error {
	analyzer.Kind = strings.ToLower(strings.TrimSpace(analyzer.Kind))

	if analyzer.Timeout <= 0 {
		analyzer.Timeout = timeout
	}

	switch analyzer.Kind {
	case "":
		analyzer.Kind = AnalyzerFake
	case AnalyzerFake:
	case AnalyzerHTTP:
		if analyzer.Endpoint == "" {
			return errEndpointRequired
		}

		if _, err := url.ParseRequestURI(analyzer.Endpoint); err != nil {
			return fmt.Errorf("invalid analyzer endpoint: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownAnalyzer, analyzer.Kind)
	}

	if analyzer.CatProbability < 0 || analyzer.CatProbability > 1 {
		return errInvalidProbability
	}

	if analyzer.RatePerSecond > 0 && analyzer.Burst <= 0 {
		analyzer.Burst = 1
	}

	return nil
}

// validateMQTT checks the broker URL and fills in defaults when MQTT is enabled.
func validateMQTT(mqtt *MQTTConfig) error {
	if mqtt.Broker == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(mqtt.Broker); err != nil {
		return fmt.Errorf("invalid mqtt broker: %w", err)
	}

	if mqtt.ClientID == "" {
		mqtt.ClientID = DefaultClientID
	}

	if mqtt.TopicPrefix == "" {
		mqtt.TopicPrefix = DefaultTopicPrefix
	}

	if mqtt.QoS > maxQoS {
		return errInvalidQoS
	}

	return nil
}

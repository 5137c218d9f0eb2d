package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

// Level maps the configured log level onto slog. Unknown values fall back
// to info.
func (t TelemetryConfig) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(t.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Providers   ProvidersConfig  `yaml:"providers"`
	STT         STTConfig        `yaml:"stt"`
	Speech      SpeechConfig     `yaml:"speech"`
	EventStore  EventStoreConfig `yaml:"event_store"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// ProviderConfig describes one text-generation backend entry.
type ProviderConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

type ProvidersConfig struct {
	Entries           []ProviderConfig `yaml:"entries"`
	Default           string           `yaml:"default"`
	RequestTimeoutMS  int              `yaml:"request_timeout_ms"`
	ValidateTimeoutMS int              `yaml:"validate_timeout_ms"`
}

type STTConfig struct {
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	Sentinel   string `yaml:"no_speech_sentinel"`
}

type SpeechConfig struct {
	Mode           string `yaml:"mode"` // mock, exec
	Command        string `yaml:"command"`
	DictionaryPath string `yaml:"dictionary_path"`
	SampleRate     int    `yaml:"sample_rate"`
	OutputDir      string `yaml:"output_dir"`
	PreferRemote   bool   `yaml:"prefer_remote"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxTurns      int    `yaml:"max_turns"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "assistantd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Providers: ProvidersConfig{
			Default:           "Gemini",
			RequestTimeoutMS:  30000,
			ValidateTimeoutMS: 10000,
		},
		STT: STTConfig{
			Mode:       "mock",
			SampleRate: 16000,
			Channels:   1,
			Sentinel:   "[BLANK_AUDIO]",
		},
		Speech: SpeechConfig{
			Mode:       "mock",
			SampleRate: 22050,
			OutputDir:  "./data/speech",
		},
		EventStore: EventStoreConfig{
			Path:          "./data/assistant-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxTurns:      10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// missing file falls back to defaults plus inline env configuration
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VAA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VAA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VAA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VAA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VAA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VAA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VAA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VAA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "VAA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VAA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VAA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VAA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VAA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VAA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VAA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VAA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Providers.Default, "VAA_PROVIDERS_DEFAULT")
	overrideInt(&cfg.Providers.RequestTimeoutMS, "VAA_PROVIDERS_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.Providers.ValidateTimeoutMS, "VAA_PROVIDERS_VALIDATE_TIMEOUT_MS")
	overrideString(&cfg.STT.Mode, "VAA_STT_MODE")
	overrideString(&cfg.STT.Command, "VAA_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "VAA_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "VAA_STT_LANGUAGE")
	overrideInt(&cfg.STT.SampleRate, "VAA_STT_SAMPLE_RATE")
	overrideInt(&cfg.STT.Channels, "VAA_STT_CHANNELS")
	overrideString(&cfg.STT.Sentinel, "VAA_STT_NO_SPEECH_SENTINEL")
	overrideString(&cfg.Speech.Mode, "VAA_SPEECH_MODE")
	overrideString(&cfg.Speech.Command, "VAA_SPEECH_COMMAND")
	overrideString(&cfg.Speech.DictionaryPath, "VAA_SPEECH_DICTIONARY_PATH")
	overrideInt(&cfg.Speech.SampleRate, "VAA_SPEECH_SAMPLE_RATE")
	overrideString(&cfg.Speech.OutputDir, "VAA_SPEECH_OUTPUT_DIR")
	overrideBool(&cfg.Speech.PreferRemote, "VAA_SPEECH_PREFER_REMOTE")
	overrideString(&cfg.EventStore.Path, "VAA_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "VAA_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "VAA_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxTurns, "VAA_EVENT_STORE_MAX_TURNS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "VAA_EVENT_STORE_VACUUM_ON_START")

	applyProviderEnvEntry(cfg)
}

// applyProviderEnvEntry supports single-provider inline configuration from the
// environment when the config file lists no provider entries.
func applyProviderEnvEntry(cfg *Config) {
	provider, hasProvider := os.LookupEnv("VAA_PROVIDER")
	if !hasProvider || strings.TrimSpace(provider) == "" {
		return
	}
	entry := ProviderConfig{Provider: provider}
	overrideString(&entry.Model, "VAA_PROVIDER_MODEL")
	overrideString(&entry.APIKey, "VAA_PROVIDER_API_KEY")
	overrideString(&entry.Endpoint, "VAA_PROVIDER_ENDPOINT")
	if len(cfg.Providers.Entries) == 0 {
		cfg.Providers.Entries = []ProviderConfig{entry}
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Providers.RequestTimeoutMS <= 0 {
		return errors.New("providers.request_timeout_ms must be positive")
	}
	if cfg.Providers.ValidateTimeoutMS <= 0 {
		return errors.New("providers.validate_timeout_ms must be positive")
	}
	for i, entry := range cfg.Providers.Entries {
		if strings.TrimSpace(entry.Provider) == "" {
			return fmt.Errorf("providers.entries[%d].provider must not be empty", i)
		}
	}
	switch cfg.STT.Mode {
	case "mock", "exec":
	default:
		return errors.New("stt.mode must be one of mock|exec")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.STT.SampleRate <= 0 {
		return errors.New("stt.sample_rate must be positive")
	}
	if cfg.STT.Channels <= 0 {
		return errors.New("stt.channels must be positive")
	}
	if cfg.STT.Sentinel == "" {
		return errors.New("stt.no_speech_sentinel must not be empty")
	}
	switch cfg.Speech.Mode {
	case "mock", "exec":
	default:
		return errors.New("speech.mode must be one of mock|exec")
	}
	if cfg.Speech.Mode == "exec" && cfg.Speech.Command == "" {
		return errors.New("speech.command must be set when mode=exec")
	}
	if cfg.Speech.SampleRate <= 0 {
		return errors.New("speech.sample_rate must be positive")
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}

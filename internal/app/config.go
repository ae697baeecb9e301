package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL         = "https://api.groq.com/openai/v1"
	DefaultAnalysisModel   = "llama-3.3-70b-versatile"
	DefaultTranscribeModel = "distil-whisper-large-v3-en"
	DefaultHistoryLimit    = 20
	DefaultRequestTimeout  = 30 * time.Second

	apiKeyPrefix = "gsk_"
)

// Skill levels understood by the analysis prompt.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Built-in roleplay scenarios. The set is open: unknown values are passed
// through to the prompt unchanged.
const (
	RoleplayGeneral    = "general"
	RoleplayRestaurant = "restaurant"
	RoleplayInterview  = "interview"
	RoleplayTravel     = "travel"
	RoleplayMedical    = "medical"
)

type Config struct {
	APIKey           string `yaml:"api_key"`
	Level            string `yaml:"level"`
	Roleplay         string `yaml:"roleplay"`
	PreferredVoiceID string `yaml:"preferred_voice_id,omitempty"`

	BaseURL          string `yaml:"base_url"`
	AnalysisModel    string `yaml:"analysis_model"`
	TranscribeModel  string `yaml:"transcribe_model"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`

	// HistoryBackend is "file" or "sqlite".
	HistoryBackend string `yaml:"history_backend"`
	HistoryLimit   int    `yaml:"history_limit"`

	// CaptureCommand is the shell-less argv used to read microphone audio,
	// e.g. ["ffmpeg", "-f", "pulse", "-i", "default", ...]. Empty means
	// capture is unavailable on this machine.
	CaptureCommand []string `yaml:"capture_command,omitempty"`

	// Transcriber selects the speech-to-text path: "cloud" (shipped) or
	// "worker" (deprecated on-device alternative).
	Transcriber      string `yaml:"transcriber"`
	WorkerBinaryPath string `yaml:"worker_binary_path,omitempty"`
	WorkerModelPath  string `yaml:"worker_model_path,omitempty"`

	LogJSON bool `yaml:"log_json"`
}

func DefaultConfig() Config {
	return Config{
		Level:            LevelIntermediate,
		Roleplay:         RoleplayGeneral,
		BaseURL:          DefaultBaseURL,
		AnalysisModel:    DefaultAnalysisModel,
		TranscribeModel:  DefaultTranscribeModel,
		RequestTimeoutMS: int(DefaultRequestTimeout / time.Millisecond),
		HistoryBackend:   "file",
		HistoryLimit:     DefaultHistoryLimit,
		Transcriber:      "cloud",
	}
}

// ValidAPIKey reports whether key looks like a Groq key. Validation is by
// prefix only; the provider is the real authority.
func ValidAPIKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && strings.HasPrefix(key, apiKeyPrefix)
}

// ParseLevel normalizes a level string, falling back to intermediate.
func ParseLevel(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LevelBeginner:
		return LevelBeginner
	case LevelAdvanced:
		return LevelAdvanced
	default:
		return LevelIntermediate
	}
}

// ParseRoleplay normalizes a roleplay scenario. Unknown non-empty values are
// kept as-is so new scenarios can be added without touching this file.
func ParseRoleplay(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleplayGeneral
	}
	return s
}

// RequestTimeout returns the configured timeout for external calls.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutMS <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AnalysisModel == "" {
		cfg.AnalysisModel = DefaultAnalysisModel
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = DefaultTranscribeModel
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = "file"
	}
	if cfg.Transcriber == "" {
		cfg.Transcriber = "cloud"
	}
	cfg.Level = ParseLevel(cfg.Level)
	cfg.Roleplay = ParseRoleplay(cfg.Roleplay)
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "speakcoach", "config.yml")
}

// DefaultDataRoot is where history lives. Prefers XDG data dir, falling back
// to ~/.local/share.
func DefaultDataRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "speakcoach")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "speakcoach")
	}
	return filepath.Join(os.TempDir(), "speakcoach")
}

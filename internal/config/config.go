// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Server      ServerConfig
	Library     LibraryConfig
	Transcript  TranscriptConfig
	Coordinator CoordinatorConfig
	Scorer      ScorerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	// CORSOrigins lists origins allowed to call the API from a browser. "*" allows any.
	CORSOrigins []string
}

// LibraryConfig holds audiobook library configuration.
type LibraryConfig struct {
	// ManifestPath points at audiobooks.json. A missing file yields a single-entry library.
	ManifestPath string
	// TranscriptDir is where transcript text files live.
	TranscriptDir string
	// AliasPath is an optional YAML character alias table. Empty uses the built-in table.
	AliasPath string
}

// TranscriptConfig holds transcript indexing parameters.
type TranscriptConfig struct {
	WordsPerMinute float64       // Estimated narration rate (default: 120)
	ContextWindow  time.Duration // Trailing window for story context (default: 180s)
	ChunkSize      int           // Words per chunk (default: 150)
	ChunkOverlap   int           // Words shared by consecutive chunks (default: 25)
}

// CoordinatorConfig holds turn-taking timer configuration.
type CoordinatorConfig struct {
	IdleTimeout time.Duration // Silence before a conversation is considered over (default: 3s)
	ResumeGrace time.Duration // How long a sent resume stays authoritative (default: 3s)
}

// ScorerConfig holds the semantic scene scorer backend configuration.
type ScorerConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	RPS     float64
	Burst   int
	// SpoilerSafe restricts scene search to the heard-so-far part of the transcript.
	SpoilerSafe bool
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("companion", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated browser origins allowed to call the API (default: *)")

	// Library flags
	manifestPath := fs.String("manifest", "", "Path to audiobooks.json (default: audiobooks.json)")
	transcriptDir := fs.String("transcript-dir", "", "Directory holding transcript files (default: .)")
	aliasPath := fs.String("aliases", "", "Path to a YAML character alias table")

	// Transcript flags
	wpm := fs.String("wpm", "", "Estimated narration words per minute (default: 120)")
	contextWindow := fs.String("context-window", "", "Story context window (default: 180s)")
	chunkSize := fs.String("chunk-size", "", "Words per scene chunk (default: 150)")
	chunkOverlap := fs.String("chunk-overlap", "", "Words of overlap between chunks (default: 25)")

	// Coordinator flags
	convIdle := fs.String("conversation-idle-timeout", "", "Silence that ends a conversation (default: 3s)")
	resumeGrace := fs.String("resume-grace", "", "Grace period after a resume command (default: 3s)")

	// Scorer flags
	scorerURL := fs.String("scorer-url", "", "OpenAI-compatible base URL for scene scoring")
	scorerModel := fs.String("scorer-model", "", "Model used for scene scoring")
	scorerTimeout := fs.String("scorer-timeout", "", "Scene scorer request timeout (default: 20s)")
	scorerRPS := fs.String("scorer-rps", "", "Scene scorer requests per second (default: 1)")
	scorerBurst := fs.String("scorer-burst", "", "Scene scorer burst size (default: 3)")
	spoilerSafe := fs.String("spoiler-safe-search", "", "Restrict scene search to heard text (default: false)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists. Existing environment variables win.
	_ = godotenv.Load(*envFile) //nolint:errcheck // Optional file

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Library: LibraryConfig{
			ManifestPath:  getConfigValue(*manifestPath, "MANIFEST_PATH", "audiobooks.json"),
			TranscriptDir: getConfigValue(*transcriptDir, "TRANSCRIPT_DIR", "."),
			AliasPath:     getConfigValue(*aliasPath, "ALIAS_PATH", ""),
		},
		Transcript: TranscriptConfig{
			WordsPerMinute: getFloatConfigValue(*wpm, "WORDS_PER_MINUTE", 120),
			ChunkSize:      getIntConfigValue(*chunkSize, "CHUNK_SIZE", 150),
			ChunkOverlap:   getIntConfigValue(*chunkOverlap, "CHUNK_OVERLAP", 25),
		},
		Scorer: ScorerConfig{
			BaseURL:     getConfigValue(*scorerURL, "SCORER_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getConfigValue("", "SCORER_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:       getConfigValue(*scorerModel, "SCORER_MODEL", "gpt-4o-mini"),
			RPS:         getFloatConfigValue(*scorerRPS, "SCORER_RPS", 1),
			Burst:       getIntConfigValue(*scorerBurst, "SCORER_BURST", 3),
			SpoilerSafe: getBoolConfigValue(*spoilerSafe, "SPOILER_SAFE_SEARCH", false),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*contextWindow, "CONTEXT_WINDOW", "180s", &cfg.Transcript.ContextWindow},
		{*convIdle, "CONVERSATION_IDLE_TIMEOUT", "3s", &cfg.Coordinator.IdleTimeout},
		{*resumeGrace, "RESUME_GRACE", "3s", &cfg.Coordinator.ResumeGrace},
		{*scorerTimeout, "SCORER_TIMEOUT", "20s", &cfg.Scorer.Timeout},
	}
	for _, d := range durations {
		v, err := getDurationConfigValue(d.flagValue, d.envKey, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if err := cfg.expandLibraryPaths(); err != nil {
		return nil, fmt.Errorf("invalid library path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Library.ManifestPath == "" {
		return errors.New("manifest path cannot be empty")
	}
	if c.Library.TranscriptDir == "" {
		return errors.New("transcript directory cannot be empty")
	}

	if c.Transcript.WordsPerMinute <= 0 {
		return fmt.Errorf("words per minute must be positive, got %v", c.Transcript.WordsPerMinute)
	}
	if c.Transcript.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Transcript.ChunkSize)
	}
	if c.Transcript.ChunkOverlap < 0 || c.Transcript.ChunkOverlap >= c.Transcript.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Transcript.ChunkSize, c.Transcript.ChunkOverlap)
	}
	if c.Transcript.ContextWindow < 0 {
		return errors.New("context window cannot be negative")
	}

	if c.Coordinator.IdleTimeout <= 0 || c.Coordinator.ResumeGrace <= 0 {
		return errors.New("coordinator timers must be positive")
	}

	// An empty scorer API key is allowed: scene search then reports a configuration error per call.

	return nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandLibraryPaths expands ~ and makes the library paths absolute.
func (c *Config) expandLibraryPaths() error {
	for _, p := range []*string{&c.Library.ManifestPath, &c.Library.TranscriptDir, &c.Library.AliasPath} {
		expanded, err := expandPath(*p, "")
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Addr       string
	CORSOrigin string
	LogLevel   string

	// GitHub contents API
	GitHubToken    string
	GitHubOwner    string
	GitHubRepo     string
	GitHubBranch   string
	GitHubDataDir  string
	GitHubAPIURL   string
	GitHubRPS      float64
	CommitterName  string
	CommitterEmail string

	// Working copy
	WorkDir    string
	RemoteURL  string
	CloneDepth int

	// Optional infrastructure, disabled when empty
	RedisURL       string
	CacheTTL       time.Duration
	DatabaseURL    string
	AdminTokenHash string
}

// fileConfig is the optional TOML file named by VITRINE_CONFIG. Environment
// variables take precedence over it.
type fileConfig struct {
	Addr       string `toml:"addr"`
	CORSOrigin string `toml:"cors_origin"`
	LogLevel   string `toml:"log_level"`

	GitHub struct {
		Owner   string  `toml:"owner"`
		Repo    string  `toml:"repo"`
		Branch  string  `toml:"branch"`
		DataDir string  `toml:"data_dir"`
		APIURL  string  `toml:"api_url"`
		RPS     float64 `toml:"rps"`
	} `toml:"github"`

	Committer struct {
		Name  string `toml:"name"`
		Email string `toml:"email"`
	} `toml:"committer"`

	WorkCopy struct {
		Dir       string `toml:"dir"`
		RemoteURL string `toml:"remote_url"`
		Depth     int    `toml:"depth"`
	} `toml:"workcopy"`

	Cache struct {
		RedisURL   string `toml:"redis_url"`
		TTLSeconds int    `toml:"ttl_seconds"`
	} `toml:"cache"`

	DatabaseURL    string `toml:"database_url"`
	AdminTokenHash string `toml:"admin_token_hash"`
}

// Load reads the configuration. Secrets (the GitHub token) are only read
// from the environment.
func Load() (Config, error) {
	var file fileConfig
	if path := strings.TrimSpace(os.Getenv("VITRINE_CONFIG")); path != "" {
		loaded, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		file = loaded
	}

	cfg := Config{
		Addr:           getenv("API_ADDR", or(file.Addr, ":8787")),
		CORSOrigin:     getenv("VITRINE_CORS_ORIGIN", or(file.CORSOrigin, "*")),
		LogLevel:       getenv("VITRINE_LOG_LEVEL", or(file.LogLevel, "info")),
		GitHubToken:    strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubOwner:    getenv("GITHUB_OWNER", or(file.GitHub.Owner, "atelier-vitrine")),
		GitHubRepo:     getenv("GITHUB_REPO", or(file.GitHub.Repo, "site-content")),
		GitHubBranch:   getenv("GITHUB_BRANCH", or(file.GitHub.Branch, "main")),
		GitHubDataDir:  getenv("GITHUB_DATA_DIR", or(file.GitHub.DataDir, "data")),
		GitHubAPIURL:   getenv("GITHUB_API_URL", file.GitHub.APIURL),
		GitHubRPS:      getenvFloat("GITHUB_RPS", file.GitHub.RPS),
		CommitterName:  getenv("VITRINE_COMMITTER_NAME", or(file.Committer.Name, "Vitrine Admin")),
		CommitterEmail: getenv("VITRINE_COMMITTER_EMAIL", or(file.Committer.Email, "admin@vitrine.local")),
		WorkDir:        getenv("VITRINE_WORKDIR", or(file.WorkCopy.Dir, filepath.Join(os.TempDir(), "vitrine-content"))),
		RemoteURL:      getenv("VITRINE_REMOTE_URL", file.WorkCopy.RemoteURL),
		CloneDepth:     getenvInt("VITRINE_CLONE_DEPTH", orInt(file.WorkCopy.Depth, 1)),
		RedisURL:       getenv("REDIS_URL", file.Cache.RedisURL),
		CacheTTL:       time.Duration(getenvInt("VITRINE_CACHE_TTL_SECONDS", orInt(file.Cache.TTLSeconds, 30))) * time.Second,
		DatabaseURL:    getenv("DATABASE_URL", file.DatabaseURL),
		AdminTokenHash: getenv("VITRINE_ADMIN_TOKEN_HASH", file.AdminTokenHash),
	}
	if cfg.RemoteURL == "" {
		cfg.RemoteURL = fmt.Sprintf("https://github.com/%s/%s.git", cfg.GitHubOwner, cfg.GitHubRepo)
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return file, fmt.Errorf("config file %s not found", path)
		}
		return file, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func or(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func orInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

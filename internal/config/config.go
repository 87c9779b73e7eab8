package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/talentgraph/talentgraph-go/internal/errors"
)

// Config holds all runtime settings. It is constructed once at startup and
// handed to subsystems by value; there is no process-global configuration.
type Config struct {
	GitHub    GitHubConfig    `yaml:"github"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Match     MatchConfig     `yaml:"match"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Paths     PathsConfig     `yaml:"paths"`
}

type GitHubConfig struct {
	Token           string        `yaml:"token"`
	RequestDelay    time.Duration `yaml:"request_delay"`
	RateLimitBuffer int           `yaml:"rate_limit_buffer"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    float64       `yaml:"retry_backoff"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// DSN builds the pgx connection string. Passwords are never logged.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.Host, c.Port, c.Name, c.User, c.Password)
}

type RedisConfig struct {
	Host     string `yaml:"host"` // empty disables the seen-cache
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

// Enabled reports whether the optional Redis seen-cache is configured.
func (c RedisConfig) Enabled() bool { return c.Host != "" }

type Neo4jConfig struct {
	URI      string `yaml:"uri"` // empty disables the graph mirror
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Enabled reports whether the optional Neo4j graph mirror is configured.
func (c Neo4jConfig) Enabled() bool { return c.URI != "" }

type EnrichConfig struct {
	BatchSize         int `yaml:"batch_size"`
	MaxProfilesPerRun int `yaml:"max_profiles_per_run"`
	StaleDays         int `yaml:"stale_days"`
}

type MatchConfig struct {
	AutoMatchThreshold float64 `yaml:"auto_match_threshold"`
	Mode               string  `yaml:"mode"` // "normal" or "aggressive"
}

// Threshold returns the effective auto-match threshold for the configured
// mode. Aggressive mode lowers it to 0.60.
func (c MatchConfig) Threshold() float64 {
	if c.Mode == "aggressive" {
		return 0.60
	}
	return c.AutoMatchThreshold
}

type DiscoveryConfig struct {
	FreshnessDays      int `yaml:"freshness_days"`
	MaxContributorPages int `yaml:"max_contributor_pages"`
	TopContributors    int `yaml:"top_contributors"`
}

type PathsConfig struct {
	LogDir        string `yaml:"log_dir"`
	CheckpointDir string `yaml:"checkpoint_dir"`
	ReportDir     string `yaml:"report_dir"`
}

// Default returns the production defaults documented in the README.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			// 0.72s keeps an authenticated token's 5,000 req/hr budget intact.
			RequestDelay:    720 * time.Millisecond,
			RateLimitBuffer: 100,
			MaxRetries:      3,
			RetryBackoff:    2,
			RequestTimeout:  30 * time.Second,
		},
		DB: DBConfig{
			Host: "localhost",
			Port: 5432,
		},
		Redis: RedisConfig{Port: 6379},
		Enrich: EnrichConfig{
			BatchSize:         100,
			MaxProfilesPerRun: 10000,
			StaleDays:         30,
		},
		Match: MatchConfig{
			AutoMatchThreshold: 0.70,
			Mode:               "normal",
		},
		Discovery: DiscoveryConfig{
			FreshnessDays:       30,
			MaxContributorPages: 10,
			TopContributors:     20,
		},
		Paths: PathsConfig{
			LogDir:        "logs",
			CheckpointDir: "checkpoints",
			ReportDir:     "reports",
		},
	}
}

// Load builds the configuration from (lowest to highest precedence)
// defaults, an optional YAML file, and environment variables. .env files are
// loaded first so that local development matches production env handling.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".talentgraph")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, errors.Wrap(err, errors.TypeConfig, "read config file")
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.TypeConfig, "unmarshal config")
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks the settings every subsystem depends on. Missing DB
// credentials abort startup with a clear diagnostic.
func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "" {
		return errors.ConfigError(
			"database credentials missing: set DB_HOST, DB_NAME and DB_USER (got host=%q db=%q user=%q)",
			c.DB.Host, c.DB.Name, c.DB.User)
	}
	if c.GitHub.Token == "" {
		// Not fatal: unauthenticated access works but collapses to ~60 req/hr.
		fmt.Fprintln(os.Stderr, "warning: GITHUB_TOKEN not set, rate limit collapses to ~60 requests/hour")
	}
	if c.Match.Mode != "normal" && c.Match.Mode != "aggressive" {
		return errors.ConfigError("invalid MATCH_MODE %q: must be normal or aggressive", c.Match.Mode)
	}
	return nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setString("GITHUB_TOKEN", &cfg.GitHub.Token)
	if v := os.Getenv("REQUEST_DELAY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.GitHub.RequestDelay = time.Duration(f * float64(time.Second))
		}
	}
	setInt("RATE_LIMIT_BUFFER", &cfg.GitHub.RateLimitBuffer)
	setInt("MAX_RETRIES", &cfg.GitHub.MaxRetries)
	setFloat("RETRY_BACKOFF", &cfg.GitHub.RetryBackoff)

	setString("DB_HOST", &cfg.DB.Host)
	setInt("DB_PORT", &cfg.DB.Port)
	setString("DB_NAME", &cfg.DB.Name)
	setString("DB_USER", &cfg.DB.User)
	setString("DB_PASSWORD", &cfg.DB.Password)

	setString("REDIS_HOST", &cfg.Redis.Host)
	setInt("REDIS_PORT", &cfg.Redis.Port)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)

	setString("NEO4J_URI", &cfg.Neo4j.URI)
	setString("NEO4J_USER", &cfg.Neo4j.User)
	setString("NEO4J_PASSWORD", &cfg.Neo4j.Password)

	setInt("BATCH_SIZE", &cfg.Enrich.BatchSize)
	setInt("MAX_PROFILES_PER_RUN", &cfg.Enrich.MaxProfilesPerRun)
	setInt("STALE_DAYS", &cfg.Enrich.StaleDays)

	setFloat("AUTO_MATCH_THRESHOLD", &cfg.Match.AutoMatchThreshold)
	setString("MATCH_MODE", &cfg.Match.Mode)

	setString("LOG_DIR", &cfg.Paths.LogDir)
	setString("CHECKPOINT_DIR", &cfg.Paths.CheckpointDir)
	setString("REPORT_DIR", &cfg.Paths.ReportDir)
}

package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	SupabaseURL      string   `mapstructure:"SUPABASE_URL"`
	SupabaseKey      string   `mapstructure:"SUPABASE_KEY"`
	SupabaseJWTKey   string   `mapstructure:"SUPABASE_JWT_SECRET"`
	RealtimeEnabled  bool     `mapstructure:"REALTIME_ENABLED"`
	GeminiAPIKey     string   `mapstructure:"GEMINI_API_KEY"`
	GeminiModels     []string `mapstructure:"GEMINI_MODELS"`
	FlowsBaseURL     string   `mapstructure:"FLOWS_BASE_URL"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	RequestTimeoutMS int      `mapstructure:"REQUEST_TIMEOUT_MS"`
	MaxUploadBytes   int64    `mapstructure:"MAX_UPLOAD_BYTES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("REALTIME_ENABLED", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT_MS", 30000)
	v.SetDefault("MAX_UPLOAD_BYTES", 10*1024*1024)
	v.SetDefault("GEMINI_MODELS", "gemini-2.0-flash,gemini-1.5-flash,gemini-1.5-pro")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("SUPABASE_URL")
	v.BindEnv("SUPABASE_KEY")
	v.BindEnv("SUPABASE_JWT_SECRET")
	v.BindEnv("REALTIME_ENABLED")
	v.BindEnv("GEMINI_API_KEY")
	v.BindEnv("GEMINI_MODELS")
	v.BindEnv("FLOWS_BASE_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("REQUEST_TIMEOUT_MS")
	v.BindEnv("MAX_UPLOAD_BYTES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.GeminiModels == nil {
		if models := v.GetString("GEMINI_MODELS"); models != "" {
			cfg.GeminiModels = strings.Split(models, ",")
		}
	}

	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("SUPABASE_KEY is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Auth middleware accepts unsigned requests as admin.")
		log.Println("WARNING: Set ENV=production and SUPABASE_JWT_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// the JWT secret must be present so provider-issued access tokens can be
// verified rather than trusted blindly.
func (c *Config) Validate() error {
	if !c.IsDev() && c.SupabaseJWTKey == "" {
		return fmt.Errorf(
			"SUPABASE_JWT_SECRET must be set when ENV=%q. "+
				"Refusing to start without token verification", c.Env)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be positive, got %d", c.RequestTimeoutMS)
	}
	if c.GeminiAPIKey != "" && len(c.GeminiModels) == 0 {
		return fmt.Errorf("GEMINI_MODELS must list at least one model when GEMINI_API_KEY is set")
	}
	return nil
}

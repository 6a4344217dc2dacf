package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Storage struct {
		Bucket        string
		KeyPrefix     string
		Region        string
		Endpoint      string
		PublicBaseURL string
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		JWTSecret             string
		Issuer                string
		AccessTokenTTLMinutes int
		RefreshTokenTTLHours  int
		AdminEmails           []string
		// RequireEmailConfirmation blocks sign-in until the address is verified.
		RequireEmailConfirmation bool
		ConfirmationTTLHours     int
	}
	RateLimit struct {
		PerMinute int
		Burst     int
	}
	Log struct {
		Level  string
		Format string
	}
	CORS struct {
		AllowedOrigin string
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTokenTTLHours) * time.Hour
}

// ConfirmationTTL returns how long an email confirmation token stays valid.
func (c Config) ConfirmationTTL() time.Duration {
	return time.Duration(c.Auth.ConfirmationTTLHours) * time.Hour
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required (AGENCY_AUTH_JWTSECRET)")
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		return fmt.Errorf("auth access token ttl must be positive")
	}
	if c.Auth.RefreshTokenTTLHours <= 0 {
		return fmt.Errorf("auth refresh token ttl must be positive")
	}
	if c.Auth.ConfirmationTTLHours <= 0 {
		return fmt.Errorf("auth confirmation ttl must be positive")
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("AGENCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/agency.db")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "agency-site")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.issuer", "agency-site")
	v.SetDefault("auth.accesstokenttlminutes", 60)
	v.SetDefault("auth.refreshtokenttlhours", 24*30)
	v.SetDefault("auth.adminemails", []string{})
	v.SetDefault("auth.requireemailconfirmation", false)
	v.SetDefault("auth.confirmationttlhours", 24)
	v.SetDefault("ratelimit.perminute", 5)
	v.SetDefault("ratelimit.burst", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cors.allowedorigin", "*")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Auth.AdminEmails = splitList(cfg.Auth.AdminEmails)

	return cfg, nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
// Uses Go's built-in os.ExpandEnv which is the idiomatic way to handle this
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"./configs/development.yaml",
	"/etc/veyl/config.yaml",
	"/etc/veyl/config.yml",
}

// Load loads the configuration from the specified file or default locations
func Load(configPath string) (*Config, error) {
	// Set default values
	config := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "veyl",
				User:     "postgres",
				SSLMode:  "disable",
			},
		},
		Frontend: FrontendConfig{
			BaseURL: "http://localhost:8081",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				Lifetime: 168 * time.Hour,
			},
		},
	}

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	// Load configuration from file if it exists
	if configPath != "" && fileExists(configPath) {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(filepath string) (*Config, error) {
	return Load(filepath)
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// validate performs basic validation on the configuration.
// Missing required settings fail here, at startup, naming the exact key;
// a misconfigured provider must never surface as a generic mid-flow error.
func validate(config *Config) error {
	if config.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if config.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if config.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if config.Auth.JWT.SigningKey == "" {
		return fmt.Errorf("auth.jwt.signing_key is required")
	}
	if config.Auth.StateSecret == "" {
		return fmt.Errorf("auth.state_secret is required")
	}

	seen := make(map[string]bool)
	for _, p := range config.Auth.Providers {
		if p.Name == "" {
			return fmt.Errorf("auth.providers: every provider needs a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("auth.providers.%s is configured twice", p.Name)
		}
		seen[p.Name] = true
		if p.ClientID == "" {
			return fmt.Errorf("auth.providers.%s.client_id is required", p.Name)
		}
		if p.ClientSecret == "" {
			return fmt.Errorf("auth.providers.%s.client_secret is required", p.Name)
		}
		if p.RedirectURI == "" {
			return fmt.Errorf("auth.providers.%s.redirect_uri is required", p.Name)
		}
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks if the configuration meets the requirements for the current environment
func ValidateConfig(cfg *Config) error {
	env := GetEnvironment()
	var errs []error

	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DBPath == "" {
			errs = append(errs, ValidationError{"DB_PATH", "required when DB_DRIVER is sqlite"})
		}
	case DriverPostgres:
		for field, value := range map[string]string{
			"DB_HOST": cfg.DBHost,
			"DB_PORT": cfg.DBPort,
			"DB_NAME": cfg.DBName,
			"DB_USER": cfg.DBUser,
		} {
			if value == "" {
				errs = append(errs, ValidationError{field, "required when DB_DRIVER is postgres"})
			}
		}
		if cfg.DBPassword == "" {
			if env == CI {
				errs = append(errs, ValidationError{"DB_PASSWORD", "TEST_DB_PASSWORD environment variable is required in CI environment"})
			} else {
				errs = append(errs, ValidationError{"DB_PASSWORD", "db_password secret is required"})
			}
		}
	default:
		errs = append(errs, ValidationError{"DB_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.DBDriver)})
	}

	if env == Production && cfg.DBDriver != DriverPostgres {
		errs = append(errs, ValidationError{"DB_DRIVER", "production requires postgres"})
	}

	if cfg.ServerPort == "" {
		errs = append(errs, ValidationError{"SERVER_PORT", "must not be empty"})
	}
	if cfg.DefaultNumber <= 0 {
		errs = append(errs, ValidationError{"DEFAULT_NUMBER", "must be positive"})
	}
	if cfg.MaxNumber < cfg.DefaultNumber {
		errs = append(errs, ValidationError{"MAX_NUMBER", "must not be below DEFAULT_NUMBER"})
	}
	if cfg.RateLimitRequests <= 0 {
		errs = append(errs, ValidationError{"RATE_LIMIT_REQUESTS", "must be positive"})
	}
	if cfg.RateLimitWindow <= 0 {
		errs = append(errs, ValidationError{"RATE_LIMIT_WINDOW", "must be positive"})
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, ValidationError{"LOG_FORMAT", "must be json or console"})
	}

	return errors.Join(errs...)
}

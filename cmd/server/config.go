package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/krypto"
	"github.com/willemschots/rentals/internal/logger"
	"github.com/willemschots/rentals/internal/web"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	server          web.ServerConfig
}

// dbConfig is the configuration for the database.
type dbConfig struct {
	driver         string
	file           string
	migrate        bool
	encryptionKeys []krypto.Key
	blindIndexSalt krypto.Key
}

// authConfig is the configuration for access tokens.
type authConfig struct {
	tokenKey    krypto.Key
	tokenExpiry time.Duration
}

// logConfig is the configuration for the logger.
type logConfig struct {
	format logger.Format
	level  slog.Level
}

// config is the configuration for the server command.
type config struct {
	http httpConfig
	db   dbConfig
	auth authConfig
	log  logConfig
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
			server: web.ServerConfig{
				LoginRate:  1,
				LoginBurst: 5,
			},
		},
		db: dbConfig{
			driver:  db.DriverCGO,
			file:    "rentals.db",
			migrate: true,
		},
		auth: authConfig{
			tokenExpiry: 24 * time.Hour,
		},
		log: logConfig{
			format: logger.FormatText,
			level:  slog.LevelInfo,
		},
	}
}

// requiredKeys are the environment variables without a default.
var requiredKeys = []string{
	"DB_ENCRYPTION_KEYS",
	"DB_BLIND_INDEX_SALT",
	"AUTH_TOKEN_KEY",
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"HTTP_CORS_ORIGINS": func(v string, c *config) error {
		c.http.server.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				c.http.server.CORSOrigins = append(c.http.server.CORSOrigins, origin)
			}
		}
		return nil
	},
	"HTTP_LOGIN_RATE": func(v string, c *config) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}

		if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return fmt.Errorf("rate %s must be a positive number", v)
		}

		c.http.server.LoginRate = rate.Limit(f)
		return nil
	},
	"HTTP_LOGIN_BURST": func(v string, c *config) error {
		return confInt(v, &c.http.server.LoginBurst, 1, math.MaxInt32)
	},
	"DB_DRIVER": func(v string, c *config) error {
		if !db.IsDriver(v) {
			return fmt.Errorf("unknown driver %q, want %q or %q", v, db.DriverCGO, db.DriverPure)
		}
		c.db.driver = v
		return nil
	},
	"DB_FILENAME": func(v string, c *config) error {
		if v == "" {
			return errors.New("db filename can't be empty")
		}
		c.db.file = v
		return nil
	},
	"DB_MIGRATE": func(v string, c *config) error {
		return confBool(v, &c.db.migrate)
	},
	"DB_ENCRYPTION_KEYS": func(v string, c *config) error {
		keys, err := krypto.ParseKeys(v)
		if err != nil {
			return err
		}
		c.db.encryptionKeys = keys
		return nil
	},
	"DB_BLIND_INDEX_SALT": func(v string, c *config) error {
		return confKey(v, &c.db.blindIndexSalt)
	},
	"AUTH_TOKEN_KEY": func(v string, c *config) error {
		return confKey(v, &c.auth.tokenKey)
	},
	"AUTH_TOKEN_EXPIRY": func(v string, c *config) error {
		return confDuration(v, &c.auth.tokenExpiry, time.Second, math.MaxInt64)
	},
	"LOG_FORMAT": func(v string, c *config) error {
		f, err := logger.ParseFormat(v)
		if err != nil {
			return err
		}
		c.log.format = f
		return nil
	},
	"LOG_LEVEL": func(v string, c *config) error {
		l, err := logger.ParseLevel(v)
		if err != nil {
			return err
		}
		c.log.level = l
		return nil
	},
}

// loadEnvFile loads environment variables from a .env file without overriding
// variables that are already set. The file is optional unless ENV_FILE names it.
// It returns whether a file was loaded.
func loadEnvFile() (string, error) {
	file, explicit := os.LookupEnv("ENV_FILE")
	if !explicit {
		file = ".env"
	}

	err := godotenv.Load(file)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load env file %s: %w", file, err)
	}

	return file, nil
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work. All problems are reported at once.
func configFromEnv() (config, error) {
	c := defaultConfig()

	var errs []error
	for _, key := range requiredKeys {
		if _, ok := os.LookupEnv(key); !ok {
			errs = append(errs, fmt.Errorf("missing required env variable %s", key))
		}
	}

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	return c, errors.Join(errs...)
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

// confInt attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confInt(v string, tgt *int, min, max int) error {
	i, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	if i < min || i > max {
		return fmt.Errorf("%d not in range [%d, %d] (inclusive)", i, min, max)
	}

	*tgt = i

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b

	return nil
}

func confKey(v string, tgt *krypto.Key) error {
	k, err := krypto.ParseKey(v)
	if err != nil {
		return err
	}

	*tgt = k

	return nil
}

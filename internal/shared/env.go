package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (WATCHX_BACKEND_URL, ...).
const EnvPrefix = "WATCHX"

// LoadDotEnv loads KEY=value pairs from the given files into the process environment.
// Missing files are skipped and variables that are already set are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var found []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil
	}

	if err := godotenv.Load(found...); err != nil {
		return fmt.Errorf("%w: failed to load env file: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto config. Keys mirror the TOML
// layout with dots replaced by underscores, e.g. credentials.tmdb.api_key is
// read from WATCHX_CREDENTIALS_TMDB_API_KEY.
func ApplyEnv(config *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	strs := map[string]*string{
		"credentials.tmdb.api_key":  &config.Credentials.TMDB.APIKey,
		"credentials.mal.client_id": &config.Credentials.MAL.ClientID,
		"backend.url":               &config.Backend.URL,
		"backend.token":             &config.Backend.Token,
		"catalog.shows_provider":    &config.Catalog.ShowsProvider,
		"catalog.cache_path":        &config.Catalog.CachePath,
		"database.path":             &config.Database.Path,
		"server.host":               &config.Server.Host,
		"server.secret":             &config.Server.Secret,
		"log.level":                 &config.Log.Level,
		"log.file":                  &config.Log.File,
	}
	for key, dst := range strs {
		if val := v.GetString(key); val != "" {
			*dst = val
		}
	}

	ints := map[string]*int{
		"server.port":             &config.Server.Port,
		"server.hydrate_workers":  &config.Server.HydrateWorkers,
		"database.max_open_conns": &config.Database.MaxOpenConns,
		"database.max_idle_conns": &config.Database.MaxIdleConns,
	}
	for key, dst := range ints {
		raw := v.GetString(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s_%s=%q is not an integer", ErrInvalidConfig, EnvPrefix, envName(key), raw)
		}
		*dst = n
	}

	durations := map[string]*Duration{
		"backend.timeout":   &config.Backend.Timeout,
		"catalog.cache_ttl": &config.Catalog.CacheTTL,
	}
	for key, dst := range durations {
		raw := v.GetString(key)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: %s_%s=%q is not a duration", ErrInvalidConfig, EnvPrefix, envName(key), raw)
		}
		dst.Duration = d
	}

	if raw := v.GetString("catalog.rate_limit"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: %s_CATALOG_RATE_LIMIT=%q is not a number", ErrInvalidConfig, EnvPrefix, raw)
		}
		config.Catalog.RateLimit = f
	}

	if raw := v.GetString("server.cors"); raw != "" {
		config.Server.CORS = v.GetBool("server.cors")
	}

	return nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

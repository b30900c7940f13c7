package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SigningKeyConfig declara una clave de firma por tenant. El PEM puede
// venir inline (pem) o desde archivo (pem_file).
type SigningKeyConfig struct {
	Tenant  string `yaml:"tenant"`
	KID     string `yaml:"kid"`
	Alg     string `yaml:"alg"`
	PEM     string `yaml:"pem"`
	PEMFile string `yaml:"pem_file"`
	Active  bool   `yaml:"active"`
}

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver string `yaml:"driver"`
		Memory struct {
			// Archivo JSON con tenants/clients/users para desarrollo.
			SeedFile string `yaml:"seed_file"`
		} `yaml:"memory"`
		Postgres struct {
			DSN             string `yaml:"dsn"`
			MaxConns        int    `yaml:"max_conns"`
			ConnectTimeout  string `yaml:"connect_timeout"`
			ApplicationName string `yaml:"application_name"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Driver string `yaml:"driver"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Keys []SigningKeyConfig `yaml:"keys"`

	Gateway struct {
		// Fetch de request_uri: timeout HTTP y TTL de cache del JWT obtenido.
		FetchTimeout string `yaml:"fetch_timeout"`
		CacheTTL     string `yaml:"cache_ttl"`
	} `yaml:"gateway"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// Tokens por segundo y burst para el límite por IP del token endpoint.
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "20s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Gateway.FetchTimeout == "" {
		c.Gateway.FetchTimeout = "5s"
	}
	if c.Gateway.CacheTTL == "" {
		c.Gateway.CacheTTL = "1m"
	}
	if c.Rate.PerSecond == 0 {
		c.Rate.PerSecond = 10
	}
	if c.Rate.Burst == 0 {
		c.Rate.Burst = 20
	}

	// validate string durations
	for _, d := range []string{
		c.Server.ReadTimeout, c.Server.WriteTimeout, c.Server.ShutdownTimeout,
		c.Cache.Memory.DefaultTTL, c.Gateway.FetchTimeout, c.Gateway.CacheTTL,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("config: invalid duration %q: %w", d, err)
		}
	}
	if c.Storage.Postgres.ConnectTimeout != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnectTimeout); err != nil {
			return nil, err
		}
	}

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate chequea lo mínimo que el server necesita para arrancar.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("config: storage.postgres.dsn is required with the postgres driver")
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}
	if c.Cache.Driver == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.redis.addr is required with the redis driver")
	}
	for i, k := range c.Keys {
		if k.Tenant == "" || k.KID == "" || k.Alg == "" {
			return fmt.Errorf("config: keys[%d] needs tenant, kid and alg", i)
		}
		if k.PEM == "" && k.PEMFile == "" {
			return fmt.Errorf("config: keys[%d] needs pem or pem_file", i)
		}
	}
	return nil
}

// Dur devuelve una duración ya validada en Load.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvFloat(key string) (float64, bool) {
	if s, ok := getEnvStr(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_SEED_FILE"); ok {
		c.Storage.Memory.SeedFile = v
	}
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.Storage.Postgres.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvFloat("RATE_PER_SECOND"); ok {
		c.Rate.PerSecond = v
	}
	if v, ok := getEnvInt("RATE_BURST"); ok {
		c.Rate.Burst = v
	}
}

// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/goforj/restaurantdata/kv"
	"github.com/goforj/restaurantdata/offline"
)

// Config is the full process configuration.
type Config struct {
	API     API     `envPrefix:"API_"`
	Server  Server  `envPrefix:"SERVER_"`
	Store   Store   `envPrefix:"STORE_"`
	Asset   Asset   `envPrefix:"ASSET_"`
	Offline Offline `envPrefix:"OFFLINE_"`
	Logging Logging `envPrefix:"LOG_"`
}

// API points at the restaurant review server.
type API struct {
	Origin string `env:"ORIGIN" envDefault:"http://localhost:1337"`
	// Timeout of zero leaves requests bounded only by their context.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"0s"`
}

// Server is the local HTTP surface.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Store selects and configures the kv backend.
type Store struct {
	Driver         string `env:"DRIVER" envDefault:"sql"`
	Prefix         string `env:"PREFIX" envDefault:"restaurantdata"`
	FileDir        string `env:"FILE_DIR"`
	SQLDriver      string `env:"SQL_DRIVER" envDefault:"sqlite"`
	SQLDSN         string `env:"SQL_DSN" envDefault:"file:restaurantdata.db"`
	SQLTable       string `env:"SQL_TABLE" envDefault:"kv_entries"`
	RedisAddr      string `env:"REDIS_ADDR"`
	NATSURL        string `env:"NATS_URL"`
	NATSBucket     string `env:"NATS_BUCKET"`
	DynamoRegion   string `env:"DYNAMO_REGION"`
	DynamoEndpoint string `env:"DYNAMO_ENDPOINT"`
	DynamoTable    string `env:"DYNAMO_TABLE"`
	Compression    string `env:"COMPRESSION"`
	MaxValueBytes  int    `env:"MAX_VALUE_BYTES"`
	// Trace logs every store operation at debug level.
	Trace bool `env:"TRACE"`
}

// Asset configures the asset cache proxy.
type Asset struct {
	Enabled   bool     `env:"ENABLED" envDefault:"true"`
	Origin    string   `env:"ORIGIN" envDefault:"http://localhost:8080"`
	CacheName string   `env:"CACHE_NAME" envDefault:"restaurant-review"`
	Manifest  []string `env:"MANIFEST" envSeparator:"," envDefault:"/,index.html,js/main.js,js/idb.js,js/dbhelper.js,js/restaurant_info.js,data/restaurants.json,sw.js,img/1.jpg,img/2.jpg,img/3.jpg,img/4.jpg,img/5.jpg,img/6.jpg,img/7.jpg,img/8.jpg,img/9.jpg,img/10.jpg"`
	// SideFetchPrefixes get an extra detached fetch on every request.
	SideFetchPrefixes []string      `env:"SIDE_FETCH_PREFIXES" envSeparator:"," envDefault:"https://api.tiles.mapbox.com,http://localhost:1337/reviews/,http://localhost:1337/restaurants/2/?is_favorite=false,http://localhost:1337/restaurants/2/?is_favorite=true"`
	Compression       string        `env:"COMPRESSION" envDefault:"gzip"`
	MemoSize          int           `env:"MEMO_SIZE" envDefault:"256"`
	InstallTimeout    time.Duration `env:"INSTALL_TIMEOUT" envDefault:"30s"`
}

// Offline configures the replay queue and the connectivity check.
type Offline struct {
	Mode string `env:"MODE" envDefault:"single"`
	// CheckURL defaults to the API origin.
	CheckURL      string        `env:"CHECK_URL"`
	CheckInterval time.Duration `env:"CHECK_INTERVAL" envDefault:"5s"`
	ReplayTimeout time.Duration `env:"REPLAY_TIMEOUT" envDefault:"30s"`
}

// Logging mirrors logging.Config plus the log directory.
type Logging struct {
	Level     string `env:"LEVEL" envDefault:"info"`
	Format    string `env:"FORMAT" envDefault:"text"`
	Directory string `env:"DIR" envDefault:"./logs"`
	AddSource bool   `env:"ADD_SOURCE" envDefault:"true"`
}

// LoadDotEnv overloads the environment from files, ".env" when none are
// given. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Overload(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Load parses the environment into a validated Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Offline.CheckURL == "" {
		cfg.Offline.CheckURL = cfg.API.Origin
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch kv.Driver(c.Store.Driver) {
	case kv.DriverNull, kv.DriverFile, kv.DriverMemory, kv.DriverSQL, kv.DriverRedis, kv.DriverNATS, kv.DriverDynamo:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if err := validCodec(c.Store.Compression); err != nil {
		return fmt.Errorf("config: STORE_COMPRESSION: %w", err)
	}
	if err := validCodec(c.Asset.Compression); err != nil {
		return fmt.Errorf("config: ASSET_COMPRESSION: %w", err)
	}
	if _, err := offline.ParseMode(c.Offline.Mode); err != nil {
		return fmt.Errorf("config: OFFLINE_MODE: %w", err)
	}
	if c.API.Timeout < 0 {
		return errors.New("config: API_TIMEOUT must not be negative")
	}
	if c.Offline.CheckInterval <= 0 {
		return errors.New("config: OFFLINE_CHECK_INTERVAL must be positive")
	}
	return nil
}

// KV maps the store settings onto kv.Config.
func (s Store) KV() kv.Config {
	return kv.Config{
		Driver:         kv.Driver(s.Driver),
		Prefix:         s.Prefix,
		FileDir:        s.FileDir,
		SQLDriverName:  s.SQLDriver,
		SQLDSN:         s.SQLDSN,
		SQLTable:       s.SQLTable,
		RedisAddr:      s.RedisAddr,
		NATSURL:        s.NATSURL,
		NATSBucket:     s.NATSBucket,
		DynamoRegion:   s.DynamoRegion,
		DynamoEndpoint: s.DynamoEndpoint,
		DynamoTable:    s.DynamoTable,
		Compression:    kv.CompressionCodec(s.Compression),
		MaxValueBytes:  s.MaxValueBytes,
	}
}

func validCodec(raw string) error {
	switch kv.CompressionCodec(raw) {
	case kv.CompressionNone, kv.CompressionGzip:
		return nil
	default:
		return fmt.Errorf("%w: %q", kv.ErrUnsupportedCodec, raw)
	}
}

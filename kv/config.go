package kv

import (
	"os"
	"path/filepath"
)

const (
	defaultPrefix       = "app"
	defaultSQLTable     = "kv_entries"
	defaultNATSBucket   = "restaurantdata"
	defaultDynamoTable  = "restaurantdata"
	defaultDynamoRegion = "us-east-1"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "restaurantdata-kv")
}

// Config controls how a Store is constructed.
type Config struct {
	Driver Driver

	// Prefix namespaces keys on shared backends (sql, redis, nats, dynamodb).
	Prefix string

	// FileDir controls where the file driver keeps entries.
	FileDir string

	// SQLDriverName is the database/sql driver: "sqlite", "mysql" or "pgx".
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// RedisClient wins over RedisAddr when both are set.
	RedisClient RedisClient
	RedisAddr   string

	// NATSKeyValue wins over NATSURL when both are set.
	NATSKeyValue NATSKeyValue
	NATSURL      string
	NATSBucket   string

	// DynamoClient wins over the region/endpoint settings when set.
	DynamoClient   DynamoAPI
	DynamoRegion   string
	DynamoEndpoint string
	DynamoTable    string

	// Compression and MaxValueBytes wrap the store in a shaping decorator.
	Compression   CompressionCodec
	MaxValueBytes int
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.SQLDriverName == "" {
		c.SQLDriverName = "sqlite"
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.NATSBucket == "" {
		c.NATSBucket = defaultNATSBucket
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	return c
}

package kv

// Option mutates Config when constructing a store.
type Option func(Config) Config

// WithPrefix sets the key namespace for shared backends.
func WithPrefix(prefix string) Option {
	return func(cfg Config) Config {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithFileDir sets the directory used by the file driver.
func WithFileDir(dir string) Option {
	return func(cfg Config) Config {
		cfg.FileDir = dir
		return cfg
	}
}

// WithSQL configures the sql driver.
func WithSQL(driverName, dsn, table string) Option {
	return func(cfg Config) Config {
		cfg.SQLDriverName = driverName
		cfg.SQLDSN = dsn
		cfg.SQLTable = table
		return cfg
	}
}

// WithRedisClient sets the redis client used by the redis driver.
func WithRedisClient(client RedisClient) Option {
	return func(cfg Config) Config {
		cfg.RedisClient = client
		return cfg
	}
}

// WithNATSKeyValue sets the JetStream bucket used by the nats driver.
func WithNATSKeyValue(kv NATSKeyValue) Option {
	return func(cfg Config) Config {
		cfg.NATSKeyValue = kv
		return cfg
	}
}

// WithDynamoClient sets the DynamoDB client used by the dynamodb driver.
func WithDynamoClient(client DynamoAPI) Option {
	return func(cfg Config) Config {
		cfg.DynamoClient = client
		return cfg
	}
}

// WithDynamoTable overrides the DynamoDB table name.
func WithDynamoTable(table string) Option {
	return func(cfg Config) Config {
		cfg.DynamoTable = table
		return cfg
	}
}

// WithCompression enables value compression.
func WithCompression(codec CompressionCodec) Option {
	return func(cfg Config) Config {
		cfg.Compression = codec
		return cfg
	}
}

// WithMaxValueBytes rejects values larger than n bytes after shaping.
func WithMaxValueBytes(n int) Option {
	return func(cfg Config) Config {
		cfg.MaxValueBytes = n
		return cfg
	}
}

package savedfilter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Backends accepted in Config.Backend.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config selects and configures the saved filter store.
type Config struct {
	Backend  string         `yaml:"backend"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Cache    CacheConfig    `yaml:"cache"`
}

type MongoConfig struct {
	URI          string `yaml:"uri"`
	DatabaseName string `yaml:"database_name"`
	Collection   string `yaml:"collection"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the storage defaults: a local SQLite file.
func DefaultConfig() Config {
	return Config{
		Backend: BackendSQLite,
		Mongo: MongoConfig{
			URI:          "mongodb://localhost:27017",
			DatabaseName: "worktrack",
			Collection:   "saved_filters",
		},
		SQLite: SQLiteConfig{Path: "data/worktrack.db"},
		Cache:  DefaultCacheConfig(),
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = defaults.Mongo.URI
	}
	if c.Mongo.DatabaseName == "" {
		c.Mongo.DatabaseName = defaults.Mongo.DatabaseName
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = defaults.Mongo.Collection
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = defaults.SQLite.Path
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = defaults.Cache.Size
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = defaults.Cache.TTL
	}
	if c.Cache.NegativeTTL == 0 {
		c.Cache.NegativeTTL = defaults.Cache.NegativeTTL
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("WORKTRACK_STORAGE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("WORKTRACK_MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("WORKTRACK_POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
}

// ResolvePaths resolves the SQLite path next to the config directory.
func (c *Config) ResolvePaths(configDir string) {
	if c.SQLite.Path != "" && c.SQLite.Path != ":memory:" && !filepath.IsAbs(c.SQLite.Path) {
		c.SQLite.Path = filepath.Clean(filepath.Join(filepath.Dir(configDir), c.SQLite.Path))
	}
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.DatabaseName == "" {
			return fmt.Errorf("storage.mongo.uri and storage.mongo.database_name are required")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}

// Dependency injection for testing
var (
	sqlOpen      = sql.Open
	mongoConnect = func(ctx context.Context, uri string) (*mongo.Client, error) {
		clientOpts := options.Client().ApplyURI(uri)
		if clientOpts.ConnectTimeout == nil {
			clientOpts.SetConnectTimeout(10 * time.Second)
		}
		client, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return client, nil
	}
)

// Open creates the configured store and prepares its schema.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil

	case BackendMongo:
		client, err := mongoConnect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		store := NewMongoStore(client.Database(cfg.Mongo.DatabaseName), cfg.Mongo.Collection)
		store.client = client
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		return store, nil

	case BackendPostgres:
		db, err := sqlOpen("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
		return openSQL(ctx, db, DialectPostgres)

	case BackendSQLite:
		if dir := filepath.Dir(cfg.SQLite.Path); cfg.SQLite.Path != ":memory:" && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		db, err := sqlOpen("sqlite3", cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
		return openSQL(ctx, db, DialectSQLite)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func openSQL(ctx context.Context, db *sql.DB, dialect Dialect) (Store, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}
	store := NewSQLStore(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return store, nil
}

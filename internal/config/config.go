package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

const (
	ObjectDriverMinio = "minio"
	ObjectDriverS3    = "s3"
	ObjectDriverLocal = "local"

	RelationalDriverSQLite   = "sqlite3"
	RelationalDriverPostgres = "pgx"
	RelationalDriverMySQL    = "mysql"
)

type Config struct {
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Relational  RelationalConfig  `toml:"relational"`
	Credentials Credentials       `toml:"credentials"`
	Dashboard   DashboardConfig   `toml:"dashboard"`
	LogLevel    string            `toml:"log_level"`
}

// ObjectStoreConfig selects and addresses the object store. Bucket is the
// target namespace for every benchmark object.
type ObjectStoreConfig struct {
	Driver       string `toml:"driver"`
	Bucket       string `toml:"bucket"`
	Endpoint     string `toml:"endpoint"`
	Region       string `toml:"region"`
	UseSSL       bool   `toml:"use_ssl"`
	Prefix       string `toml:"prefix"`
	DataDir      string `toml:"data_dir"`
	CreateBucket bool   `toml:"create_bucket"`
}

// RelationalConfig selects the SQL driver and names the database instance.
// Instance is a file path for sqlite3 and a DSN for pgx and mysql.
type RelationalConfig struct {
	Driver          string        `toml:"driver"`
	Instance        string        `toml:"instance"`
	Table           string        `toml:"table"`
	MaxBlobBytes    int64         `toml:"max_blob_bytes"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `toml:"conn_max_idle_time"`
}

// Credentials holds the authentication material for both stores. Empty
// object-store keys fall back to the backend's default credential chain.
type Credentials struct {
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	SessionToken    string `toml:"session_token"`
	DBUser          string `toml:"db_user"`
	DBPassword      string `toml:"db_password"`
}

type DashboardConfig struct {
	Listen            string   `toml:"listen"`
	Username          string   `toml:"username"`
	Password          string   `toml:"password"`
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	Metrics           bool     `toml:"metrics"`
}

const (
	DefaultBucket          = "blobbench"
	DefaultRegion          = "us-east-1"
	DefaultTable           = "file_benchmarks"
	DefaultMaxBlobBytes    = 64 << 20
	DefaultMaxOpenConns    = 4
	DefaultConnMaxLifetime = 30 * time.Minute
	DefaultConnMaxIdleTime = 5 * time.Minute
	DefaultListen          = ":9100"
	DefaultMaxUploadBytes  = 256 << 20
)

func DefaultConfig() *Config {
	return &Config{
		ObjectStore: ObjectStoreConfig{
			Driver:       ObjectDriverMinio,
			Bucket:       DefaultBucket,
			Endpoint:     "localhost:9000",
			Region:       DefaultRegion,
			DataDir:      "./data/objects",
			CreateBucket: true,
		},
		Relational: RelationalConfig{
			Driver:          RelationalDriverSQLite,
			Instance:        "./data/blobbench.sqlite",
			Table:           DefaultTable,
			MaxBlobBytes:    DefaultMaxBlobBytes,
			MaxOpenConns:    DefaultMaxOpenConns,
			ConnMaxLifetime: DefaultConnMaxLifetime,
			ConnMaxIdleTime: DefaultConnMaxIdleTime,
		},
		Dashboard: DashboardConfig{
			Listen:         DefaultListen,
			MaxUploadBytes: DefaultMaxUploadBytes,
			Metrics:        true,
		},
		LogLevel: "info",
	}
}

type Option func(*Config)

func WithBucket(bucket string) Option {
	return func(cfg *Config) {
		cfg.ObjectStore.Bucket = bucket
	}
}

func WithObjectDriver(driver string) Option {
	return func(cfg *Config) {
		cfg.ObjectStore.Driver = driver
	}
}

func WithDataDir(dataDir string) Option {
	return func(cfg *Config) {
		cfg.ObjectStore.DataDir = dataDir
	}
}

// WithInstance sets the relational driver and the instance it connects to.
func WithInstance(driver string, instance string) Option {
	return func(cfg *Config) {
		cfg.Relational.Driver = driver
		cfg.Relational.Instance = instance
	}
}

func WithMaxBlobBytes(n int64) Option {
	return func(cfg *Config) {
		cfg.Relational.MaxBlobBytes = n
	}
}

func WithCredentials(creds Credentials) Option {
	return func(cfg *Config) {
		cfg.Credentials = creds
	}
}

func WithListen(addr string) Option {
	return func(cfg *Config) {
		cfg.Dashboard.Listen = addr
	}
}

// New returns the default configuration with opts applied, normalized and
// validated.
func New(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.finish()
}

// Load reads the TOML file at path (a missing file is not an error), applies
// BLOBBENCH_* environment overrides and then opts.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	c.ApplyDefaults()
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables looked up through
// lookup. Unset variables leave the field untouched.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
			}
			*dst = b
		}
		return nil
	}
	integer := func(key string, dst *int64) error {
		if v, ok := lookup(key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
			}
			*dst = n
		}
		return nil
	}

	str("BLOBBENCH_OBJECT_DRIVER", &c.ObjectStore.Driver)
	str("BLOBBENCH_BUCKET", &c.ObjectStore.Bucket)
	str("BLOBBENCH_S3_ENDPOINT", &c.ObjectStore.Endpoint)
	str("BLOBBENCH_S3_REGION", &c.ObjectStore.Region)
	str("BLOBBENCH_S3_PREFIX", &c.ObjectStore.Prefix)
	str("BLOBBENCH_DATA_DIR", &c.ObjectStore.DataDir)
	str("BLOBBENCH_DB_DRIVER", &c.Relational.Driver)
	str("BLOBBENCH_DB_INSTANCE", &c.Relational.Instance)
	str("BLOBBENCH_DB_TABLE", &c.Relational.Table)
	str("BLOBBENCH_S3_ACCESS_KEY", &c.Credentials.AccessKeyID)
	str("BLOBBENCH_S3_SECRET_KEY", &c.Credentials.SecretAccessKey)
	str("BLOBBENCH_S3_SESSION_TOKEN", &c.Credentials.SessionToken)
	str("BLOBBENCH_DB_USER", &c.Credentials.DBUser)
	str("BLOBBENCH_DB_PASSWORD", &c.Credentials.DBPassword)
	str("BLOBBENCH_UI_LISTEN", &c.Dashboard.Listen)
	str("BLOBBENCH_UI_USERNAME", &c.Dashboard.Username)
	str("BLOBBENCH_UI_PASSWORD", &c.Dashboard.Password)
	str("BLOBBENCH_LOG_LEVEL", &c.LogLevel)

	if err := boolean("BLOBBENCH_S3_SSL", &c.ObjectStore.UseSSL); err != nil {
		return err
	}
	if err := boolean("BLOBBENCH_CREATE_BUCKET", &c.ObjectStore.CreateBucket); err != nil {
		return err
	}
	if err := integer("BLOBBENCH_DB_MAX_BLOB_BYTES", &c.Relational.MaxBlobBytes); err != nil {
		return err
	}
	if err := integer("BLOBBENCH_UI_MAX_UPLOAD_BYTES", &c.Dashboard.MaxUploadBytes); err != nil {
		return err
	}

	return nil
}

func (c *Config) ApplyDefaults() {
	if c.ObjectStore.Driver == "" {
		c.ObjectStore.Driver = ObjectDriverMinio
	}
	if c.ObjectStore.Bucket == "" {
		c.ObjectStore.Bucket = DefaultBucket
	}
	if c.ObjectStore.Region == "" {
		c.ObjectStore.Region = DefaultRegion
	}
	if c.Relational.Driver == "" {
		c.Relational.Driver = RelationalDriverSQLite
	}
	if c.Relational.Table == "" {
		c.Relational.Table = DefaultTable
	}
	if c.Relational.MaxOpenConns <= 0 {
		c.Relational.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.Relational.ConnMaxLifetime <= 0 {
		c.Relational.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if c.Relational.ConnMaxIdleTime <= 0 {
		c.Relational.ConnMaxIdleTime = DefaultConnMaxIdleTime
	}
	if c.Dashboard.Listen == "" {
		c.Dashboard.Listen = DefaultListen
	}
	if c.Dashboard.MaxUploadBytes <= 0 {
		c.Dashboard.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Normalize() {
	c.ObjectStore.Driver = strings.ToLower(strings.TrimSpace(c.ObjectStore.Driver))
	c.ObjectStore.Bucket = strings.TrimSpace(c.ObjectStore.Bucket)
	c.ObjectStore.Endpoint = strings.TrimSpace(c.ObjectStore.Endpoint)
	if c.ObjectStore.Prefix != "" && !strings.HasSuffix(c.ObjectStore.Prefix, "/") {
		c.ObjectStore.Prefix += "/"
	}

	c.Relational.Driver = strings.ToLower(strings.TrimSpace(c.Relational.Driver))
	if c.Relational.Driver == "sqlite" {
		c.Relational.Driver = RelationalDriverSQLite
	}
	if c.Relational.Driver == "postgres" || c.Relational.Driver == "postgresql" {
		c.Relational.Driver = RelationalDriverPostgres
	}

	exts := make([]string, 0, len(c.Dashboard.AllowedExtensions))
	for _, ext := range c.Dashboard.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.Dashboard.AllowedExtensions = exts

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

func (c *Config) Validate() error {
	switch c.ObjectStore.Driver {
	case ObjectDriverMinio, ObjectDriverS3:
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("%w: object_store.bucket is required", ErrInvalid)
		}
	case ObjectDriverLocal:
		if c.ObjectStore.DataDir == "" {
			return fmt.Errorf("%w: object_store.data_dir is required for the local driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: object_store.driver must be minio, s3, or local", ErrInvalid)
	}

	if c.ObjectStore.Driver == ObjectDriverMinio && c.ObjectStore.Endpoint == "" {
		return fmt.Errorf("%w: object_store.endpoint is required for the minio driver", ErrInvalid)
	}

	switch c.Relational.Driver {
	case RelationalDriverSQLite, RelationalDriverPostgres, RelationalDriverMySQL:
	default:
		return fmt.Errorf("%w: relational.driver must be sqlite3, pgx, or mysql", ErrInvalid)
	}

	if c.Relational.Instance == "" {
		return fmt.Errorf("%w: relational.instance is required", ErrInvalid)
	}
	if !isIdentifier(c.Relational.Table) {
		return fmt.Errorf("%w: relational.table %q is not a valid identifier", ErrInvalid, c.Relational.Table)
	}
	if c.Relational.MaxBlobBytes < 0 {
		return fmt.Errorf("%w: relational.max_blob_bytes must not be negative", ErrInvalid)
	}

	if (c.Dashboard.Username == "") != (c.Dashboard.Password == "") {
		return fmt.Errorf("%w: dashboard.username and dashboard.password must be set together", ErrInvalid)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level must be debug, info, warn, or error", ErrInvalid)
	}

	return nil
}

// isIdentifier reports whether s is safe to splice into SQL as a table name.
func isIdentifier(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

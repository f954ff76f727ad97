package types

import (
	"errors"
	"fmt"
	"time"
)

// Config selects and parameterizes the storage behind a document.
type Config struct {
	Backend       string     `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir       string     `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	SyncStrategy  string     `json:"sync_strategy" yaml:"sync_strategy" mapstructure:"sync_strategy"`
	BatchSize     int        `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	BatchInterval int        `json:"batch_interval" yaml:"batch_interval" mapstructure:"batch_interval"`
	LogLevel      string     `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	Blob          BlobConfig `json:"blob" yaml:"blob" mapstructure:"blob"`
}

// BlobConfig selects where external data lives.
type BlobConfig struct {
	Driver string   `json:"driver" yaml:"driver" mapstructure:"driver"`
	Dir    string   `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir"`
	S3     S3Config `json:"s3" yaml:"s3" mapstructure:"s3"`
}

// S3Config addresses an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket       string `json:"bucket,omitempty" yaml:"bucket,omitempty" mapstructure:"bucket"`
	Region       string `json:"region,omitempty" yaml:"region,omitempty" mapstructure:"region"`
	Endpoint     string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Prefix       string `json:"prefix,omitempty" yaml:"prefix,omitempty" mapstructure:"prefix"`
	UsePathStyle bool   `json:"use_path_style,omitempty" yaml:"use_path_style,omitempty" mapstructure:"use_path_style"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

// Sync strategies control when document changes reach the backend.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
	SyncBatch     = "batch"
)

// Blob drivers.
const (
	BlobDriverBackend = "backend"
	BlobDriverMemory  = "memory"
	BlobDriverFS      = "fs"
	BlobDriverS3      = "s3"
)

// Defaults applied by Normalize.
const (
	DefaultBatchSize     = 50
	DefaultBatchInterval = 5
)

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrSyncStrategyUnknown  = errors.New("unknown sync strategy")
	ErrBatchSizeInvalid     = errors.New("batch size must be positive")
	ErrBatchIntervalInvalid = errors.New("batch interval must be positive")
	ErrBlobDriverUnknown    = errors.New("unknown blob driver")
	ErrBlobBucketEmpty      = errors.New("s3 blob driver requires a bucket")
)

var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendJSON:   true,
	BackendMemory: true,
}

var knownBlobDrivers = map[string]bool{
	"":                true,
	BlobDriverBackend: true,
	BlobDriverMemory:  true,
	BlobDriverFS:      true,
	BlobDriverS3:      true,
}

// Normalize fills in defaults for unset optional fields.
func (c Config) Normalize() Config {
	if c.SyncStrategy == "" {
		c.SyncStrategy = SyncImmediate
	}
	if c.SyncStrategy == SyncBatch {
		if c.BatchSize == 0 {
			c.BatchSize = DefaultBatchSize
		}
		if c.BatchInterval == 0 {
			c.BatchInterval = DefaultBatchInterval
		}
	}
	if c.Blob.Driver == "" {
		c.Blob.Driver = BlobDriverBackend
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: %s", ErrBackendUnknown, c.Backend)
	}
	switch c.SyncStrategy {
	case "", SyncImmediate, SyncOnClose:
	case SyncBatch:
		if c.BatchSize < 0 {
			return ErrBatchSizeInvalid
		}
		if c.BatchInterval < 0 {
			return ErrBatchIntervalInvalid
		}
	default:
		return fmt.Errorf("%w: %s", ErrSyncStrategyUnknown, c.SyncStrategy)
	}
	if !knownBlobDrivers[c.Blob.Driver] {
		return fmt.Errorf("%w: %s", ErrBlobDriverUnknown, c.Blob.Driver)
	}
	if c.Blob.Driver == BlobDriverS3 && c.Blob.S3.Bucket == "" {
		return ErrBlobBucketEmpty
	}
	return nil
}

// BatchDuration returns BatchInterval in seconds as a time.Duration.
func (c Config) BatchDuration() time.Duration {
	return time.Duration(c.BatchInterval) * time.Second
}

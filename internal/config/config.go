// Package config loads pstree settings from file, environment and defaults.
package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Persistence kinds.
const (
	PersistNone   = "none"
	PersistMemory = "memory"
	PersistFile   = "file"
	PersistS3     = "s3"
)

// Default values.
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultLogMaxSizeMB     = 100
	DefaultLogMaxBackups    = 3
	DefaultArenaCapacity    = 0
	DefaultPersistKind      = PersistNone
	DefaultPersistPath      = ".pstree/nodes"
	DefaultS3Region         = "us-east-1"
	DefaultCacheSize        = 4096
	DefaultStoreConcurrency = 40
)

var (
	// ErrPersistPathRequired is returned for file persistence without a path.
	ErrPersistPathRequired = errors.New("persist.path is required for file persistence")
	// ErrS3BucketRequired is returned for S3 persistence without a bucket.
	ErrS3BucketRequired = errors.New("persist.s3.bucket is required for s3 persistence")
)

// Config is the top-level configuration of pstree.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Arena   ArenaConfig   `mapstructure:"arena"`
	Persist PersistConfig `mapstructure:"persist"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
}

// LogConfig selects the log level, format and destination.
type LogConfig struct {
	Level      string `mapstructure:"level"       validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format"      validate:"omitempty,oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// ArenaConfig bounds node allocation. A capacity of 0 sizes arenas from the
// job.
type ArenaConfig struct {
	Capacity int `mapstructure:"capacity" validate:"gte=0"`
}

// PersistConfig selects where saved versions go.
type PersistConfig struct {
	Kind string   `mapstructure:"kind" validate:"omitempty,oneof=none memory file s3"`
	Path string   `mapstructure:"path"`
	S3   S3Config `mapstructure:"s3"`
}

// S3Config addresses the bucket for S3 persistence.
type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
	Region   string `mapstructure:"region"`
}

// CacheConfig sizes the node cache shared by saves and loads.
type CacheConfig struct {
	Size int `mapstructure:"size" validate:"gte=0"`
}

// StoreConfig bounds concurrent node stores.
type StoreConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"gte=0"`
}

// Validate checks field ranges and the settings each persistence kind needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Persist.Kind {
	case PersistFile:
		if c.Persist.Path == "" {
			return ErrPersistPathRequired
		}
	case PersistS3:
		if c.Persist.S3.Bucket == "" {
			return ErrS3BucketRequired
		}
	}
	return nil
}

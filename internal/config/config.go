package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:7480"
	DefaultLogLevel       = "info"
	DefaultDBFileName     = ".fstore.db"
	DefaultBadgerDirName  = ".fstore-badger"
	DefaultBlobDirName    = ".fstore-blobs"
	DefaultCatalogBackend = "sqlite"
	DefaultBlobBackend    = "local"
	DefaultPageSize       = 10
	DefaultMaxPageSize    = 1000
	DefaultS3PartSizeMB   = 10
	DefaultS3MaxAttempts  = 3
	DefaultGCGracePeriod  = "1h"
	DefaultMaxUploadBytes = int64(0)
	configFileName        = ".fstore.toml"
	configDirEnvKey       = "FSTORE_CONFIG_DIR"
	minS3PartSizeMB       = 5
)

// S3Config selects an S3-compatible bucket for blobs. Empty credentials fall
// back to the SDK default chain.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint" validate:"omitempty,url"`
	Prefix          string `toml:"prefix"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PartSizeMB      int    `toml:"part_size_mb" validate:"gte=0"`
	MaxAttempts     int    `toml:"max_attempts" validate:"gte=0,lte=20"`
}

type CatalogConfig struct {
	Backend   string `toml:"backend" validate:"required,oneof=sqlite badger"`
	BadgerDir string `toml:"badger_dir"`
}

type BlobsConfig struct {
	Backend string   `toml:"backend" validate:"required,oneof=local s3"`
	Root    string   `toml:"root"`
	S3      S3Config `toml:"s3"`
}

type UploadsConfig struct {
	// MaxBytes caps one upload request; 0 means unlimited.
	MaxBytes int64 `toml:"max_bytes" validate:"gte=0"`
}

type ListingConfig struct {
	DefaultPageSize int `toml:"default_page_size" validate:"gt=0"`
	MaxPageSize     int `toml:"max_page_size" validate:"gt=0,lte=10000"`
}

type LinksConfig struct {
	BaseURL string `toml:"base_url" validate:"omitempty,url"`
}

type GCConfig struct {
	// Interval enables periodic GC inside srv when non-empty.
	Interval    string `toml:"interval" validate:"omitempty,duration"`
	GracePeriod string `toml:"grace_period" validate:"omitempty,duration"`
}

type AdminConfig struct {
	TokenHash string `toml:"token_hash"`
}

// Config defines runtime configuration for fstore.
type Config struct {
	APIURL     string        `toml:"api_url" validate:"required,url"`
	LogLevel   string        `toml:"log_level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	ListenAddr string        `toml:"listen_addr"`
	DBPath     string        `toml:"db_path"`
	Catalog    CatalogConfig `toml:"catalog"`
	Blobs      BlobsConfig   `toml:"blobs"`
	Uploads    UploadsConfig `toml:"uploads"`
	Listing    ListingConfig `toml:"listing"`
	Links      LinksConfig   `toml:"links"`
	GC         GCConfig      `toml:"gc"`
	Admin      AdminConfig   `toml:"admin"`
}

// Default returns default configuration values. Paths are resolved against
// the working directory by Load.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Catalog:  CatalogConfig{Backend: DefaultCatalogBackend},
		Blobs: BlobsConfig{
			Backend: DefaultBlobBackend,
			S3: S3Config{
				PartSizeMB:  DefaultS3PartSizeMB,
				MaxAttempts: DefaultS3MaxAttempts,
			},
		},
		Uploads: UploadsConfig{MaxBytes: DefaultMaxUploadBytes},
		Listing: ListingConfig{DefaultPageSize: DefaultPageSize, MaxPageSize: DefaultMaxPageSize},
		GC:      GCConfig{GracePeriod: DefaultGCGracePeriod},
	}
}

// GCInterval parses gc.interval. Zero disables periodic GC.
func (c *Config) GCInterval() time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(c.GC.Interval))
	return d
}

// GCGracePeriod parses gc.grace_period.
func (c *Config) GCGracePeriod() time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(c.GC.GracePeriod))
	return d
}

// S3PartSizeBytes converts blobs.s3.part_size_mb to bytes.
func (c *Config) S3PartSizeBytes() int64 {
	return int64(c.Blobs.S3.PartSizeMB) * 1024 * 1024
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

// GlobalPath returns the path to the config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// Load reads the config file, applies env overrides, fills path defaults
// and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GlobalPath()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)
	cfg.fillPathDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envStrings = map[string]func(*Config) *string{
	"FSTORE_API_URL":              func(c *Config) *string { return &c.APIURL },
	"FSTORE_LISTEN_ADDR":          func(c *Config) *string { return &c.ListenAddr },
	"FSTORE_DB":                   func(c *Config) *string { return &c.DBPath },
	"FSTORE_CATALOG_BACKEND":      func(c *Config) *string { return &c.Catalog.Backend },
	"FSTORE_BADGER_DIR":           func(c *Config) *string { return &c.Catalog.BadgerDir },
	"FSTORE_BLOBS_BACKEND":        func(c *Config) *string { return &c.Blobs.Backend },
	"FSTORE_BLOBS_ROOT":           func(c *Config) *string { return &c.Blobs.Root },
	"FSTORE_S3_BUCKET":            func(c *Config) *string { return &c.Blobs.S3.Bucket },
	"FSTORE_S3_REGION":            func(c *Config) *string { return &c.Blobs.S3.Region },
	"FSTORE_S3_ENDPOINT":          func(c *Config) *string { return &c.Blobs.S3.Endpoint },
	"FSTORE_S3_PREFIX":            func(c *Config) *string { return &c.Blobs.S3.Prefix },
	"FSTORE_S3_ACCESS_KEY_ID":     func(c *Config) *string { return &c.Blobs.S3.AccessKeyID },
	"FSTORE_S3_SECRET_ACCESS_KEY": func(c *Config) *string { return &c.Blobs.S3.SecretAccessKey },
	"FSTORE_LINK_BASE_URL":        func(c *Config) *string { return &c.Links.BaseURL },
	"FSTORE_ADMIN_TOKEN_HASH":     func(c *Config) *string { return &c.Admin.TokenHash },
}

func applyEnv(cfg *Config) {
	for key, field := range envStrings {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*field(cfg) = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("FSTORE_MAX_UPLOAD_BYTES")); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed >= 0 {
			cfg.Uploads.MaxBytes = parsed
		}
	}
}

func (c *Config) fillPathDefaults() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(cwd, DefaultDBFileName)
	}
	if c.Catalog.BadgerDir == "" {
		c.Catalog.BadgerDir = filepath.Join(cwd, DefaultBadgerDirName)
	}
	if c.Blobs.Root == "" {
		c.Blobs.Root = filepath.Join(cwd, DefaultBlobDirName)
	}
}

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindInt64
	kindDuration
)

type keySpec struct {
	kind keyKind
	get  func(*Config) string
}

var keySpecs = map[string]keySpec{
	"api_url":                {kindString, func(c *Config) string { return c.APIURL }},
	"log_level":              {kindString, func(c *Config) string { return c.LogLevel }},
	"listen_addr":            {kindString, func(c *Config) string { return c.ListenAddr }},
	"db_path":                {kindString, func(c *Config) string { return c.DBPath }},
	"catalog.backend":        {kindString, func(c *Config) string { return c.Catalog.Backend }},
	"catalog.badger_dir":     {kindString, func(c *Config) string { return c.Catalog.BadgerDir }},
	"blobs.backend":          {kindString, func(c *Config) string { return c.Blobs.Backend }},
	"blobs.root":             {kindString, func(c *Config) string { return c.Blobs.Root }},
	"blobs.s3.bucket":        {kindString, func(c *Config) string { return c.Blobs.S3.Bucket }},
	"blobs.s3.region":        {kindString, func(c *Config) string { return c.Blobs.S3.Region }},
	"blobs.s3.endpoint":      {kindString, func(c *Config) string { return c.Blobs.S3.Endpoint }},
	"blobs.s3.prefix":        {kindString, func(c *Config) string { return c.Blobs.S3.Prefix }},
	"blobs.s3.access_key_id": {kindString, func(c *Config) string { return c.Blobs.S3.AccessKeyID }},
	"blobs.s3.secret_access_key": {kindString, func(c *Config) string {
		if c.Blobs.S3.SecretAccessKey == "" {
			return ""
		}
		return "********"
	}},
	"blobs.s3.part_size_mb":     {kindInt, func(c *Config) string { return strconv.Itoa(c.Blobs.S3.PartSizeMB) }},
	"blobs.s3.max_attempts":     {kindInt, func(c *Config) string { return strconv.Itoa(c.Blobs.S3.MaxAttempts) }},
	"uploads.max_bytes":         {kindInt64, func(c *Config) string { return strconv.FormatInt(c.Uploads.MaxBytes, 10) }},
	"listing.default_page_size": {kindInt, func(c *Config) string { return strconv.Itoa(c.Listing.DefaultPageSize) }},
	"listing.max_page_size":     {kindInt, func(c *Config) string { return strconv.Itoa(c.Listing.MaxPageSize) }},
	"links.base_url":            {kindString, func(c *Config) string { return c.Links.BaseURL }},
	"gc.interval":               {kindDuration, func(c *Config) string { return c.GC.Interval }},
	"gc.grace_period":           {kindDuration, func(c *Config) string { return c.GC.GracePeriod }},
	"admin.token_hash":          {kindString, func(c *Config) string { return c.Admin.TokenHash }},
}

// AllowedKeys returns the sorted set of valid config keys.
func AllowedKeys() []string {
	keys := make([]string, 0, len(keySpecs))
	for key := range keySpecs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	_, ok := keySpecs[key]
	return ok
}

// Get returns the value of a config key. Secrets are masked.
func (c *Config) Get(key string) (string, error) {
	spec, ok := keySpecs[key]
	if !ok {
		return "", fmt.Errorf("unknown key: %s", key)
	}
	return spec.get(c), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	spec, ok := keySpecs[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, spec.kind, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key string, kind keyKind, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch kind {
	case kindInt:
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return int64(parsed), nil
	case kindInt64:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case kindDuration:
		if value == "" {
			return value, nil
		}
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("%s must be a duration like 30m or 1h", key)
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

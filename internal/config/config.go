// Package config loads settings from defaults, an optional config file and
// the environment, in that order of precedence (environment wins).
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	tlog "taxlyzer/internal/log"
)

type Config struct {
	// HTTP Server
	Port           string
	MaxUploadBytes int64
	TrustedProxies []string

	// Backend selection
	DataBackend   string
	SQLiteDBPath  string
	DataDirectory string

	// AMQP, disabled when the URL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export, disabled when the spreadsheet id is empty
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Classification and statistics
	ClassifierRulesFile string
	CacheTTL            time.Duration
	CacheSize           int
	StatsConcurrency    int

	// Report archive, disabled when the bucket is empty
	ReportS3Bucket string
	ReportS3Prefix string
	AWSRegion      string

	// GSTR-1 identity columns
	SupplierGSTIN string
	ReceiverGSTIN string
	PlaceOfSupply string

	RateLimitPerMinute int

	LogLevel  string
	LogFormat string
}

// FileConfig is the on-disk shape. Durations are strings such as "30s".
type FileConfig struct {
	Port                     string   `toml:"port" yaml:"port" json:"port"`
	MaxUploadBytes           int64    `toml:"max_upload_bytes" yaml:"max_upload_bytes" json:"max_upload_bytes"`
	TrustedProxies           []string `toml:"trusted_proxies" yaml:"trusted_proxies" json:"trusted_proxies"`
	DataBackend              string   `toml:"data_backend" yaml:"data_backend" json:"data_backend"`
	SQLiteDBPath             string   `toml:"sqlite_db_path" yaml:"sqlite_db_path" json:"sqlite_db_path"`
	DataDirectory            string   `toml:"data_directory" yaml:"data_directory" json:"data_directory"`
	AMQPURL                  string   `toml:"amqp_url" yaml:"amqp_url" json:"amqp_url"`
	AMQPExchange             string   `toml:"amqp_exchange" yaml:"amqp_exchange" json:"amqp_exchange"`
	AMQPQueue                string   `toml:"amqp_queue" yaml:"amqp_queue" json:"amqp_queue"`
	GoogleSpreadsheetID      string   `toml:"google_spreadsheet_id" yaml:"google_spreadsheet_id" json:"google_spreadsheet_id"`
	GoogleSheetName          string   `toml:"google_sheet_name" yaml:"google_sheet_name" json:"google_sheet_name"`
	GoogleServiceAccountFile string   `toml:"google_service_account_file" yaml:"google_service_account_file" json:"google_service_account_file"`
	SyncBatchSize            int      `toml:"sync_batch_size" yaml:"sync_batch_size" json:"sync_batch_size"`
	SyncInterval             string   `toml:"sync_interval" yaml:"sync_interval" json:"sync_interval"`
	ClassifierRulesFile      string   `toml:"classifier_rules_file" yaml:"classifier_rules_file" json:"classifier_rules_file"`
	CacheTTL                 string   `toml:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl"`
	CacheSize                int      `toml:"cache_size" yaml:"cache_size" json:"cache_size"`
	StatsConcurrency         int      `toml:"stats_concurrency" yaml:"stats_concurrency" json:"stats_concurrency"`
	ReportS3Bucket           string   `toml:"report_s3_bucket" yaml:"report_s3_bucket" json:"report_s3_bucket"`
	ReportS3Prefix           string   `toml:"report_s3_prefix" yaml:"report_s3_prefix" json:"report_s3_prefix"`
	AWSRegion                string   `toml:"aws_region" yaml:"aws_region" json:"aws_region"`
	SupplierGSTIN            string   `toml:"supplier_gstin" yaml:"supplier_gstin" json:"supplier_gstin"`
	ReceiverGSTIN            string   `toml:"receiver_gstin" yaml:"receiver_gstin" json:"receiver_gstin"`
	PlaceOfSupply            string   `toml:"place_of_supply" yaml:"place_of_supply" json:"place_of_supply"`
	RateLimitPerMinute       int      `toml:"rate_limit_per_minute" yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	LogLevel                 string   `toml:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat                string   `toml:"log_format" yaml:"log_format" json:"log_format"`
}

func defaults() *Config {
	return &Config{
		Port:               "8081",
		MaxUploadBytes:     10 << 20,
		DataBackend:        "memory",
		SQLiteDBPath:       "./data/taxlyzer.db",
		DataDirectory:      "data",
		AMQPExchange:       "taxlyzer",
		AMQPQueue:          "sync_invoices",
		GoogleSheetName:    "GST",
		SyncBatchSize:      10,
		SyncInterval:       30 * time.Second,
		CacheTTL:           5 * time.Minute,
		CacheSize:          128,
		StatsConcurrency:   8,
		ReportS3Prefix:     "reports/",
		SupplierGSTIN:      "PLACEHOLDER_GSTIN",
		ReceiverGSTIN:      "PLACEHOLDER_RECEIVER_GSTIN",
		PlaceOfSupply:      "PLACEHOLDER_STATE",
		RateLimitPerMinute: 30,
		LogLevel:           "info",
		LogFormat:          tlog.FormatText,
	}
}

// Load builds the configuration. The file named by CONFIG_FILE (TOML, YAML
// or JSON by extension) is applied over the defaults, then environment
// variables override both.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.apply(fc); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile decodes a config file without applying it.
func LoadFile(path string) (*FileConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fc FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing TOML file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing JSON file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
	return &fc, nil
}

func (c *Config) apply(fc *FileConfig) error {
	setString(&c.Port, fc.Port)
	setString(&c.DataBackend, fc.DataBackend)
	setString(&c.SQLiteDBPath, fc.SQLiteDBPath)
	setString(&c.DataDirectory, fc.DataDirectory)
	setString(&c.AMQPURL, fc.AMQPURL)
	setString(&c.AMQPExchange, fc.AMQPExchange)
	setString(&c.AMQPQueue, fc.AMQPQueue)
	setString(&c.GoogleSpreadsheetID, fc.GoogleSpreadsheetID)
	setString(&c.GoogleSheetName, fc.GoogleSheetName)
	setString(&c.GoogleServiceAccountFile, fc.GoogleServiceAccountFile)
	setString(&c.ClassifierRulesFile, fc.ClassifierRulesFile)
	setString(&c.ReportS3Bucket, fc.ReportS3Bucket)
	setString(&c.ReportS3Prefix, fc.ReportS3Prefix)
	setString(&c.AWSRegion, fc.AWSRegion)
	setString(&c.SupplierGSTIN, fc.SupplierGSTIN)
	setString(&c.ReceiverGSTIN, fc.ReceiverGSTIN)
	setString(&c.PlaceOfSupply, fc.PlaceOfSupply)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)

	if fc.MaxUploadBytes != 0 {
		c.MaxUploadBytes = fc.MaxUploadBytes
	}
	if len(fc.TrustedProxies) > 0 {
		c.TrustedProxies = fc.TrustedProxies
	}
	if fc.SyncBatchSize != 0 {
		c.SyncBatchSize = fc.SyncBatchSize
	}
	if fc.CacheSize != 0 {
		c.CacheSize = fc.CacheSize
	}
	if fc.StatsConcurrency != 0 {
		c.StatsConcurrency = fc.StatsConcurrency
	}
	if fc.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = fc.RateLimitPerMinute
	}

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"sync_interval", fc.SyncInterval, &c.SyncInterval},
		{"cache_ttl", fc.CacheTTL, &c.CacheTTL},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitList(v)
	}

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.DataDirectory = getEnv("DATA_DIRECTORY", c.DataDirectory)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)

	c.SyncBatchSize = getEnvInt("SYNC_BATCH_SIZE", c.SyncBatchSize)
	c.SyncInterval = getEnvDuration("SYNC_INTERVAL", c.SyncInterval)

	c.ClassifierRulesFile = getEnv("CLASSIFIER_RULES_FILE", c.ClassifierRulesFile)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.CacheSize = getEnvInt("CACHE_SIZE", c.CacheSize)
	c.StatsConcurrency = getEnvInt("STATS_CONCURRENCY", c.StatsConcurrency)

	c.ReportS3Bucket = getEnv("REPORT_S3_BUCKET", c.ReportS3Bucket)
	c.ReportS3Prefix = getEnv("REPORT_S3_PREFIX", c.ReportS3Prefix)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)

	c.SupplierGSTIN = getEnv("GSTR1_SUPPLIER_GSTIN", c.SupplierGSTIN)
	c.ReceiverGSTIN = getEnv("GSTR1_RECEIVER_GSTIN", c.ReceiverGSTIN)
	c.PlaceOfSupply = getEnv("GSTR1_PLACE_OF_SUPPLY", c.PlaceOfSupply)

	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// AMQPEnabled reports whether sync messages should be published.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// SheetsEnabled reports whether breakdowns are exported to Google Sheets.
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// ArchiveEnabled reports whether generated reports are copied to S3.
func (c *Config) ArchiveEnabled() bool { return c.ReportS3Bucket != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet id is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.MaxUploadBytes < 1024 || c.MaxUploadBytes > 100<<20 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be between 1KiB and 100MiB", c.MaxUploadBytes))
	}

	if c.ClassifierRulesFile != "" {
		if _, err := os.Stat(c.ClassifierRulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("classifier rules file does not exist: %s", c.ClassifierRulesFile))
		}
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.StatsConcurrency < 1 || c.StatsConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid stats concurrency %d: must be between 1 and 64", c.StatsConcurrency))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if _, err := tlog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	switch c.LogFormat {
	case tlog.FormatText, tlog.FormatJSON, tlog.FormatTint:
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text, json or tint", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

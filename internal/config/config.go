package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Ledger drivers
const (
	LedgerHedera = "hedera"
	LedgerMemory = "memory"
)

// Content store drivers
const (
	StoragePinata = "pinata"
	StorageS3     = "s3"
	StorageMemory = "memory"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Ledger   LedgerConfig   `json:"ledger"`
	Pipeline PipelineConfig `json:"pipeline"`
	Storage  StorageConfig  `json:"storage"`
	Metadata MetadataConfig `json:"metadata"`
	Audit    AuditConfig    `json:"audit"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host" env:"SERVER_HOST"`
	Port            int           `json:"port" env:"PORT"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level" env:"LOG_LEVEL"`
	Development bool   `json:"development" env:"LOG_DEVELOPMENT"`
}

// LedgerConfig selects and configures the ledger network
type LedgerConfig struct {
	Driver              string        `json:"driver" env:"LEDGER_DRIVER"`
	Network             string        `json:"network" env:"NETWORK"`
	AccountID           string        `json:"account_id" env:"ACCOUNT_ID"`
	PrivateKey          string        `json:"-" env:"PRIVATE_KEY_HEX"`
	AdminPrivateKey     string        `json:"-" env:"ADMIN_PRIVATE_KEY"`
	MaxTransactionFee   float64       `json:"max_transaction_fee_hbar" env:"MAX_TRANSACTION_FEE_HBAR"`
	MaxQueryPayment     float64       `json:"max_query_payment_hbar" env:"MAX_QUERY_PAYMENT_HBAR"`
	RequestTimeout      time.Duration `json:"request_timeout" env:"LEDGER_REQUEST_TIMEOUT"`
	EnforceStateMachine bool          `json:"enforce_state_machine" env:"ENFORCE_STATE_MACHINE"`
}

// PipelineConfig holds transaction retry and timeout policy
type PipelineConfig struct {
	FreezeAttempts int           `json:"freeze_attempts" env:"PIPELINE_FREEZE_ATTEMPTS"`
	RetryBaseDelay time.Duration `json:"retry_base_delay" env:"PIPELINE_RETRY_BASE_DELAY"`
	RetryMaxDelay  time.Duration `json:"retry_max_delay" env:"PIPELINE_RETRY_MAX_DELAY"`
	RetryFactor    float64       `json:"retry_factor" env:"PIPELINE_RETRY_FACTOR"`
	SubmitTimeout  time.Duration `json:"submit_timeout" env:"PIPELINE_SUBMIT_TIMEOUT"`
	ConfirmTimeout time.Duration `json:"confirm_timeout" env:"PIPELINE_CONFIRM_TIMEOUT"`
	PollInterval   time.Duration `json:"poll_interval" env:"PIPELINE_POLL_INTERVAL"`
	MaxPollDelay   time.Duration `json:"max_poll_delay" env:"PIPELINE_MAX_POLL_DELAY"`
}

// StorageConfig selects the content-addressable store
type StorageConfig struct {
	Driver        string `json:"driver" env:"STORAGE_DRIVER"`
	PinataAPIURL  string `json:"pinata_api_url" env:"PINATA_API_URL"`
	PinataJWT     string `json:"-" env:"PINATA_JWT"`
	PinataGateway string `json:"pinata_gateway" env:"PINATA_GATEWAY"`
	S3Bucket      string `json:"s3_bucket" env:"S3_BUCKET"`
	S3Prefix      string `json:"s3_prefix" env:"S3_PREFIX"`
	S3Endpoint    string `json:"s3_endpoint" env:"S3_ENDPOINT"`
	AWSRegion     string `json:"aws_region" env:"AWS_REGION"`

	// static credentials for S3-compatible endpoints; the default AWS chain applies when empty
	S3AccessKeyID     string `json:"s3_access_key_id" env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `json:"-" env:"S3_SECRET_ACCESS_KEY"`
}

// MetadataConfig fixes the published artifact schema
type MetadataConfig struct {
	ServiceName string `json:"service_name" env:"SERVICE_NAME"`
	Format      string `json:"format" env:"MINT_META_DATA_FORMAT"`
	Name        string `json:"name" env:"METADATA_NAME"`
	Description string `json:"description" env:"METADATA_DESCRIPTION"`
	Image       string `json:"image" env:"METADATA_IMAGE"`
	ImageType   string `json:"image_type" env:"METADATA_IMAGE_TYPE"`
}

// AuditConfig enables the optional audit sinks; empty values disable a sink
type AuditConfig struct {
	ElasticsearchURLs  []string `json:"elasticsearch_urls" env:"ELASTICSEARCH_URLS" envSeparator:","`
	ElasticsearchIndex string   `json:"elasticsearch_index" env:"ELASTICSEARCH_INDEX"`
	DynamoDBTable      string   `json:"dynamodb_table" env:"AUDIT_DYNAMODB_TABLE"`
	SNSTopicARN        string   `json:"sns_topic_arn" env:"AUDIT_SNS_TOPIC_ARN"`
	// SinkTimeout bounds each sink write so a slow backend never holds a response
	SinkTimeout time.Duration `json:"sink_timeout" env:"AUDIT_SINK_TIMEOUT"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    3 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Ledger: LedgerConfig{
			Driver:            LedgerMemory,
			Network:           "testnet",
			MaxTransactionFee: 100,
			MaxQueryPayment:   50,
			RequestTimeout:    30 * time.Second,
		},
		Pipeline: PipelineConfig{
			FreezeAttempts: 3,
			RetryBaseDelay: 200 * time.Millisecond,
			RetryMaxDelay:  2 * time.Second,
			RetryFactor:    2,
			SubmitTimeout:  30 * time.Second,
			ConfirmTimeout: 2 * time.Minute,
			PollInterval:   500 * time.Millisecond,
			MaxPollDelay:   5 * time.Second,
		},
		Storage: StorageConfig{
			Driver:       StorageMemory,
			PinataAPIURL: "https://api.pinata.cloud",
		},
		Metadata: MetadataConfig{
			ServiceName: "land-registry",
			Format:      "HIP412@2.0.0",
			Name:        "Land Parcel",
			Description: "Registered land parcel",
			Image:       "ipfs://bafkreidmnqjs3cb3t3tnowxods2o3dzijmdakha437h6lmfjc46ihfsg44",
			ImageType:   "image/jpg",
		},
		Audit: AuditConfig{
			ElasticsearchIndex: "landnft-audit",
			SinkTimeout:        5 * time.Second,
		},
	}
}

// LoadConfig loads configuration from file, .env files and environment variables,
// in that order of increasing precedence, and validates the result.
func LoadConfig(configPath string, envFiles ...string) (*Config, error) {
	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// .env values never override variables already set in the environment
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that the selected drivers have what they need
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}

	switch c.Ledger.Driver {
	case LedgerMemory:
	case LedgerHedera:
		if c.Ledger.AccountID == "" {
			errs = append(errs, errors.New("ACCOUNT_ID is required for the hedera ledger"))
		}
		if c.Ledger.PrivateKey == "" {
			errs = append(errs, errors.New("PRIVATE_KEY_HEX is required for the hedera ledger"))
		}
		if c.Ledger.Network == "" {
			errs = append(errs, errors.New("NETWORK is required for the hedera ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver))
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePinata:
		if c.Storage.PinataJWT == "" {
			errs = append(errs, errors.New("PINATA_JWT is required for the pinata store"))
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 store"))
		}
		if (c.Storage.S3AccessKeyID == "") != (c.Storage.S3SecretAccessKey == "") {
			errs = append(errs, errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.Pipeline.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("pipeline confirm timeout must be positive"))
	}
	if c.Pipeline.RetryFactor < 1 {
		errs = append(errs, errors.New("pipeline retry factor must be at least 1"))
	}
	if c.Pipeline.FreezeAttempts < 1 {
		errs = append(errs, errors.New("pipeline freeze attempts must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, LedgerMemory, cfg.Ledger.Driver)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, float64(100), cfg.Ledger.MaxTransactionFee)
	assert.Equal(t, float64(50), cfg.Ledger.MaxQueryPayment)
	assert.Equal(t, "image/jpg", cfg.Metadata.ImageType)
	assert.Equal(t, 5*time.Second, cfg.Audit.SinkTimeout)
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.GetServerAddr())
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"server": {"port": 8080},
		"ledger": {"network": "previewnet"},
		"metadata": {"service_name": "from-file"}
	}`), 0o600))
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("SERVICE_NAME=from-dotenv\nMINT_META_DATA_FORMAT=HIP412@1.0.0\n"), 0o600))

	t.Setenv("PORT", "9090")
	t.Setenv("MINT_META_DATA_FORMAT", "from-env")
	t.Setenv("ELASTICSEARCH_URLS", "http://es1:9200,http://es2:9200")
	t.Setenv("PIPELINE_CONFIRM_TIMEOUT", "45s")
	t.Setenv("PIPELINE_RETRY_FACTOR", "1.5")

	cfg, err := LoadConfig(file, dotenv)
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("SERVICE_NAME") })

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "previewnet", cfg.Ledger.Network)
	assert.Equal(t, "from-dotenv", cfg.Metadata.ServiceName)
	assert.Equal(t, "from-env", cfg.Metadata.Format)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Audit.ElasticsearchURLs)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.ConfirmTimeout)
	assert.Equal(t, 1.5, cfg.Pipeline.RetryFactor)
	// untouched by any layer
	assert.Equal(t, 3, cfg.Pipeline.FreezeAttempts)
}

func TestLoadConfigBadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{not json`), 0o600))

	_, err := LoadConfig(file)

	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidateHederaRequiresCredentials(t *testing.T) {
	cfg := Default()
	cfg.Ledger.Driver = LedgerHedera

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCOUNT_ID")
	assert.Contains(t, err.Error(), "PRIVATE_KEY_HEX")

	cfg.Ledger.AccountID = "0.0.1234"
	cfg.Ledger.PrivateKey = "abcd"
	assert.NoError(t, cfg.Validate())
}

func TestValidateStorageDrivers(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = StoragePinata
	assert.ErrorContains(t, cfg.Validate(), "PINATA_JWT")

	cfg.Storage.Driver = StorageS3
	assert.ErrorContains(t, cfg.Validate(), "S3_BUCKET")

	cfg.Storage.S3Bucket = "land-metadata"
	cfg.Storage.S3AccessKeyID = "minio"
	assert.ErrorContains(t, cfg.Validate(), "S3_SECRET_ACCESS_KEY")
	cfg.Storage.S3SecretAccessKey = "minio-secret"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "unknown storage driver")
}

func TestLoadConfigRejectsInvalidEnv(t *testing.T) {
	t.Setenv("LEDGER_DRIVER", "ethereum")

	_, err := LoadConfig("")

	assert.ErrorContains(t, err, "unknown ledger driver")
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/docgraph/internal/paths"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// envPrefix maps DOCGRAPH_SYNC_STRATEGY to sync_strategy and
	// DOCGRAPH_BLOB_S3_BUCKET to blob.s3.bucket.
	envPrefix = "DOCGRAPH"
)

// configDefaults lists every key so viper can bind it to the environment.
var configDefaults = map[string]any{
	"backend":                types.BackendSQLite,
	"data_dir":               "",
	"sync_strategy":          types.SyncImmediate,
	"batch_size":             types.DefaultBatchSize,
	"batch_interval":         types.DefaultBatchInterval,
	"log_level":              "warn",
	"blob.driver":            types.BlobDriverBackend,
	"blob.dir":               "",
	"blob.s3.bucket":         "",
	"blob.s3.region":         "",
	"blob.s3.endpoint":       "",
	"blob.s3.prefix":         "",
	"blob.s3.use_path_style": false,
}

// loadConfig reads config.yaml from configDir, layered over the defaults and
// under DOCGRAPH_* environment variables. A missing config.yaml is not an
// error.
func loadConfig(configDir string) (types.Config, error) {
	v := viper.New()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml from cfg if the file does not
// exist. If it already exists, the function returns nil.
func writeConfigIfMissing(configDir string, cfg types.Config) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}

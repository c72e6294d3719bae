// Package config loads dwh.cfg and layers .env files and DWH_* environment
// variables on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"dwhload/internal/catalog"
	"dwhload/internal/common"
	"dwhload/internal/warehouse"
	"dwhload/pkg/errors"
	"dwhload/pkg/models"
)

const (
	// DefaultConfigFile is read from the working directory when no path is given.
	DefaultConfigFile = "dwh.cfg"
	// ConfigEnv overrides DefaultConfigFile.
	ConfigEnv = "DWHLOAD_CONFIG"
	// EnvPrefix prefixes every override, e.g. DWH_CLUSTER_HOST.
	EnvPrefix = "DWH"
)

// Default ports per dialect when CLUSTER.DB_PORT is unset.
const (
	DefaultRedshiftPort = 5439
	DefaultPostgresPort = 5432
)

var keys = []string{
	"cluster.host",
	"cluster.db_name",
	"cluster.db_user",
	"cluster.db_password",
	"cluster.db_port",
	"iam_role.arn",
	"s3.log_data",
	"s3.log_jsonpath",
	"s3.song_data",
	"s3.region",
	"warehouse.dialect",
	"warehouse.account",
	"warehouse.warehouse",
	"warehouse.schema",
	"warehouse.role",
	"warehouse.sslmode",
	"warehouse.timeout",
}

// GetConfigFile returns the config file named by DWHLOAD_CONFIG, or dwh.cfg.
func GetConfigFile() string {
	if configFile := os.Getenv(ConfigEnv); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return DefaultConfigFile
		}
		return cleaned
	}
	return DefaultConfigFile
}

// Load reads configFile (or the default) and applies environment overrides.
// envPath names a directory holding .env and .env.local; empty means the
// working directory.
func Load(configFile, envPath string) (*models.Config, error) {
	defaulted := configFile == ""
	if defaulted {
		configFile = GetConfigFile()
	}

	loadEnv(envPath)
	v := configureViper()

	if err := readINI(v, configFile); err != nil {
		if !defaulted || !errors.IsCode(err, errors.ErrCodeConfigNotFound) {
			return nil, err
		}
	}

	config := &models.Config{
		Cluster: models.Cluster{
			Host:     get(v, "cluster.host"),
			DBName:   get(v, "cluster.db_name"),
			User:     get(v, "cluster.db_user"),
			Password: get(v, "cluster.db_password"),
		},
		IAMRole: models.IAMRole{ARN: get(v, "iam_role.arn")},
		S3: models.S3{
			LogData:     get(v, "s3.log_data"),
			LogJSONPath: get(v, "s3.log_jsonpath"),
			SongData:    get(v, "s3.song_data"),
			Region:      get(v, "s3.region"),
		},
		Warehouse: models.Warehouse{
			Dialect:   strings.ToLower(get(v, "warehouse.dialect")),
			Account:   get(v, "warehouse.account"),
			Warehouse: get(v, "warehouse.warehouse"),
			Schema:    get(v, "warehouse.schema"),
			Role:      get(v, "warehouse.role"),
			SSLMode:   get(v, "warehouse.sslmode"),
			Timeout:   get(v, "warehouse.timeout"),
		},
	}

	port, err := parsePort(get(v, "cluster.db_port"), config.Warehouse.Dialect)
	if err != nil {
		return nil, err
	}
	config.Cluster.Port = port

	if err := DecryptConfigPasswords(config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind explicitly so overrides apply even when the file lacks the key.
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	v.SetDefault("s3.region", catalog.DefaultRegion)
	v.SetDefault("warehouse.dialect", catalog.DefaultDialect)
	return v
}

// readINI parses a ConfigParser style file and merges its sections into v.
// Section and key names are case-insensitive.
func readINI(v *viper.Viper, path string) error {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid config file path").
			WithContext("path", path)
	}
	if _, err := os.Stat(cleaned); os.IsNotExist(err) {
		return errors.New(errors.ErrCodeConfigNotFound, fmt.Sprintf("Config file %s not found", path)).
			WithSuggestions(
				"Copy dwh.cfg.example to dwh.cfg and fill in the cluster settings",
				fmt.Sprintf("Point %s or --config at the file", ConfigEnv),
			)
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:         true,
		IgnoreInlineComment: true,
	}, cleaned)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse config file").
			WithContext("path", path)
	}

	settings := map[string]any{}
	for _, section := range file.Sections() {
		if strings.EqualFold(section.Name(), ini.DefaultSection) {
			continue
		}
		values := map[string]any{}
		for _, key := range section.Keys() {
			values[key.Name()] = key.Value()
		}
		settings[section.Name()] = values
	}
	return v.MergeConfigMap(settings)
}

// loadEnv loads .env then .env.local; variables already set win.
func loadEnv(envPath string) {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(filepath.Join(envPath, name))
	}
}

func get(v *viper.Viper, key string) string {
	return unquote(v.GetString(key))
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func parsePort(raw, dialect string) (int, error) {
	if raw == "" {
		switch dialect {
		case "postgres":
			return DefaultPostgresPort, nil
		case "snowflake":
			return 0, nil
		}
		return DefaultRedshiftPort, nil
	}
	port, err := cast.ToIntE(raw)
	if err != nil {
		return 0, errors.ConfigError(fmt.Sprintf("DB_PORT %q is not a number", raw), "CLUSTER.DB_PORT")
	}
	return port, nil
}

// Dialect returns the catalog dialect the config selects.
func Dialect(config *models.Config) (catalog.Dialect, error) {
	d, ok := catalog.LookupDialect(config.Warehouse.Dialect)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownDialect,
			fmt.Sprintf("Unknown dialect %q", config.Warehouse.Dialect)).
			WithContext("field", "WAREHOUSE.DIALECT").
			WithSuggestions("Supported dialects: " + strings.Join(catalog.Dialects(), ", "))
	}
	return d, nil
}

// CatalogConfig maps the S3 and IAM_ROLE sections into catalog settings.
func CatalogConfig(config *models.Config) catalog.Config {
	return catalog.Config{
		LogData:     config.S3.LogData,
		SongData:    config.S3.SongData,
		LogJSONPath: config.S3.LogJSONPath,
		RoleARN:     config.IAMRole.ARN,
		Region:      config.S3.Region,
	}
}

// WarehouseConfig maps the CLUSTER and WAREHOUSE sections into connection
// settings. TIMEOUT is a Go duration or a number of seconds.
func WarehouseConfig(config *models.Config) (warehouse.Config, error) {
	timeout, err := parseTimeout(config.Warehouse.Timeout)
	if err != nil {
		return warehouse.Config{}, err
	}
	return warehouse.Config{
		Dialect:   config.Warehouse.Dialect,
		Host:      config.Cluster.Host,
		Port:      config.Cluster.Port,
		Database:  config.Cluster.DBName,
		User:      config.Cluster.User,
		Password:  config.Cluster.Password,
		Account:   config.Warehouse.Account,
		Warehouse: config.Warehouse.Warehouse,
		Role:      config.Warehouse.Role,
		Schema:    config.Warehouse.Schema,
		SSLMode:   config.Warehouse.SSLMode,
		Timeout:   timeout,
	}, nil
}

func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.ConfigError(fmt.Sprintf("TIMEOUT %q is not a duration", raw), "WAREHOUSE.TIMEOUT").
			WithSuggestions("Use seconds (1800) or a duration (30m)")
	}
	return d, nil
}

// Validate checks everything a run needs: the dialect, the load sources and
// the connection settings.
func Validate(config *models.Config) error {
	d, err := Dialect(config)
	if err != nil {
		return err
	}
	if err := CatalogConfig(config).Validate(d); err != nil {
		return err
	}
	wc, err := WarehouseConfig(config)
	if err != nil {
		return err
	}
	return warehouse.ValidateConfig(wc)
}

// PasswordStore looks up stored cluster passwords.
type PasswordStore interface {
	GetPassword(account string) (string, error)
}

// ResolvePassword fills an empty CLUSTER.DB_PASSWORD from store. A password
// that was never stored is not an error; validation reports it later.
func ResolvePassword(config *models.Config, store PasswordStore, account string) error {
	if config.Cluster.Password != "" || store == nil {
		return nil
	}
	password, err := store.GetPassword(account)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeCredentialNotFound) {
			return nil
		}
		return err
	}
	config.Cluster.Password = password
	return nil
}

// Redacted returns a copy with the password masked.
func Redacted(config *models.Config) *models.Config {
	masked := *config
	if masked.Cluster.Password != "" {
		masked.Cluster.Password = "********"
	}
	return &masked
}

// Marshal renders the config as YAML for display.
func Marshal(config *models.Config) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

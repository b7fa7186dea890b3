package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	envPrefix      = "CHOMIK"
	configFileName = "config.yaml"
)

// keys lists every setting, so CHOMIK_* variables apply even when the
// file leaves a key out.
var keys = []string{
	"base_url",
	"username",
	"password",
	"timeout",
	"log_level",
	"backup.folder_id",
	"backup.output_directory",
	"backup.limit",
}

type BackupConfiguration struct {
	FolderID        int64  `mapstructure:"folder_id" yaml:"folder_id"`
	OutputDirectory string `mapstructure:"output_directory" yaml:"output_directory"`
	// Limit is how many archives are kept in OutputDirectory.
	Limit int64 `mapstructure:"limit" yaml:"limit"`
}

type Configuration struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	// Timeout comes from the environment or a hand edited file, as
	// "30s", "2m" and so on.
	Timeout  time.Duration       `mapstructure:"timeout" yaml:"-"`
	LogLevel string              `mapstructure:"log_level" yaml:"log_level"`
	Backup   BackupConfiguration `mapstructure:"backup" yaml:"backup"`
}

func defaultConfiguration() Configuration {
	return Configuration{
		BaseURL:  "https://chomikuj.pl",
		LogLevel: "info",
		Backup: BackupConfiguration{
			Limit: 10,
		},
	}
}

func initializeConfig(v *viper.Viper, configDir string) error {
	logrus.WithField("dir", configDir).Info("Creating new config file")
	err := os.MkdirAll(configDir, 0700)
	if err != nil {
		return err
	}

	// only the defaults go to disk, never values from the environment
	defaultBytes, err := yaml.Marshal(defaultConfiguration())
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(filepath.Join(configDir, configFileName), defaultBytes, 0600); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	return v.ReadConfig(bytes.NewBuffer(defaultBytes))
}

// Load reads config.yaml from configDir, creating it with defaults if it
// is missing. CHOMIK_<KEY> variables override the file, with nested keys
// joined by underscores (CHOMIK_BACKUP_FOLDER_ID).
func Load(configDir string) (Configuration, error) {
	var config Configuration

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return config, err
		}
	}
	v.SetDefault("timeout", "30s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config, err
		}
		if err := initializeConfig(v, configDir); err != nil {
			return config, err
		}
	}

	err := v.Unmarshal(&config)
	return config, err
}

// NewConfiguration loads ~/.chomik/config.yaml after picking up a .env
// file from the working directory, if there is one.
func NewConfiguration() (Configuration, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Configuration{}, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Configuration{}, err
	}

	return Load(filepath.Join(homeDir, ".chomik"))
}

// Validate checks the values every command needs.
func (c Configuration) Validate() error {
	required := []struct {
		value string
		key   string
	}{
		{c.BaseURL, "base_url"},
		{c.Username, "username"},
		{c.Password, "password"},
	}
	for _, field := range required {
		if field.value == "" {
			return errors.New("Missing " + field.key)
		}
	}
	return nil
}

// ValidateBackup checks the values the backup command needs on top of
// Validate.
func (c Configuration) ValidateBackup() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Backup.OutputDirectory == "" {
		return errors.New("Missing backup output_directory")
	}
	if c.Backup.Limit <= 0 {
		return errors.New("Missing backup limit")
	}
	return nil
}

// Level is the logrus level named by LogLevel, info if it names none.
func (c Configuration) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

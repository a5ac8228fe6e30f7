package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	BaseURL     string `yaml:"base_url"     mapstructure:"base_url"`
	FGAEndpoint string `yaml:"fga_endpoint" mapstructure:"fga_endpoint"`
	AuditURL    string `yaml:"audit_url"    mapstructure:"audit_url"`
	DataDir     string `yaml:"data_dir"     mapstructure:"data_dir"`
}

func ensureDir(p string) error { return os.MkdirAll(p, 0o755) }

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ctxguard"), nil
}

func loadConfig(path string) (*Config, error) {
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("base_url", "http://localhost:8086")
	v.SetDefault("fga_endpoint", "")
	v.SetDefault("audit_url", "")
	v.SetDefault("data_dir", "")

	// Env overrides: CTXGUARD_BASE_URL, CTXGUARD_AUDIT_URL, etc.
	v.SetEnvPrefix("CTXGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Read file if it exists, otherwise return defaults without error
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func saveConfig(path string, c *Config) error {
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("base_url", c.BaseURL)
	v.Set("fga_endpoint", c.FGAEndpoint)
	v.Set("audit_url", c.AuditURL)
	v.Set("data_dir", c.DataDir)

	if err := v.WriteConfigAs(path); err != nil {
		return err
	}

	// Restrict perms to owner
	_ = os.Chmod(path, 0o600)
	return nil
}

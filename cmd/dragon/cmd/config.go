package cmd

import (
	"os"
	"path/filepath"

	"github.com/dragonhoard/dragon/pkg/model"
	"github.com/dragonhoard/dragon/pkg/policy"

	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"
)

// CaveConfig declares one cave in the config file: its descriptor plus the
// ordered policy rules evaluated for it.
type CaveConfig struct {
	model.CaveDescriptor `yaml:",inline" mapstructure:",squash"`
	Rules                []policy.Rule `json:"rules,omitempty" yaml:"rules,omitempty" mapstructure:"rules"`
}

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	// bug in viper? Need to keep names of fields the same as the serialized names..
	Catalog  string       `json:"catalog" yaml:"catalog"`   // Path to the catalog DB
	LogLevel string       `json:"loglevel" yaml:"loglevel"` // Engine log level
	Caves    []CaveConfig `json:"caves" yaml:"caves"`       // Registered caves
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *CLIConfig) setRootParams(flags *flagsT) {
	if flags.root.logLevel == "" {
		flags.root.logLevel = c.LogLevel
	}
	if flags.root.logLevel == "" {
		flags.root.logLevel = "none"
	}
	if c.Catalog == "" {
		c.Catalog = defaultCatalogPath()
	}
}

// cave resolves a configured cave by name or id
func (c *CLIConfig) cave(idOrName string) (*CaveConfig, bool) {
	for i := range c.Caves {
		if c.Caves[i].ID == idOrName || c.Caves[i].Name == idOrName {
			return &c.Caves[i], true
		}
	}
	return nil, false
}

// save writes the configuration back to the active config file
func (c *CLIConfig) save() error {
	target := viper.ConfigFileUsed()
	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir := filepath.Join(home, ".dragon")
		if err = os.MkdirAll(dir, 0700); err != nil {
			return err
		}
		target = filepath.Join(dir, "dragon.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(target, b, 0600)
}

func defaultCatalogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".dragon", "catalog")
	}
	return filepath.Join(home, ".dragon", "catalog")
}

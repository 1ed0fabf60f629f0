package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the layout of .pmlunit.yaml
type fileConfig struct {
	TestPaths     []string       `yaml:"test_paths"`
	Extension     string         `yaml:"extension"`
	PathsToIgnore []string       `yaml:"ignore"`
	Output        outputConfig   `yaml:"output"`
	Bridge        BridgeConfig   `yaml:"bridge"`
	LogLevel      string         `yaml:"log_level"`
	Grouping      string         `yaml:"grouping"`
	Database      DatabaseConfig `yaml:"database"`
}

type outputConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// loadFile merges the project file into c. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error loading project config from %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("error parsing project config %s: %w", path, err)
	}
	c.merge(fc)
	return nil
}

// merge applies the set fields of the file over c.
func (c *Config) merge(fc fileConfig) {
	if len(fc.TestPaths) > 0 {
		c.TestPaths = fc.TestPaths
	}
	if fc.Extension != "" {
		c.Extension = fc.Extension
	}
	if len(fc.PathsToIgnore) > 0 {
		c.PathsToIgnore = fc.PathsToIgnore
	}
	if fc.Output.Dir != "" {
		c.OutputJSONDir = fc.Output.Dir
	}
	if fc.Output.File != "" {
		c.OutputJSONFile = fc.Output.File
	}
	if len(fc.Bridge.Command) > 0 {
		c.Bridge.Command = fc.Bridge.Command
	}
	if fc.Bridge.Object != "" {
		c.Bridge.Object = fc.Bridge.Object
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Grouping != "" {
		c.Grouping = fc.Grouping
	}

	db := fc.Database
	if db.Host != "" {
		c.Database.Host = db.Host
	}
	if db.Port != "" {
		c.Database.Port = db.Port
	}
	if db.Username != "" {
		c.Database.Username = db.Username
	}
	if db.Password != "" {
		c.Database.Password = db.Password
	}
	if db.Name != "" {
		c.Database.Name = db.Name
	}
}

// Package config provides configuration management for ratox-go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// ConfigFileName is the name of the configuration file
	ConfigFileName = "ratox.json"
	// SaveDataFileName is the default name of the Tox save data file
	// (spec §6: overridable by a positional CLI argument).
	SaveDataFileName = "ratox.tox"
)

// Config holds all configuration options for ratox-go
type Config struct {
	// ConfigDir is the working directory that becomes the root of the
	// FIFO/status-file tree described in spec §6. `json:"-"` because it is
	// always supplied at startup, never persisted.
	ConfigDir string `json:"-"`

	// Debug enables debug logging
	Debug bool `json:"debug"`

	// Name is the user's display name
	Name string `json:"name"`

	// StatusMessage is the user's status message
	StatusMessage string `json:"status_message"`

	// IPv6Enabled selects -6 over -4 (spec §6 CLI).
	IPv6Enabled bool `json:"ipv6_enabled"`

	// UDPEnabled selects -t over -T (spec §6 CLI).
	UDPEnabled bool `json:"udp_enabled"`

	// EncryptSave selects -E over -e (spec §6 CLI, spec §4.3 envelope).
	EncryptSave bool `json:"encrypt_save"`

	// ProxyEnabled/ProxyAddress/ProxyPort back the -P/-p CLI flag; the
	// distilled spec names the flag without the options it toggles
	// (SPEC_FULL.md "Proxy options"). They are passed to the transport
	// constructor, which does not apply them.
	ProxyEnabled bool   `json:"proxy_enabled"`
	ProxyAddress string `json:"proxy_address"`
	ProxyPort    uint16 `json:"proxy_port"`

	// NotifyCommand, if set, is run via os/exec on new messages and
	// requests (SPEC_FULL.md "ratatox.c's notification hook").
	NotifyCommand string `json:"notify_command"`

	// BootstrapNodes contains DHT bootstrap nodes
	BootstrapNodes []BootstrapNode `json:"bootstrap_nodes"`

	// SaveFile is the path to the Tox save file
	SaveFile string `json:"-"`
}

// BootstrapNode represents a DHT bootstrap node
type BootstrapNode struct {
	Address   string `json:"address"`
	Port      uint16 `json:"port"`
	PublicKey string `json:"public_key"`
}

// DefaultBootstrapNodes contains a list of default bootstrap nodes
var DefaultBootstrapNodes = []BootstrapNode{
	{
		Address:   "nodes.tox.chat",
		Port:      33445,
		PublicKey: "6FC41E2BD381D37E9748FC0E0328CE086AF9598BECC8FEB7DDF2E440475F300E",
	},
	{
		Address:   "130.133.110.14",
		Port:      33445,
		PublicKey: "461FA3776EF0FA655F1A05477DF1B3B614F7D6B124F7DB1DD4FE3C08B03B640F",
	},
	{
		Address:   "tox.zodiaclabs.org",
		Port:      33445,
		PublicKey: "A09162D68618E742FFBCA1C2C70385E6679604B2D80EA6E84AD0996A1AC8A074",
	},
	{
		Address:   "tox2.abilinski.com",
		Port:      33445,
		PublicKey: "7A6098B590BDC73F9723FC59F82B3F9085A64D1B213AAF8E610FD351930D052D",
	},
}

// Load loads configuration from the specified directory
// If the configuration file doesn't exist, it creates a default one
func Load(configDir string) (*Config, error) {
	pc, _, _, _ := runtime.Caller(0)
	funcName := runtime.FuncForPC(pc).Name()
	caller := funcName[strings.LastIndex(funcName, ".")+1:]

	logrus.WithFields(logrus.Fields{
		"caller":     caller,
		"config_dir": configDir,
		"operation":  "load_config",
	}).Debug("Starting configuration load")

	configFile := filepath.Join(configDir, ConfigFileName)
	saveFile := filepath.Join(configDir, SaveDataFileName)

	logrus.WithFields(logrus.Fields{
		"caller":      caller,
		"config_file": configFile,
		"save_file":   saveFile,
	}).Debug("Configuration file paths determined")

	// Default configuration
	cfg := &Config{
		ConfigDir:      configDir,
		Debug:          false,
		Name:           "",
		StatusMessage:  "",
		IPv6Enabled:    false,
		UDPEnabled:     true,
		EncryptSave:    false,
		BootstrapNodes: DefaultBootstrapNodes,
		SaveFile:       saveFile,
	}

	logrus.WithFields(logrus.Fields{
		"caller":          caller,
		"default_udp":     cfg.UDPEnabled,
		"default_ipv6":    cfg.IPv6Enabled,
		"bootstrap_nodes": len(cfg.BootstrapNodes),
	}).Debug("Default configuration created")

	// Try to load existing configuration
	logrus.WithFields(logrus.Fields{
		"caller":      caller,
		"config_file": configFile,
		"operation":   "read_existing_config",
	}).Debug("Attempting to read existing configuration file")

	if data, err := os.ReadFile(configFile); err == nil {
		logrus.WithFields(logrus.Fields{
			"caller":    caller,
			"file_size": len(data),
		}).Debug("Configuration file read successfully, parsing JSON")

		if err := json.Unmarshal(data, cfg); err != nil {
			logrus.WithFields(logrus.Fields{
				"caller": caller,
				"error":  err,
			}).Error("Failed to parse configuration file")
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"caller":       caller,
			"loaded_name":  cfg.Name,
			"loaded_debug": cfg.Debug,
		}).Info("Existing configuration loaded successfully")
	} else {
		logrus.WithFields(logrus.Fields{
			"caller": caller,
			"error":  err,
		}).Info("No existing configuration file found, will create default")
	}

	// Ensure fields that aren't saved are set
	cfg.ConfigDir = configDir
	cfg.SaveFile = saveFile

	logrus.WithFields(logrus.Fields{
		"caller":     caller,
		"config_dir": cfg.ConfigDir,
		"debug":      cfg.Debug,
	}).Debug("Configuration fields updated")

	// Save the configuration to ensure it exists
	logrus.WithField("caller", caller).Debug("Saving configuration to ensure it exists")
	if err := cfg.Save(); err != nil {
		logrus.WithFields(logrus.Fields{
			"caller": caller,
			"error":  err,
		}).Error("Failed to save configuration")
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"caller":     caller,
		"config_dir": configDir,
		"debug":      cfg.Debug,
	}).Info("Configuration load completed successfully")

	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	pc, _, _, _ := runtime.Caller(0)
	funcName := runtime.FuncForPC(pc).Name()
	caller := funcName[strings.LastIndex(funcName, ".")+1:]

	configFile := filepath.Join(c.ConfigDir, ConfigFileName)

	logrus.WithFields(logrus.Fields{
		"caller":      caller,
		"config_file": configFile,
		"operation":   "save_config",
	}).Debug("Starting configuration save")

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"caller": caller,
			"error":  err,
		}).Error("Failed to marshal configuration to JSON")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"caller":    caller,
		"json_size": len(data),
	}).Debug("Configuration marshaled to JSON successfully")

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		logrus.WithFields(logrus.Fields{
			"caller":      caller,
			"config_file": configFile,
			"error":       err,
		}).Error("Failed to write configuration file")
		return fmt.Errorf("failed to write config file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"caller":      caller,
		"config_file": configFile,
		"file_size":   len(data),
	}).Info("Configuration saved successfully")

	return nil
}

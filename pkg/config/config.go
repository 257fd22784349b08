/*
Copyright 2023 The deka authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config holds the deka file configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const (
	ConfigKind       = "Config"
	ConfigApiVersion = "deka.ndrpnt.dev/v1"

	FieldManagerName = "deka"
)

type Config struct {
	metav1.TypeMeta `json:",inline"`

	// FieldManager holds the manager name used for server-side apply.
	FieldManager *FieldManager `json:"fieldManager,omitempty"`

	// Retry holds the backoff policy applied to transient failures.
	Retry *Retry `json:"retry,omitempty"`
}

type FieldManager struct {
	// Name sets the field manager for the reconciled objects.
	Name string `json:"name"`
}

// Retry describes the exponential backoff schedule used when an object
// fails to reconcile. The overall give-up budget is set per invocation
// with the --timeout flag, not here.
type Retry struct {
	// InitialInterval sets the delay before the first retry.
	InitialInterval metav1.Duration `json:"initialInterval"`

	// RandomizationFactor sets the jitter applied to each delay.
	RandomizationFactor float64 `json:"randomizationFactor"`

	// Multiplier sets the factor the delay grows by after each retry.
	Multiplier float64 `json:"multiplier"`

	// MaxInterval caps the delay between retries.
	MaxInterval metav1.Duration `json:"maxInterval"`
}

// NewConfig returns a config with the default field manager and retry policy.
func NewConfig() *Config {
	return &Config{
		TypeMeta: metav1.TypeMeta{
			Kind:       ConfigKind,
			APIVersion: ConfigApiVersion,
		},
		FieldManager: defaultFieldManager(),
		Retry:        defaultRetry(),
	}
}

func defaultFieldManager() *FieldManager {
	return &FieldManager{
		Name: FieldManagerName,
	}
}

func defaultRetry() *Retry {
	return &Retry{
		InitialInterval:     metav1.Duration{Duration: 400 * time.Millisecond},
		RandomizationFactor: 0.5,
		Multiplier:          5.0,
		MaxInterval:         metav1.Duration{Duration: 30 * time.Second},
	}
}

// DefaultConfigPath returns '$HOME/.deka/config'
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".deka/config"), nil
}

// Read loads the config from the specified path,
// if the config file is not found, a default is returned.
func Read(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("$HOME dir can't be determined, error: %w", err)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}

	cfgData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(cfgData, cfg); err != nil {
		return nil, err
	}

	if cfg.FieldManager == nil {
		cfg.FieldManager = defaultFieldManager()
	}

	if cfg.Retry == nil {
		cfg.Retry = defaultRetry()
	}

	if cfg.FieldManager.Name == "" {
		return nil, fmt.Errorf("the field manager name can't be empty")
	}

	if cfg.Retry.Multiplier < 1 {
		return nil, fmt.Errorf("the retry multiplier can't be lower than 1")
	}

	return cfg, nil
}

// Write saves the config at the given path, if no path is specified
// it will create or override '$HOME/.deka/config'.
func (c *Config) Write(configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), os.FileMode(0755)); err != nil {
		return err
	}

	cfgData, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, cfgData, os.FileMode(0666)); err != nil {
		return err
	}

	return nil
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/branched-services/go-nestedpool"
	"github.com/branched-services/go-nestedpool/relayer"
)

// Config is the CLI configuration file.
type Config struct {
	RPCURL        string              `yaml:"rpc_url"`
	ChainID       uint64              `yaml:"chain_id"`
	Relayer       *common.Address     `yaml:"relayer"`
	WrappedNative *common.Address     `yaml:"wrapped_native"`
	LogLevel      string              `yaml:"log_level"`
	Slippage      nestedpool.Slippage `yaml:"slippage"`
}

// LoadConfig reads a configuration file from the given path and unmarshals it
// into a Config struct.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if c.ChainID == 0 {
		return errors.New("chain_id is required")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return c.Slippage.Validate()
}

// Chain resolves the relayer deployment. Known chains supply defaults for
// relayer and wrapped_native; other chains must set both.
func (c *Config) Chain() (relayer.Chain, error) {
	chain, ok := relayer.ChainByID(c.ChainID)
	if !ok {
		chain = relayer.Chain{ID: c.ChainID}
	}
	if c.Relayer != nil {
		chain.Relayer = *c.Relayer
	}
	if c.WrappedNative != nil {
		chain.WrappedNative = *c.WrappedNative
	}
	if chain.Relayer == (common.Address{}) || chain.WrappedNative == (common.Address{}) {
		return relayer.Chain{}, fmt.Errorf("chain %d: relayer and wrapped_native must be configured", c.ChainID)
	}
	return chain, nil
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Logger returns a JSON logger on stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	level, _ := c.level()
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

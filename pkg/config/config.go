// Package config loads the YAML configuration of the omg-txkit CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/suffix-labs/omg-txkit/pkg/crypto"
	"github.com/suffix-labs/omg-txkit/pkg/merkle"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultMerkleHeight = 16
	defaultStorePath    = "omg-txkit.db"
)

type Config struct {
	Network NetworkConfig `yaml:"network"`
	Merkle  MerkleConfig  `yaml:"merkle"`
	Store   StoreConfig   `yaml:"store"`
	Debug   bool          `yaml:"debug"`
}

// NetworkConfig holds the EIP-712 domain of the plasma framework
// deployment.
type NetworkConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Address of the plasma framework contract
	VerifyingContract string `yaml:"verifyingContract"`
	// 0x-prefixed 32-byte domain salt
	Salt string `yaml:"salt"`
}

type MerkleConfig struct {
	// Height of block trees, 16 when unset
	Height int `yaml:"height"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// WithDefaults returns a copy of the NetworkConfig with any missing fields
// set to their default values.
func (c NetworkConfig) WithDefaults() NetworkConfig {
	cpy := c
	if cpy.Name == "" {
		cpy.Name = crypto.DefaultDomainName
	}
	if cpy.Version == "" {
		cpy.Version = crypto.DefaultDomainVersion
	}
	if cpy.Salt == "" {
		cpy.Salt = crypto.DefaultDomainSalt.Hex()
	}
	return cpy
}

// Domain returns the typed-data domain. The verifying contract must be
// set.
func (c NetworkConfig) Domain() (crypto.Domain, error) {
	if !common.IsHexAddress(c.VerifyingContract) {
		return crypto.Domain{}, fmt.Errorf("network.verifyingContract %q is not an address", c.VerifyingContract)
	}
	salt := common.FromHex(c.Salt)
	if len(salt) != common.HashLength {
		return crypto.Domain{}, fmt.Errorf("network.salt must be 32 bytes, got %d", len(salt))
	}
	return crypto.Domain{
		Name:              c.Name,
		Version:           c.Version,
		VerifyingContract: common.HexToAddress(c.VerifyingContract),
		Salt:              common.BytesToHash(salt),
	}, nil
}

// WithDefaults returns a copy of the Config with any missing fields set to
// their default values.
func (c Config) WithDefaults() Config {
	cpy := c
	cpy.Network = cpy.Network.WithDefaults()
	if cpy.Merkle.Height == 0 {
		cpy.Merkle.Height = defaultMerkleHeight
	}
	if cpy.Store.Path == "" {
		cpy.Store.Path = defaultStorePath
	}
	return cpy
}

// Validate checks values that defaults cannot fill in.
func (c Config) Validate() error {
	if c.Merkle.Height < 0 || c.Merkle.Height > merkle.MaxHeight {
		return fmt.Errorf("merkle.height %d out of range [0, %d]", c.Merkle.Height, merkle.MaxHeight)
	}
	if c.Network.VerifyingContract != "" {
		if _, err := c.Network.Domain(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the configuration at path and applies defaults. An empty
// path yields the defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(bytes.NewReader(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// CreateLogger returns a development logger when debug is set and a
// production logger otherwise.
func (c *Config) CreateLogger() (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if c.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

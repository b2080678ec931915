// Package config loads the daemon configuration.
//
// The configuration is a YAML file, by default /etc/intstack/config.yaml.
// A missing file is not an error: every field has a default, and fields
// absent from the file keep theirs.
//
//	socket: /run/int_stack
//	mode: hotplug          # or static
//	hal: linux             # or fifo
//	fifo_dir: /tmp/intstack
//	token:
//	  vendor_id: "058f"
//	  product_id: "6387"
//	initial_capacity: 0
//	max_capacity: 1048576
//	socket_mode: "0666"
//	max_conns: 64
//	metrics_addr: ":9464"  # empty disables
//	log:
//	  level: warn
//	  format: text
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/server"
	"github.com/ardnew/intstack/stack"
)

// DefaultPath is the default configuration file location.
const DefaultPath = "/etc/intstack/config.yaml"

// Deployment modes.
const (
	ModeStatic  = "static"
	ModeHotplug = "hotplug"
)

// Token HALs.
const (
	HALLinux = "linux"
	HALFIFO  = "fifo"
)

// ErrInvalid indicates a configuration value out of range.
var ErrInvalid = errors.New("invalid configuration")

// Token identifies the gating token. IDs are hexadecimal strings.
type Token struct {
	VendorID  string `yaml:"vendor_id"`
	ProductID string `yaml:"product_id"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the daemon configuration.
type Config struct {
	Socket          string `yaml:"socket"`
	Mode            string `yaml:"mode"`
	HAL             string `yaml:"hal"`
	FIFODir         string `yaml:"fifo_dir"`
	Token           Token  `yaml:"token"`
	InitialCapacity int32  `yaml:"initial_capacity"`
	MaxCapacity     int    `yaml:"max_capacity"`
	SocketMode      string `yaml:"socket_mode"`
	MaxConns        int    `yaml:"max_conns"`
	MetricsAddr     string `yaml:"metrics_addr"`
	Log             Log    `yaml:"log"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Socket:  server.DefaultPath,
		Mode:    ModeHotplug,
		HAL:     HALLinux,
		FIFODir: "/tmp/intstack",
		Token: Token{
			VendorID:  fmt.Sprintf("%04x", hal.DefaultVendorID),
			ProductID: fmt.Sprintf("%04x", hal.DefaultProductID),
		},
		MaxCapacity: stack.DefaultMaxCapacity,
		SocketMode:  fmt.Sprintf("%04o", server.DefaultMode),
		MaxConns:    server.DefaultMaxConns,
		Log: Log{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
// If the file does not exist, the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			pkg.LogDebug(pkg.ComponentConfig, "no config file, using defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pkg.LogDebug(pkg.ComponentConfig, "config loaded", "path", path)
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeStatic, ModeHotplug:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalid, c.Mode)
	}
	switch c.HAL {
	case HALLinux, HALFIFO:
	default:
		return fmt.Errorf("%w: hal %q", ErrInvalid, c.HAL)
	}
	if c.Socket == "" {
		return fmt.Errorf("%w: empty socket path", ErrInvalid)
	}
	if c.HAL == HALFIFO && c.Mode == ModeHotplug && c.FIFODir == "" {
		return fmt.Errorf("%w: fifo_dir required for fifo HAL", ErrInvalid)
	}
	if c.InitialCapacity < 0 {
		return fmt.Errorf("%w: initial_capacity %d", ErrInvalid, c.InitialCapacity)
	}
	if c.MaxCapacity < 0 {
		return fmt.Errorf("%w: max_capacity %d", ErrInvalid, c.MaxCapacity)
	}
	if c.MaxCapacity > 0 && int(c.InitialCapacity) > c.MaxCapacity {
		return fmt.Errorf("%w: initial_capacity %d exceeds max_capacity %d",
			ErrInvalid, c.InitialCapacity, c.MaxCapacity)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("%w: max_conns %d", ErrInvalid, c.MaxConns)
	}
	if _, err := c.Filter(); err != nil {
		return err
	}
	if _, err := c.FileMode(); err != nil {
		return err
	}
	if _, err := pkg.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := pkg.ParseLogFormat(c.Log.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Filter returns the token filter.
func (c *Config) Filter() (hal.Filter, error) {
	vid, err := hal.ParseID(c.Token.VendorID)
	if err != nil {
		return hal.Filter{}, fmt.Errorf("%w: token.vendor_id: %w", ErrInvalid, err)
	}
	pid, err := hal.ParseID(c.Token.ProductID)
	if err != nil {
		return hal.Filter{}, fmt.Errorf("%w: token.product_id: %w", ErrInvalid, err)
	}
	return hal.Filter{VendorID: vid, ProductID: pid}, nil
}

// FileMode returns the socket permission bits.
func (c *Config) FileMode() (fs.FileMode, error) {
	v, err := strconv.ParseUint(c.SocketMode, 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("%w: socket_mode %q", ErrInvalid, c.SocketMode)
	}
	return fs.FileMode(v), nil
}

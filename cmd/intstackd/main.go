// Command intstackd serves the integer stack device.
//
// In hotplug mode (the default) the device node exists only while the
// configured USB token is plugged in. In static mode the node is created
// at startup and removed at shutdown.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ardnew/intstack/config"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/pkg/prof"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		pkg.LogError(pkg.ComponentLifecycle, "daemon failed", "error", err)
		os.Exit(1)
	}
}

// flags holds command-line overrides of the config file.
type flags struct {
	configPath  string
	socket      string
	mode        string
	hal         string
	fifoDir     string
	vendorID    string
	productID   string
	capacity    int32
	metricsAddr string
	cpuProfile  string
	debug       bool
	json        bool
}

func rootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "intstackd",
		Short:         "Integer stack device daemon",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			if err := configureLogging(cfg); err != nil {
				return err
			}

			if f.cpuProfile != "" {
				stopCPU, err := prof.StartCPU(f.cpuProfile)
				if err != nil {
					return err
				}
				defer stopCPU()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	f.register(cmd)
	return cmd
}

func (f *flags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", config.DefaultPath, "Configuration file")
	fl.StringVar(&f.socket, "socket", "", "Device node path")
	fl.StringVar(&f.mode, "mode", "", "Deployment mode (static|hotplug)")
	fl.StringVar(&f.hal, "hal", "", "Token detector for hotplug mode (linux|fifo)")
	fl.StringVar(&f.fifoDir, "fifo-dir", "", "Token directory for the fifo detector")
	fl.StringVar(&f.vendorID, "vendor-id", "", "Token USB vendor ID (hex)")
	fl.StringVar(&f.productID, "product-id", "", "Token USB product ID (hex)")
	fl.Int32Var(&f.capacity, "capacity", 0, "Initial stack capacity")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Metrics and health listen address")
	fl.StringVar(&f.cpuProfile, "cpu-profile", "", "Write a CPU profile to this file (profile builds only)")
	fl.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fl.BoolVar(&f.json, "json", false, "Log in JSON format")
}

// loadConfig reads the config file and applies flags the user set.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("socket") {
		cfg.Socket = f.socket
	}
	if changed("mode") {
		cfg.Mode = f.mode
	}
	if changed("hal") {
		cfg.HAL = f.hal
	}
	if changed("fifo-dir") {
		cfg.FIFODir = f.fifoDir
	}
	if changed("vendor-id") {
		cfg.Token.VendorID = f.vendorID
	}
	if changed("product-id") {
		cfg.Token.ProductID = f.productID
	}
	if changed("capacity") {
		cfg.InitialCapacity = f.capacity
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if f.debug {
		cfg.Log.Level = "debug"
	}
	if f.json {
		cfg.Log.Format = "json"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configureLogging(cfg *config.Config) error {
	level, err := pkg.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := pkg.ParseLogFormat(cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("log format: %w", err)
	}
	pkg.SetLogFormat(format)
	pkg.SetLogLevel(level)
	return nil
}

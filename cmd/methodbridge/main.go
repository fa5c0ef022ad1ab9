// Command methodbridge hosts the benchmark method channel and invokes methods on it.
package main

import (
	"fmt"
	"os"

	"method-bridge/config"
	"method-bridge/registry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "methodbridge",
	Short: "methodbridge - benchmark method channel host and caller",
	Long: `methodbridge serves the benchmark method channel over TCP and calls into it.

  methodbridge serve                     host the channel
  methodbridge invoke max '[1,5,3,9,2,8,4,7]'
  methodbridge methods                   list the methods the channel answers`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.AddCommand(serveCmd, invokeCmd, methodsCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// openRegistry returns etcd when endpoints are configured, else a static registry.
// The returned close func is never nil.
func openRegistry(cfg *config.Config, logger *zap.Logger) (registry.Registry, func(), error) {
	if len(cfg.Registry.Endpoints) == 0 {
		return registry.NewStaticRegistry(), func() {}, nil
	}
	reg, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints, logger.Named("registry"))
	if err != nil {
		return nil, nil, err
	}
	return reg, func() { reg.Close() }, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"method-bridge/bridge"
	"method-bridge/client"
	"method-bridge/loadbalance"
	"method-bridge/logging"
	"method-bridge/middleware"
	"method-bridge/registry"

	"github.com/spf13/cobra"
)

var invokeAddr string

var invokeCmd = &cobra.Command{
	Use:   "invoke <method> [json-args]",
	Short: "Call a method on the channel and print the JSON result",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.NewDevelopment(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if cfg.Client.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Client.Timeout)
			defer cancel()
		}

		var reg registry.Registry
		if invokeAddr != "" || len(cfg.Registry.Endpoints) == 0 {
			addr := invokeAddr
			if addr == "" {
				addr = cfg.Server.Listen
			}
			static := registry.NewStaticRegistry()
			if err := static.Register(ctx, cfg.Channel, registry.Endpoint{Addr: addr, Weight: 1}, cfg.Registry.TTL); err != nil {
				return fmt.Errorf("register %s: %w", addr, err)
			}
			reg = static
		} else {
			r, closeReg, err := openRegistry(cfg, logger)
			if err != nil {
				return err
			}
			defer closeReg()
			reg = r
		}

		bal, err := loadbalance.New(cfg.Client.Balancer)
		if err != nil {
			return err
		}
		cli := client.NewClient(reg, bal,
			client.WithChannel(cfg.Channel),
			client.WithCodec(cfg.CodecType()),
			client.WithPoolSize(cfg.Client.PoolSize),
			client.WithHeartbeat(cfg.Client.Heartbeat),
			client.WithLogger(logger),
		)
		defer cli.Close()
		if cfg.Client.Retries > 0 {
			cli.Use(middleware.Retry(cfg.Client.Retries, cfg.Client.RetryDelay, logger))
		}

		var callArgs any
		if len(args) == 2 {
			callArgs = json.RawMessage(args[1])
			if !json.Valid(callArgs.(json.RawMessage)) {
				return fmt.Errorf("arguments are not valid JSON: %s", args[1])
			}
		}

		var result json.RawMessage
		if err := cli.InvokeMethod(ctx, args[0], callArgs, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(result))
		return nil
	},
}

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the methods the channel answers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, m := range bridge.Methods() {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
	},
}

func init() {
	invokeCmd.Flags().StringVar(&invokeAddr, "addr", "", "call this host directly instead of discovering it")
}

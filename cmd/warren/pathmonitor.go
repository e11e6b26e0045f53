package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/warren/pkg/uevent"
	"github.com/cuemby/warren/pkg/volume"
)

var workerPathMonitorCmd = &cobra.Command{
	Use:   "path-monitor",
	Short: "Monitor multipath device paths and service uevent notifications",
	Long: `Runs the uevent listener and dispatcher in the foreground, coalescing
kernel notifications about multipath device paths and binding them to
Warren's multipath volume driver.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		watchConfig, _ := cmd.Flags().GetBool("watch-config")
		lockMemory, _ := cmd.Flags().GetBool("lock-memory")

		fmt.Println("Starting Warren path monitor...")

		config, err := uevent.NewConfigStore(configPath, watchConfig)
		if err != nil {
			return fmt.Errorf("failed to load path monitor config: %v", err)
		}
		defer config.Close()

		source, err := uevent.OpenDefaultSource()
		if err != nil {
			return fmt.Errorf("failed to open uevent source: %v", err)
		}

		driver := volume.NewMultipathDriver()

		pipeline := uevent.NewPipeline(source, uevent.ListenerConfig{
			Subsystem:  "block",
			Devtype:    "disk",
			LockMemory: lockMemory,
		}, config)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return pipeline.Listener.Run(gctx)
		})
		g.Go(func() error {
			return pipeline.Dispatcher.Run(gctx, driver.OnEvent)
		})

		fmt.Println("✓ Path monitor running. Press Ctrl+C to stop.")

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case <-gctx.Done():
			fmt.Println("\nPath monitor pipeline stopped")
		}
		cancel()

		if err := g.Wait(); err != nil {
			return fmt.Errorf("path monitor stopped with error: %v", err)
		}

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	workerCmd.AddCommand(workerPathMonitorCmd)

	workerPathMonitorCmd.Flags().String("config", "/etc/warren/path-monitor.yaml", "Path monitor config file")
	workerPathMonitorCmd.Flags().Bool("watch-config", true, "Reload config on change")
	workerPathMonitorCmd.Flags().Bool("lock-memory", true, "Lock listener memory pages to avoid paging-induced drops")
}

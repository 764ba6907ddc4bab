// Visionair-bridge connects a VisionAir ventilation unit to Home
// Assistant over MQTT.
//
// The device is reached through a WebSocket relay that holds the BLE
// link; entities are announced via MQTT discovery and kept current by
// periodic full-status polls.
//
// Usage:
//
//	visionair-bridge [command] [flags]
//
// Running without arguments starts the bridge daemon for the configured
// device. See 'visionair-bridge --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/visionair/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "visionair-bridge",
	Short: "VisionAir to Home Assistant MQTT bridge",
	Long: `Bridges a VisionAir ventilation unit to Home Assistant over MQTT.

The unit is reached through a WebSocket relay holding the BLE link.
Entities (fan, boost switch, sensors) are announced through MQTT
discovery; no Home Assistant configuration is needed beyond the broker.

Set VISIONAIR_LOG_LEVEL=debug for wire-level logging.`,
	Version: version.Version,
	RunE:    runBridge,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringVar(&flagDeviceID, "device", "", "device ID to bridge (defaults to the only configured device)")
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("visionair-bridge %s (commit: %s)\n", version.Version, version.Commit)
	},
}

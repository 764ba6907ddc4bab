package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/visionair/bridge"
	"github.com/muurk/visionair/internal/config"
	"github.com/muurk/visionair/internal/logging"
	"github.com/muurk/visionair/session"
	"github.com/muurk/visionair/transport/wsproxy"
)

var flagDeviceID string

const redialDelay = 5 * time.Second

func runBridge(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeFromEnv(); err != nil {
		return err
	}
	defer logging.Sync()

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	id, dev, err := pickDevice(reg)
	if err != nil {
		return err
	}
	if dev.Link != config.LinkProxy {
		return fmt.Errorf("device %s uses a %q link; this daemon only supports %q (run 'visionair-bridge setup')",
			id, dev.Link, config.LinkProxy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The session exists before the transport: the read pump starts
	// inside Dial and may deliver unsolicited chatter immediately, so it
	// is wired straight to HandleNotify. Redialing swaps the transport
	// underneath the same session.
	sess := session.New(nil, session.Config{Timeout: session.ProxyTimeout})
	tr, err := wsproxy.Dial(ctx, dev.RelayURL, nil, sess.HandleNotify)
	if err != nil {
		return err
	}
	sess.Replace(tr)
	defer sess.Close()

	if err := sess.SyncClock(ctx); err != nil {
		logging.Warn("Clock sync failed", zap.Error(err))
	}

	b := bridge.New(reg.Preferences.MQTT, sess, id)
	mqttClient := mqtt.NewClient(b.ClientOptions())
	if t := mqttClient.Connect(); t.Wait() && t.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", t.Error())
	}
	defer mqttClient.Disconnect(250)

	if err := b.Register(mqttClient); err != nil {
		return fmt.Errorf("MQTT discovery: %w", err)
	}

	reg.UpdateDeviceLastSeen(id)
	if err := reg.Save(); err != nil {
		logging.Warn("Saving registry failed", zap.Error(err))
	}

	ticker := time.NewTicker(reg.PollIntervalFor(id))
	defer ticker.Stop()

	// Poll once immediately so entities have state before the first tick.
	_ = b.Poll(ctx, mqttClient)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = b.Poll(ctx, mqttClient)
		case <-tr.Done():
			logging.Warn("Relay link lost, redialing")
			sess.Reset()
			var dialErr error
			tr, dialErr = redial(ctx, dev.RelayURL, sess)
			if dialErr != nil {
				return dialErr
			}
		}
	}
}

// redial reconnects to the relay, retrying until the context is done.
func redial(ctx context.Context, url string, sess *session.Session) (*wsproxy.Transport, error) {
	for {
		tr, err := wsproxy.Dial(ctx, url, nil, sess.HandleNotify)
		if err == nil {
			sess.Replace(tr)
			return tr, nil
		}
		logging.Warn("Redial failed", zap.Error(err), zap.Duration("retry_in", redialDelay))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redialDelay):
		}
	}
}

// pickDevice resolves the --device flag, defaulting to the only
// configured device.
func pickDevice(reg *config.Registry) (string, *config.Device, error) {
	if flagDeviceID != "" {
		d := reg.GetDevice(flagDeviceID)
		if d == nil {
			return "", nil, fmt.Errorf("device %s is not configured (run 'visionair-bridge setup')", flagDeviceID)
		}
		return flagDeviceID, d, nil
	}
	if len(reg.Devices) == 1 {
		for id, d := range reg.Devices {
			return id, d, nil
		}
	}
	return "", nil, fmt.Errorf("%d devices configured; pass --device", len(reg.Devices))
}

var (
	flagSetupLink     string
	flagSetupRelay    string
	flagSetupAddress  string
	flagSetupNickname string
	flagSetupPoll     time.Duration
)

var setupCmd = &cobra.Command{
	Use:   "setup --device ID",
	Short: "Configure how a device is reached",
	Long: `Creates or updates a device entry in the configuration file.

Examples:

  visionair-bridge setup --device 12345 --link proxy --relay wss://relay.example/ws
  visionair-bridge setup --device 12345 --nickname "Attic unit" --poll-interval 1m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagDeviceID == "" {
			return fmt.Errorf("--device is required")
		}

		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		if flagSetupLink != "" {
			addr := flagSetupAddress
			if flagSetupLink == config.LinkProxy {
				addr = flagSetupRelay
			}
			if err := reg.SetDeviceLink(flagDeviceID, flagSetupLink, addr); err != nil {
				return err
			}
		}
		if flagSetupNickname != "" {
			reg.SetDeviceNickname(flagDeviceID, flagSetupNickname)
		}
		if flagSetupPoll > 0 {
			reg.EnsureDevice(flagDeviceID).PollInterval = flagSetupPoll
		}

		if err := reg.Save(); err != nil {
			return err
		}

		path, _ := config.GetConfigPath()
		fmt.Fprintf(os.Stdout, "Saved device %s to %s\n", flagDeviceID, path)
		return nil
	},
}

func init() {
	setupCmd.Flags().StringVar(&flagDeviceID, "device", "", "device ID (decimal, as reported by the unit)")
	setupCmd.Flags().StringVar(&flagSetupLink, "link", "", "link kind: direct or proxy")
	setupCmd.Flags().StringVar(&flagSetupRelay, "relay", "", "relay WebSocket URL for proxy links")
	setupCmd.Flags().StringVar(&flagSetupAddress, "address", "", "BLE address for direct links")
	setupCmd.Flags().StringVar(&flagSetupNickname, "nickname", "", "user-friendly device name")
	setupCmd.Flags().DurationVar(&flagSetupPoll, "poll-interval", 0, "full-status poll cadence")
}

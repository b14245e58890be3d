package notify

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/cmd/util"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	hostClient transport.IFrameClientTransport

	// NotifyCommands represents the notify command group
	NotifyCommands = &cobra.Command{
		Use:               "notify",
		Short:             "Send notifications to a running bridge over the host channel",
		PersistentPreRunE: setupHostClient,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if hostClient != nil {
				_ = hostClient.Close()
			}
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	key := "host-endpoint"
	NotifyCommands.PersistentFlags().String(key, common.DefaultHostEndpoint, util.WrapString("The address of the host channel of the bridge"))

	key = "host-transport"
	NotifyCommands.PersistentFlags().String(key, "unix", util.WrapString("Transport of the host channel (unix, tcp)"))

	key = "timeout"
	NotifyCommands.PersistentFlags().Int(key, 30, util.WrapString("The timeout in seconds for one notification"))

	// Add subcommands
	NotifyCommands.AddCommand(embeddedCmd)
	NotifyCommands.AddCommand(referencedCmd)
	NotifyCommands.AddCommand(restartCmd)
	NotifyCommands.AddCommand(statusCmd)
	NotifyCommands.AddCommand(shutdownCmd)
	NotifyCommands.AddCommand(perfTestCmd)
}

// setupHostClient connects to the host channel of the bridge
func setupHostClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	t, err := util.GetFrameClientTransport(viper.GetString("host-transport"))
	if err != nil {
		return err
	}

	config := common.ClientConfig{
		Transport:     common.TransportConfig{Endpoint: viper.GetString("host-endpoint"), TCPConf: common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1}},
		TimeoutSecond: viper.GetInt("timeout"),
	}
	if err := t.Connect(config); err != nil {
		return fmt.Errorf("failed to connect to bridge at %s: %w", config.Transport.Endpoint, err)
	}
	hostClient = t
	return nil
}

// send sends one notification and turns a failure reply into an error
func send(req common.Frame) ([]byte, error) {
	resp, err := hostClient.Send(req)
	if err != nil {
		return nil, err
	}
	if !resp.Ok() {
		return nil, fmt.Errorf("%s failed: %s", req.Kind, resp.Payload)
	}
	return resp.Payload, nil
}

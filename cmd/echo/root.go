package echo

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/uBridge/cmd/util"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	echoCmdConfig = &common.AnsweringConfig{}
	EchoCmd       = &cobra.Command{
		Use:   "echo",
		Short: "Start a development answering service",
		Long: `Start a development answering service that speaks the line protocol of the bridge.
The echo adapter answers every block unchanged, the memory adapter stores WRITE records and fills READ records from what was written before.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "endpoint"
	EchoCmd.PersistentFlags().String(key, common.DefaultEndpoint, cmdUtil.WrapString("The address on which the service listens (host:port, or a socket path for the unix transport)"))

	key = "transport"
	EchoCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("Transport to use (tcp, unix)"))

	key = "serializer"
	EchoCmd.PersistentFlags().String(key, "json", cmdUtil.WrapString("Line serializer (json, gjson)"))

	key = "adapter"
	EchoCmd.PersistentFlags().String(key, "echo", cmdUtil.WrapString("How blocks are answered (echo, memory)"))

	key = "timeout"
	EchoCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("Timeout in seconds for writing a reply"))

	key = "max-line"
	EchoCmd.PersistentFlags().Int(key, common.DefaultMaxLineBytes, cmdUtil.WrapString("Maximum length of a request line in bytes"))

	key = "log-level"
	EchoCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig converts flags and environment variables into the service configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	echoCmdConfig.Server = common.ServerConfig{
		Endpoint:        viper.GetString("endpoint"),
		TimeoutSecond:   viper.GetInt("timeout"),
		MaxPayloadBytes: viper.GetInt("max-line"),
	}
	echoCmdConfig.TransportName = viper.GetString("transport")
	echoCmdConfig.Serializer = viper.GetString("serializer")
	echoCmdConfig.Adapter = viper.GetString("adapter")
	echoCmdConfig.LogLevel = viper.GetString("log-level")
	return nil
}

// run starts the answering service and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(echoCmdConfig.LogLevel, os.Stdout); err != nil {
		return err
	}

	t, err := cmdUtil.GetLineServerTransport(echoCmdConfig.TransportName)
	if err != nil {
		return err
	}
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	adapter, err := server.NewAdapter(echoCmdConfig.Adapter)
	if err != nil {
		return err
	}

	serv := server.NewAnsweringServer(*echoCmdConfig, t, s, adapter)
	if err := serv.Serve(); err != nil {
		return fmt.Errorf("failed to start answering service: %w", err)
	}
	defer serv.Close()
	server.Logger.Infof("answering service listening on %s", serv.Addr())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	server.Logger.Infof("received %s, shutting down", sig)
	return nil
}

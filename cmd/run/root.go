package run

import (
	"context"
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/uBridge/cmd/util"
	"github.com/ValentinKolb/uBridge/lib/bridge"
	"github.com/ValentinKolb/uBridge/lib/region"
	"github.com/ValentinKolb/uBridge/rpc/client"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/server"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("cmd")

var (
	runCmdConfig = &common.BridgeConfig{}
	RunCmd       = &cobra.Command{
		Use:   "run",
		Short: "Start the bridge",
		Long: `Start the bridge. Notifications of the host shim are received on the host channel, forwarded to the answering service and answered in place.
The configuration can be set via command line flags, a config file or environment variables. The format of the environment variables is UBRIDGE_<flag> (e.g. UBRIDGE_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupLineClientFlags(RunCmd)

	key := "reconnect-interval"
	RunCmd.PersistentFlags().Int(key, common.DefaultReconnectInterval, cmdUtil.WrapString("Interval in milliseconds between reconnect attempts while the answering service is unreachable"))

	key = "reconnect-max-interval"
	RunCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("If larger than reconnect-interval, the interval doubles after every failed attempt up to this value (milliseconds, 0 keeps the interval fixed)"))

	key = "host-endpoint"
	RunCmd.PersistentFlags().String(key, common.DefaultHostEndpoint, cmdUtil.WrapString("The address on which the host channel listens (socket path or host:port)"))

	key = "host-transport"
	RunCmd.PersistentFlags().String(key, "unix", cmdUtil.WrapString("Transport of the host channel (unix, tcp)"))

	key = "region-dir"
	RunCmd.PersistentFlags().String(key, common.DefaultRegionDir, cmdUtil.WrapString("Directory holding the named shared regions"))

	key = "region-name-format"
	RunCmd.PersistentFlags().String(key, common.DefaultRegionNameFormat, cmdUtil.WrapString("Format turning a region identifier into the region name"))

	key = "log-level"
	RunCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "log-file"
	RunCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Append logs to this file in addition to stdout"))

	key = "metrics-endpoint"
	RunCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("If set, Prometheus metrics are served on http://<metrics-endpoint>/metrics"))

	key = "config"
	RunCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Config file (yaml, json or toml). It is read at startup and the endpoint is written back on a restart"))
}

// processConfig reads the configuration from the command line flags, the config file
// and environment variables and converts them to the bridge configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// read the config file, a missing file is created on the first restart
	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	runCmdConfig.Client = cmdUtil.GetClientConfig()
	runCmdConfig.TransportName = viper.GetString("transport")
	runCmdConfig.Serializer = viper.GetString("serializer")
	runCmdConfig.ReconnectIntervalMs = viper.GetInt("reconnect-interval")
	runCmdConfig.ReconnectMaxIntervalMs = viper.GetInt("reconnect-max-interval")
	runCmdConfig.Host = common.ServerConfig{
		Endpoint:        viper.GetString("host-endpoint"),
		TimeoutSecond:   runCmdConfig.Client.TimeoutSecond,
		MaxPayloadBytes: common.DefaultMaxFrameBytes,
	}
	runCmdConfig.HostTransport = viper.GetString("host-transport")
	runCmdConfig.RegionDir = viper.GetString("region-dir")
	runCmdConfig.RegionNameFormat = viper.GetString("region-name-format")
	runCmdConfig.LogLevel = viper.GetString("log-level")
	runCmdConfig.LogFile = viper.GetString("log-file")
	runCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	runCmdConfig.ConfigFile = viper.GetString("config")

	if _, err := common.ParseLogLevel(runCmdConfig.LogLevel); err != nil {
		return err
	}
	return nil
}

// run starts the bridge and blocks until it is shut down
func run(_ *cobra.Command, _ []string) error {
	config := runCmdConfig

	// Logging, optionally teed into a log file
	var sink io.Writer = os.Stdout
	if config.LogFile != "" {
		f, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		sink = io.MultiWriter(os.Stdout, f)
	}
	if err := common.InitLoggers(config.LogLevel, sink); err != nil {
		return err
	}
	Logger.Infof("==== bridge start (pid %d) ====", os.Getpid())
	defer Logger.Infof("==== bridge stop ====")
	Logger.Infof(config.String())

	// Answering service connection
	lineTransport, err := cmdUtil.GetLineClientTransport(config.TransportName)
	if err != nil {
		return err
	}
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	conn := client.NewConnection(lineTransport, config.Client,
		client.NewReconnectPolicy(config.ReconnectInterval(), config.ReconnectMaxInterval()))
	forwarder := client.NewForwarder(conn, s)

	// Shared regions
	regions := region.NewManager(
		region.FormatResolver{Format: config.RegionNameFormat},
		region.NewFileMapper(config.RegionDir),
		region.RegionSize,
	)

	b := bridge.New(forwarder, regions,
		bridge.OnRestart(persistEndpoint(config.ConfigFile)),
		bridge.WithTransport(config.TransportName),
	)

	// Host channel
	hostTransport, err := cmdUtil.GetFrameServerTransport(config.HostTransport)
	if err != nil {
		return err
	}
	host := server.NewHostServer(config.Host, hostTransport, b)
	if err := host.Serve(); err != nil {
		_ = regions.Close()
		return fmt.Errorf("failed to start host channel: %w", err)
	}
	defer host.Close()
	Logger.Infof("host channel listening on %s", host.Addr())

	// Metrics
	if config.MetricsEndpoint != "" {
		srv := serveMetrics(config.MetricsEndpoint)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	// Signals: SIGINT/SIGTERM shut down, SIGHUP reconnects
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, b)

	return b.Run(ctx)
}

// handleSignals posts events into the bridge loop until ctx is done
func handleSignals(ctx context.Context, b *bridge.Bridge) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				Logger.Infof("received %s, restarting connection", sig)
				if err := b.Restart(""); err != nil {
					Logger.Warningf("restart failed: %v", err)
				}
			default:
				Logger.Infof("received %s, shutting down", sig)
				_ = b.Shutdown()
				return
			}
		}
	}
}

// persistEndpoint returns a restart callback writing the endpoint into the config file
func persistEndpoint(file string) func(endpoint string) {
	return func(endpoint string) {
		viper.Set("endpoint", endpoint)
		if file == "" {
			return
		}
		if err := viper.WriteConfigAs(file); err != nil {
			Logger.Warningf("failed to persist endpoint %s to %s: %v", endpoint, file, err)
			return
		}
		Logger.Infof("persisted endpoint %s to %s", endpoint, file)
	}
}

// serveMetrics serves the Prometheus metrics in the background
func serveMetrics(endpoint string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	srv := &http.Server{Addr: endpoint, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
	Logger.Infof("serving metrics on http://%s/metrics", endpoint)
	return srv
}

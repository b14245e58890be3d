package util

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/serializer"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/ValentinKolb/uBridge/rpc/transport/tcp"
	"github.com/ValentinKolb/uBridge/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net"
	"os"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables, e.g. UBRIDGE_ENDPOINT
	EnvPrefix = "ubridge"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds environment variables to viper
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Answering service client flags
// --------------------------------------------------------------------------

// SetupLineClientFlags adds the flags of the connection to the answering service
func SetupLineClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, common.DefaultEndpoint, WrapString("The address of the answering service (host:port, or a socket path for the unix transport). XPC_HOST and XPC_PORT override host and port"))

	key = "transport"
	cmd.PersistentFlags().String(key, "tcp", WrapString("Transport to the answering service (tcp, unix)"))

	key = "serializer"
	cmd.PersistentFlags().String(key, "json", WrapString("Line serializer (json, gjson). gjson accepts replies with extra or reordered fields"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Bound in seconds for connecting and for every forward round trip (0 waits forever)"))

	key = "max-line"
	cmd.PersistentFlags().Int(key, common.DefaultMaxLineBytes, WrapString("Maximum length of a reply line in bytes"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("Socket write buffer in KB (0 keeps the OS default)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("Socket read buffer in KB (0 keeps the OS default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval in seconds (tcp only, 0 keeps the OS default)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time in seconds (tcp only, negative keeps the OS default)"))
}

// GetClientConfig reads the answering service client configuration from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		MaxLineBytes:  viper.GetInt("max-line"),
		Transport: common.TransportConfig{
			Endpoint: GetEndpoint(),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPNoDelay:      viper.GetBool("tcp-nodelay"),
				TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("tcp-linger"),
			},
		},
	}
}

// GetEndpoint returns the configured endpoint. The legacy XPC_HOST and XPC_PORT
// variables replace host and port when set.
func GetEndpoint() string {
	endpoint := viper.GetString("endpoint")
	xpcHost, xpcPort := os.Getenv("XPC_HOST"), os.Getenv("XPC_PORT")
	if xpcHost == "" && xpcPort == "" {
		return endpoint
	}

	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		host, port = endpoint, ""
	}
	if xpcHost != "" {
		host = xpcHost
	}
	if xpcPort != "" {
		port = xpcPort
	}
	return net.JoinHostPort(host, port)
}

// --------------------------------------------------------------------------
// Factories
// --------------------------------------------------------------------------

// GetSerializer creates the line serializer based on configuration
func GetSerializer() (serializer.ILineSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// GetLineClientTransport creates the transport to the answering service
func GetLineClientTransport(name string) (transport.ILineClientTransport, error) {
	switch name {
	case "tcp":
		return tcp.NewTCPLineClientTransport(), nil
	case "unix":
		return unix.NewUnixLineClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// GetLineServerTransport creates the transport of the answering service
func GetLineServerTransport(name string) (transport.ILineServerTransport, error) {
	switch name {
	case "tcp":
		return tcp.NewTCPLineServerTransport(), nil
	case "unix":
		return unix.NewUnixLineServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// GetFrameServerTransport creates the transport of the host channel
func GetFrameServerTransport(name string) (transport.IFrameServerTransport, error) {
	switch name {
	case "unix":
		return unix.NewUnixFrameServerTransport(), nil
	case "tcp":
		return tcp.NewTCPFrameServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid host transport %s", name)
	}
}

// GetFrameClientTransport creates a client of the host channel
func GetFrameClientTransport(name string) (transport.IFrameClientTransport, error) {
	switch name {
	case "unix":
		return unix.NewUnixFrameClientTransport(), nil
	case "tcp":
		return tcp.NewTCPFrameClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid host transport %s", name)
	}
}

package common

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/lib/region"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultRegionSize sizes line and frame buffers after the mapped region
	DefaultRegionSize = region.RegionSize

	// DefaultMaxLineBytes fits the hex encoding of a full region plus the JSON envelope
	DefaultMaxLineBytes = 4*DefaultRegionSize + 4096

	// DefaultMaxFrameBytes bounds host channel frame payloads
	DefaultMaxFrameBytes = 2 * DefaultRegionSize

	DefaultEndpoint          = "127.0.0.1:9000"
	DefaultHostEndpoint      = "/tmp/ubridge.sock"
	DefaultRegionDir         = "/dev/shm"
	DefaultRegionNameFormat  = "FsasmLib_IPC_%04X"
	DefaultReconnectInterval = 1000 // ms
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds generic socket options, zero values keep the OS defaults
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative keeps the OS default
}

// TransportConfig describes one endpoint and how to dial it
type TransportConfig struct {
	Endpoint string
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// Client configuration (bridge -> answering service)
// --------------------------------------------------------------------------

// ClientConfig configures the line transport to the answering service
type ClientConfig struct {
	Transport TransportConfig

	// TimeoutSecond bounds every send and receive, 0 waits forever
	TimeoutSecond int

	// MaxLineBytes bounds a single reply line
	MaxLineBytes int
}

// Timeout returns the per operation deadline, 0 if disabled
func (c *ClientConfig) Timeout() time.Duration {
	if c.TimeoutSecond <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecond) * time.Second
}

// LineLimit returns the configured maximum reply line length or the default
func (c *ClientConfig) LineLimit() int {
	if c.MaxLineBytes <= 0 {
		return DefaultMaxLineBytes
	}
	return c.MaxLineBytes
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Answering Service")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", formatSeconds(c.TimeoutSecond))
	addField("Max Line", fmt.Sprintf("%d bytes", c.LineLimit()))

	addSection("Socket")
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", formatSeconds(c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", strconv.Itoa(c.Transport.TCPLingerSec))
	addField("Write Buffer", formatBytes(c.Transport.WriteBufferSize))
	addField("Read Buffer", formatBytes(c.Transport.ReadBufferSize))

	return sb.String()
}

// --------------------------------------------------------------------------
// Server configuration (host channel and answering service)
// --------------------------------------------------------------------------

// ServerConfig configures a listening transport
type ServerConfig struct {
	Endpoint string

	// TimeoutSecond bounds writing a reply, 0 waits forever
	TimeoutSecond int

	// MaxPayloadBytes bounds a single inbound frame or line
	MaxPayloadBytes int
}

// --------------------------------------------------------------------------
// Bridge configuration
// --------------------------------------------------------------------------

// BridgeConfig holds everything the bridge process needs at startup
type BridgeConfig struct {
	// Answering service
	Client        ClientConfig
	TransportName string
	Serializer    string

	// Reconnect policy, a max interval of 0 keeps the interval fixed
	ReconnectIntervalMs    int
	ReconnectMaxIntervalMs int

	// Inbound host channel
	Host          ServerConfig
	HostTransport string

	// Shared regions
	RegionDir        string
	RegionNameFormat string

	// Ambient
	LogLevel        string
	LogFile         string
	MetricsEndpoint string
	ConfigFile      string
}

// ReconnectInterval returns the base reconnect interval
func (c *BridgeConfig) ReconnectInterval() time.Duration {
	if c.ReconnectIntervalMs <= 0 {
		return DefaultReconnectInterval * time.Millisecond
	}
	return time.Duration(c.ReconnectIntervalMs) * time.Millisecond
}

// ReconnectMaxInterval returns the upper bound of the reconnect interval, 0 for a fixed interval
func (c *BridgeConfig) ReconnectMaxInterval() time.Duration {
	if c.ReconnectMaxIntervalMs <= 0 {
		return 0
	}
	return time.Duration(c.ReconnectMaxIntervalMs) * time.Millisecond
}

// String returns a formatted string representation of the configuration
func (c *BridgeConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Answering service and socket settings
	sb.WriteString(c.Client.String())
	addSection("Line Protocol")
	addField("Transport", c.TransportName)
	addField("Serializer", c.Serializer)

	addSection("Reconnect")
	addField("Interval", c.ReconnectInterval().String())
	if maxInterval := c.ReconnectMaxInterval(); maxInterval > 0 {
		addField("Max Interval", maxInterval.String())
	} else {
		addField("Max Interval", "fixed")
	}

	addSection("Host Channel")
	addField("Endpoint", c.Host.Endpoint)
	addField("Transport", c.HostTransport)
	addField("Max Frame", formatBytes(c.Host.MaxPayloadBytes))

	addSection("Shared Regions")
	addField("Directory", c.RegionDir)
	addField("Name Format", c.RegionNameFormat)

	addSection("Logging")
	addField("Log Level", c.LogLevel)
	addField("Log File", orNone(c.LogFile))
	addField("Metrics", orNone(c.MetricsEndpoint))
	addField("Config File", orNone(c.ConfigFile))

	return sb.String()
}

// --------------------------------------------------------------------------
// Answering service configuration
// --------------------------------------------------------------------------

// AnsweringConfig configures the development answering service
type AnsweringConfig struct {
	Server        ServerConfig
	TransportName string
	Serializer    string
	Adapter       string
	LogLevel      string
}

// String returns a formatted string representation of the configuration
func (c *AnsweringConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Answering Service")
	addField("Endpoint", c.Server.Endpoint)
	addField("Transport", c.TransportName)
	addField("Serializer", c.Serializer)
	addField("Adapter", c.Adapter)
	addField("Timeout", formatSeconds(c.Server.TimeoutSecond))
	addField("Max Line", formatBytes(c.Server.MaxPayloadBytes))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatSeconds(sec int) string {
	if sec <= 0 {
		return "disabled"
	}
	return fmt.Sprintf("%d sec", sec)
}

func formatBytes(n int) string {
	if n <= 0 {
		return "default"
	}
	return fmt.Sprintf("%d bytes", n)
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

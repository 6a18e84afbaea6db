package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ValentinKolb/rKV/lib/storage"
)

// --------------------------------------------------------------------------
// Areas
// --------------------------------------------------------------------------

// EngineType names the backend implementation of an area
type EngineType string

const (
	EngineMemory EngineType = "memory"
	EngineSQLite EngineType = "sqlite"
	EngineFile   EngineType = "file"
)

// AreaConfig describes one storage served by the rpc server
type AreaConfig struct {
	// ID is the number clients address the area with
	ID uint64
	// Kind is the storage kind the area is created with
	Kind storage.Kind
	// Engine selects the backend
	Engine EngineType
	// Path is the database or snapshot file of persistent engines
	Path string
	// QuotaBytes limits memory areas, 0 means unlimited
	QuotaBytes int
}

func (a AreaConfig) String() string {
	s := fmt.Sprintf("%s (%s)", a.Kind, a.Engine)
	if a.Path != "" {
		s += " at " + a.Path
	}
	if a.QuotaBytes > 0 {
		s += fmt.Sprintf(", quota %d bytes", a.QuotaBytes)
	}
	return s
}

// ParseAreas parses a comma separated list of area definitions of the form
// id=kind:engine[:path], e.g. "1=local:sqlite:data/local.db,2=session:memory"
func ParseAreas(s string) ([]AreaConfig, error) {
	var areas []AreaConfig
	seen := make(map[uint64]bool)

	for _, def := range strings.Split(s, ",") {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}

		idStr, spec, ok := strings.Cut(def, "=")
		if !ok {
			return nil, fmt.Errorf("invalid area %q: expected id=kind:engine[:path]", def)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid area id %q: %w", idStr, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("area %d defined twice", id)
		}
		seen[id] = true

		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid area %q: expected id=kind:engine[:path]", def)
		}

		area := AreaConfig{
			ID:     id,
			Kind:   storage.Kind(parts[0]),
			Engine: EngineType(parts[1]),
		}
		if len(parts) == 3 {
			area.Path = parts[2]
		}

		switch area.Kind {
		case storage.KindLocal, storage.KindSession:
		default:
			return nil, fmt.Errorf("area %d: unknown kind %q", id, area.Kind)
		}

		switch area.Engine {
		case EngineMemory:
		case EngineSQLite, EngineFile:
			if area.Path == "" {
				return nil, fmt.Errorf("area %d: engine %s needs a path", id, area.Engine)
			}
		default:
			return nil, fmt.Errorf("area %d: unknown engine %q", id, area.Engine)
		}

		areas = append(areas, area)
	}

	if len(areas) == 0 {
		return nil, fmt.Errorf("no areas defined")
	}
	return areas, nil
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the socket settings of the server transports
type ServerTransportConfig struct {
	// Endpoint is the listen address (host:port or socket path)
	Endpoint string

	// Socket settings of the tcp transport
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	WriteBufferSize int
	ReadBufferSize  int

	// Frame handling of the socket transports
	SocketBufferSize int
	WorkersPerConn   int
}

// ServerConfig holds all configuration parameters of a host daemon
type ServerConfig struct {
	// Areas served by the daemon
	Areas []AreaConfig

	// ChangeLogSize is the number of changes kept per area for watchers
	ChangeLogSize int

	// Timeout of a single request
	TimeoutSecond int64

	// Transport settings
	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Change Log Size", strconv.Itoa(c.ChangeLogSize))

	// Socket settings
	addSection("Socket")
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.Transport.SocketBufferSize))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Areas
	addSection("Areas")
	for _, area := range c.Areas {
		addField(strconv.FormatUint(area.ID, 10), area.String())
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the connection settings of the client transports
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int

	// Socket settings of the tcp transport
	TCPNoDelay      bool
	TCPKeepAliveSec int
}

// ClientConfig holds the configuration of a remote environment
type ClientConfig struct {
	// Timeout of a single request
	TimeoutSecond int

	// PollIntervalMs is the delay between two change log polls of a remote
	// channel
	PollIntervalMs int

	// Transport settings
	Transport ClientTransportConfig
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

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Poll Interval", fmt.Sprintf("%d ms", c.PollIntervalMs))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}

package server

import (
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &Server{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewStorageServerAdapter(),
		areas:      xsync.NewMapOf[uint64, *Area](),
	}
}

// Server hosts the areas of a daemon and answers the requests of remote
// environments
type Server struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	areas      *xsync.MapOf[uint64, *Area]

	initOnce sync.Once
	initErr  error
}

// Init opens all areas and registers the request handler with the
// transport. Serve calls it, it is exported for callers that need the areas
// before the server listens.
func (s *Server) Init() error {
	s.initOnce.Do(func() {
		s.initErr = s.init()
	})
	return s.initErr
}

func (s *Server) init() error {
	for _, areaConfig := range s.config.Areas {
		area, err := openArea(areaConfig, s.config.ChangeLogSize)
		if err != nil {
			s.closeAreas()
			return err
		}
		s.areas.Store(areaConfig.ID, area)
		Logger.Infof("opened area %d: %s", areaConfig.ID, areaConfig)
	}

	// Configure the transport layer
	s.transport.RegisterHandler(s.Handle)

	Logger.Infof("rKV setup completed successfully")
	return nil
}

// Serve starts the RPC server
// This function will also initialize the areas and start the transport layer.
// It blocks until Close is called.
func (s *Server) Serve() error {
	if err := s.Init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Area returns the area with the given id
func (s *Server) Area(id uint64) (*Area, bool) {
	return s.areas.Load(id)
}

// Handle decodes a request for an area, executes it and returns the encoded
// response. It is the handler registered with the transport.
func (s *Server) Handle(areaID uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	if area, ok := s.areas.Load(areaID); !ok {
		// Case area does not exist -> error
		respMsg = common.NewErrorResponse(fmt.Sprintf("area %d not found", areaID))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		// Let the adapter handle the request
		metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_rpc_requests_total{type=%q}`, msg.MsgType)).Inc()
		respMsg = s.adapter.Handle(&msg, area)
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// Close stops the transport and closes the backends of all areas
func (s *Server) Close() error {
	err := s.transport.Close()
	return errors.Join(err, s.closeAreas())
}

func (s *Server) closeAreas() error {
	var errs []error
	s.areas.Range(func(id uint64, area *Area) bool {
		if err := area.close(); err != nil {
			errs = append(errs, fmt.Errorf("area %d: %w", id, err))
		}
		s.areas.Delete(id)
		return true
	})
	return errors.Join(errs...)
}

package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/lib/host"
	"github.com/ValentinKolb/rKV/lib/intercept"
	"github.com/ValentinKolb/rKV/lib/reactive"
	"github.com/ValentinKolb/rKV/lib/util"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the rKV daemon",
		Long:    `Start the rKV daemon with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RKV_<flag> (e.g. RKV_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "areas"
	ServeCmd.PersistentFlags().String(key, "1=local:memory,2=session:memory", cmdUtil.WrapString("Comma-separated list of areas to serve. Format: ID=KIND:ENGINE[:PATH] where KIND is local or session and ENGINE is one of memory, sqlite, file (e.g. 1=local:sqlite:data/local.db)"))

	key = "quota"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Quota in bytes of memory areas, 0 means unlimited"))

	key = "changelog-size"
	ServeCmd.PersistentFlags().Int(key, 1024, cmdUtil.WrapString("Number of changes kept per area for watching clients. Clients that fall further behind see a clear"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/rkv.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Concurrent requests per connection (tcp and unix)"))

	key = "socket-buffer"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("Size in KB of the request buffers of a connection, larger requests are allocated separately (tcp and unix)"))

	key = "socket-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size in KB of the kernel write buffer of a connection, 0 keeps the OS default (only for tcp)"))

	key = "socket-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size in KB of the kernel read buffer of a connection, 0 keeps the OS default (only for tcp)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval in seconds (only for tcp)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("The linger time in seconds, negative keeps the OS default (only for tcp)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse areas
	areas, err := common.ParseAreas(viper.GetString("areas"))
	if err != nil {
		return err
	}
	quota := viper.GetInt("quota")
	for i := range areas {
		if areas[i].Engine == common.EngineMemory {
			areas[i].QuotaBytes = quota
		}
	}
	serveCmdConfig.Areas = areas

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.ChangeLogSize = viper.GetInt("changelog-size")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:         viper.GetString("endpoint"),
		WorkersPerConn:   viper.GetInt("workers-per-conn"),
		SocketBufferSize: viper.GetInt("socket-buffer") * 1024,
		WriteBufferSize:  viper.GetInt("socket-write-buffer") * 1024,
		ReadBufferSize:   viper.GetInt("socket-read-buffer") * 1024,
		TCPNoDelay:       viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec:  viper.GetInt("tcp-keepalive"),
		TCPLingerSec:     viper.GetInt("tcp-linger"),
	}

	if _, err := util.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	return nil
}

// run starts the rKV daemon and blocks until it receives SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := util.InitLoggers(serveCmdConfig.LogLevel, os.Stderr); err != nil {
		return err
	}

	s, err := serializer.ByName(viper.GetString("serializer"))
	if err != nil {
		return err
	}
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)
	if err := serv.Init(); err != nil {
		return err
	}

	if serveCmdConfig.LogLevel == "debug" {
		stores := watchAreas(serv)
		defer func() {
			for _, store := range stores {
				store.Close()
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		server.Logger.Infof("shutting down")
		if err := serv.Close(); err != nil {
			server.Logger.Errorf("shutdown: %v", err)
		}
	}()

	return serv.Serve()
}

// watchAreas logs every change of the served areas, whichever client made it
func watchAreas(serv *server.Server) []*reactive.Store {
	// the daemon itself is a context without cross-context channel
	env := &host.Environment{Origin: "rkv-daemon"}

	var stores []*reactive.Store
	for _, areaConfig := range serveCmdConfig.Areas {
		area, ok := serv.Area(areaConfig.ID)
		if !ok {
			continue
		}
		name := fmt.Sprintf("area %d", areaConfig.ID)
		store := reactive.New(env, reactive.WithStorage(area.Storage()), reactive.WithName(name))
		store.OnChange(func(c reactive.Change) {
			server.Logger.Debugf("%s: %s", name, c)
		})
		stores = append(stores, store)

		s := area.Storage()
		server.Logger.Debugf("%s: %s storage intercepted=%v, %d observer(s)",
			name, s.Kind(), intercept.Installed(s.Kind()), len(intercept.Bundles(s)))
	}
	return stores
}

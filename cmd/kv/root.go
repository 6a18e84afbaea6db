package kv

import (
	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/lib/host"
	"github.com/ValentinKolb/rKV/lib/reactive"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	remoteEnv *host.Environment
	store     *reactive.Store

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform storage operations through a reactive store",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	KeyValueCommands.PersistentFlags().Bool("session", false, util.WrapString("Operate on the session storage instead of the local storage"))

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(rmCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(keyCmd)
	KeyValueCommands.AddCommand(lenCmd)
	KeyValueCommands.AddCommand(watchCmd)
	KeyValueCommands.AddCommand(benchCmd)
}

// setupKVClient connects the remote environment and creates the store
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the remote environment
	remoteEnv, err = client.NewRemoteEnvironment(
		*util.GetClientConfig(),
		t,
		s,
		util.GetAreas(),
	)
	if err != nil {
		return err
	}

	kind := storage.KindLocal
	if viper.GetBool("session") {
		kind = storage.KindSession
	}
	store = reactive.New(remoteEnv, reactive.WithKind(kind), reactive.WithName("rkv "+cmd.Name()))
	return nil
}

func closeKVClient(*cobra.Command, []string) error {
	store.Close()
	return remoteEnv.Close()
}

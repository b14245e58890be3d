package cmd

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/cmd/echo"
	"github.com/ValentinKolb/uBridge/cmd/notify"
	"github.com/ValentinKolb/uBridge/cmd/run"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ubridge",
		Short: "legacy IPC to remote answering service bridge",
		Long: fmt.Sprintf(`uBridge (v%s)

Receives legacy IPC requests from a host shim, either embedded or as a reference
into a shared memory region, forwards them line by line to a remote answering
service and writes the answer back in place.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of uBridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("uBridge v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(run.RunCmd)
	RootCmd.AddCommand(echo.EchoCmd)
	RootCmd.AddCommand(notify.NotifyCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

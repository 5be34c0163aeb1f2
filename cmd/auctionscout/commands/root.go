package commands

import (
	"auctionscout/internal/config"
	"auctionscout/lib/serviceutil"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dumpDir    string
)

var rootCmd = &cobra.Command{
	Use:   "auctionscout",
	Short: "auctionscout searches eBay for GameBoy Advance auctions and ranks them by relevance.",
	// errors are logged by ExecuteContext
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "The json5 config file, a <name>.local.json5 next to it overrides its fields.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-dir", "", "Write every HTTP request and response to this directory.")
}

// exitError ends the process with a specific status, its message has already
// been shown to the user.
type exitError struct {
	code   int
	reason string
}

func (e exitError) Error() string {
	return e.reason
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	serviceutil.Fatal(fmt.Sprintf("%s failed", rootCmd.Name()), err)
}

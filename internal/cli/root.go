package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MCIKIDS/mci.kids/pkg/snapshot"
	"github.com/MCIKIDS/mci.kids/pkg/state"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

var version = "dev"

var (
	dbPath  string
	driver  string
	slotKey string
)

var rootCmd = &cobra.Command{
	Use:   "mcikidsctl",
	Short: "Operator tool for the MCI Kids portal store",
	Long: `mcikidsctl reads and repairs the durable state of an MCI Kids portal.

Commands that open the store need the service stopped when the pebble
driver is in use, since pebble holds an exclusive lock on its directory.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./.mcikids", "state directory of the service")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", store.DriverPebble, "storage driver (pebble|sqlite)")
	rootCmd.PersistentFlags().StringVar(&slotKey, "slot-key", snapshot.DefaultKey, "key the state snapshot lives under")
}

// openSlot opens the store inside the state directory given by --db.
func openSlot(readOnly bool) (store.Slot, error) {
	paths := state.PathsFor(dbPath)
	if _, err := os.Stat(paths.Store); err != nil {
		return nil, fmt.Errorf("no store under %s: %w", dbPath, err)
	}
	return store.Open(store.Options{
		Driver:   driver,
		Path:     store.DataPath(driver, paths.Store),
		ReadOnly: readOnly,
	})
}

func header(cmd *cobra.Command, format string, args ...any) {
	color.New(color.Bold, color.FgCyan).Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}

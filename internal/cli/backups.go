package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MCIKIDS/mci.kids/internal/backup"
	"github.com/MCIKIDS/mci.kids/pkg/state"
)

const leaseTTL = 5 * time.Minute

var restoreYes bool

func init() {
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.AddCommand(backupsListCmd, backupsRestoreCmd)
	backupsRestoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip the confirmation prompt")
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List or restore scheduled state backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := openSlot(true)
		if err != nil {
			return err
		}
		defer slot.Close()

		entries, err := backup.List(cmd.Context(), slot)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no backups")
			return nil
		}
		header(cmd, "%d backup(s) in %s", len(entries), dbPath)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tTAKEN\tSIZE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Key, humanize.Time(e.Taken), humanize.Bytes(uint64(e.Size)))
		}
		return tw.Flush()
	},
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore <backup-key>",
	Short: "Overwrite the state snapshot with a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if _, err := backup.ParseKey(key); err != nil {
			return err
		}
		if !restoreYes && !confirm(cmd, fmt.Sprintf("Replace %q with %s?", slotKey, key)) {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}

		slot, err := openSlot(false)
		if err != nil {
			return err
		}
		defer slot.Close()

		lease := backup.NewFileLease(state.PathsFor(dbPath).Audit)
		owner := "ctl-" + uuid.NewString()
		ok, err := lease.Acquire(owner, leaseTTL)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("a backup run holds the lease; try again later")
		}
		defer lease.Release(owner)

		if err := backup.Restore(cmd.Context(), slot, slotKey, key); err != nil {
			return err
		}
		header(cmd, "restored %s from %s", slotKey, key)
		return nil
	},
}

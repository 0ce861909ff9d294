package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/MCIKIDS/mci.kids/pkg/snapshot"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

var dumpFormat string

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "yaml", "output format (yaml|json)")
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the stored state snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := openSlot(true)
		if err != nil {
			return err
		}
		defer slot.Close()

		data, err := slot.Get(cmd.Context(), slotKey)
		if store.IsNotFound(err) {
			return fmt.Errorf("no snapshot under %q", slotKey)
		}
		if err != nil {
			return err
		}
		out, err := renderSnapshot(data, dumpFormat)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// renderSnapshot normalises a stored document through the decoder, so the
// output shows what the service would restore.
func renderSnapshot(data []byte, format string) ([]byte, error) {
	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("stored snapshot is unreadable: %w", err)
	}
	doc, err := snapshot.Encode(snap)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, doc, "", "  "); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	case "yaml", "yml":
		return yaml.JSONToYAML(doc)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

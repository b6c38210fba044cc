package main

import (
	"io"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/cratemap/internal/discover"
)

func newCratesCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "crates [root]",
		Short: "List the crates under a directory and their entry files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			crates, err := discover.Crates(root)
			if err != nil {
				return errors.Errorf("discovering crates: %w", err)
			}
			if len(crates) == 0 {
				return errors.Errorf("no crates found under %s", root)
			}

			renderCrateTable(stdout, root, crates)
			return nil
		},
	}
}

func renderCrateTable(w io.Writer, root string, crates []discover.Crate) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Crate", "Directory", "Entry"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	for _, c := range crates {
		entry := c.Entry
		if rel, err := filepath.Rel(root, c.Entry); err == nil {
			entry = rel
		}
		table.Append([]string{c.Name, c.Dir, entry})
	}

	table.Render()
}

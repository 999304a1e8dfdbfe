package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/sentence-eval/internal/codec"
)

func newCriteriaCommand(opts *rootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "criteria",
		Short: "List the criteria sentences can be evaluated against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.cfg.Registry()
			if err != nil {
				return err
			}
			list := reg.List()
			w := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(w, list)
			}

			offline := codec.NewHeuristicAdapter()
			fmt.Fprintf(w, "%-22s  %-28s  %6s  %-7s  %s\n", "ID", "Name", "Weight", "Offline", "Description")
			fmt.Fprintf(w, "%-22s+-%-28s+-%6s+-%-7s+-%s\n",
				"----------------------", "----------------------------", "------", "-------", "--------------------")
			for _, c := range list {
				off := "no"
				if offline.Supports(c.ID) {
					off = "yes"
				}
				fmt.Fprintf(w, "%-22s  %-28s  %6.2f  %-7s  %s\n",
					c.ID, shortText(c.Name, 28), c.Weight, off, shortText(c.Description, 60))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON instead of a table")
	return cmd
}

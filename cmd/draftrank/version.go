package main

import (
	"fmt"

	"github.com/spf13/cobra"

	draftranker "github.com/JohnPlummer/draft-ranker"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the draftrank version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := draftranker.GetVersion()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", info.Name, info.Version)
		},
	}
}

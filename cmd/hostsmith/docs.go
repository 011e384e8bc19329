package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var genDocsCmd = &cobra.Command{
	Use:    "gen-docs <dir>",
	Short:  "Generate man pages",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runGenDocs,
}

func init() {
	rootCmd.AddCommand(genDocsCmd)
}

func runGenDocs(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	header := &doc.GenManHeader{
		Title:   "HOSTSMITH",
		Section: "1",
		Source:  "hostsmith " + version,
	}
	return doc.GenManTree(rootCmd, header, dir)
}

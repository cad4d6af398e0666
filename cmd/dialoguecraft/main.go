package main

import (
	"os"

	"github.com/spf13/cobra"

	"dialoguecraft/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "dialoguecraft",
		Short: "Author and store branching dialogue graphs",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.FileName, "Project config file")
	root.AddCommand(initCmd())
	root.AddCommand(newCmd())
	root.AddCommand(listCmd())
	root.AddCommand(inspectCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(copyCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

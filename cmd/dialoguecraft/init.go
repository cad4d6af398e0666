package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dialoguecraft/internal/config"
)

func initCmd() *cobra.Command {
	var projectName string
	var driver string
	var dsn string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new dialoguecraft project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(cmd, projectName, driver, dsn)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&driver, "driver", config.DriverBadger, "Store driver: memory, badger, sqlite or postgres")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Store location; defaults to "+config.DefaultBadgerDir+" for badger")
	return cmd
}

func runInit(cmd *cobra.Command, projectName, driver, dsn string) error {
	cfg := config.Default(projectName)
	cfg.Store.Driver = driver
	cfg.Store.DSN = dsn
	if driver == config.DriverBadger && dsn == "" {
		cfg.Store.DSN = config.DefaultBadgerDir
	}
	if err := config.Write(configPath, cfg); err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", configPath)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/82deutschmark/PlanExe-sub001/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the LLM models the server offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		fileCfg, err := loadFileConfig()
		if err != nil {
			return err
		}
		server := resolveServer(fileCfg)

		remote, err := config.NewService(server).Get(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch server config: %w", err)
		}

		for _, m := range remote.Models {
			marker := " "
			if m.ID == remote.DefaultModel || m.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %-24s %s\n", marker, m.ID, m.Label)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

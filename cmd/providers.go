package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// providersCmd 列出已注册的存储提供者
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered storage providers and their capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := newContainer()
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer container.Close()

		current, err := container.Mover().CurrentProvider(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("%-3s %-28s %-8s %-10s\n", "", "PROVIDER", "MOVABLE", "RECLAIMS")
		for _, reg := range container.Registry().List() {
			marker := ""
			if reg.SystemName() == current {
				marker = "*"
			}
			fmt.Printf("%-3s %-28s %-8t %-10t\n", marker, reg.SystemName(), reg.SupportsMoving(), reg.Reclaimer != nil)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

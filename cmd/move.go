package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// moveCmd 在存储提供者之间迁移媒体
var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move all media payloads to another storage provider",
	Long: `Move all media payloads (pictures, downloads, queued email attachments)
from one storage provider to another in a single transaction.

Examples:
  # Move from the current provider to the file system
  mediastore move --to MediaStorage.FileSystem

  # Move from the file system back into the database without prompting
  mediastore move --from MediaStorage.FileSystem --to MediaStorage.Database --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		skipConfirm, _ := cmd.Flags().GetBool("yes")
		metricsFile, _ := cmd.Flags().GetString("metrics-textfile")

		return runMove(from, to, skipConfirm, metricsFile)
	},
}

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().String("from", "", "Source provider system name (default: current provider)")
	moveCmd.Flags().String("to", "", "Target provider system name")
	moveCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	moveCmd.Flags().String("metrics-textfile", "", "Write Prometheus metrics to this file after the move")
	_ = moveCmd.MarkFlagRequired("to")
}

func runMove(from, to string, skipConfirm bool, metricsFile string) error {
	container, err := newContainer()
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if from == "" {
		if from, err = container.Mover().CurrentProvider(ctx); err != nil {
			return err
		}
	}

	if !skipConfirm {
		fmt.Printf("Move all media from %s to %s? [y/N]: ", from, to)
		response, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Println("Move cancelled.")
			return nil
		}
	}

	ok, err := container.Mover().MoveByName(ctx, from, to)

	if metricsFile != "" {
		if werr := prometheus.WriteToTextfile(metricsFile, prometheus.DefaultGatherer); werr != nil {
			log.Warnf("Failed to write metrics to %s: %v", metricsFile, werr)
		}
	}

	if err != nil {
		return fmt.Errorf("move failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("move from %s to %s did not complete", from, to)
	}

	fmt.Printf("Media moved from %s to %s.\n", from, to)
	fmt.Println("Waiting for cleanup of the previous storage to finish...")
	return nil
}

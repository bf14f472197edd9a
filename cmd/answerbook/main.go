package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-answerbook/internal/config"
	"github.com/mind-engage/mindengage-answerbook/internal/logger"
)

var (
	configDir string

	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "answerbook",
	Short: "Answer book: write answers next to reading paragraphs and print them as one document",
	Long: `answerbook serves the answer page, keeps answers in a local store or in a
connected browser extension, and renders every answered sub-assignment of an
assignment as one print-ready document (HTML, PDF or markdown).

Configuration comes from the environment and an optional answerbook.yaml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		log = logger.New(cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding answerbook.yaml")
	rootCmd.AddCommand(serveCmd, printCmd, exportCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

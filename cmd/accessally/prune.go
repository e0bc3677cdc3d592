package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/accessally/accessally/internal/app"
	"github.com/accessally/accessally/internal/voice"
)

func newPruneAudioCmd() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune-audio",
		Short: "Delete expired speech artifacts once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("retention") {
				cfg.AudioRetention = retention
			}
			dir := filepath.Join(cfg.StaticDir, app.AudioSubdir)
			n, err := voice.NewJanitor(dir, cfg.AudioRetention, nil).Prune(time.Now())
			if err != nil {
				return fmt.Errorf("prune %s: %w", dir, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s) from %s\n", n, dir)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "override AUDIO_RETENTION for this run")
	return cmd
}

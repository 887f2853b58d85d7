package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicktill/procmet/pkg/expfmt"
	"github.com/nicktill/procmet/pkg/history"
	"github.com/nicktill/procmet/pkg/lockfile"
	"github.com/nicktill/procmet/pkg/multiproc"
)

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Merge all store files and print the exposition text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			collector, err := multiproc.NewCollector(cfg.Dir, lockfile.New(cfg.LockFile))
			if err != nil {
				return err
			}

			families, err := collector.Collect(cmd.Context())
			if err != nil {
				return err
			}

			if cfg.History.Enabled {
				archive, err := history.Open(history.Config{
					Path:        cfg.History.Path,
					MaxMemoryMB: cfg.History.MaxMemoryMB,
				})
				if err != nil {
					return err
				}
				defer archive.Close()
				if err := archive.Append(cmd.Context(), time.Now(), families); err != nil {
					return err
				}
				log.Printf("archived snapshot of %d families", len(families))
			}

			return expfmt.Write(os.Stdout, families)
		},
	}
}

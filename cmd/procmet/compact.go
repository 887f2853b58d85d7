package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nicktill/procmet/pkg/config"
	"github.com/nicktill/procmet/pkg/lockfile"
	"github.com/nicktill/procmet/pkg/multiproc"
)

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact FILE",
		Short: "Merge one store file into its class archive and delete it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			compactor, err := multiproc.NewCompactor(cfg.Dir, lockfile.New(cfg.LockFile))
			if err != nil {
				return err
			}
			return compactor.Compact(cmd.Context(), args[0])
		},
	}
}

func newMarkDeadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-dead PID",
		Short: "Reclaim a terminated process's store files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil || pid <= 0 {
				return fmt.Errorf("invalid pid %q", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			handler, err := newDeathHandler(cfg)
			if err != nil {
				return err
			}
			return handler.MarkProcessDead(cmd.Context(), pid)
		},
	}
}

func newDeathHandler(cfg *config.Config) (*multiproc.DeathHandler, error) {
	compactor, err := multiproc.NewCompactor(cfg.Dir, lockfile.New(cfg.LockFile))
	if err != nil {
		return nil, err
	}
	return multiproc.NewDeathHandler(cfg.Dir, compactor)
}

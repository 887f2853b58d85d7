package main

import (
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim store files of processes that no longer exist",
		Long: `Scans the store directory for owner pids that are gone and runs death
cleanup for each. By default the sweep repeats at the configured interval
until interrupted; --once runs a single sweep and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.Sweep.Interval.Duration
			}

			handler, err := newDeathHandler(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sweepOnce := func() error {
				reaped, err := handler.SweepDead(ctx)
				if err != nil {
					return err
				}
				if len(reaped) > 0 {
					log.Printf("reclaimed store files for dead pids %v", reaped)
				}
				return nil
			}

			if once || interval <= 0 {
				return sweepOnce()
			}

			log.Printf("sweeping %s every %v", cfg.Dir, interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := sweepOnce(); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					log.Println("sweep stopped")
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat interval (overrides config)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	return cmd
}

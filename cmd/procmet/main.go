package main

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nicktill/procmet/pkg/config"
	"github.com/nicktill/procmet/pkg/multiproc"
)

var (
	flagConfig   string
	flagDir      string
	flagLockFile string
)

func main() {
	log.SetFlags(log.LstdFlags)
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "procmet",
		Short: "Reconcile per-process metric stores into one consistent view",
		Long: `procmet operates on a directory of per-process metric store files:
merge them into exposition output, compact a dead process's files into the
shared archive, and sweep files left behind by processes that are gone.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "TOML config file")
	root.PersistentFlags().StringVar(&flagDir, "dir", "", "store directory (overrides config)")
	root.PersistentFlags().StringVar(&flagLockFile, "lock-file", "", "coordination file path (overrides config)")

	root.AddCommand(newCollectCmd())
	root.AddCommand(newCompactCmd())
	root.AddCommand(newMarkDeadCmd())
	root.AddCommand(newSweepCmd())
	return root
}

// loadConfig merges the config file (when given) with the flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := config.Default()
		cfg = &def
	}

	if flagDir != "" {
		cfg.Dir = flagDir
	}
	if flagLockFile != "" {
		cfg.LockFile = flagLockFile
	}

	if cfg.Dir == "" {
		return nil, fmt.Errorf("store directory required: set --dir or dir in the config file")
	}
	if cfg.LockFile == "" {
		cfg.LockFile = filepath.Join(cfg.Dir, multiproc.DefaultLockFile)
	}
	return cfg, nil
}

package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/MimeLyc/bilingual-subs/internal/config"
	"github.com/MimeLyc/bilingual-subs/internal/persistence"
	"github.com/MimeLyc/bilingual-subs/internal/service"
	"github.com/MimeLyc/bilingual-subs/pkg/log"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag string
	dirFlag    string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	closers []func() error
	// newService is swapped in tests to inject a translator and muxer.
	newService func(cfg config.Config, opts ...service.Option) *service.TransService
}

func newRootCommand() (*cobra.Command, *commandContext) {
	cc := &commandContext{newService: service.NewTransService}

	rootCmd := &cobra.Command{
		Use:           "bisub",
		Short:         "Turn SRT subtitles into bilingual subtitles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := cc.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configFlag, "config", "c", "", "TOML configuration file (overrides environment)")
	rootCmd.PersistentFlags().StringVarP(&cc.dirFlag, "dir", "d", "", "Media directory (overrides MEDIA_DIR)")

	rootCmd.AddCommand(newRunCommand(cc))
	rootCmd.AddCommand(newTranslateCommand(cc))
	rootCmd.AddCommand(newMuxCommand(cc))
	rootCmd.AddCommand(newScheduleCommand(cc))
	rootCmd.AddCommand(newHistoryCommand(cc))

	return rootCmd, cc
}

// ensureConfig loads the configuration once and installs the logger it
// describes.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.NewFromEnv(
			config.WithFile(strings.TrimSpace(c.configFlag)),
			config.WithMediaDir(strings.TrimSpace(c.dirFlag)),
		)
		if err != nil {
			c.configErr = fmt.Errorf("load configuration: %w", err)
			return
		}
		if err := c.setupLogging(cfg.Log); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	if cfg.File == "" {
		log.InitLogger(level)
		return nil
	}

	fileLogger, err := log.NewFileLogger(cfg.File, level)
	if err != nil {
		return err
	}
	log.SetLogger(fileLogger.Logger)
	c.closers = append(c.closers, fileLogger.Close)
	return nil
}

// openStore opens the SQLite store when DB_PATH is set. A nil store means
// persistence is disabled.
func (c *commandContext) openStore(cfg *config.Config) (*persistence.SQLiteStore, error) {
	if cfg.Store.DBPath == "" {
		return nil, nil
	}
	store, err := persistence.NewSQLiteStore(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	c.closers = append(c.closers, store.Close)
	return store, nil
}

func (c *commandContext) transService() (*service.TransService, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := c.openStore(cfg)
	if err != nil {
		return nil, err
	}

	var opts []service.Option
	if store != nil {
		opts = append(opts, service.WithStore(store))
	}
	return c.newService(*cfg, opts...), nil
}

// close releases what the command opened, newest first.
func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn("Failed to close: %v", err)
		}
	}
	c.closers = nil
}

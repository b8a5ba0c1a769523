package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MimeLyc/bilingual-subs/internal/service"
	"github.com/MimeLyc/bilingual-subs/pkg/icron"
	"github.com/MimeLyc/bilingual-subs/pkg/log"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newRunCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Translate every subtitle in the media directory once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := cc.transService()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			report, err := svc.Run(ctx)
			if report != nil {
				writeReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}

func newTranslateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <file.srt>...",
		Short: "Translate the given subtitle files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := cc.transService()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			report := &service.Report{StartedAt: time.Now()}
			var failed int
			for _, path := range args {
				if ctx.Err() != nil {
					break
				}
				outcome, err := svc.TranslateFile(ctx, path)
				if err != nil {
					failed++
				}
				report.Files = append(report.Files, outcome)
			}
			report.FinishedAt = time.Now()
			writeReport(cmd.OutOrStdout(), report)

			if err := ctx.Err(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func newMuxCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mux",
		Short: "Burn subtitles into matching videos without translating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := cc.transService()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			report, err := svc.MuxAll(ctx)
			if report != nil {
				writeReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}

func newScheduleCommand(cc *commandContext) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"daemon"},
		Short:   "Run on the CRON_EXPR schedule until interrupted",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			svc, err := cc.transService()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			c := cron.New(cron.WithParser(icron.Parser))
			if _, err := svc.Schedule(ctx, c, func(r *service.Report) {
				writeReport(out, r)
				logNextTrigger(cfg.Translate.CronExpr)
			}); err != nil {
				return fmt.Errorf("schedule %q: %w", cfg.Translate.CronExpr, err)
			}

			c.Start()
			log.Info("Scheduler started for %s", cfg.Media.Dir)
			logNextTrigger(cfg.Translate.CronExpr)

			if runNow {
				report, _, err := svc.RunShared(ctx)
				if report != nil {
					writeReport(out, report)
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Initial run failed: %v", err)
				}
			}

			<-ctx.Done()
			log.Info("Stopping scheduler, waiting for the current run")
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "now", false, "Run once immediately before waiting for the schedule")
	return cmd
}

func logNextTrigger(expr string) {
	info, err := icron.GetTriggerInfo(expr, time.Now(), 1)
	if err != nil {
		log.Warn("Failed to compute next trigger: %v", err)
		return
	}
	log.Info("Next run at %s (in %s)", info.Next.Format(time.DateTime), info.TimeUntilNext.Round(time.Second))
}

func newHistoryCommand(cc *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs recorded in DB_PATH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			store, err := cc.openStore(cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no run history: DB_PATH is not set")
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

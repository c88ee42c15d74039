// Command timetablectl is the operator CLI for the timetable bot.
//
// Usage:
//
//	timetablectl migrate
//	timetablectl seed --file reference.json
//	timetablectl refresh --group 1021
//	timetablectl refresh --teacher 305
//	timetablectl scan
//	timetablectl cleanup
//	timetablectl events --group 1021 --days 7
//	timetablectl zoom set "Коваленко Іван Петрович" https://zoom.us/j/123
//	timetablectl zoom get "Коваленко Іван Петрович"
//	timetablectl zoom list
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/militrik/MKRschedule-bot/internal/clock"
	"github.com/militrik/MKRschedule-bot/internal/config"
	"github.com/militrik/MKRschedule-bot/internal/db"
	"github.com/militrik/MKRschedule-bot/internal/notify"
	"github.com/militrik/MKRschedule-bot/internal/scheduler"
	"github.com/militrik/MKRschedule-bot/internal/source"
	"github.com/militrik/MKRschedule-bot/internal/store"
	"github.com/militrik/MKRschedule-bot/internal/telegram"
	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "timetablectl",
		Short: "Timetable bot operator CLI",
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(refreshCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(cleanupCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(zoomCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := pool.Migrate(ctx); err != nil {
					return err
				}
				logger.Info("Schema applied")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// seed command
// --------------------------------------------------------------------------

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert reference data (faculties, chairs, groups, teachers) from a JSON document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				payload, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read reference file: %w", err)
				}
				ref, err := source.DecodeReference(payload)
				if err != nil {
					return err
				}

				st := store.New(pool.Pool)
				start := time.Now()
				for _, f := range ref.Faculties {
					if err := st.UpsertFaculty(ctx, f); err != nil {
						return fmt.Errorf("faculty %d: %w", f.ID, err)
					}
				}
				for _, c := range ref.Chairs {
					if err := st.UpsertChair(ctx, c); err != nil {
						return fmt.Errorf("chair %d: %w", c.ID, err)
					}
				}
				for _, g := range ref.Groups {
					if err := st.UpsertGroup(ctx, g); err != nil {
						return fmt.Errorf("group %d: %w", g.ID, err)
					}
				}
				for _, tch := range ref.Teachers {
					if err := st.UpsertTeacher(ctx, tch); err != nil {
						return fmt.Errorf("teacher %d: %w", tch.ID, err)
					}
				}
				logger.Info("Seed finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", ref.Counts())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the reference JSON document")
	cmd.MarkFlagRequired("file")
	return cmd
}

// --------------------------------------------------------------------------
// refresh command
// --------------------------------------------------------------------------

func refreshCmd() *cobra.Command {
	var groupID, teacherID int64
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch and reconcile the timetable for one entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (groupID == 0) == (teacherID == 0) {
				return fmt.Errorf("exactly one of --group or --teacher is required")
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				clk, err := clock.New(cfg.TZ)
				if err != nil {
					return err
				}
				st := store.New(pool.Pool)
				src := source.NewClient(
					cfg.BaseURL, cfg.OfflineFixturesDir,
					cfg.SourceRequestsPerMinute, cfg.FetchTimeout,
					source.NewIntermediateExtractor(), logger,
				)

				var r scheduler.Refresher
				var id int64
				if groupID != 0 {
					r, id = scheduler.NewGroupRefresher(st, src, clk), groupID
				} else {
					r, id = scheduler.NewTeacherRefresher(st, src, clk), teacherID
				}

				start := time.Now()
				ch, err := r.Refresh(ctx, id)
				if err != nil {
					return err
				}
				logger.Info("Refresh finished",
					"kind", r.Kind(), "entity_id", id,
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", ch.Summary())
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "Group ID to refresh")
	cmd.Flags().Int64Var(&teacherID, "teacher", 0, "Teacher ID to refresh")
	return cmd
}

// --------------------------------------------------------------------------
// scan command
// --------------------------------------------------------------------------

func scanCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one reminder scan pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				clk, err := clock.New(cfg.TZ)
				if err != nil {
					return err
				}
				st := store.New(pool.Pool)

				var delivery notify.Delivery = logDelivery{}
				if !dryRun {
					if cfg.BotToken == "" {
						return fmt.Errorf("BOT_TOKEN is required (or use --dry-run)")
					}
					sender, err := telegram.NewSender(cfg.BotToken, logger)
					if err != nil {
						return err
					}
					delivery = sender
				}

				scanner := notify.NewScanner(st, delivery, clk, cfg.ScanInterval, cfg.DedupTolerance, cfg.DefaultNotifyOffsetMin, logger)
				res := scanner.Scan(ctx)
				logger.Info("Scan finished", "summary", res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log messages instead of sending them")
	return cmd
}

// logDelivery prints would-be messages; used by scan --dry-run.
type logDelivery struct{}

func (logDelivery) Send(ctx context.Context, userID int64, text string) error {
	logger.Info("Would send", "user_id", userID, "text", text)
	return nil
}

// --------------------------------------------------------------------------
// cleanup command
// --------------------------------------------------------------------------

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete events and notification logs past retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				clk, err := clock.New(cfg.TZ)
				if err != nil {
					return err
				}
				st := store.New(pool.Pool)

				eventCutoff := clk.Today().AddDate(0, 0, -cfg.EventRetentionDays)
				notifCutoff := clk.Now().AddDate(0, 0, -cfg.NotificationRetentionDays)
				events, logs, err := st.CleanupOld(ctx, eventCutoff, notifCutoff)
				if err != nil {
					return err
				}
				logger.Info("Cleanup finished",
					"events_deleted", events, "logs_deleted", logs,
					"event_cutoff", eventCutoff.Format("2006-01-02"))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// events command
// --------------------------------------------------------------------------

func eventsCmd() *cobra.Command {
	var groupID, teacherID int64
	var days int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print stored events for one entity over the coming days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (groupID == 0) == (teacherID == 0) {
				return fmt.Errorf("exactly one of --group or --teacher is required")
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				clk, err := clock.New(cfg.TZ)
				if err != nil {
					return err
				}
				st := store.New(pool.Pool)

				kind, id := timetable.KindGroup, groupID
				if teacherID != 0 {
					kind, id = timetable.KindTeacher, teacherID
				}
				start := clk.Today()
				end := start.AddDate(0, 0, days)
				events, err := st.EventsForEntityRange(ctx, kind, id, start, end)
				if err != nil {
					return err
				}
				for _, e := range events {
					fmt.Printf("%s  №%d %s-%s  %s  %s  %s\n",
						e.DateKey(), e.LessonNumber, e.TimeStart, e.TimeEnd,
						notify.SubjectDisplay(&e), e.Auditory, notify.TeacherDisplay(&e))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "Group ID")
	cmd.Flags().Int64Var(&teacherID, "teacher", 0, "Teacher ID")
	cmd.Flags().IntVar(&days, "days", 7, "Days ahead to include")
	return cmd
}

// --------------------------------------------------------------------------
// zoom commands
// --------------------------------------------------------------------------

func zoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zoom",
		Short: "Manage teacher Zoom links",
	}
	cmd.AddCommand(zoomSetCmd())
	cmd.AddCommand(zoomGetCmd())
	cmd.AddCommand(zoomListCmd())
	return cmd
}

func zoomSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <teacher full name> <url>",
		Short: "Attach a Zoom link to a teacher by full name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				st := store.New(pool.Pool)
				if err := st.SetZoomLink(ctx, args[0], args[1]); err != nil {
					return err
				}
				logger.Info("Zoom link saved", "teacher", args[0])
				return nil
			})
		},
	}
}

func zoomGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <teacher full name>",
		Short: "Show the Zoom link bound to a teacher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				st := store.New(pool.Pool)
				url, err := st.ZoomForEvent(ctx, &timetable.Event{TeacherFull: args[0]})
				if err != nil {
					return err
				}
				if url == "" {
					return fmt.Errorf("no zoom link for %q", args[0])
				}
				fmt.Println(url)
				return nil
			})
		},
	}
}

func zoomListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List teacher names known to the timetable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				st := store.New(pool.Pool)
				names, err := st.ListZoomTeacherNames(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------

func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

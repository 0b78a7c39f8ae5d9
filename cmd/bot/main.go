package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/wordwatch/internal/bot"
	"github.com/robalyx/wordwatch/internal/bot/commands"
	"github.com/robalyx/wordwatch/internal/discord/rate"
	"github.com/robalyx/wordwatch/internal/export"
	"github.com/robalyx/wordwatch/internal/matcher"
	"github.com/robalyx/wordwatch/internal/notifier"
	"github.com/robalyx/wordwatch/internal/scanner"
	"github.com/robalyx/wordwatch/internal/setup"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
	// shutdownTimeout bounds the final save and gateway close.
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "bot",
		Usage: "Run the WordWatch Discord bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-dir",
				Value: BotLogDir,
				Usage: "Directory receiving log sessions",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runBot(ctx, c.String("log-dir"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx, os.Args)
}

func runBot(ctx context.Context, logDir string) error {
	app, err := setup.InitializeApp(ctx, setup.ServiceBot, logDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	cfg := app.Config
	logger := app.Logger

	format, err := export.ParseFormat(cfg.Common.Export.DefaultFormat)
	if err != nil {
		return err
	}

	discordBot, err := bot.New(cfg.Bot.Discord.Token, cfg.Bot.Discord.Prefix, logger)
	if err != nil {
		return err
	}
	platform := discordBot.Platform()

	pageDelay := time.Duration(cfg.Bot.Scan.HistoryPageDelayMS) * time.Millisecond
	m := matcher.New(matcher.Options{
		Prefix:          cfg.Bot.Discord.Prefix,
		EnforceCooldown: cfg.Bot.Scan.EnforceCooldown,
	}, logger)
	s := scanner.New(app.State, m, notifier.New(platform, logger), rate.New(pageDelay, pageDelay/4), scanner.Options{
		Interval:        time.Duration(cfg.Bot.Scan.IntervalSeconds) * time.Second,
		HistoryChannels: cfg.Bot.Scan.HistoryChannels,
		HistoryRuns:     cfg.Bot.Scan.HistoryRuns,
	}, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	router := commands.New(cfg.Bot.Discord.Prefix, commands.Deps{
		State:         app.State,
		Scanner:       s,
		History:       platform,
		Persistence:   app.Persistence,
		Permissions:   app.Permissions,
		Exporter:      app.Exporter,
		Levels:        app.LogManager,
		Platform:      platform,
		DefaultFormat: format,
		Backend:       cfg.Common.Storage.Backend,
		InstanceID:    app.LogManager.InstanceID(),
		Stop:          cancel,
	}, logger)
	discordBot.Attach(router, s, m)

	// The state owner outlives the other services so the final save can run.
	stateCtx, stopState := context.WithCancel(context.Background())
	stateDone := make(chan struct{})
	go func() {
		defer close(stateDone)
		app.State.Run(stateCtx)
	}()
	defer func() {
		stopState()
		<-stateDone
	}()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		s.Run(gctx)
		return nil
	})
	g.Go(func() error {
		app.Persistence.Run(gctx)
		return nil
	})
	if app.Lease != nil {
		g.Go(func() error {
			app.Lease.Keep(gctx)
			return nil
		})
	}

	if err := discordBot.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("failed to start bot: %w", err)
	}
	logger.Info("Bot has been started. Waiting for shutdown signal...")

	<-gctx.Done()
	logger.Info("Shutting down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Service failed", zap.Error(err))
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := app.Persistence.Save(shutdownCtx); err != nil {
		logger.Error("Final save failed", zap.Error(err))
	}
	discordBot.Close(shutdownCtx)
	return nil
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/apisport"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/config"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository/pg"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/service"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/session"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/telegram"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings, pool, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer pool.Close()

	logger, err := config.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Close()

	usersRepo := pg.NewUsersRepo(pool)
	tournamentsRepo := pg.NewTournamentsRepo(pool)
	membershipsRepo := pg.NewMembershipsRepo(pool)
	matchesRepo := pg.NewMatchesRepo(pool)
	predictionsRepo := pg.NewPredictionsRepo(pool)
	pointsRepo := pg.NewPointsRepo(pool)
	settingsRepo := pg.NewSettingsRepo(pool)
	sessionsRepo := pg.NewSessionsRepo(pool)

	usersSvc := service.NewUsersService(usersRepo, membershipsRepo, predictionsRepo, pointsRepo)
	tournamentsSvc := service.NewTournamentsService(tournamentsRepo, settingsRepo)
	membershipsSvc := service.NewMembershipsService(membershipsRepo)
	matchesSvc := service.NewMatchesService(matchesRepo, tournamentsRepo, pointsRepo)
	predictionsSvc := service.NewPredictionsService(predictionsRepo, matchesRepo)
	scoringSvc := service.NewScoringService(matchesRepo, predictionsRepo, pointsRepo, logger)
	statsSvc := service.NewStatsService(pointsRepo, matchesRepo, predictionsRepo, usersRepo)
	settingsSvc := service.NewSettingsService(settingsRepo)
	sessionSvc := service.NewSessionService(sessionsRepo)
	sessionStore := session.NewStore(sessionSvc)

	botAPI, err := tgbotapi.NewBotAPI(settings.BotToken)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}
	botAPI.Debug = os.Getenv("DEBUG") == "1"

	bot := telegram.NewBot(botAPI, settings.AdminIDs, settings.Location, telegram.Services{
		Users:       usersSvc,
		Tournaments: tournamentsSvc,
		Memberships: membershipsSvc,
		Matches:     matchesSvc,
		Predictions: predictionsSvc,
		Scoring:     scoringSvc,
		Stats:       statsSvc,
		Settings:    settingsSvc,
		Sessions:    sessionStore,
	}, logger)

	sugar := logger.Sugar()
	sched, err := worker.NewScheduler(sugar)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	reminders := worker.NewReminderWorker(
		matchesRepo, membershipsRepo, predictionsRepo, settingsRepo,
		bot, settings.Location, sugar)
	if err := sched.Add(groupCtx, "reminders", settings.Sync.RemindersEvery, func(ctx context.Context) error {
		_, err := reminders.Process(ctx)
		return err
	}); err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	if settings.APISport.Enabled() {
		feed := apisport.NewClient(settings.APISport.APIKey, settings.APISport.BaseURL)
		fixtures := worker.NewFixturesWorker(
			feed, matchesRepo, tournamentsRepo, settingsRepo,
			settings.Sync, settings.APISport, settings.Location, sugar)
		results := worker.NewResultsWorker(
			feed, matchesRepo, settingsRepo, scoringSvc, settings.Sync, sugar)

		if err := sched.Add(groupCtx, "fixtures_sync", settings.Sync.FixturesEvery, func(ctx context.Context) error {
			_, err := fixtures.Sync(ctx)
			return err
		}); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		if err := sched.Add(groupCtx, "results_sync", settings.Sync.ResultsEvery, func(ctx context.Context) error {
			_, err := results.Sync(ctx)
			return err
		}); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
	} else {
		sugar.Infow("fixtures feed disabled, sync jobs skipped")
	}

	sched.Start()

	group.Go(func() error {
		return bot.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return sched.Shutdown()
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped: %v", err)
	}
}

package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/apisport"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/config"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/service"
)

// ResultsWorker pulls final scores for feed matches that already kicked
// off but have no stored result, and triggers the points recount for
// every match it closes.
type ResultsWorker struct {
	feed     Feed
	matches  repository.MatchesRepository
	settings repository.SettingsRepository
	scoring  service.ScoringService
	cfg      config.SyncSettings
	log      *zap.SugaredLogger
	timeNow  func() time.Time
}

func NewResultsWorker(
	feed Feed,
	matches repository.MatchesRepository,
	settings repository.SettingsRepository,
	scoring service.ScoringService,
	cfg config.SyncSettings,
	log *zap.SugaredLogger,
) *ResultsWorker {
	return &ResultsWorker{
		feed:     feed,
		matches:  matches,
		settings: settings,
		scoring:  scoring,
		cfg:      cfg,
		log:      log,
		timeNow:  time.Now,
	}
}

var finalStatuses = map[string]struct{}{
	"finished":  {},
	"ended":     {},
	"ft":        {},
	"final":     {},
	"completed": {},
}

// Sync checks every open candidate against the feed. A match is closed
// only when the feed reports a final status together with both scores.
// Failures are logged per match so one bad fixture cannot stall the rest.
func (w *ResultsWorker) Sync(ctx context.Context) (int, error) {
	winStart, winEnd, err := seasonWindow(ctx, w.settings, w.cfg)
	if err != nil {
		return 0, err
	}

	now := w.timeNow().UTC()
	candidates, err := w.matches.ListResultCandidates(ctx, winStart, winEnd.AddDate(0, 0, 1), now)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, match := range candidates {
		payload, err := w.feed.GetMatch(ctx, *match.APIFixtureID)
		if err != nil {
			w.log.Errorw("fetch match failed",
				"match_id", match.ID, "fixture_id", *match.APIFixtureID, "error", err)
			continue
		}
		body, ok := payload.(map[string]any)
		if !ok {
			continue
		}
		if _, final := finalStatuses[apisport.Status(body)]; !final {
			continue
		}
		home, away, ok := apisport.Score(body)
		if !ok {
			continue
		}

		if err := w.matches.SetResult(ctx, match.ID, home, away); err != nil {
			w.log.Errorw("store result failed", "match_id", match.ID, "error", err)
			continue
		}
		if _, err := w.scoring.RecomputeForMatch(ctx, match.ID); err != nil {
			w.log.Errorw("recompute failed", "match_id", match.ID, "error", err)
			continue
		}
		updated++
	}

	if updated > 0 {
		w.log.Infow("results sync ok", "updated", updated)
	}
	return updated, nil
}

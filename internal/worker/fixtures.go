package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/apisport"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/config"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
)

// FixturesWorker mirrors the feed's schedule into the matches table.
type FixturesWorker struct {
	feed        Feed
	matches     repository.MatchesRepository
	tournaments repository.TournamentsRepository
	settings    repository.SettingsRepository
	cfg         config.SyncSettings
	api         config.APISportSettings
	loc         *time.Location
	log         *zap.SugaredLogger
	timeNow     func() time.Time
}

func NewFixturesWorker(
	feed Feed,
	matches repository.MatchesRepository,
	tournaments repository.TournamentsRepository,
	settings repository.SettingsRepository,
	cfg config.SyncSettings,
	api config.APISportSettings,
	loc *time.Location,
	log *zap.SugaredLogger,
) *FixturesWorker {
	return &FixturesWorker{
		feed:        feed,
		matches:     matches,
		tournaments: tournaments,
		settings:    settings,
		cfg:         cfg,
		api:         api,
		loc:         loc,
		log:         log,
		timeNow:     time.Now,
	}
}

// Sync walks the active slice of the season window one day at a time and
// upserts every fixture the feed returns for those days.
func (w *FixturesWorker) Sync(ctx context.Context) (int, error) {
	winStart, winEnd, err := seasonWindow(ctx, w.settings, w.cfg)
	if err != nil {
		return 0, err
	}

	tournament, err := w.tournaments.GetByCode(ctx, w.cfg.TournamentCode)
	if err != nil {
		return 0, fmt.Errorf("tournament %q: %w", w.cfg.TournamentCode, err)
	}

	today := dateOnly(w.timeNow().In(w.loc))
	from := maxDate(winStart, today.AddDate(0, 0, -w.cfg.LookbackDays))
	to := minDate(winEnd, today.AddDate(0, 0, w.cfg.LookaheadDays))

	upserted := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		n, err := w.syncDay(ctx, tournament.ID, day)
		if err != nil {
			return upserted, fmt.Errorf("day %s: %w", day.Format(dayLayout), err)
		}
		upserted += n
	}

	w.log.Infow("fixtures sync ok",
		"upserted", upserted,
		"from", from.Format(dayLayout),
		"to", to.Format(dayLayout))
	return upserted, nil
}

func (w *FixturesWorker) syncDay(ctx context.Context, tournamentID int64, day time.Time) (int, error) {
	payload, err := w.feed.ListMatches(ctx, day.Format(dayLayout), w.api.TournamentID, w.api.SeasonID)
	if err != nil {
		return 0, err
	}

	upserted := 0
	for _, item := range apisport.Matches(payload) {
		extID, ok := apisport.ExternalID(item)
		if !ok {
			continue
		}
		// Cup and friendly entries come without a round number, the
		// contest only tracks league rounds.
		round, ok := apisport.RoundNumber(item)
		if !ok {
			continue
		}
		home, away := apisport.Teams(item)
		kickoff, ok := apisport.Kickoff(item, w.loc)
		if !ok {
			kickoff = day
		}

		changed, err := w.upsertFixture(ctx, tournamentID, extID, round, home, away, kickoff)
		if err != nil {
			return upserted, fmt.Errorf("fixture %d: %w", extID, err)
		}
		if changed {
			upserted++
		}
	}
	return upserted, nil
}

// upsertFixture creates an unknown fixture or patches the stored one when
// the feed disagrees with it. Rescheduled kickoffs and renamed teams flow
// in this way; an empty team name never overwrites a known one.
func (w *FixturesWorker) upsertFixture(ctx context.Context, tournamentID, extID int64, round int, home, away string, kickoff time.Time) (bool, error) {
	existing, err := w.matches.GetByAPIFixtureID(ctx, extID)
	if errors.Is(err, models.ErrNotFound) {
		_, err := w.matches.Create(ctx, models.Match{
			TournamentID: tournamentID,
			RoundNumber:  round,
			HomeTeam:     home,
			AwayTeam:     away,
			KickoffAt:    kickoff,
			Source:       models.MatchSourceAPISport,
			APIFixtureID: &extID,
		})
		if err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	var patch models.MatchPatch
	changed := false
	if existing.Source != models.MatchSourceAPISport {
		src := models.MatchSourceAPISport
		patch.Source = &src
		changed = true
	}
	if existing.RoundNumber != round {
		patch.RoundNumber = &round
		changed = true
	}
	if home != "" && existing.HomeTeam != home {
		patch.HomeTeam = &home
		changed = true
	}
	if away != "" && existing.AwayTeam != away {
		patch.AwayTeam = &away
		changed = true
	}
	if !existing.KickoffAt.Equal(kickoff) {
		patch.KickoffAt = &kickoff
		changed = true
	}
	if !changed {
		return false, nil
	}
	if err := w.matches.Update(ctx, existing.ID, patch); err != nil {
		return false, err
	}
	return true, nil
}

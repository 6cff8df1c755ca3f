// Package worker runs the background loops of the bot: fixture and
// result sync against the api-sport.ru feed and the pre-kickoff
// prediction reminders.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/config"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
)

const dayLayout = "2006-01-02"

// Feed is the slice of the apisport client the sync workers use.
type Feed interface {
	ListMatches(ctx context.Context, day string, tournamentID, seasonID int64) (any, error)
	GetMatch(ctx context.Context, id int64) (any, error)
}

// Sender delivers a plain text message to a Telegram chat.
type Sender interface {
	SendText(chatID int64, text string) error
}

// seasonWindow returns the inclusive date range the sync is allowed to
// touch. Values set through the bot live in the settings table and win
// over the environment fallbacks.
func seasonWindow(ctx context.Context, settings repository.SettingsRepository, cfg config.SyncSettings) (time.Time, time.Time, error) {
	start, err := windowValue(ctx, settings, models.SettingTournamentStart, cfg.WindowStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := windowValue(ctx, settings, models.SettingTournamentEnd, cfg.WindowEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, errors.New("tournament window is not set")
	}
	return start, end, nil
}

func windowValue(ctx context.Context, settings repository.SettingsRepository, key, fallback string) (time.Time, error) {
	raw := fallback
	s, err := settings.Get(ctx, key)
	switch {
	case err == nil:
		raw = s.Value
	case !errors.Is(err, models.ErrNotFound):
		return time.Time{}, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(dayLayout, raw)
}

// dateOnly drops the clock part, keeping the calendar day of t as a UTC
// midnight so window dates compare cleanly.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

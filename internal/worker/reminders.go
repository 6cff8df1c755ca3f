package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
)

const reminderLead = 30 * time.Minute

// ReminderWorker pings tournament members half an hour before kickoff
// when they still miss predictions for the starting matches.
type ReminderWorker struct {
	matches     repository.MatchesRepository
	memberships repository.MembershipsRepository
	predictions repository.PredictionsRepository
	settings    repository.SettingsRepository
	sender      Sender
	loc         *time.Location
	log         *zap.SugaredLogger
	timeNow     func() time.Time
}

func NewReminderWorker(
	matches repository.MatchesRepository,
	memberships repository.MembershipsRepository,
	predictions repository.PredictionsRepository,
	settings repository.SettingsRepository,
	sender Sender,
	loc *time.Location,
	log *zap.SugaredLogger,
) *ReminderWorker {
	return &ReminderWorker{
		matches:     matches,
		memberships: memberships,
		predictions: predictions,
		settings:    settings,
		sender:      sender,
		loc:         loc,
		log:         log,
		timeNow:     time.Now,
	}
}

// reminderKey marks a (tournament, kickoff) batch as sent. The kickoff
// part is rendered in the club's zone, same as the message text.
func reminderKey(tournamentID int64, kickoff time.Time, loc *time.Location) string {
	return fmt.Sprintf("RMD30_T%d_%s", tournamentID, kickoff.In(loc).Format("200601021504"))
}

// Process sends at most one reminder per user per kickoff batch. The scan
// window is slightly wider than one tick so schedule drift cannot skip a
// batch, and a settings key dedupes batches across ticks and restarts.
func (w *ReminderWorker) Process(ctx context.Context) (int, error) {
	now := w.timeNow().UTC()
	windowStart := now.Add(reminderLead - 30*time.Second)
	windowEnd := now.Add(reminderLead + 30*time.Second)

	matches, err := w.matches.ListKickoffBetween(ctx, windowStart, windowEnd)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	type groupKey struct {
		tournamentID int64
		kickoff      time.Time
	}
	groups := make(map[groupKey][]models.Match)
	var order []groupKey
	for _, m := range matches {
		k := groupKey{m.TournamentID, m.KickoffAt}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], m)
	}

	sent := 0
	for _, k := range order {
		processed, err := w.processBatch(ctx, k.tournamentID, k.kickoff, groups[k])
		if err != nil {
			return sent, err
		}
		if processed {
			sent++
		}
	}

	if sent > 0 {
		w.log.Infow("reminders sent", "batches", sent)
	}
	return sent, nil
}

func (w *ReminderWorker) processBatch(ctx context.Context, tournamentID int64, kickoff time.Time, batch []models.Match) (bool, error) {
	key := reminderKey(tournamentID, kickoff, w.loc)
	already, err := w.settings.Exists(ctx, key)
	if err != nil || already {
		return false, err
	}

	members, err := w.memberships.ListTelegramIDs(ctx, tournamentID)
	if err != nil {
		return false, err
	}

	if len(members) > 0 {
		ids := make([]int64, len(batch))
		for i, m := range batch {
			ids[i] = m.ID
		}
		preds, err := w.predictions.ListByMatches(ctx, ids)
		if err != nil {
			return false, err
		}
		covered := make(map[int64]map[int64]bool)
		for _, p := range preds {
			if covered[p.TelegramID] == nil {
				covered[p.TelegramID] = make(map[int64]bool)
			}
			covered[p.TelegramID][p.MatchID] = true
		}

		for _, userID := range members {
			var missing []models.Match
			for _, m := range batch {
				if !covered[userID][m.ID] {
					missing = append(missing, m)
				}
			}
			if len(missing) == 0 {
				continue
			}
			// Blocked bots and closed chats are normal, keep going.
			if err := w.sender.SendText(userID, reminderText(kickoff.In(w.loc), missing)); err != nil {
				w.log.Warnw("reminder send failed", "user_id", userID, "error", err)
			}
		}
	}

	if err := w.settings.Set(ctx, key, "1"); err != nil {
		return false, err
	}
	return true, nil
}

func reminderText(kickoff time.Time, matches []models.Match) string {
	var b strings.Builder
	b.WriteString("⏰ До начала матчей 30 минут\n")
	fmt.Fprintf(&b, "Старт: %s МСК\n\n", kickoff.Format("02.01 15:04"))
	for _, m := range matches {
		fmt.Fprintf(&b, "• %s — %s\n", m.HomeTeam, m.AwayTeam)
	}
	b.WriteString("\nСтавка: нажми «🎯 Поставить прогноз»")
	return b.String()
}

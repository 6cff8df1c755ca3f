package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
)

func newRemindersFixture() (*ReminderWorker, *fakeSender, *fakeMatchesRepo, *fakeSettingsRepo, *fakePredictionsRepo, *fakeMembershipsRepo) {
	matches := newFakeMatchesRepo()
	memberships := &fakeMembershipsRepo{members: map[int64][]int64{}}
	predictions := &fakePredictionsRepo{}
	settings := newFakeSettingsRepo()
	sender := newFakeSender()

	w := NewReminderWorker(matches, memberships, predictions, settings, sender,
		testMSK, zap.NewNop().Sugar())
	w.timeNow = func() time.Time { return time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC) }
	return w, sender, matches, settings, predictions, memberships
}

func reminderMatch(id int64, kickoff time.Time, home, away string) models.Match {
	return models.Match{
		ID:           id,
		TournamentID: 1,
		RoundNumber:  21,
		HomeTeam:     home,
		AwayTeam:     away,
		KickoffAt:    kickoff,
		Source:       models.MatchSourceAPISport,
	}
}

func TestReminderKeyFormat(t *testing.T) {
	key := reminderKey(3, time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC), testMSK)
	assertEq(t, key, "RMD30_T3_202603141930")
}

func TestReminderTextFormat(t *testing.T) {
	text := reminderText(time.Date(2026, 3, 14, 19, 30, 0, 0, testMSK), []models.Match{
		{HomeTeam: "Зенит", AwayTeam: "Спартак"},
	})
	want := "⏰ До начала матчей 30 минут\n" +
		"Старт: 14.03 19:30 МСК\n\n" +
		"• Зенит — Спартак\n\n" +
		"Ставка: нажми «🎯 Поставить прогноз»"
	assertEq(t, text, want)
}

func TestRemindersSendOnlyMissing(t *testing.T) {
	w, sender, matches, settings, predictions, memberships := newRemindersFixture()
	kickoff := time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC)
	matches.window = []models.Match{
		reminderMatch(1, kickoff, "Зенит", "Спартак"),
		reminderMatch(2, kickoff, "ЦСКА", "Динамо"),
	}
	memberships.members[1] = []int64{100, 200}
	predictions.preds = []models.Prediction{
		{MatchID: 1, TelegramID: 100},
		{MatchID: 2, TelegramID: 100},
		{MatchID: 1, TelegramID: 200},
	}

	sent, err := w.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	assertEq(t, sent, 1)

	// 100 covered everything and stays quiet; 200 misses one match.
	assertEq(t, len(sender.sent[100]), 0)
	assertEq(t, len(sender.sent[200]), 1)
	text := sender.sent[200][0]
	if !strings.Contains(text, "ЦСКА — Динамо") {
		t.Fatalf("missing match absent from reminder: %q", text)
	}
	if strings.Contains(text, "Зенит — Спартак") {
		t.Fatalf("already predicted match in reminder: %q", text)
	}

	exists, _ := settings.Exists(context.Background(), "RMD30_T1_202603141930")
	assertEq(t, exists, true)

	// The batch is marked; a second tick sends nothing new.
	sent, err = w.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	assertEq(t, sent, 0)
	assertEq(t, len(sender.sent[200]), 1)
}

func TestRemindersGroupsByKickoff(t *testing.T) {
	w, sender, matches, settings, _, memberships := newRemindersFixture()
	first := time.Date(2026, 3, 14, 16, 29, 45, 0, time.UTC)
	second := time.Date(2026, 3, 14, 16, 30, 10, 0, time.UTC)
	matches.window = []models.Match{
		reminderMatch(1, first, "Зенит", "Спартак"),
		reminderMatch(2, second, "ЦСКА", "Динамо"),
	}
	memberships.members[1] = []int64{100}

	sent, err := w.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	assertEq(t, sent, 2)
	assertEq(t, len(sender.sent[100]), 2)
	assertEq(t, len(settings.values), 2)
}

func TestRemindersNoMembersStillMarks(t *testing.T) {
	w, sender, matches, settings, _, _ := newRemindersFixture()
	kickoff := time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC)
	matches.window = []models.Match{reminderMatch(1, kickoff, "Зенит", "Спартак")}

	sent, err := w.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	assertEq(t, sent, 1)
	assertEq(t, len(sender.sent), 0)

	exists, _ := settings.Exists(context.Background(), "RMD30_T1_202603141930")
	assertEq(t, exists, true)
}

func TestRemindersSendFailureContinues(t *testing.T) {
	w, sender, matches, settings, _, memberships := newRemindersFixture()
	kickoff := time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC)
	matches.window = []models.Match{reminderMatch(1, kickoff, "Зенит", "Спартак")}
	memberships.members[1] = []int64{100, 200}
	sender.failFor[100] = true

	sent, err := w.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	assertEq(t, sent, 1)
	assertEq(t, len(sender.sent[200]), 1)

	exists, _ := settings.Exists(context.Background(), "RMD30_T1_202603141930")
	assertEq(t, exists, true)
}

func TestRemindersOutsideWindow(t *testing.T) {
	w, sender, matches, _, _, memberships := newRemindersFixture()
	// 45 minutes ahead, outside the 30-minute window.
	matches.window = []models.Match{
		reminderMatch(1, time.Date(2026, 3, 14, 16, 45, 0, 0, time.UTC), "Зенит", "Спартак"),
	}
	memberships.members[1] = []int64{100}

	sent, err := w.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	assertEq(t, sent, 0)
	assertEq(t, len(sender.sent), 0)
}

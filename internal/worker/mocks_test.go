package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
)

// In-memory fakes. Embedding the interface keeps them small: only the
// methods the workers call are implemented.

type fakeSettingsRepo struct {
	repository.SettingsRepository
	values map[string]string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{values: map[string]string{}}
}

func (f *fakeSettingsRepo) Get(ctx context.Context, key string) (*models.Setting, error) {
	v, ok := f.values[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.Setting{Key: key, Value: v}, nil
}

func (f *fakeSettingsRepo) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettingsRepo) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.values[key]
	return ok, nil
}

type fakeMatchesRepo struct {
	repository.MatchesRepository
	byFixture  map[int64]*models.Match
	created    []models.Match
	patched    map[int64]models.MatchPatch
	window     []models.Match
	candidates []models.Match
	results    map[int64][2]int
}

func newFakeMatchesRepo() *fakeMatchesRepo {
	return &fakeMatchesRepo{
		byFixture: map[int64]*models.Match{},
		patched:   map[int64]models.MatchPatch{},
		results:   map[int64][2]int{},
	}
}

func (f *fakeMatchesRepo) GetByAPIFixtureID(ctx context.Context, fixtureID int64) (*models.Match, error) {
	m, ok := f.byFixture[fixtureID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatchesRepo) Create(ctx context.Context, match models.Match) (int64, error) {
	match.ID = int64(len(f.created) + 1)
	f.created = append(f.created, match)
	return match.ID, nil
}

func (f *fakeMatchesRepo) Update(ctx context.Context, id int64, patch models.MatchPatch) error {
	f.patched[id] = patch
	return nil
}

func (f *fakeMatchesRepo) SetResult(ctx context.Context, id int64, homeScore, awayScore int) error {
	f.results[id] = [2]int{homeScore, awayScore}
	return nil
}

func (f *fakeMatchesRepo) ListKickoffBetween(ctx context.Context, from, to time.Time) ([]models.Match, error) {
	var out []models.Match
	for _, m := range f.window {
		if !m.KickoffAt.Before(from) && m.KickoffAt.Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMatchesRepo) ListResultCandidates(ctx context.Context, from, to, now time.Time) ([]models.Match, error) {
	return f.candidates, nil
}

type fakeTournamentsRepo struct {
	repository.TournamentsRepository
}

func (f *fakeTournamentsRepo) GetByCode(ctx context.Context, code string) (*models.Tournament, error) {
	return &models.Tournament{ID: 1, Code: code, Name: "РПЛ"}, nil
}

type fakeMembershipsRepo struct {
	repository.MembershipsRepository
	members map[int64][]int64
}

func (f *fakeMembershipsRepo) ListTelegramIDs(ctx context.Context, tournamentID int64) ([]int64, error) {
	return f.members[tournamentID], nil
}

type fakePredictionsRepo struct {
	repository.PredictionsRepository
	preds []models.Prediction
}

func (f *fakePredictionsRepo) ListByMatches(ctx context.Context, matchIDs []int64) ([]models.Prediction, error) {
	wanted := make(map[int64]bool, len(matchIDs))
	for _, id := range matchIDs {
		wanted[id] = true
	}
	var out []models.Prediction
	for _, p := range f.preds {
		if wanted[p.MatchID] {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeFeed struct {
	days       map[string]any
	byID       map[int64]any
	failFor    map[int64]bool
	daysCalled []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{days: map[string]any{}, byID: map[int64]any{}, failFor: map[int64]bool{}}
}

func (f *fakeFeed) ListMatches(ctx context.Context, day string, tournamentID, seasonID int64) (any, error) {
	f.daysCalled = append(f.daysCalled, day)
	if p, ok := f.days[day]; ok {
		return p, nil
	}
	return []any{}, nil
}

func (f *fakeFeed) GetMatch(ctx context.Context, id int64) (any, error) {
	if f.failFor[id] {
		return nil, fmt.Errorf("feed down")
	}
	return f.byID[id], nil
}

type fakeSender struct {
	sent    map[int64][]string
	failFor map[int64]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: map[int64][]string{}, failFor: map[int64]bool{}}
}

func (f *fakeSender) SendText(chatID int64, text string) error {
	if f.failFor[chatID] {
		return fmt.Errorf("blocked")
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

type fakeScoring struct {
	recomputed []int64
}

func (f *fakeScoring) RecomputeForMatch(ctx context.Context, matchID int64) (int, error) {
	f.recomputed = append(f.recomputed, matchID)
	return 1, nil
}

func (f *fakeScoring) RecomputeAll(ctx context.Context) (int, error) {
	return 0, nil
}

// --- small helpers ---

func feedPayload(t *testing.T, raw string) any {
	t.Helper()
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return payload
}

func assertEq[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func assertTime(t *testing.T, got, want time.Time) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

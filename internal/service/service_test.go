package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/scoring"
)

// In-memory fakes. Embedding the interface keeps them small: only the
// methods the tested code calls are implemented.

type fakeMatchesRepo struct {
	repository.MatchesRepository
	matches   map[int64]models.Match
	roundEnds []models.RoundEnd
}

func (f *fakeMatchesRepo) Get(_ context.Context, id int64) (*models.Match, error) {
	match, ok := f.matches[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &match, nil
}

func (f *fakeMatchesRepo) ListFinalized(_ context.Context) ([]models.Match, error) {
	var items []models.Match
	for _, match := range f.matches {
		if match.HasResult() {
			items = append(items, match)
		}
	}
	return items, nil
}

func (f *fakeMatchesRepo) ListRoundEnds(_ context.Context, _ int64) ([]models.RoundEnd, error) {
	return f.roundEnds, nil
}

type fakePredictionsRepo struct {
	repository.PredictionsRepository
	byMatch map[int64][]models.Prediction
}

func (f *fakePredictionsRepo) ListByMatch(_ context.Context, matchID int64) ([]models.Prediction, error) {
	return f.byMatch[matchID], nil
}

type pointKey struct {
	matchID    int64
	telegramID int64
}

type fakePointsRepo struct {
	repository.PointsRepository
	rows       map[pointKey]models.Point
	reconciles int
	failFor    int64
}

func (f *fakePointsRepo) Reconcile(_ context.Context, matchID int64, entries []models.Point) error {
	if f.failFor != 0 && f.failFor == matchID {
		return fmt.Errorf("storage down")
	}
	f.reconciles++
	for _, entry := range entries {
		f.rows[pointKey{matchID, entry.TelegramID}] = entry
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(action string, entity string, entityID int64, adminID int64, status string) {}
func (nopLogger) Error(err error, action string, entity string, entityID int64, adminID int64)    {}

func newScoringFixture() (*fakeMatchesRepo, *fakePredictionsRepo, *fakePointsRepo, ScoringService) {
	matches := &fakeMatchesRepo{matches: map[int64]models.Match{}}
	predictions := &fakePredictionsRepo{byMatch: map[int64][]models.Prediction{}}
	points := &fakePointsRepo{rows: map[pointKey]models.Point{}}
	return matches, predictions, points, NewScoringService(matches, predictions, points, nopLogger{})
}

func intPtr(v int) *int { return &v }

func TestRecomputeForMatchMissing(t *testing.T) {
	_, _, _, svc := newScoringFixture()

	_, err := svc.RecomputeForMatch(context.Background(), 42)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRecomputeForMatchWithoutResult(t *testing.T) {
	matches, predictions, points, svc := newScoringFixture()
	matches.matches[1] = models.Match{ID: 1}
	predictions.byMatch[1] = []models.Prediction{
		{MatchID: 1, TelegramID: 10, PredHome: 1, PredAway: 0},
	}

	count, err := svc.RecomputeForMatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEq(t, count, 0)
	assertEq(t, points.reconciles, 0)
	assertEq(t, len(points.rows), 0)
}

func TestRecomputeForMatchGradesEveryPrediction(t *testing.T) {
	matches, predictions, points, svc := newScoringFixture()
	matches.matches[1] = models.Match{ID: 1, HomeScore: intPtr(2), AwayScore: intPtr(1)}
	predictions.byMatch[1] = []models.Prediction{
		{MatchID: 1, TelegramID: 10, PredHome: 2, PredAway: 1},
		{MatchID: 1, TelegramID: 11, PredHome: 3, PredAway: 2},
		{MatchID: 1, TelegramID: 12, PredHome: 0, PredAway: 3},
	}

	count, err := svc.RecomputeForMatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A miss is still a processed prediction.
	assertEq(t, count, 3)
	assertEq(t, len(points.rows), 3)

	exact := points.rows[pointKey{1, 10}]
	assertEq(t, exact.Points, scoring.PointsExact)
	assertEq(t, exact.Category, string(scoring.CategoryExact))

	diff := points.rows[pointKey{1, 11}]
	assertEq(t, diff.Points, scoring.PointsDifference)
	assertEq(t, diff.Category, string(scoring.CategoryDifference))

	miss := points.rows[pointKey{1, 12}]
	assertEq(t, miss.Points, scoring.PointsMiss)
	assertEq(t, miss.Category, string(scoring.CategoryMiss))
}

func TestRecomputeForMatchIdempotent(t *testing.T) {
	matches, predictions, points, svc := newScoringFixture()
	matches.matches[1] = models.Match{ID: 1, HomeScore: intPtr(1), AwayScore: intPtr(1)}
	predictions.byMatch[1] = []models.Prediction{
		{MatchID: 1, TelegramID: 10, PredHome: 2, PredAway: 2},
		{MatchID: 1, TelegramID: 11, PredHome: 1, PredAway: 0},
	}

	first, err := svc.RecomputeForMatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	snapshot := make(map[pointKey]models.Point, len(points.rows))
	for k, v := range points.rows {
		snapshot[k] = v
	}

	second, err := svc.RecomputeForMatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	assertEq(t, first, second)
	assertEq(t, len(points.rows), len(snapshot))
	for k, want := range snapshot {
		assertEq(t, points.rows[k], want)
	}
}

func TestRecomputeForMatchConvergesAfterCorrection(t *testing.T) {
	matches, predictions, points, svc := newScoringFixture()
	matches.matches[1] = models.Match{ID: 1, HomeScore: intPtr(2), AwayScore: intPtr(0)}
	predictions.byMatch[1] = []models.Prediction{
		{MatchID: 1, TelegramID: 10, PredHome: 2, PredAway: 0},
	}

	if _, err := svc.RecomputeForMatch(context.Background(), 1); err != nil {
		t.Fatalf("initial run: %v", err)
	}
	assertEq(t, points.rows[pointKey{1, 10}].Points, scoring.PointsExact)

	// The result turns out to have been entered wrong.
	matches.matches[1] = models.Match{ID: 1, HomeScore: intPtr(0), AwayScore: intPtr(2)}
	if _, err := svc.RecomputeForMatch(context.Background(), 1); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	corrected := points.rows[pointKey{1, 10}]
	assertEq(t, corrected.Points, scoring.PointsMiss)
	assertEq(t, corrected.Category, string(scoring.CategoryMiss))
	assertEq(t, len(points.rows), 1)
}

func TestRecomputeAllSumsProcessed(t *testing.T) {
	matches, predictions, _, svc := newScoringFixture()
	matches.matches[1] = models.Match{ID: 1, HomeScore: intPtr(1), AwayScore: intPtr(0)}
	matches.matches[2] = models.Match{ID: 2, HomeScore: intPtr(3), AwayScore: intPtr(3)}
	matches.matches[3] = models.Match{ID: 3} // still open, must not count
	predictions.byMatch[1] = []models.Prediction{
		{MatchID: 1, TelegramID: 10, PredHome: 1, PredAway: 0},
		{MatchID: 1, TelegramID: 11, PredHome: 0, PredAway: 0},
	}
	predictions.byMatch[2] = []models.Prediction{
		{MatchID: 2, TelegramID: 10, PredHome: 2, PredAway: 2},
		{MatchID: 2, TelegramID: 11, PredHome: 3, PredAway: 3},
		{MatchID: 2, TelegramID: 12, PredHome: 1, PredAway: 0},
	}
	predictions.byMatch[3] = []models.Prediction{
		{MatchID: 3, TelegramID: 10, PredHome: 1, PredAway: 1},
	}

	total, err := svc.RecomputeAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEq(t, total, 5)
}

func TestRecomputeAllContinuesOnFailure(t *testing.T) {
	matches, predictions, points, svc := newScoringFixture()
	matches.matches[1] = models.Match{ID: 1, HomeScore: intPtr(1), AwayScore: intPtr(0)}
	matches.matches[2] = models.Match{ID: 2, HomeScore: intPtr(0), AwayScore: intPtr(0)}
	predictions.byMatch[1] = []models.Prediction{
		{MatchID: 1, TelegramID: 10, PredHome: 1, PredAway: 0},
	}
	predictions.byMatch[2] = []models.Prediction{
		{MatchID: 2, TelegramID: 10, PredHome: 0, PredAway: 0},
		{MatchID: 2, TelegramID: 11, PredHome: 2, PredAway: 1},
	}
	points.failFor = 1

	total, err := svc.RecomputeAll(context.Background())
	if err == nil {
		t.Fatal("want partial-run error, got nil")
	}
	assertEq(t, total, 2)
	assertEq(t, len(points.rows), 2)
}

func TestDefaultRoundFollowsSchedule(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, time.March, d, 18, 0, 0, 0, time.UTC)
	}
	tournament := &models.Tournament{ID: 1, RoundMin: 19, RoundMax: 30}
	repo := &fakeMatchesRepo{roundEnds: []models.RoundEnd{
		{RoundNumber: 5, EndsAt: day(1)}, // outside the window, ignored
		{RoundNumber: 19, EndsAt: day(3)},
		{RoundNumber: 20, EndsAt: day(10)},
		{RoundNumber: 21, EndsAt: day(17)},
	}}
	svc := &matchesService{repo: repo}

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before season", day(1), 19},
		{"round end is inclusive", day(3), 19},
		{"mid season", day(4), 20},
		{"after last round", day(20), 21},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc.timeNow = func() time.Time { return tc.now }
			round, err := svc.DefaultRound(context.Background(), tournament)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertEq(t, round, tc.want)
		})
	}

	empty := &matchesService{repo: &fakeMatchesRepo{}, timeNow: time.Now}
	round, err := empty.DefaultRound(context.Background(), tournament)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEq(t, round, 19)
}

func TestStreaks(t *testing.T) {
	cases := []struct {
		name     string
		timeline []int
		current  int
		best     int
	}{
		{"empty", nil, 0, 0},
		{"single scored", []int{2}, 1, 1},
		{"run broken at the end", []int{1, 1, 1, 0}, 0, 3},
		{"open run shorter than best", []int{4, 2, 4, 0, 1, 1}, 2, 3},
		{"all misses", []int{0, 0}, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			current, best := streaks(tc.timeline)
			assertEq(t, current, tc.current)
			assertEq(t, best, tc.best)
		})
	}
}

func TestNormalizeDisplayName(t *testing.T) {
	assertEq(t, NormalizeDisplayName("  Иван   Петров "), "Иван Петров")
	assertEq(t, NormalizeDisplayName("Иван"), "Иван")
	assertEq(t, NormalizeDisplayName("   "), "")
}

// --- small helpers ---

func assertEq[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

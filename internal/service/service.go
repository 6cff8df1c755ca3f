package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/scoring"
)

// Users ----------------------------------------------------------------------

type UsersService interface {
	Ensure(ctx context.Context, telegramID int64, username, fullName *string) error
	Get(ctx context.Context, telegramID int64) (*models.User, error)
	Remove(ctx context.Context, telegramID int64) error
}

type usersService struct {
	repo            repository.UsersRepository
	membershipsRepo repository.MembershipsRepository
	predictionsRepo repository.PredictionsRepository
	pointsRepo      repository.PointsRepository
}

func NewUsersService(
	repo repository.UsersRepository,
	memberships repository.MembershipsRepository,
	predictions repository.PredictionsRepository,
	points repository.PointsRepository,
) UsersService {
	return &usersService{
		repo:            repo,
		membershipsRepo: memberships,
		predictionsRepo: predictions,
		pointsRepo:      points,
	}
}

func (s *usersService) Ensure(ctx context.Context, telegramID int64, username, fullName *string) error {
	if telegramID == 0 {
		return fmt.Errorf("telegram_id: %w", models.ErrValidation)
	}
	return s.repo.Upsert(ctx, telegramID, username, fullName)
}

func (s *usersService) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.Get(ctx, telegramID)
}

// Remove deletes the user together with every prediction, point and
// membership they own.
func (s *usersService) Remove(ctx context.Context, telegramID int64) error {
	if _, err := s.repo.Get(ctx, telegramID); err != nil {
		return err
	}
	if err := s.predictionsRepo.Delete(ctx, telegramID); err != nil {
		return err
	}
	if err := s.pointsRepo.DeleteByUser(ctx, telegramID); err != nil {
		return err
	}
	if err := s.membershipsRepo.Delete(ctx, telegramID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, telegramID)
}

// Tournaments ----------------------------------------------------------------

const defaultTournamentCode = "RPL"

type TournamentsService interface {
	ListActive(ctx context.Context) ([]models.Tournament, error)
	Get(ctx context.Context, id int64) (*models.Tournament, error)
	GetByCode(ctx context.Context, code string) (*models.Tournament, error)
	SelectedFor(ctx context.Context, telegramID int64) (*models.Tournament, error)
	Select(ctx context.Context, telegramID int64, code string) (*models.Tournament, error)
}

type tournamentsService struct {
	repo         repository.TournamentsRepository
	settingsRepo repository.SettingsRepository
}

func NewTournamentsService(repo repository.TournamentsRepository, settings repository.SettingsRepository) TournamentsService {
	return &tournamentsService{repo: repo, settingsRepo: settings}
}

func selectedTournamentKey(telegramID int64) string {
	return fmt.Sprintf("USER_SELECTED_TOURNAMENT_%d", telegramID)
}

func (s *tournamentsService) ListActive(ctx context.Context) ([]models.Tournament, error) {
	return s.repo.ListActive(ctx)
}

func (s *tournamentsService) Get(ctx context.Context, id int64) (*models.Tournament, error) {
	return s.repo.Get(ctx, id)
}

func (s *tournamentsService) GetByCode(ctx context.Context, code string) (*models.Tournament, error) {
	return s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// SelectedFor resolves the tournament the user acts in. Unknown or missing
// selection falls back to the default tournament.
func (s *tournamentsService) SelectedFor(ctx context.Context, telegramID int64) (*models.Tournament, error) {
	code := defaultTournamentCode
	setting, err := s.settingsRepo.Get(ctx, selectedTournamentKey(telegramID))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if setting != nil && setting.Value != "" {
		code = setting.Value
	}

	tournament, err := s.GetByCode(ctx, code)
	if err == nil {
		return tournament, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return s.GetByCode(ctx, defaultTournamentCode)
}

func (s *tournamentsService) Select(ctx context.Context, telegramID int64, code string) (*models.Tournament, error) {
	tournament, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.settingsRepo.Set(ctx, selectedTournamentKey(telegramID), tournament.Code); err != nil {
		return nil, err
	}
	return tournament, nil
}

// Memberships ----------------------------------------------------------------

type MembershipsService interface {
	Join(ctx context.Context, telegramID, tournamentID int64, displayName string) (created bool, err error)
	IsMember(ctx context.Context, telegramID, tournamentID int64) (bool, error)
	Get(ctx context.Context, telegramID, tournamentID int64) (*models.Membership, error)
	ListTelegramIDs(ctx context.Context, tournamentID int64) ([]int64, error)
}

type membershipsService struct {
	repo repository.MembershipsRepository
}

func NewMembershipsService(repo repository.MembershipsRepository) MembershipsService {
	return &membershipsService{repo: repo}
}

// NormalizeDisplayName collapses inner whitespace and trims the edges.
func NormalizeDisplayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func (s *membershipsService) Join(ctx context.Context, telegramID, tournamentID int64, displayName string) (bool, error) {
	name := NormalizeDisplayName(displayName)
	if len([]rune(name)) < 2 || len([]rune(name)) > 24 {
		return false, fmt.Errorf("display_name: %w", models.ErrValidation)
	}
	return s.repo.Ensure(ctx, telegramID, tournamentID, &name)
}

func (s *membershipsService) IsMember(ctx context.Context, telegramID, tournamentID int64) (bool, error) {
	return s.repo.Exists(ctx, telegramID, tournamentID)
}

func (s *membershipsService) Get(ctx context.Context, telegramID, tournamentID int64) (*models.Membership, error) {
	return s.repo.Get(ctx, telegramID, tournamentID)
}

func (s *membershipsService) ListTelegramIDs(ctx context.Context, tournamentID int64) ([]int64, error) {
	return s.repo.ListTelegramIDs(ctx, tournamentID)
}

// Matches --------------------------------------------------------------------

type MatchesService interface {
	Get(ctx context.Context, id int64) (*models.Match, error)
	CreateManual(ctx context.Context, input CreateMatchInput) (int64, error)
	SetResult(ctx context.Context, id int64, homeScore, awayScore int) error
	ResetResult(ctx context.Context, id int64) error
	ListByRound(ctx context.Context, tournamentID int64, round int) ([]models.Match, error)
	ListUnfinishedByRound(ctx context.Context, tournamentID int64, round int) ([]models.Match, error)
	EarliestUnfinishedRound(ctx context.Context, tournamentID int64, notBefore *time.Time) (*int, error)
	DefaultRound(ctx context.Context, tournament *models.Tournament) (int, error)
	CountByTournament(ctx context.Context, tournamentID int64) (played int, total int, err error)
}

type CreateMatchInput struct {
	TournamentID int64
	RoundNumber  int
	HomeTeam     string
	AwayTeam     string
	KickoffAt    time.Time
}

type matchesService struct {
	repo            repository.MatchesRepository
	tournamentsRepo repository.TournamentsRepository
	pointsRepo      repository.PointsRepository
	timeNow         func() time.Time
}

func NewMatchesService(
	repo repository.MatchesRepository,
	tournaments repository.TournamentsRepository,
	points repository.PointsRepository,
) MatchesService {
	return &matchesService{
		repo:            repo,
		tournamentsRepo: tournaments,
		pointsRepo:      points,
		timeNow:         time.Now,
	}
}

func (s *matchesService) Get(ctx context.Context, id int64) (*models.Match, error) {
	return s.repo.Get(ctx, id)
}

func (s *matchesService) CreateManual(ctx context.Context, input CreateMatchInput) (int64, error) {
	if input.HomeTeam == "" {
		return 0, fmt.Errorf("home_team: %w", models.ErrValidation)
	}
	if input.AwayTeam == "" {
		return 0, fmt.Errorf("away_team: %w", models.ErrValidation)
	}
	if input.KickoffAt.IsZero() {
		return 0, fmt.Errorf("kickoff_at: %w", models.ErrValidation)
	}
	tournament, err := s.tournamentsRepo.Get(ctx, input.TournamentID)
	if err != nil {
		return 0, err
	}
	if !tournament.HasRound(input.RoundNumber) {
		return 0, fmt.Errorf("round %d outside %d..%d: %w",
			input.RoundNumber, tournament.RoundMin, tournament.RoundMax, models.ErrValidation)
	}
	match := models.Match{
		TournamentID: input.TournamentID,
		RoundNumber:  input.RoundNumber,
		HomeTeam:     input.HomeTeam,
		AwayTeam:     input.AwayTeam,
		KickoffAt:    input.KickoffAt.UTC(),
		Source:       models.MatchSourceManual,
	}
	return s.repo.Create(ctx, match)
}

func (s *matchesService) SetResult(ctx context.Context, id int64, homeScore, awayScore int) error {
	if homeScore < 0 || awayScore < 0 {
		return fmt.Errorf("score: %w", models.ErrValidation)
	}
	return s.repo.SetResult(ctx, id, homeScore, awayScore)
}

// ResetResult clears the final score and drops the derived points so the
// match is back in the not-played state.
func (s *matchesService) ResetResult(ctx context.Context, id int64) error {
	patch := models.MatchPatch{
		HomeScore: models.NewOptionalInt(nil),
		AwayScore: models.NewOptionalInt(nil),
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return err
	}
	return s.pointsRepo.DeleteByMatch(ctx, id)
}

func (s *matchesService) ListByRound(ctx context.Context, tournamentID int64, round int) ([]models.Match, error) {
	return s.repo.ListByRound(ctx, tournamentID, round)
}

func (s *matchesService) ListUnfinishedByRound(ctx context.Context, tournamentID int64, round int) ([]models.Match, error) {
	return s.repo.ListUnfinishedByRound(ctx, tournamentID, round)
}

func (s *matchesService) EarliestUnfinishedRound(ctx context.Context, tournamentID int64, notBefore *time.Time) (*int, error) {
	return s.repo.EarliestUnfinishedRound(ctx, tournamentID, notBefore)
}

// DefaultRound picks the first round of the schedule whose last kickoff is
// still ahead; past the season end it sticks to the last known round.
func (s *matchesService) DefaultRound(ctx context.Context, tournament *models.Tournament) (int, error) {
	ends, err := s.repo.ListRoundEnds(ctx, tournament.ID)
	if err != nil {
		return 0, err
	}

	var inWindow []models.RoundEnd
	for _, end := range ends {
		if tournament.HasRound(end.RoundNumber) {
			inWindow = append(inWindow, end)
		}
	}
	if len(inWindow) == 0 {
		return tournament.RoundMin, nil
	}

	now := s.timeNow().UTC()
	for _, end := range inWindow {
		if !now.After(end.EndsAt) {
			return end.RoundNumber, nil
		}
	}
	return inWindow[len(inWindow)-1].RoundNumber, nil
}

func (s *matchesService) CountByTournament(ctx context.Context, tournamentID int64) (int, int, error) {
	return s.repo.CountByTournament(ctx, tournamentID)
}

// Predictions ----------------------------------------------------------------

const maxGoals = 99

type PredictionsService interface {
	Submit(ctx context.Context, telegramID, matchID int64, predHome, predAway int) error
	ListByUserAndMatches(ctx context.Context, telegramID int64, matchIDs []int64) ([]models.Prediction, error)
	ListByMatches(ctx context.Context, matchIDs []int64) ([]models.Prediction, error)
	CountByUser(ctx context.Context, telegramID, tournamentID int64) (int, error)
}

type predictionsService struct {
	repo        repository.PredictionsRepository
	matchesRepo repository.MatchesRepository
	timeNow     func() time.Time
}

func NewPredictionsService(repo repository.PredictionsRepository, matches repository.MatchesRepository) PredictionsService {
	return &predictionsService{
		repo:        repo,
		matchesRepo: matches,
		timeNow:     time.Now,
	}
}

// Submit is create-or-replace. The lock is the kickoff: once the match has
// started the prediction cannot change anymore.
func (s *predictionsService) Submit(ctx context.Context, telegramID, matchID int64, predHome, predAway int) error {
	if predHome < 0 || predHome > maxGoals || predAway < 0 || predAway > maxGoals {
		return fmt.Errorf("score: %w", models.ErrValidation)
	}
	match, err := s.matchesRepo.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if match.KickedOff(s.timeNow().UTC()) {
		return fmt.Errorf("match already started: %w", models.ErrValidation)
	}
	return s.repo.Upsert(ctx, matchID, telegramID, predHome, predAway)
}

func (s *predictionsService) ListByUserAndMatches(ctx context.Context, telegramID int64, matchIDs []int64) ([]models.Prediction, error) {
	return s.repo.ListByUserAndMatches(ctx, telegramID, matchIDs)
}

func (s *predictionsService) ListByMatches(ctx context.Context, matchIDs []int64) ([]models.Prediction, error) {
	return s.repo.ListByMatches(ctx, matchIDs)
}

func (s *predictionsService) CountByUser(ctx context.Context, telegramID, tournamentID int64) (int, error) {
	return s.repo.CountByUser(ctx, telegramID, tournamentID)
}

// Scoring --------------------------------------------------------------------

// ScoringService recomputes derived points from predictions and final
// results. Recomputation is idempotent and safe to re-run at any moment:
// points are keyed by (match, user) and overwritten in place.
type ScoringService interface {
	RecomputeForMatch(ctx context.Context, matchID int64) (int, error)
	RecomputeAll(ctx context.Context) (int, error)
}

type scoringService struct {
	matchesRepo     repository.MatchesRepository
	predictionsRepo repository.PredictionsRepository
	pointsRepo      repository.PointsRepository
	logger          repository.Logger
}

func NewScoringService(
	matches repository.MatchesRepository,
	predictions repository.PredictionsRepository,
	points repository.PointsRepository,
	logger repository.Logger,
) ScoringService {
	return &scoringService{
		matchesRepo:     matches,
		predictionsRepo: predictions,
		pointsRepo:      points,
		logger:          logger,
	}
}

// RecomputeForMatch grades every prediction of the match against its final
// result and reconciles the point rows in one transaction. A match without
// a result is a no-op. Returns how many predictions were processed.
func (s *scoringService) RecomputeForMatch(ctx context.Context, matchID int64) (int, error) {
	match, err := s.matchesRepo.Get(ctx, matchID)
	if err != nil {
		return 0, err
	}
	if !match.HasResult() {
		return 0, nil
	}

	predictions, err := s.predictionsRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}
	if len(predictions) == 0 {
		return 0, nil
	}

	entries := make([]models.Point, 0, len(predictions))
	for _, prediction := range predictions {
		points, category := scoring.Classify(
			prediction.PredHome, prediction.PredAway,
			*match.HomeScore, *match.AwayScore,
		)
		entries = append(entries, models.Point{
			MatchID:    matchID,
			TelegramID: prediction.TelegramID,
			Points:     points,
			Category:   string(category),
		})
	}
	if err := s.pointsRepo.Reconcile(ctx, matchID, entries); err != nil {
		return 0, err
	}
	return len(predictions), nil
}

// RecomputeAll recomputes every match with a set result. A failing match is
// logged and skipped so one bad row cannot wedge the whole run; the error
// of a partial run is returned together with the processed count.
func (s *scoringService) RecomputeAll(ctx context.Context) (int, error) {
	matches, err := s.matchesRepo.ListFinalized(ctx)
	if err != nil {
		return 0, err
	}

	var total, failed int
	for _, match := range matches {
		count, err := s.RecomputeForMatch(ctx, match.ID)
		if err != nil {
			s.logger.Error(err, "recompute", "match", match.ID, 0)
			failed++
			continue
		}
		total += count
	}
	if failed > 0 {
		return total, fmt.Errorf("recompute: %d of %d matches failed", failed, len(matches))
	}
	return total, nil
}

// Stats ----------------------------------------------------------------------

type StatsService interface {
	OverallTable(ctx context.Context, tournamentID int64) (*TableData, error)
	RoundTable(ctx context.Context, tournamentID int64, round int) ([]models.LeaderboardRow, int, error)
	UserStats(ctx context.Context, tournamentID int64) ([]models.UserStatsRow, error)
	Profile(ctx context.Context, telegramID, tournamentID int64) (*ProfileData, error)
	UserRoundTotal(ctx context.Context, telegramID, tournamentID int64, round int) (int, error)
	UserPoints(ctx context.Context, telegramID int64, matchIDs []int64) ([]models.Point, error)
	Health(ctx context.Context) (HealthCounts, error)
}

// TableData is the overall standings page with its footer numbers.
type TableData struct {
	Rows         []models.LeaderboardRow
	Participants int
	Played       int
	Total        int
}

type ProfileData struct {
	Rank          int // 1-based position in overall standings, 0 when unranked
	Ranked        int
	Total         int
	Exact         int
	Difference    int
	Outcome       int
	Predictions   int
	CurrentStreak int
	BestStreak    int
	AvgPerRound   float64
	Form          []models.RoundPoints // up to the 3 most recent rounds
}

type HealthCounts struct {
	Users       int
	Matches     int
	Predictions int
	Points      int
}

const tablePageSize = 20

type statsService struct {
	pointsRepo      repository.PointsRepository
	matchesRepo     repository.MatchesRepository
	predictionsRepo repository.PredictionsRepository
	usersRepo       repository.UsersRepository
}

func NewStatsService(
	points repository.PointsRepository,
	matches repository.MatchesRepository,
	predictions repository.PredictionsRepository,
	users repository.UsersRepository,
) StatsService {
	return &statsService{
		pointsRepo:      points,
		matchesRepo:     matches,
		predictionsRepo: predictions,
		usersRepo:       users,
	}
}

func (s *statsService) OverallTable(ctx context.Context, tournamentID int64) (*TableData, error) {
	rows, err := s.pointsRepo.OverallLeaderboard(ctx, tournamentID, models.NewPagination(1, tablePageSize))
	if err != nil {
		return nil, err
	}
	participants, err := s.pointsRepo.CountParticipants(ctx, tournamentID, nil)
	if err != nil {
		return nil, err
	}
	played, total, err := s.matchesRepo.CountByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return &TableData{Rows: rows, Participants: participants, Played: played, Total: total}, nil
}

// RoundTable returns the full ordered round standings: the category tops
// need every row, not just the first page.
func (s *statsService) RoundTable(ctx context.Context, tournamentID int64, round int) ([]models.LeaderboardRow, int, error) {
	rows, err := s.pointsRepo.RoundLeaderboard(ctx, tournamentID, round)
	if err != nil {
		return nil, 0, err
	}
	participants, err := s.pointsRepo.CountParticipants(ctx, tournamentID, &round)
	if err != nil {
		return nil, 0, err
	}
	return rows, participants, nil
}

func (s *statsService) UserStats(ctx context.Context, tournamentID int64) ([]models.UserStatsRow, error) {
	return s.pointsRepo.UserStats(ctx, tournamentID, models.NewPagination(1, tablePageSize))
}

func (s *statsService) Profile(ctx context.Context, telegramID, tournamentID int64) (*ProfileData, error) {
	standings, err := s.pointsRepo.Standings(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	profile := &ProfileData{Ranked: len(standings)}
	for i, row := range standings {
		if row.TelegramID == telegramID {
			profile.Rank = i + 1
			profile.Total = row.Total
			profile.Exact = row.Exact
			profile.Difference = row.Difference
			profile.Outcome = row.Outcome
			break
		}
	}

	predictions, err := s.predictionsRepo.CountByUser(ctx, telegramID, tournamentID)
	if err != nil {
		return nil, err
	}
	profile.Predictions = predictions

	timeline, err := s.pointsRepo.UserPointsByKickoff(ctx, telegramID, tournamentID)
	if err != nil {
		return nil, err
	}
	profile.CurrentStreak, profile.BestStreak = streaks(timeline)

	roundTotals, err := s.pointsRepo.UserRoundTotals(ctx, telegramID, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(roundTotals) > 0 {
		profile.AvgPerRound = float64(profile.Total) / float64(len(roundTotals))
	}
	form := roundTotals
	if len(form) > 3 {
		form = form[len(form)-3:]
	}
	profile.Form = form

	return profile, nil
}

func (s *statsService) UserRoundTotal(ctx context.Context, telegramID, tournamentID int64, round int) (int, error) {
	return s.pointsRepo.UserRoundTotal(ctx, telegramID, tournamentID, round)
}

func (s *statsService) UserPoints(ctx context.Context, telegramID int64, matchIDs []int64) ([]models.Point, error) {
	return s.pointsRepo.ListByUserAndMatches(ctx, telegramID, matchIDs)
}

// streaks counts runs of scored matches (>0 points) in kickoff order:
// the run still open at the end and the longest one overall.
func streaks(timeline []int) (current, best int) {
	run := 0
	for _, points := range timeline {
		if points > 0 {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return run, best
}

func (s *statsService) Health(ctx context.Context) (HealthCounts, error) {
	var counts HealthCounts
	var err error
	if counts.Users, err = s.usersRepo.Count(ctx); err != nil {
		return counts, err
	}
	if counts.Matches, err = s.matchesRepo.Count(ctx); err != nil {
		return counts, err
	}
	if counts.Predictions, err = s.predictionsRepo.Count(ctx); err != nil {
		return counts, err
	}
	if counts.Points, err = s.pointsRepo.Count(ctx); err != nil {
		return counts, err
	}
	return counts, nil
}

// Settings -------------------------------------------------------------------

type SettingsService interface {
	SetWindow(ctx context.Context, start, end time.Time) error
	Window(ctx context.Context) (start, end time.Time, err error)
}

type settingsService struct {
	repo repository.SettingsRepository
}

func NewSettingsService(repo repository.SettingsRepository) SettingsService {
	return &settingsService{repo: repo}
}

func (s *settingsService) SetWindow(ctx context.Context, start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("window end before start: %w", models.ErrValidation)
	}
	if err := s.repo.Set(ctx, models.SettingTournamentStart, start.Format("2006-01-02")); err != nil {
		return err
	}
	return s.repo.Set(ctx, models.SettingTournamentEnd, end.Format("2006-01-02"))
}

func (s *settingsService) Window(ctx context.Context) (time.Time, time.Time, error) {
	start, err := s.windowDate(ctx, models.SettingTournamentStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := s.windowDate(ctx, models.SettingTournamentEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (s *settingsService) windowDate(ctx context.Context, key string) (time.Time, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.Parse("2006-01-02", setting.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return date, nil
}

// Sessions -------------------------------------------------------------------

type SessionService interface {
	Get(ctx context.Context, chatID int64) (*models.ChatSession, error)
	Save(ctx context.Context, session models.ChatSession) error
	Delete(ctx context.Context, chatID int64) error
}

type sessionService struct {
	repo repository.SessionsRepository
}

func NewSessionService(repo repository.SessionsRepository) SessionService {
	return &sessionService{repo: repo}
}

func (s *sessionService) Get(ctx context.Context, chatID int64) (*models.ChatSession, error) {
	session, err := s.repo.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Save(ctx context.Context, session models.ChatSession) error {
	return s.repo.Upsert(ctx, session)
}

func (s *sessionService) Delete(ctx context.Context, chatID int64) error {
	return s.repo.Delete(ctx, chatID)
}

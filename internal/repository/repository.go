package repository

import (
	"context"
	"time"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
)

type UsersRepository interface {
	Upsert(ctx context.Context, telegramID int64, username, fullName *string) error
	Get(ctx context.Context, telegramID int64) (*models.User, error)
	Delete(ctx context.Context, telegramID int64) error
	Count(ctx context.Context) (int, error)
}

type TournamentsRepository interface {
	ListActive(ctx context.Context) ([]models.Tournament, error)
	Get(ctx context.Context, id int64) (*models.Tournament, error)
	GetByCode(ctx context.Context, code string) (*models.Tournament, error)
}

// MembershipsRepository keeps the user-to-tournament links. Ensure is
// idempotent: an existing membership only refreshes its display name.
type MembershipsRepository interface {
	Ensure(ctx context.Context, telegramID, tournamentID int64, displayName *string) (created bool, err error)
	Exists(ctx context.Context, telegramID, tournamentID int64) (bool, error)
	Get(ctx context.Context, telegramID, tournamentID int64) (*models.Membership, error)
	ListTelegramIDs(ctx context.Context, tournamentID int64) ([]int64, error)
	Delete(ctx context.Context, telegramID int64) error
}

type MatchesRepository interface {
	Create(ctx context.Context, match models.Match) (int64, error)
	Get(ctx context.Context, id int64) (*models.Match, error)
	GetByAPIFixtureID(ctx context.Context, fixtureID int64) (*models.Match, error)
	Update(ctx context.Context, id int64, patch models.MatchPatch) error
	SetResult(ctx context.Context, id int64, homeScore, awayScore int) error
	ListByRound(ctx context.Context, tournamentID int64, round int) ([]models.Match, error)
	ListFinalized(ctx context.Context) ([]models.Match, error)
	ListResultCandidates(ctx context.Context, from, to, now time.Time) ([]models.Match, error)
	ListKickoffBetween(ctx context.Context, from, to time.Time) ([]models.Match, error)
	EarliestUnfinishedRound(ctx context.Context, tournamentID int64, notBefore *time.Time) (*int, error)
	ListUnfinishedByRound(ctx context.Context, tournamentID int64, round int) ([]models.Match, error)
	ListRoundEnds(ctx context.Context, tournamentID int64) ([]models.RoundEnd, error)
	CountByTournament(ctx context.Context, tournamentID int64) (played int, total int, err error)
	Count(ctx context.Context) (int, error)
}

type PredictionsRepository interface {
	Upsert(ctx context.Context, matchID, telegramID int64, predHome, predAway int) error
	ListByMatch(ctx context.Context, matchID int64) ([]models.Prediction, error)
	ListByUserAndMatches(ctx context.Context, telegramID int64, matchIDs []int64) ([]models.Prediction, error)
	ListByMatches(ctx context.Context, matchIDs []int64) ([]models.Prediction, error)
	Delete(ctx context.Context, telegramID int64) error
	Count(ctx context.Context) (int, error)
	CountByUser(ctx context.Context, telegramID, tournamentID int64) (int, error)
}

// PointsRepository owns the derived score rows. Reconcile applies one
// match's freshly classified values inside a single transaction with
// find-then-insert-or-update semantics keyed by (match_id, telegram_id).
type PointsRepository interface {
	Reconcile(ctx context.Context, matchID int64, entries []models.Point) error
	ListByUserAndMatches(ctx context.Context, telegramID int64, matchIDs []int64) ([]models.Point, error)
	DeleteByMatch(ctx context.Context, matchID int64) error
	DeleteByUser(ctx context.Context, telegramID int64) error
	Count(ctx context.Context) (int, error)
	OverallLeaderboard(ctx context.Context, tournamentID int64, p models.Pagination) ([]models.LeaderboardRow, error)
	RoundLeaderboard(ctx context.Context, tournamentID int64, round int) ([]models.LeaderboardRow, error)
	CountParticipants(ctx context.Context, tournamentID int64, round *int) (int, error)
	UserStats(ctx context.Context, tournamentID int64, p models.Pagination) ([]models.UserStatsRow, error)
	Standings(ctx context.Context, tournamentID int64) ([]models.LeaderboardRow, error)
	UserRoundTotal(ctx context.Context, telegramID, tournamentID int64, round int) (int, error)
	UserRoundTotals(ctx context.Context, telegramID, tournamentID int64) ([]models.RoundPoints, error)
	UserPointsByKickoff(ctx context.Context, telegramID, tournamentID int64) ([]int, error)
}

type SettingsRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Set(ctx context.Context, key, value string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type SessionsRepository interface {
	Get(ctx context.Context, chatID int64) (*models.ChatSession, error)
	Upsert(ctx context.Context, session models.ChatSession) error
	Delete(ctx context.Context, chatID int64) error
}

type Logger interface {
	Info(action string, entity string, entityID int64, adminID int64, status string)
	Error(err error, action string, entity string, entityID int64, adminID int64)
}

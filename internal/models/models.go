package models

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates absence of a record.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates uniqueness or state conflict.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates business rule violation.
	ErrValidation = errors.New("validation error")
)

type User struct {
	ID          int64     `json:"id"`
	TelegramID  int64     `json:"telegram_id"`
	Username    *string   `json:"username,omitempty"`
	FullName    *string   `json:"full_name,omitempty"`
	DisplayName *string   `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Tournament struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	RoundMin  int       `json:"round_min"`
	RoundMax  int       `json:"round_max"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t Tournament) HasRound(round int) bool {
	return round >= t.RoundMin && round <= t.RoundMax
}

// Membership ties a Telegram user to a tournament with the name shown in
// that tournament's tables.
type Membership struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	TournamentID int64     `json:"tournament_id"`
	DisplayName  *string   `json:"display_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type MatchSource string

const (
	MatchSourceManual   MatchSource = "manual"
	MatchSourceAPISport MatchSource = "apisport"
)

type Match struct {
	ID           int64       `json:"id"`
	TournamentID int64       `json:"tournament_id"`
	RoundNumber  int         `json:"round_number"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	KickoffAt    time.Time   `json:"kickoff_at"`
	HomeScore    *int        `json:"home_score,omitempty"`
	AwayScore    *int        `json:"away_score,omitempty"`
	Source       MatchSource `json:"source"`
	APIFixtureID *int64      `json:"api_fixture_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// HasResult reports whether the final score is fully set.
func (m Match) HasResult() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}

func (m Match) KickedOff(now time.Time) bool {
	return !m.KickoffAt.After(now)
}

type MatchPatch struct {
	RoundNumber *int
	HomeTeam    *string
	AwayTeam    *string
	KickoffAt   *time.Time
	Source      *MatchSource
	HomeScore   OptionalInt
	AwayScore   OptionalInt
}

type Prediction struct {
	ID         int64     `json:"id"`
	MatchID    int64     `json:"match_id"`
	TelegramID int64     `json:"telegram_id"`
	PredHome   int       `json:"pred_home"`
	PredAway   int       `json:"pred_away"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Point is the derived score of one prediction against one final result.
// One row per (match, user), rewritten on every recomputation.
type Point struct {
	ID         int64     `json:"id"`
	MatchID    int64     `json:"match_id"`
	TelegramID int64     `json:"telegram_id"`
	Points     int       `json:"points"`
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known settings keys. The sync window bounds which days the fixtures
// feed is asked about.
const (
	SettingTournamentStart = "TOURNAMENT_START_DATE"
	SettingTournamentEnd   = "TOURNAMENT_END_DATE"
)

// LeaderboardRow is one aggregated standings line. Name resolution order:
// membership display name, user display name, @username, full name, id.
type LeaderboardRow struct {
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Exact      int    `json:"exact"`
	Difference int    `json:"difference"`
	Outcome    int    `json:"outcome"`
}

type UserStatsRow struct {
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Exact      int    `json:"exact"`
	Difference int    `json:"difference"`
	Outcome    int    `json:"outcome"`
	Miss       int    `json:"miss"`
	Scored     int    `json:"scored"`
}

type RoundPoints struct {
	RoundNumber int `json:"round_number"`
	Points      int `json:"points"`
}

// RoundEnd pairs a round with the kickoff of its last match, used to pick
// the current round from the schedule.
type RoundEnd struct {
	RoundNumber int       `json:"round_number"`
	EndsAt      time.Time `json:"ends_at"`
}

type Pagination struct {
	Limit  int
	Offset int
}

func NewPagination(page, perPage int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	if page < 1 {
		page = 1
	}
	return Pagination{
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
}

type ChatSession struct {
	ChatID      int64
	CurrentFlow *string
	FlowState   []byte
	UpdatedAt   time.Time
}

type OptionalInt struct {
	Set   bool
	Value *int
}

func NewOptionalInt(v *int) OptionalInt {
	return OptionalInt{Set: true, Value: v}
}

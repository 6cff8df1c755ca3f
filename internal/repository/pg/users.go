package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
)

// Users -----------------------------------------------------------------------

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) repository.UsersRepository {
	return &UsersRepo{pool: pool}
}

func (r *UsersRepo) Upsert(ctx context.Context, telegramID int64, username, fullName *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (telegram_id, username, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id)
		DO UPDATE SET username = EXCLUDED.username,
		              full_name = EXCLUDED.full_name,
		              updated_at = NOW()`,
		telegramID, username, fullName,
	)
	return err
}

func (r *UsersRepo) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, telegram_id, username, full_name, display_name, created_at, updated_at
		FROM users
		WHERE telegram_id = $1`, telegramID)

	var (
		user     models.User
		username *string
		fullName *string
		display  *string
	)
	if err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&username,
		&fullName,
		&display,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	user.Username = username
	user.FullName = fullName
	user.DisplayName = display
	return &user, nil
}

func (r *UsersRepo) Delete(ctx context.Context, telegramID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Tournaments -----------------------------------------------------------------

type TournamentsRepo struct {
	pool *pgxpool.Pool
}

func NewTournamentsRepo(pool *pgxpool.Pool) repository.TournamentsRepository {
	return &TournamentsRepo{pool: pool}
}

func (r *TournamentsRepo) ListActive(ctx context.Context) ([]models.Tournament, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, round_min, round_max, active, created_at, updated_at
		FROM tournaments
		WHERE active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Tournament
	for rows.Next() {
		var tournament models.Tournament
		if err := rows.Scan(
			&tournament.ID,
			&tournament.Code,
			&tournament.Name,
			&tournament.RoundMin,
			&tournament.RoundMax,
			&tournament.Active,
			&tournament.CreatedAt,
			&tournament.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, tournament)
	}
	return items, rows.Err()
}

func (r *TournamentsRepo) Get(ctx context.Context, id int64) (*models.Tournament, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, name, round_min, round_max, active, created_at, updated_at
		FROM tournaments WHERE id = $1`, id)

	var tournament models.Tournament
	if err := row.Scan(
		&tournament.ID,
		&tournament.Code,
		&tournament.Name,
		&tournament.RoundMin,
		&tournament.RoundMax,
		&tournament.Active,
		&tournament.CreatedAt,
		&tournament.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &tournament, nil
}

func (r *TournamentsRepo) GetByCode(ctx context.Context, code string) (*models.Tournament, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, name, round_min, round_max, active, created_at, updated_at
		FROM tournaments WHERE code = $1`, code)

	var tournament models.Tournament
	if err := row.Scan(
		&tournament.ID,
		&tournament.Code,
		&tournament.Name,
		&tournament.RoundMin,
		&tournament.RoundMax,
		&tournament.Active,
		&tournament.CreatedAt,
		&tournament.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &tournament, nil
}

// Memberships -----------------------------------------------------------------

type MembershipsRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipsRepo(pool *pgxpool.Pool) repository.MembershipsRepository {
	return &MembershipsRepo{pool: pool}
}

func (r *MembershipsRepo) Ensure(ctx context.Context, telegramID, tournamentID int64, displayName *string) (bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM memberships
		WHERE telegram_id = $1 AND tournament_id = $2`,
		telegramID, tournamentID,
	).Scan(&id)
	switch {
	case err == pgx.ErrNoRows:
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO memberships (telegram_id, tournament_id, display_name)
			VALUES ($1, $2, $3)`,
			telegramID, tournamentID, displayName,
		); err != nil {
			return false, err
		}
		return true, nil
	case err != nil:
		return false, err
	}
	if displayName != nil {
		if _, err := r.pool.Exec(ctx, `
			UPDATE memberships SET display_name = $2 WHERE id = $1`,
			id, *displayName,
		); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (r *MembershipsRepo) Exists(ctx context.Context, telegramID, tournamentID int64) (bool, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM memberships
		WHERE telegram_id = $1 AND tournament_id = $2`,
		telegramID, tournamentID,
	).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MembershipsRepo) Get(ctx context.Context, telegramID, tournamentID int64) (*models.Membership, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, telegram_id, tournament_id, display_name, created_at
		FROM memberships
		WHERE telegram_id = $1 AND tournament_id = $2`,
		telegramID, tournamentID)

	var (
		membership models.Membership
		display    *string
	)
	if err := row.Scan(
		&membership.ID,
		&membership.TelegramID,
		&membership.TournamentID,
		&display,
		&membership.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	membership.DisplayName = display
	return &membership, nil
}

func (r *MembershipsRepo) ListTelegramIDs(ctx context.Context, tournamentID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT telegram_id FROM memberships
		WHERE tournament_id = $1
		ORDER BY telegram_id`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MembershipsRepo) Delete(ctx context.Context, telegramID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM memberships WHERE telegram_id = $1`, telegramID)
	return err
}

// Matches ---------------------------------------------------------------------

type MatchesRepo struct {
	pool *pgxpool.Pool
}

func NewMatchesRepo(pool *pgxpool.Pool) repository.MatchesRepository {
	return &MatchesRepo{pool: pool}
}

const matchColumns = `id, tournament_id, round_number, home_team, away_team, kickoff_at,
	       home_score, away_score, source, api_fixture_id, created_at, updated_at`

func scanMatch(row pgx.Row) (*models.Match, error) {
	var (
		match     models.Match
		homeScore *int
		awayScore *int
		source    string
		fixtureID *int64
	)
	if err := row.Scan(
		&match.ID,
		&match.TournamentID,
		&match.RoundNumber,
		&match.HomeTeam,
		&match.AwayTeam,
		&match.KickoffAt,
		&homeScore,
		&awayScore,
		&source,
		&fixtureID,
		&match.CreatedAt,
		&match.UpdatedAt,
	); err != nil {
		return nil, err
	}
	match.HomeScore = homeScore
	match.AwayScore = awayScore
	match.Source = models.MatchSource(source)
	match.APIFixtureID = fixtureID
	return &match, nil
}

func collectMatches(rows pgx.Rows) ([]models.Match, error) {
	defer rows.Close()

	var items []models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *match)
	}
	return items, rows.Err()
}

func (r *MatchesRepo) Create(ctx context.Context, match models.Match) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `
		INSERT INTO matches (tournament_id, round_number, home_team, away_team, kickoff_at, source, api_fixture_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		match.TournamentID,
		match.RoundNumber,
		match.HomeTeam,
		match.AwayTeam,
		match.KickoffAt,
		match.Source,
		match.APIFixtureID,
	).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *MatchesRepo) Get(ctx context.Context, id int64) (*models.Match, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+matchColumns+`
		FROM matches WHERE id = $1`, id)

	match, err := scanMatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *MatchesRepo) GetByAPIFixtureID(ctx context.Context, fixtureID int64) (*models.Match, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+matchColumns+`
		FROM matches WHERE api_fixture_id = $1`, fixtureID)

	match, err := scanMatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *MatchesRepo) Update(ctx context.Context, id int64, patch models.MatchPatch) error {
	set, args := buildUpdateSet([]column{
		{name: "round_number", value: patch.RoundNumber},
		{name: "home_team", value: patch.HomeTeam},
		{name: "away_team", value: patch.AwayTeam},
		{name: "kickoff_at", value: patch.KickoffAt},
		{name: "source", value: patch.Source},
		{name: "home_score", value: patch.HomeScore},
		{name: "away_score", value: patch.AwayScore},
	})
	if len(set) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE matches SET %s WHERE id=$%d", set, len(args)+1)
	args = append(args, id)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *MatchesRepo) SetResult(ctx context.Context, id int64, homeScore, awayScore int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE matches
		SET home_score = $2, away_score = $3, updated_at = NOW()
		WHERE id = $1`,
		id, homeScore, awayScore,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *MatchesRepo) ListByRound(ctx context.Context, tournamentID int64, round int) ([]models.Match, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE tournament_id = $1 AND round_number = $2
		ORDER BY kickoff_at, id`, tournamentID, round)
	if err != nil {
		return nil, err
	}
	return collectMatches(rows)
}

func (r *MatchesRepo) ListFinalized(ctx context.Context) ([]models.Match, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE home_score IS NOT NULL AND away_score IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectMatches(rows)
}

func (r *MatchesRepo) ListResultCandidates(ctx context.Context, from, to, now time.Time) ([]models.Match, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE source = $1
		  AND api_fixture_id IS NOT NULL
		  AND (home_score IS NULL OR away_score IS NULL)
		  AND kickoff_at <= $2
		  AND kickoff_at >= $3 AND kickoff_at <= $4
		ORDER BY kickoff_at, id`,
		models.MatchSourceAPISport, now, from, to)
	if err != nil {
		return nil, err
	}
	return collectMatches(rows)
}

func (r *MatchesRepo) ListKickoffBetween(ctx context.Context, from, to time.Time) ([]models.Match, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE kickoff_at >= $1 AND kickoff_at < $2
		ORDER BY kickoff_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	return collectMatches(rows)
}

func (r *MatchesRepo) EarliestUnfinishedRound(ctx context.Context, tournamentID int64, notBefore *time.Time) (*int, error) {
	query := `
		SELECT MIN(round_number) FROM matches
		WHERE tournament_id = $1 AND (home_score IS NULL OR away_score IS NULL)`
	args := []any{tournamentID}
	if notBefore != nil {
		query += " AND kickoff_at >= $2"
		args = append(args, *notBefore)
	}

	var round *int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&round); err != nil {
		return nil, err
	}
	return round, nil
}

func (r *MatchesRepo) ListUnfinishedByRound(ctx context.Context, tournamentID int64, round int) ([]models.Match, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE tournament_id = $1 AND round_number = $2
		  AND (home_score IS NULL OR away_score IS NULL)
		ORDER BY kickoff_at, id`, tournamentID, round)
	if err != nil {
		return nil, err
	}
	return collectMatches(rows)
}

func (r *MatchesRepo) ListRoundEnds(ctx context.Context, tournamentID int64) ([]models.RoundEnd, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT round_number, MAX(kickoff_at)
		FROM matches
		WHERE tournament_id = $1
		GROUP BY round_number
		ORDER BY round_number`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.RoundEnd
	for rows.Next() {
		var end models.RoundEnd
		if err := rows.Scan(&end.RoundNumber, &end.EndsAt); err != nil {
			return nil, err
		}
		items = append(items, end)
	}
	return items, rows.Err()
}

func (r *MatchesRepo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *MatchesRepo) CountByTournament(ctx context.Context, tournamentID int64) (int, int, error) {
	var played int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM matches
		WHERE tournament_id = $1
		  AND home_score IS NOT NULL AND away_score IS NOT NULL`,
		tournamentID,
	).Scan(&played); err != nil {
		return 0, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM matches WHERE tournament_id = $1`,
		tournamentID,
	).Scan(&total); err != nil {
		return 0, 0, err
	}
	return played, total, nil
}

// Predictions -----------------------------------------------------------------

type PredictionsRepo struct {
	pool *pgxpool.Pool
}

func NewPredictionsRepo(pool *pgxpool.Pool) repository.PredictionsRepository {
	return &PredictionsRepo{pool: pool}
}

func (r *PredictionsRepo) Upsert(ctx context.Context, matchID, telegramID int64, predHome, predAway int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO predictions (match_id, telegram_id, pred_home, pred_away)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id, telegram_id)
		DO UPDATE SET pred_home = EXCLUDED.pred_home,
		              pred_away = EXCLUDED.pred_away,
		              updated_at = NOW()`,
		matchID, telegramID, predHome, predAway,
	)
	return err
}

func collectPredictions(rows pgx.Rows) ([]models.Prediction, error) {
	defer rows.Close()

	var items []models.Prediction
	for rows.Next() {
		var prediction models.Prediction
		if err := rows.Scan(
			&prediction.ID,
			&prediction.MatchID,
			&prediction.TelegramID,
			&prediction.PredHome,
			&prediction.PredAway,
			&prediction.CreatedAt,
			&prediction.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, prediction)
	}
	return items, rows.Err()
}

func (r *PredictionsRepo) ListByMatch(ctx context.Context, matchID int64) ([]models.Prediction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, match_id, telegram_id, pred_home, pred_away, created_at, updated_at
		FROM predictions
		WHERE match_id = $1
		ORDER BY telegram_id`, matchID)
	if err != nil {
		return nil, err
	}
	return collectPredictions(rows)
}

func (r *PredictionsRepo) ListByUserAndMatches(ctx context.Context, telegramID int64, matchIDs []int64) ([]models.Prediction, error) {
	if len(matchIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, match_id, telegram_id, pred_home, pred_away, created_at, updated_at
		FROM predictions
		WHERE telegram_id = $1 AND match_id = ANY($2)
		ORDER BY match_id`, telegramID, matchIDs)
	if err != nil {
		return nil, err
	}
	return collectPredictions(rows)
}

func (r *PredictionsRepo) ListByMatches(ctx context.Context, matchIDs []int64) ([]models.Prediction, error) {
	if len(matchIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, match_id, telegram_id, pred_home, pred_away, created_at, updated_at
		FROM predictions
		WHERE match_id = ANY($1)
		ORDER BY match_id, telegram_id`, matchIDs)
	if err != nil {
		return nil, err
	}
	return collectPredictions(rows)
}

func (r *PredictionsRepo) Delete(ctx context.Context, telegramID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM predictions WHERE telegram_id = $1`, telegramID)
	return err
}

func (r *PredictionsRepo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PredictionsRepo) CountByUser(ctx context.Context, telegramID, tournamentID int64) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.telegram_id = $1 AND m.tournament_id = $2`,
		telegramID, tournamentID,
	).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Points ----------------------------------------------------------------------

type PointsRepo struct {
	pool *pgxpool.Pool
}

func NewPointsRepo(pool *pgxpool.Pool) repository.PointsRepository {
	return &PointsRepo{pool: pool}
}

func (r *PointsRepo) Reconcile(ctx context.Context, matchID int64, entries []models.Point) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, entry := range entries {
		var id int64
		err := tx.QueryRow(ctx, `
			SELECT id FROM points
			WHERE match_id = $1 AND telegram_id = $2`,
			matchID, entry.TelegramID,
		).Scan(&id)
		switch {
		case err == pgx.ErrNoRows:
			if _, err := tx.Exec(ctx, `
				INSERT INTO points (match_id, telegram_id, points, category)
				VALUES ($1, $2, $3, $4)`,
				matchID, entry.TelegramID, entry.Points, entry.Category,
			); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if _, err := tx.Exec(ctx, `
				UPDATE points
				SET points = $2, category = $3, updated_at = NOW()
				WHERE id = $1`,
				id, entry.Points, entry.Category,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *PointsRepo) ListByUserAndMatches(ctx context.Context, telegramID int64, matchIDs []int64) ([]models.Point, error) {
	if len(matchIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, match_id, telegram_id, points, category, created_at, updated_at
		FROM points
		WHERE telegram_id = $1 AND match_id = ANY($2)
		ORDER BY match_id`, telegramID, matchIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Point
	for rows.Next() {
		var point models.Point
		if err := rows.Scan(
			&point.ID,
			&point.MatchID,
			&point.TelegramID,
			&point.Points,
			&point.Category,
			&point.CreatedAt,
			&point.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, point)
	}
	return items, rows.Err()
}

func (r *PointsRepo) DeleteByMatch(ctx context.Context, matchID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM points WHERE match_id = $1`, matchID)
	return err
}

func (r *PointsRepo) DeleteByUser(ctx context.Context, telegramID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM points WHERE telegram_id = $1`, telegramID)
	return err
}

func (r *PointsRepo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM points`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// resolvedName is the display name precedence used by every standings query.
const resolvedName = `COALESCE(mb.display_name, u.display_name, '@' || u.username, u.full_name, p.telegram_id::TEXT)`

const leaderboardSelect = `
	SELECT p.telegram_id,
	       ` + resolvedName + ` AS name,
	       COALESCE(SUM(p.points), 0) AS total,
	       COUNT(*) FILTER (WHERE p.category = 'exact') AS exact,
	       COUNT(*) FILTER (WHERE p.category = 'diff') AS diff,
	       COUNT(*) FILTER (WHERE p.category = 'outcome') AS outcome
	FROM points p
	JOIN matches m ON m.id = p.match_id
	LEFT JOIN users u ON u.telegram_id = p.telegram_id
	LEFT JOIN memberships mb ON mb.telegram_id = p.telegram_id AND mb.tournament_id = m.tournament_id`

const leaderboardGroupOrder = `
	GROUP BY p.telegram_id, mb.display_name, u.display_name, u.username, u.full_name
	ORDER BY total DESC, exact DESC, diff DESC, outcome DESC, name`

func collectLeaderboard(rows pgx.Rows) ([]models.LeaderboardRow, error) {
	defer rows.Close()

	var items []models.LeaderboardRow
	for rows.Next() {
		var row models.LeaderboardRow
		if err := rows.Scan(
			&row.TelegramID,
			&row.Name,
			&row.Total,
			&row.Exact,
			&row.Difference,
			&row.Outcome,
		); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *PointsRepo) OverallLeaderboard(ctx context.Context, tournamentID int64, p models.Pagination) ([]models.LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx,
		leaderboardSelect+`
		WHERE m.tournament_id = $1`+leaderboardGroupOrder+`
		LIMIT $2 OFFSET $3`,
		tournamentID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return collectLeaderboard(rows)
}

func (r *PointsRepo) RoundLeaderboard(ctx context.Context, tournamentID int64, round int) ([]models.LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx,
		leaderboardSelect+`
		WHERE m.tournament_id = $1 AND m.round_number = $2`+leaderboardGroupOrder,
		tournamentID, round)
	if err != nil {
		return nil, err
	}
	return collectLeaderboard(rows)
}

func (r *PointsRepo) Standings(ctx context.Context, tournamentID int64) ([]models.LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx,
		leaderboardSelect+`
		WHERE m.tournament_id = $1`+leaderboardGroupOrder,
		tournamentID)
	if err != nil {
		return nil, err
	}
	return collectLeaderboard(rows)
}

func (r *PointsRepo) CountParticipants(ctx context.Context, tournamentID int64, round *int) (int, error) {
	query := `
		SELECT COUNT(DISTINCT p.telegram_id)
		FROM points p
		JOIN matches m ON m.id = p.match_id
		WHERE m.tournament_id = $1`
	args := []any{tournamentID}
	if round != nil {
		query += " AND m.round_number = $2"
		args = append(args, *round)
	}

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PointsRepo) UserStats(ctx context.Context, tournamentID int64, p models.Pagination) ([]models.UserStatsRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.telegram_id,
		       `+resolvedName+` AS name,
		       COALESCE(SUM(p.points), 0) AS total,
		       COUNT(*) FILTER (WHERE p.category = 'exact') AS exact,
		       COUNT(*) FILTER (WHERE p.category = 'diff') AS diff,
		       COUNT(*) FILTER (WHERE p.category = 'outcome') AS outcome,
		       COUNT(*) FILTER (WHERE p.category = 'none') AS miss,
		       COUNT(*) AS scored
		FROM points p
		JOIN matches m ON m.id = p.match_id
		LEFT JOIN users u ON u.telegram_id = p.telegram_id
		LEFT JOIN memberships mb ON mb.telegram_id = p.telegram_id AND mb.tournament_id = m.tournament_id
		WHERE m.tournament_id = $1
		GROUP BY p.telegram_id, mb.display_name, u.display_name, u.username, u.full_name
		ORDER BY total DESC, exact DESC, diff DESC, outcome DESC, name
		LIMIT $2 OFFSET $3`,
		tournamentID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.UserStatsRow
	for rows.Next() {
		var row models.UserStatsRow
		if err := rows.Scan(
			&row.TelegramID,
			&row.Name,
			&row.Total,
			&row.Exact,
			&row.Difference,
			&row.Outcome,
			&row.Miss,
			&row.Scored,
		); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *PointsRepo) UserRoundTotal(ctx context.Context, telegramID, tournamentID int64, round int) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.points), 0)
		FROM points p
		JOIN matches m ON m.id = p.match_id
		WHERE p.telegram_id = $1 AND m.tournament_id = $2 AND m.round_number = $3`,
		telegramID, tournamentID, round,
	).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PointsRepo) UserRoundTotals(ctx context.Context, telegramID, tournamentID int64) ([]models.RoundPoints, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.round_number, COALESCE(SUM(p.points), 0)
		FROM points p
		JOIN matches m ON m.id = p.match_id
		WHERE p.telegram_id = $1 AND m.tournament_id = $2
		GROUP BY m.round_number
		ORDER BY m.round_number`, telegramID, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.RoundPoints
	for rows.Next() {
		var rp models.RoundPoints
		if err := rows.Scan(&rp.RoundNumber, &rp.Points); err != nil {
			return nil, err
		}
		items = append(items, rp)
	}
	return items, rows.Err()
}

func (r *PointsRepo) UserPointsByKickoff(ctx context.Context, telegramID, tournamentID int64) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.points
		FROM points p
		JOIN matches m ON m.id = p.match_id
		WHERE p.telegram_id = $1 AND m.tournament_id = $2
		ORDER BY m.kickoff_at, m.id`, telegramID, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []int
	for rows.Next() {
		var pts int
		if err := rows.Scan(&pts); err != nil {
			return nil, err
		}
		points = append(points, pts)
	}
	return points, rows.Err()
}

// Settings --------------------------------------------------------------------

type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) repository.SettingsRepository {
	return &SettingsRepo{pool: pool}
}

func (r *SettingsRepo) Get(ctx context.Context, key string) (*models.Setting, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT key, value, updated_at FROM settings WHERE key = $1`, key)

	var setting models.Setting
	if err := row.Scan(&setting.Key, &setting.Value, &setting.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &setting, nil
}

func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value,
		              updated_at = NOW()`,
		key, value,
	)
	return err
}

func (r *SettingsRepo) Exists(ctx context.Context, key string) (bool, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM settings WHERE key = $1`, key,
	).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Sessions --------------------------------------------------------------------

type SessionsRepo struct {
	pool *pgxpool.Pool
}

func NewSessionsRepo(pool *pgxpool.Pool) repository.SessionsRepository {
	return &SessionsRepo{pool: pool}
}

func (r *SessionsRepo) Get(ctx context.Context, chatID int64) (*models.ChatSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT chat_id, current_flow, flow_state, updated_at
		FROM chat_sessions
		WHERE chat_id = $1`, chatID)
	var (
		session models.ChatSession
		flow    *string
		state   []byte
	)
	if err := row.Scan(
		&session.ChatID,
		&flow,
		&state,
		&session.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	session.CurrentFlow = flow
	session.FlowState = state
	return &session, nil
}

func (r *SessionsRepo) Upsert(ctx context.Context, session models.ChatSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_sessions (chat_id, current_flow, flow_state, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (chat_id)
		DO UPDATE SET current_flow = EXCLUDED.current_flow,
		              flow_state = EXCLUDED.flow_state,
		              updated_at = NOW()`,
		session.ChatID,
		session.CurrentFlow,
		session.FlowState,
	)
	return err
}

func (r *SessionsRepo) Delete(ctx context.Context, chatID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM chat_sessions WHERE chat_id = $1`, chatID)
	return err
}

// Shared helpers -------------------------------------------------------------

type column struct {
	name  string
	value any
}

func buildUpdateSet(cols []column) (string, []any) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)
	for _, col := range cols {
		switch v := col.value.(type) {
		case nil:
			continue
		case *string:
			if v == nil {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s=$%d", col.name, idx))
			args = append(args, *v)
			idx++
		case *int:
			if v == nil {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s=$%d", col.name, idx))
			args = append(args, *v)
			idx++
		case *time.Time:
			if v == nil {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s=$%d", col.name, idx))
			args = append(args, *v)
			idx++
		case *models.MatchSource:
			if v == nil {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s=$%d", col.name, idx))
			args = append(args, *v)
			idx++
		case models.OptionalInt:
			if !v.Set {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s=$%d", col.name, idx))
			args = append(args, v.Value)
			idx++
		default:
			clauses = append(clauses, fmt.Sprintf("%s=$%d", col.name, idx))
			args = append(args, v)
			idx++
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	clauses = append(clauses, "updated_at=NOW()")
	return strings.Join(clauses, ", "), args
}

package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

type Settings struct {
	BotToken string
	DBDSN    string
	AdminIDs []int64
	Location *time.Location

	APISport APISportSettings
	Sync     SyncSettings
}

// APISportSettings is the external fixtures feed access. The feed is
// optional; without it only reminders run.
type APISportSettings struct {
	APIKey       string
	BaseURL      string
	TournamentID int64
	SeasonID     int64
}

func (s APISportSettings) Enabled() bool {
	return s.APIKey != "" && s.TournamentID != 0 && s.SeasonID != 0
}

type SyncSettings struct {
	TournamentCode string
	FixturesEvery  time.Duration
	ResultsEvery   time.Duration
	RemindersEvery time.Duration
	LookbackDays   int
	LookaheadDays  int

	// Season window fallbacks, YYYY-MM-DD. The values in the settings
	// table win when an admin has set them.
	WindowStart string
	WindowEnd   string
}

func Load(ctx context.Context) (*Settings, *pgxpool.Pool, error) {
	_ = godotenv.Load()

	set := &Settings{}
	set.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if set.BotToken == "" {
		return nil, nil, fmt.Errorf("BOT_TOKEN is required")
	}

	set.DBDSN = strings.TrimSpace(os.Getenv("DB_DSN"))
	if set.DBDSN == "" {
		return nil, nil, fmt.Errorf("DB_DSN is required")
	}

	adminRaw := strings.TrimSpace(os.Getenv("ADMIN_IDS"))
	if adminRaw == "" {
		return nil, nil, fmt.Errorf("ADMIN_IDS is required")
	}
	for _, part := range strings.Split(adminRaw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		val, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		set.AdminIDs = append(set.AdminIDs, val)
	}
	if len(set.AdminIDs) == 0 {
		return nil, nil, fmt.Errorf("ADMIN_IDS must contain at least one value")
	}

	location, err := time.LoadLocation(getEnv("CLUB_TZ", "Europe/Moscow"))
	if err != nil {
		return nil, nil, fmt.Errorf("load CLUB_TZ: %w", err)
	}
	set.Location = location

	set.APISport = APISportSettings{
		APIKey:       strings.TrimSpace(os.Getenv("APISPORT_API_KEY")),
		BaseURL:      getEnv("APISPORT_BASE_URL", "https://api.api-sport.ru/v2"),
		TournamentID: getEnvInt64("APISPORT_TOURNAMENT_ID", 0),
		SeasonID:     getEnvInt64("APISPORT_SEASON_ID", 0),
	}

	set.Sync = SyncSettings{
		TournamentCode: getEnv("SYNC_TOURNAMENT_CODE", "RPL"),
		FixturesEvery:  getEnvDuration("SYNC_FIXTURES_EVERY", 6*time.Hour),
		ResultsEvery:   getEnvDuration("SYNC_RESULTS_EVERY", 2*time.Minute),
		RemindersEvery: getEnvDuration("REMINDERS_EVERY", 30*time.Second),
		LookbackDays:   getEnvInt("SYNC_LOOKBACK_DAYS", 7),
		LookaheadDays:  getEnvInt("SYNC_LOOKAHEAD_DAYS", 30),
		WindowStart:    getEnv("TOURNAMENT_START_DATE", ""),
		WindowEnd:      getEnv("TOURNAMENT_END_DATE", ""),
	}

	cfg, err := pgxpool.ParseConfig(set.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("parse db dsn: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	return set, pool, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

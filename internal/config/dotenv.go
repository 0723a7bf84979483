package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port                     string
	ClaimTimeoutMinutes      int
	WritingTimeoutMinutes    int
	DrawingTimeoutMinutes    int
	SeasonOpenMinutes        int
	MinPlayersPerSeason      int
	MaxPlayersPerSeason      int
	TurnPattern              string
	NATSURL                  string
	NATSSubject              string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
}

func Default() Config {
	return Config{
		Port:                     "8080",
		ClaimTimeoutMinutes:      60,
		WritingTimeoutMinutes:    720,
		DrawingTimeoutMinutes:    1440,
		SeasonOpenMinutes:        2880,
		MinPlayersPerSeason:      3,
		MaxPlayersPerSeason:      12,
		TurnPattern:              "writing,drawing",
		NATSSubject:              "sketchrelay.notify",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Port = raw
	}
	if raw := os.Getenv("CLAIM_TIMEOUT_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.ClaimTimeoutMinutes = value
		}
	}
	if raw := os.Getenv("WRITING_TIMEOUT_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.WritingTimeoutMinutes = value
		}
	}
	if raw := os.Getenv("DRAWING_TIMEOUT_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DrawingTimeoutMinutes = value
		}
	}
	if raw := os.Getenv("SEASON_OPEN_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SeasonOpenMinutes = value
		}
	}
	if raw := os.Getenv("SEASON_MIN_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 1 {
			cfg.MinPlayersPerSeason = value
		}
	}
	if raw := os.Getenv("SEASON_MAX_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 1 {
			cfg.MaxPlayersPerSeason = value
		}
	}
	if raw := os.Getenv("TURN_PATTERN"); raw != "" {
		cfg.TurnPattern = raw
	}
	if raw := os.Getenv("NATS_URL"); raw != "" {
		cfg.NATSURL = raw
	}
	if raw := os.Getenv("NATS_SUBJECT"); raw != "" {
		cfg.NATSSubject = raw
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	return cfg
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ecopulse/ecopulse/internal/models"
)

type Store struct {
	db *sqlx.DB
}

// New wraps an open database/sql handle using the modernc "sqlite" driver.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "sqlite")}
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// HasCities reports whether at least one city exists.
func (s *Store) HasCities(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM cities)`)
	return exists, err
}

// CityByName returns the city with exactly this name, or nil if none exists.
func (s *Store) CityByName(ctx context.Context, name string) (*models.City, error) {
	var c models.City
	err := s.db.GetContext(ctx, &c, `SELECT id, name FROM cities WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Cities(ctx context.Context) ([]models.City, error) {
	var cities []models.City
	err := s.db.SelectContext(ctx, &cities, `SELECT id, name FROM cities ORDER BY name`)
	return cities, err
}

const monthlySelect = `
	SELECT m.id, m.city_id, c.name AS city_name, m.year, m.month, m.score
	FROM monthly_scores m
	JOIN cities c ON c.id = m.city_id`

// MonthlyScores returns every monthly score with its city name.
func (s *Store) MonthlyScores(ctx context.Context) ([]models.MonthlyScore, error) {
	var scores []models.MonthlyScore
	err := s.db.SelectContext(ctx, &scores, monthlySelect+` ORDER BY m.id`)
	return scores, err
}

func (s *Store) MonthlyScoresForYear(ctx context.Context, year int) ([]models.MonthlyScore, error) {
	var scores []models.MonthlyScore
	err := s.db.SelectContext(ctx, &scores, monthlySelect+` WHERE m.year = ? ORDER BY m.id`, year)
	return scores, err
}

func (s *Store) ForecastScoresForYear(ctx context.Context, year int) ([]models.ForecastScore, error) {
	var scores []models.ForecastScore
	err := s.db.SelectContext(ctx, &scores, `
		SELECT f.id, f.city_id, c.name AS city_name, f.year, f.quarter, f.score
		FROM forecast_scores f
		JOIN cities c ON c.id = f.city_id
		WHERE f.year = ?
		ORDER BY f.id
	`, year)
	return scores, err
}

// DailyDataFor returns the first daily row for the city on date (YYYY-MM-DD),
// or nil if there is none.
func (s *Store) DailyDataFor(ctx context.Context, cityID int64, date string) (*models.DailyData, error) {
	var d models.DailyData
	err := s.db.GetContext(ctx, &d, `
		SELECT id, city_id, data_date, no2, temp_day, temp_night, precipitation, quality_flags
		FROM daily_data
		WHERE city_id = ? AND data_date = ?
		ORDER BY id
		LIMIT 1
	`, cityID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// TableCounts is the number of rows in each domain table.
type TableCounts struct {
	Cities         int `db:"cities" json:"cities"`
	MonthlyScores  int `db:"monthly_scores" json:"monthly_scores"`
	ForecastScores int `db:"forecast_scores" json:"forecast_scores"`
	DailyData      int `db:"daily_data" json:"daily_data"`
}

// EmptyTables names the time-series tables that have no rows.
func (c TableCounts) EmptyTables() []string {
	var empty []string
	if c.MonthlyScores == 0 {
		empty = append(empty, "monthly_scores")
	}
	if c.ForecastScores == 0 {
		empty = append(empty, "forecast_scores")
	}
	if c.DailyData == 0 {
		empty = append(empty, "daily_data")
	}
	return empty
}

func (s *Store) Counts(ctx context.Context) (TableCounts, error) {
	var c TableCounts
	err := s.db.GetContext(ctx, &c, `
		SELECT
			(SELECT COUNT(*) FROM cities) AS cities,
			(SELECT COUNT(*) FROM monthly_scores) AS monthly_scores,
			(SELECT COUNT(*) FROM forecast_scores) AS forecast_scores,
			(SELECT COUNT(*) FROM daily_data) AS daily_data
	`)
	return c, err
}

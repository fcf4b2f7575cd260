package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ecopulse/ecopulse/internal/models"
)

// Session is a unit of work over a single transaction. Inserts stay pending
// until Commit; reads through the session see them.
type Session struct {
	tx *sqlx.Tx
}

func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &Session{tx: tx}, nil
}

func (s *Session) Commit() error {
	return s.tx.Commit()
}

// Rollback is a no-op after Commit.
func (s *Session) Rollback() error {
	err := s.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (s *Session) CityByName(ctx context.Context, name string) (*models.City, error) {
	var c models.City
	err := s.tx.GetContext(ctx, &c, `SELECT id, name FROM cities WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertCity creates a city and returns it with its new identifier.
func (s *Session) InsertCity(ctx context.Context, name string) (*models.City, error) {
	res, err := s.tx.ExecContext(ctx, `INSERT INTO cities (name) VALUES (?)`, name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.City{ID: id, Name: name}, nil
}

func (s *Session) InsertMonthlyScore(ctx context.Context, m models.MonthlyScore) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO monthly_scores (city_id, year, month, score)
		VALUES (?, ?, ?, ?)
	`, m.CityID, m.Year, m.Month, m.Score)
	return err
}

func (s *Session) InsertForecastScore(ctx context.Context, f models.ForecastScore) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO forecast_scores (city_id, year, quarter, score)
		VALUES (?, ?, ?, ?)
	`, f.CityID, f.Year, f.Quarter, f.Score)
	return err
}

func (s *Session) InsertDailyData(ctx context.Context, d models.DailyData) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO daily_data (city_id, data_date, no2, temp_day, temp_night, precipitation, quality_flags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.CityID, d.DataDate, d.NO2, d.TempDay, d.TempNight, d.Precipitation, d.QualityFlags)
	return err
}

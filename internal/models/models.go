package models

import "time"

// ForecastHorizon is the first year served from quarterly forecasts instead of
// monthly history.
const ForecastHorizon = 2027

// DateLayout is the storage and wire format of DailyData dates.
const DateLayout = "2006-01-02"

type City struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type MonthlyScore struct {
	ID       int64   `db:"id" json:"id"`
	CityID   int64   `db:"city_id" json:"city_id"`
	CityName string  `db:"city_name" json:"city_name,omitempty"`
	Year     int     `db:"year" json:"year"`
	Month    int     `db:"month" json:"month"` // 1-12
	Score    float64 `db:"score" json:"score"`
}

type ForecastScore struct {
	ID       int64   `db:"id" json:"id"`
	CityID   int64   `db:"city_id" json:"city_id"`
	CityName string  `db:"city_name" json:"city_name,omitempty"`
	Year     int     `db:"year" json:"year"`
	Quarter  int     `db:"quarter" json:"quarter"` // 1-4
	Score    float64 `db:"score" json:"score"`
}

// DailyData holds one day of measurements for a city. Nil fields were absent
// from the source feed.
type DailyData struct {
	ID            int64    `db:"id" json:"id"`
	CityID        int64    `db:"city_id" json:"city_id"`
	DataDate      string   `db:"data_date" json:"data_date"`
	NO2           *float64 `db:"no2" json:"no2"`
	TempDay       *float64 `db:"temp_day" json:"temp_day"`
	TempNight     *float64 `db:"temp_night" json:"temp_night"`
	Precipitation *float64 `db:"precipitation" json:"precipitation"`
	QualityFlags  *string  `db:"quality_flags" json:"-"`
}

// QuarterOf maps a calendar month to its quarter: 1-3 -> 1, 4-6 -> 2,
// 7-9 -> 3, 10-12 -> 4.
func QuarterOf(month time.Month) int {
	return (int(month)-1)/3 + 1
}

type Category string

const (
	CategoryPoor    Category = "poor"
	CategoryAverage Category = "average"
	CategoryGood    Category = "good"
)

// CategoryOf buckets a score the way the map colours it.
func CategoryOf(score float64) Category {
	switch {
	case score <= 51:
		return CategoryPoor
	case score <= 55:
		return CategoryAverage
	default:
		return CategoryGood
	}
}

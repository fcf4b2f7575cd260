package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecopulse/ecopulse/internal/metrics"
	"github.com/ecopulse/ecopulse/internal/models"
	"github.com/ecopulse/ecopulse/internal/store"
)

type Feed string

const (
	FeedMonthly  Feed = "monthly"
	FeedForecast Feed = "forecast"
	FeedDaily    Feed = "daily"
)

// Sources locates the three feeds. Each is a local path or a file, http(s)
// or ftp URL.
type Sources struct {
	Monthly  string
	Forecast string
	Daily    string
}

type FeedResult struct {
	Feed    Feed
	Source  string
	Parsed  int
	Stored  int
	Flagged int
	Err     error
}

type Report struct {
	BatchID  string
	Skipped  bool
	Feeds    []FeedResult
	Duration time.Duration
}

// Failed returns the feeds that were aborted.
func (r *Report) Failed() []FeedResult {
	var failed []FeedResult
	for _, f := range r.Feeds {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

type Loader struct {
	store   *store.Store
	sources Sources
	opener  Opener
	logger  *slog.Logger
}

func NewLoader(st *store.Store, sources Sources, opener Opener, logger *slog.Logger) *Loader {
	if opener == nil {
		opener = NewSourceOpener(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		store:   st,
		sources: sources,
		opener:  opener,
		logger:  logger,
	}
}

// Populate fills an empty store from the feeds. It does nothing when any city
// already exists. A failing feed is reported and logged while the remaining
// feeds still run; the returned error is reserved for storage failures.
func (l *Loader) Populate(ctx context.Context) (*Report, error) {
	start := time.Now()

	populated, err := l.store.HasCities(ctx)
	if err != nil {
		return nil, fmt.Errorf("check existing cities: %w", err)
	}
	if populated {
		l.logger.Info("database already populated, skipping feed ingestion")
		l.warnGaps(ctx)
		return &Report{Skipped: true}, nil
	}

	sess, err := l.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	report := &Report{BatchID: uuid.NewString()}
	l.logger.Info("database empty, loading feeds", "batch_id", report.BatchID)

	run := &populateRun{sess: sess, cities: make(map[string]int64)}
	passes := []struct {
		feed     Feed
		source   string
		required []string
		load     func(context.Context, row) ([]string, error)
	}{
		{FeedMonthly, l.sources.Monthly, []string{colDate, colCity, colMonthlyScore}, run.loadMonthly},
		{FeedForecast, l.sources.Forecast, []string{colForecastDate, colCity, colForecastScore}, run.loadForecast},
		{FeedDaily, l.sources.Daily, []string{colDate, colCity}, run.loadDaily},
	}

	for _, p := range passes {
		audit, err := sess.StartIngestRun(ctx, report.BatchID, string(p.feed), p.source)
		if err != nil {
			return nil, fmt.Errorf("start %s ingest run: %w", p.feed, err)
		}

		feedStart := time.Now()
		res, raw := l.loadFeed(ctx, p.feed, p.source, p.required, p.load)
		report.Feeds = append(report.Feeds, res)

		if len(raw) > 0 {
			if _, err := sess.StoreFeedPayload(ctx, audit.ID, string(p.feed), p.source, raw); err != nil {
				return nil, fmt.Errorf("archive %s payload: %w", p.feed, err)
			}
		}

		parsed, stored, flagged := int64(res.Parsed), int64(res.Stored), int64(res.Flagged)
		audit.RecordsParsed, audit.RecordsStored, audit.QualityFlagged = &parsed, &stored, &flagged
		metrics.FeedRowsIngested.WithLabelValues(string(p.feed)).Add(float64(res.Stored))

		if res.Err != nil {
			msg := res.Err.Error()
			audit.ErrorMessage = &msg
			metrics.FeedFailures.WithLabelValues(string(p.feed)).Inc()
			l.logger.Warn("feed could not be processed",
				"feed", p.feed,
				"source", p.source,
				"rows_stored", res.Stored,
				"error", res.Err)
		} else {
			audit.Success = true
			l.logger.Info("feed loaded",
				"feed", p.feed,
				"rows", res.Stored,
				"flagged", res.Flagged,
				"duration", time.Since(feedStart))
		}

		if err := sess.CompleteIngestRun(ctx, audit); err != nil {
			return nil, fmt.Errorf("complete %s ingest run: %w", p.feed, err)
		}
	}

	if err := sess.Commit(); err != nil {
		return nil, fmt.Errorf("commit population: %w", err)
	}

	report.Duration = time.Since(start)
	metrics.PopulateDuration.Observe(report.Duration.Seconds())
	metrics.CitiesCreated.Add(float64(run.created))
	l.logger.Info("population complete",
		"batch_id", report.BatchID,
		"cities_created", run.created,
		"failed_feeds", len(report.Failed()),
		"duration", report.Duration)

	return report, nil
}

// loadFeed runs one feed pass and also returns the bytes consumed from the
// source, which is the whole feed unless parsing stopped early.
func (l *Loader) loadFeed(ctx context.Context, feed Feed, source string, required []string, load func(context.Context, row) ([]string, error)) (FeedResult, []byte) {
	res := FeedResult{Feed: feed, Source: source}

	rc, err := l.opener.Open(ctx, source)
	if err != nil {
		res.Err = fmt.Errorf("open %s: %w", source, err)
		return res, nil
	}
	defer rc.Close()

	var raw bytes.Buffer
	tbl, err := newTable(io.TeeReader(rc, &raw), required...)
	if err != nil {
		res.Err = err
		return res, raw.Bytes()
	}

	for {
		r, err := tbl.next()
		if errors.Is(err, io.EOF) {
			return res, raw.Bytes()
		}
		if err != nil {
			res.Err = err
			return res, raw.Bytes()
		}
		res.Parsed++

		flags, err := load(ctx, r)
		if err != nil {
			res.Err = fmt.Errorf("line %d: %w", r.line, err)
			return res, raw.Bytes()
		}
		res.Stored++
		if len(flags) > 0 {
			res.Flagged++
		}
	}
}

func (l *Loader) warnGaps(ctx context.Context) {
	counts, err := l.store.Counts(ctx)
	if err != nil {
		l.logger.Warn("could not count rows of populated store", "error", err)
		return
	}
	if empty := counts.EmptyTables(); len(empty) > 0 {
		l.logger.Warn("store has cities but empty tables; feeds will not be reloaded",
			"empty_tables", empty,
			"cities", counts.Cities)
	}
}

// populateRun holds the state of one Populate call.
type populateRun struct {
	sess    *store.Session
	cities  map[string]int64
	created int
}

// resolveCity returns the id for the trimmed name, creating the city inside
// the session when it does not exist yet.
func (p *populateRun) resolveCity(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if id, ok := p.cities[name]; ok {
		return id, nil
	}

	city, err := p.sess.CityByName(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("lookup city %q: %w", name, err)
	}
	if city == nil {
		city, err = p.sess.InsertCity(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("insert city %q: %w", name, err)
		}
		p.created++
	}

	p.cities[name] = city.ID
	return city.ID, nil
}

func (p *populateRun) loadMonthly(ctx context.Context, r row) ([]string, error) {
	date, err := r.date(colDate)
	if err != nil {
		return nil, err
	}
	score, err := r.float(colMonthlyScore)
	if err != nil {
		return nil, err
	}
	city, _ := r.value(colCity)
	if err := validateRecord(record{City: city, Month: int(date.Month())}); err != nil {
		return nil, err
	}

	cityID, err := p.resolveCity(ctx, city)
	if err != nil {
		return nil, err
	}
	return nil, p.sess.InsertMonthlyScore(ctx, models.MonthlyScore{
		CityID: cityID,
		Year:   date.Year(),
		Month:  int(date.Month()),
		Score:  score,
	})
}

func (p *populateRun) loadForecast(ctx context.Context, r row) ([]string, error) {
	date, err := r.date(colForecastDate)
	if err != nil {
		return nil, err
	}
	score, err := r.float(colForecastScore)
	if err != nil {
		return nil, err
	}
	city, _ := r.value(colCity)
	quarter := models.QuarterOf(date.Month())
	if err := validateRecord(record{City: city, Month: int(date.Month()), Quarter: quarter}); err != nil {
		return nil, err
	}

	cityID, err := p.resolveCity(ctx, city)
	if err != nil {
		return nil, err
	}
	return nil, p.sess.InsertForecastScore(ctx, models.ForecastScore{
		CityID:  cityID,
		Year:    date.Year(),
		Quarter: quarter,
		Score:   score,
	})
}

func (p *populateRun) loadDaily(ctx context.Context, r row) ([]string, error) {
	date, err := r.date(colDate)
	if err != nil {
		return nil, err
	}
	city, _ := r.value(colCity)
	if err := validateRecord(record{City: city, Month: int(date.Month())}); err != nil {
		return nil, err
	}

	d := models.DailyData{DataDate: date.Format(models.DateLayout)}
	for _, f := range []struct {
		col string
		dst **float64
	}{
		{colNO2, &d.NO2},
		{colTempDay, &d.TempDay},
		{colTempNight, &d.TempNight},
		{colPrecip, &d.Precipitation},
	} {
		v, err := r.optionalFloat(f.col)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	flags := ValidateDailyData(&d)
	if len(flags) > 0 {
		q := QualityFlagsToJSON(flags)
		d.QualityFlags = &q
		for _, flag := range flags {
			metrics.DailyQualityFlags.WithLabelValues(flag).Inc()
		}
	}

	d.CityID, err = p.resolveCity(ctx, city)
	if err != nil {
		return nil, err
	}
	return flags, p.sess.InsertDailyData(ctx, d)
}

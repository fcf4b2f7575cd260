package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ecopulse/ecopulse/internal/models"
)

const (
	FlagNO2Negative         = "no2_negative"
	FlagTempDayOutOfRange   = "temp_day_out_of_range"
	FlagTempNightOutOfRange = "temp_night_out_of_range"
	FlagPrecipNegative      = "precipitation_negative"
)

// ValidateDailyData range-checks the optional measurements of a daily row.
// Flagged rows are still stored.
func ValidateDailyData(d *models.DailyData) []string {
	var flags []string

	if d.NO2 != nil && *d.NO2 < 0 {
		flags = append(flags, FlagNO2Negative)
	}
	if d.TempDay != nil && (*d.TempDay < -60 || *d.TempDay > 60) {
		flags = append(flags, FlagTempDayOutOfRange)
	}
	if d.TempNight != nil && (*d.TempNight < -60 || *d.TempNight > 60) {
		flags = append(flags, FlagTempNightOutOfRange)
	}
	if d.Precipitation != nil && *d.Precipitation < 0 {
		flags = append(flags, FlagPrecipNegative)
	}

	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// record is the shape every feed row must satisfy before it is stored.
type record struct {
	City    string `validate:"required"`
	Month   int    `validate:"min=1,max=12"`
	Quarter int    `validate:"omitempty,min=1,max=4"`
}

func validateRecord(rec record) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s %v violates %s=%s", strings.ToLower(fe.Field()), fe.Value(), fe.Tag(), fe.Param()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

package payroll

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"example.com/nannytracker/internal/domain"
)

// CSVHeader is the first row of every payroll export.
var CSVHeader = []string{"Date", "Start Time", "End Time", "Duration (Hours)", "Status"}

// ExportFilename names the export file after the day it was produced.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("nanny_payroll_%s.csv", now.Format("2006-01-02"))
}

// WriteCSV writes one row per session. Out-of-bounds sessions are marked Flagged, all others Verified.
func WriteCSV(w io.Writer, sessions []domain.Session, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range sessions {
		start := s.StartTime.In(loc)
		end := ""
		if s.EndTime != nil {
			end = s.EndTime.In(loc).Format("15:04")
		}
		status := "Verified"
		if s.IsOutOfBounds {
			status = "Flagged"
		}
		row := []string{
			start.Format("2006-01-02"),
			start.Format("15:04"),
			end,
			fmt.Sprintf("%.2f", float64(s.Minutes())/60),
			status,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/akrishnanDG/ct1-migrate/internal/strategy"
	"github.com/dustin/go-humanize"
)

// strategyMessages describe to the site owner what a strategy does to an event
var strategyMessages = map[string]func(r *models.EventReport) string{
	strategy.SlugSingle: func(*models.EventReport) string {
		return "This single event will be updated with identical content."
	},
	strategy.SlugRecurring: func(*models.EventReport) string {
		return "This recurring event will be updated with identical content."
	},
	strategy.SlugSplit: func(r *models.EventReport) string {
		return fmt.Sprintf("This event will be split into %d recurring events with identical content. The events will be part of a new series.", len(r.CreatedEvents))
	},
	strategy.SlugModifiedRules: func(*models.EventReport) string {
		return "One or more recurrence rules will be modified, but no occurrences will be added or removed."
	},
	strategy.SlugModifiedExclusions: func(*models.EventReport) string {
		return "One or more exclusion rules will be modified, but no occurrences will be added or removed."
	},
}

// StrategyMessage returns the user message for the strategy applied to an event
func StrategyMessage(r *models.EventReport) string {
	if msg, ok := strategyMessages[r.Strategy()]; ok {
		return msg(r)
	}
	return "Unknown strategy applied to this event."
}

// EstimatedTime renders an estimate in hours
func EstimatedTime(hours float64) string {
	h := strconv.FormatFloat(hours, 'f', -1, 64)
	if hours == 1 {
		return fmt.Sprintf("(Estimated time: %s hour)", h)
	}
	return fmt.Sprintf("(Estimated time: %s hours)", h)
}

var phaseTitles = map[models.Phase]string{
	models.PhasePreviewPrompt:       "MIGRATION NOT STARTED",
	models.PhasePreviewInProgress:   "MIGRATION PREVIEW IN PROGRESS",
	models.PhasePreviewComplete:     "PREVIEW COMPLETE",
	models.PhaseMigrationInProgress: "MIGRATION IN PROGRESS",
	models.PhaseMigrationComplete:   "MIGRATION COMPLETE",
	models.PhaseCancelInProgress:    "CANCELATION IN PROGRESS",
	models.PhaseCancelComplete:      "CANCELATION COMPLETE",
	models.PhaseRevertInProgress:    "REVERSE MIGRATION IN PROGRESS",
	models.PhaseRevertComplete:      "REVERSE MIGRATION COMPLETE",
}

func printSiteReport(w io.Writer, r *models.SiteReport, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	printSiteTable(w, r)
	return nil
}

func printSiteTable(w io.Writer, r *models.SiteReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  %s\n", phaseTitles[r.Phase])
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	if r.RunID != "" {
		fmt.Fprintf(w, "  Run:             %s\n", r.RunID)
	}
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(w, "  Started:         %s\n", humanize.Time(r.StartedAt))
	}
	fmt.Fprintf(w, "  Total events:    %s\n", humanize.Comma(int64(r.TotalEvents)))

	switch r.Phase {
	case models.PhaseCancelInProgress, models.PhaseRevertInProgress,
		models.PhaseCancelComplete, models.PhaseRevertComplete:
		fmt.Fprintf(w, "  Reverted:        %s\n", humanize.Comma(int64(r.Reverted)))
		if r.RevertFailed > 0 {
			fmt.Fprintf(w, "  Revert failed:   %s [ERROR]\n", humanize.Comma(int64(r.RevertFailed)))
		}
		fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════")
		printFailures(w, r.SortedReports())
		return
	}

	fmt.Fprintf(w, "  Processed:       %s (%.0f%%)\n", humanize.Comma(int64(r.Processed())), r.Progress())
	fmt.Fprintf(w, "  Successful:      %s\n", humanize.Comma(int64(r.Succeeded())))
	if r.Failed() > 0 {
		fmt.Fprintf(w, "  Failed:          %s [ERROR]\n", humanize.Comma(int64(r.Failed())))
	} else {
		fmt.Fprintf(w, "  Failed:          %d\n", 0)
	}
	if r.Phase != models.PhaseMigrationComplete {
		fmt.Fprintf(w, "  %s\n", EstimatedTime(r.EstimatedTimeInHours))
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════")

	reports := r.SortedReports()
	var changed, failed []*models.EventReport
	for _, er := range reports {
		switch {
		case er.Failed():
			failed = append(failed, er)
		case er.HasChanges():
			changed = append(changed, er)
		}
	}

	if len(changed) == 0 && len(failed) == 0 && len(reports) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Events can migrate with no changes!")
	}

	if len(changed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "CHANGES TO EVENTS")
		fmt.Fprintln(w, "─────────────────")
		fmt.Fprintln(w, "The following events will be modified during the migration process:")
		for _, er := range changed {
			fmt.Fprintf(w, "  [%d] %s\n", er.PostID, er.Title)
			fmt.Fprintf(w, "      %s\n", StrategyMessage(er))
			for _, m := range er.Modifications {
				fmt.Fprintf(w, "      - %s\n", m)
			}
			for _, m := range er.Warnings {
				fmt.Fprintf(w, "      [WARN] %s\n", m)
			}
		}
	}

	printFailures(w, failed)
	if len(failed) > 0 && r.Phase == models.PhasePreviewComplete {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Migration is blocked due to errors found during preview.")
	}
	fmt.Fprintln(w)
}

func printFailures(w io.Writer, reports []*models.EventReport) {
	n := 0
	for _, er := range reports {
		if !er.Failed() {
			continue
		}
		if n == 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "ERRORS")
			fmt.Fprintln(w, "──────")
		}
		n++
		fmt.Fprintf(w, "  %d. [%d] %s: %s\n", n, er.PostID, er.Title, er.Error)
	}
}

// writeReportFile writes the site report as JSON when a report file is configured
func writeReportFile(path string, r *models.SiteReport) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

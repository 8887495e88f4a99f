// Package jobs runs the report batches: BIR daily aggregation, the daily sales report
// and idle session pruning. The same runner serves the CLI, the HTTP trigger and the
// in-process scheduler.
package jobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/smallbiznis/posreport/pkg/validation"
)

// Exit codes reported for every run.
const (
	ExitOK         = 0
	ExitFailed     = 1
	ExitUnknownJob = 2
	ExitBusy       = 3
)

const (
	dateLayout = "2006-01-02"
	maxRange   = 366 * 24 * time.Hour
)

var (
	ErrUnknownJob = errors.New("unknown_job")
	ErrJobRunning = errors.New("job_already_running")
)

type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context, opts Options, out io.Writer) error
}

// Options bounds a run to an inclusive business-date range and optionally one branch
// or store.
type Options struct {
	From   time.Time
	To     time.Time
	Branch string
	Store  string
}

// DefaultOptions covers yesterday and today so late uploads still land in a report.
func DefaultOptions(now time.Time) Options {
	today := truncateDay(now)
	return Options{From: today.AddDate(0, 0, -1), To: today}
}

// ParseOptions reads the textual form used by the CLI and the HTTP trigger. An empty
// to defaults to from; both empty falls back to DefaultOptions.
func ParseOptions(now time.Time, from, to, branch, store string) (Options, error) {
	opts := DefaultOptions(now)
	opts.Branch = strings.TrimSpace(branch)
	opts.Store = strings.TrimSpace(store)

	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" && to == "" {
		return opts, nil
	}
	if to == "" {
		to = from
	}
	if from == "" {
		from = to
	}

	verrs := validation.Errors{}
	fromDate, err := time.Parse(dateLayout, from)
	if err != nil {
		verrs.Add("from", "does not match the format YYYY-MM-DD")
	}
	toDate, err := time.Parse(dateLayout, to)
	if err != nil {
		verrs.Add("to", "does not match the format YYYY-MM-DD")
	}
	if err := verrs.Err(); err != nil {
		return Options{}, err
	}
	if toDate.Before(fromDate) {
		verrs.Add("to", "must not be before from")
	} else if toDate.Sub(fromDate) > maxRange {
		verrs.Add("to", "range cannot exceed 366 days")
	}
	if err := verrs.Err(); err != nil {
		return Options{}, err
	}

	opts.From = fromDate
	opts.To = toDate
	return opts, nil
}

func (o Options) FromDate() string { return o.From.Format(dateLayout) }
func (o Options) ToDate() string   { return o.To.Format(dateLayout) }

func (o Options) Map() map[string]any {
	m := map[string]any{
		"from": o.FromDate(),
		"to":   o.ToDate(),
	}
	if o.Branch != "" {
		m["branch"] = o.Branch
	}
	if o.Store != "" {
		m["store"] = o.Store
	}
	return m
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Package notify defines the run-report notification payload and the sink
// contract its delivery channels implement.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/punchd-io/punchd/internal/domain/model"
)

// RunPayload is the canonical data pushed after one account run.
type RunPayload struct {
	AccountID   string
	MaskedPhone string
	Status      model.RunStatus
	Results     []model.TaskResult
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Sink is a destination capable of consuming run notifications.
type Sink interface {
	SendRunReport(ctx context.Context, payload RunPayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload RunPayload) error

// SendRunReport implements the Sink interface.
func (f SinkFunc) SendRunReport(ctx context.Context, payload RunPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// FromRunReport converts a domain run report into the notification payload.
func FromRunReport(report *model.RunReport) RunPayload {
	if report == nil {
		return RunPayload{}
	}
	return RunPayload{
		AccountID:   report.AccountID,
		MaskedPhone: report.MaskedPhone,
		Status:      report.Status,
		Results:     report.Results,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
	}
}

// Title renders the summary line every channel leads with.
func (p RunPayload) Title() string {
	var b strings.Builder
	b.WriteString("Run ")
	b.WriteString(string(p.Status))
	if p.MaskedPhone != "" {
		b.WriteString(" for ")
		b.WriteString(p.MaskedPhone)
	}
	return b.String()
}

// Text renders the per-task breakdown as plain text.
func (p RunPayload) Text() string {
	var b strings.Builder
	b.WriteString(p.Title())
	b.WriteByte('\n')
	for _, res := range p.Results {
		b.WriteString("- ")
		b.WriteString(string(res.Task))
		b.WriteString(": ")
		b.WriteString(string(res.Status))
		if res.Message != "" {
			b.WriteString(" (")
			b.WriteString(res.Message)
			b.WriteByte(')')
		}
		b.WriteByte('\n')
	}
	if !p.FinishedAt.IsZero() {
		b.WriteString("finished at ")
		b.WriteString(p.FinishedAt.UTC().Format(time.RFC3339))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Package jobs runs the background schedules: exporting evaluation
// reports for completed interviews and sweeping idle sessions out of
// memory.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/prepdeck/backend/internal/model/interview"
)

// ExporterStore is the persistence surface the exporter needs.
type ExporterStore interface {
	UnexportedCompleted(ctx context.Context) ([]interview.Interview, error)
	MarkExported(ctx context.Context, ids []string) error
}

// Exporter writes one JSONL file per run containing the evaluation
// reports of completed interviews not yet exported.
type Exporter struct {
	store ExporterStore
	dir   string
}

// NewExporter creates a report exporter writing under dir.
func NewExporter(store ExporterStore, dir string) *Exporter {
	return &Exporter{store: store, dir: dir}
}

// reportLine is one exported record.
type reportLine struct {
	InterviewID        string   `json:"interviewId"`
	ResumeID           string   `json:"resumeId"`
	QuestionLimit      int      `json:"questionLimit"`
	CompletedAt        string   `json:"completedAt"`
	TechnicalScore     int      `json:"technicalScore"`
	CommunicationScore int      `json:"communicationScore"`
	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	Summary            string   `json:"summary"`
}

// Run exports all pending reports. Interviews are marked exported only
// after the file is flushed, so a failed run retries everything next time.
func (e *Exporter) Run(ctx context.Context) error {
	interviews, err := e.store.UnexportedCompleted(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending reports: %w", err)
	}
	if len(interviews) == 0 {
		return nil
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	name := fmt.Sprintf("reports_%s.jsonl", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(e.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	ids := make([]string, 0, len(interviews))
	for _, iv := range interviews {
		line := reportLine{
			InterviewID:   iv.ID,
			ResumeID:      iv.ResumeID,
			QuestionLimit: iv.QuestionLimit,
		}
		if !iv.CompletedAt.IsZero() {
			line.CompletedAt = iv.CompletedAt.UTC().Format(time.RFC3339)
		}
		if iv.Feedback != nil {
			line.TechnicalScore = iv.Feedback.TechnicalScore
			line.CommunicationScore = iv.Feedback.CommunicationScore
			line.Strengths = iv.Feedback.Strengths
			line.Weaknesses = iv.Feedback.Weaknesses
			line.Summary = iv.Feedback.Summary
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write report line: %w", err)
		}
		ids = append(ids, iv.ID)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to flush export file: %w", err)
	}

	if err := e.store.MarkExported(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark reports exported: %w", err)
	}

	log.Printf("[jobs] exported %d reports to %s", len(ids), path)
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prepdeck/backend/internal/model/interview"
	"github.com/prepdeck/backend/internal/model/resume"
)

var (
	ErrResumeNotFound    = errors.New("resume not found")
	ErrInterviewNotFound = errors.New("interview not found")
)

// Config selects the database backend.
type Config struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// Store persists resumes, interviews, and their transcripts.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and runs migrations.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "prepdeck.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires STORE_DSN")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&resume.Resume{}, &interview.Interview{}, &interview.Turn{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateResume stores an uploaded resume and assigns its identifier.
func (s *Store) CreateResume(ctx context.Context, r *resume.Resume) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(r).Error
}

// GetResume retrieves a resume by identifier.
func (s *Store) GetResume(ctx context.Context, id string) (resume.Resume, error) {
	var r resume.Resume
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return resume.Resume{}, ErrResumeNotFound
	}
	return r, err
}

// CreateInterview stores a new interview record.
func (s *Store) CreateInterview(ctx context.Context, iv *interview.Interview) error {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(iv).Error
}

// GetInterview retrieves an interview by identifier.
func (s *Store) GetInterview(ctx context.Context, id string) (interview.Interview, error) {
	var iv interview.Interview
	err := s.db.WithContext(ctx).First(&iv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return interview.Interview{}, ErrInterviewNotFound
	}
	return iv, err
}

// AppendTurn appends a turn at the next sequence position for the interview.
func (s *Store) AppendTurn(ctx context.Context, interviewID, role, content string) (interview.Turn, error) {
	turn := interview.Turn{
		ID:          uuid.NewString(),
		InterviewID: interviewID,
		Role:        role,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&interview.Turn{}).Where("interview_id = ?", interviewID).Count(&count).Error; err != nil {
			return err
		}
		turn.Seq = int(count)
		return tx.Create(&turn).Error
	})
	if err != nil {
		return interview.Turn{}, err
	}
	return turn, nil
}

// Transcript returns the ordered turns for an interview.
func (s *Store) Transcript(ctx context.Context, interviewID string) ([]interview.Turn, error) {
	var turns []interview.Turn
	err := s.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("seq asc").
		Find(&turns).Error
	return turns, err
}

// CompleteInterview marks the interview completed and attaches its feedback.
func (s *Store) CompleteInterview(ctx context.Context, interviewID string, fb interview.Feedback) error {
	result := s.db.WithContext(ctx).Model(&interview.Interview{}).
		Where("id = ? AND status = ?", interviewID, interview.StatusActive).
		Updates(map[string]any{
			"status":                      interview.StatusCompleted,
			"completed_at":                time.Now().UTC(),
			"feedback_technical_score":    fb.TechnicalScore,
			"feedback_communication_score": fb.CommunicationScore,
			"feedback_strengths":          fb.Strengths,
			"feedback_weaknesses":         fb.Weaknesses,
			"feedback_summary":            fb.Summary,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInterviewNotFound
	}
	return nil
}

// UnexportedCompleted lists completed interviews not yet picked up by the
// report exporter.
func (s *Store) UnexportedCompleted(ctx context.Context) ([]interview.Interview, error) {
	var interviews []interview.Interview
	err := s.db.WithContext(ctx).
		Where("status = ? AND exported = ?", interview.StatusCompleted, false).
		Order("completed_at asc").
		Find(&interviews).Error
	return interviews, err
}

// MarkExported flags interviews as already exported.
func (s *Store) MarkExported(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&interview.Interview{}).
		Where("id IN ?", ids).
		Update("exported", true).Error
}

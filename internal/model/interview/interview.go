package interview

import "time"

// Status values for an interview. The transition is one-way: an interview
// that reaches StatusCompleted never becomes active again.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Turn roles. Turns alternate strictly, starting with the synthesized
// interviewer opening at Seq 0.
const (
	RoleCandidate   = "candidate"
	RoleInterviewer = "interviewer"
)

// Interview captures one mock-interview instance bounded by a question limit.
type Interview struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	ResumeID       string    `json:"resumeId" gorm:"index"`
	JobDescription string    `json:"jobDescription,omitempty"`
	QuestionLimit  int       `json:"questionLimit"`
	Status         string    `json:"status"`
	Feedback       *Feedback `json:"feedback,omitempty" gorm:"embedded;embeddedPrefix:feedback_"`
	Exported       bool      `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	CompletedAt    time.Time `json:"completedAt,omitempty"`
}

// Turn persists a single utterance by either party.
type Turn struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	InterviewID string    `json:"interviewId" gorm:"index:idx_turn_seq,unique,priority:1"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Seq         int       `json:"seq" gorm:"index:idx_turn_seq,unique,priority:2"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Feedback is the evaluation report attached once when an interview
// completes. Scores use a 1-10 scale; zero scores mark the fallback report.
type Feedback struct {
	TechnicalScore     int         `json:"technicalScore"`
	CommunicationScore int         `json:"communicationScore"`
	Strengths          StringSlice `json:"strengths" gorm:"type:text"`
	Weaknesses         StringSlice `json:"weaknesses" gorm:"type:text"`
	Summary            string      `json:"summary"`
}

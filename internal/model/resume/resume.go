package resume

import (
	"time"

	"github.com/prepdeck/backend/internal/model/interview"
)

// Resume holds the extracted text of an uploaded resume. Text extraction
// itself happens upstream; this service only receives the result.
type Resume struct {
	ID          string                `json:"id" gorm:"primaryKey"`
	Filename    string                `json:"filename"`
	TextContent string                `json:"textContent"`
	Skills      interview.StringSlice `json:"skills,omitempty" gorm:"type:text"`
	CreatedAt   time.Time             `json:"createdAt"`
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/backend/internal/model/interview"
	"github.com/prepdeck/backend/internal/model/resume"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	return st
}

func TestResumeRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	r := resume.Resume{
		Filename:    "resume.pdf",
		TextContent: "Go backend engineer, five years.",
		Skills:      interview.StringSlice{"go", "postgres"},
	}
	require.NoError(t, st.CreateResume(ctx, &r))
	require.NotEmpty(t, r.ID)

	got, err := st.GetResume(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.TextContent, got.TextContent)
	assert.Equal(t, interview.StringSlice{"go", "postgres"}, got.Skills)

	_, err = st.GetResume(ctx, "missing")
	assert.ErrorIs(t, err, ErrResumeNotFound)
}

func TestAppendTurnAssignsGaplessSequence(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	iv := interview.Interview{ResumeID: "r1", QuestionLimit: 3, Status: interview.StatusActive}
	require.NoError(t, st.CreateInterview(ctx, &iv))

	roles := []string{
		interview.RoleInterviewer,
		interview.RoleCandidate,
		interview.RoleInterviewer,
	}
	for i, role := range roles {
		turn, err := st.AppendTurn(ctx, iv.ID, role, "content")
		require.NoError(t, err)
		assert.Equal(t, i, turn.Seq)
	}

	turns, err := st.Transcript(ctx, iv.ID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	for i, turn := range turns {
		assert.Equal(t, i, turn.Seq)
		assert.Equal(t, roles[i], turn.Role)
	}
}

func TestTranscriptIsolatedPerInterview(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := interview.Interview{ResumeID: "r1", QuestionLimit: 3, Status: interview.StatusActive}
	b := interview.Interview{ResumeID: "r1", QuestionLimit: 3, Status: interview.StatusActive}
	require.NoError(t, st.CreateInterview(ctx, &a))
	require.NoError(t, st.CreateInterview(ctx, &b))

	_, err := st.AppendTurn(ctx, a.ID, interview.RoleInterviewer, "for a")
	require.NoError(t, err)
	_, err = st.AppendTurn(ctx, b.ID, interview.RoleInterviewer, "for b")
	require.NoError(t, err)

	turns, err := st.Transcript(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "for a", turns[0].Content)
	assert.Equal(t, 0, turns[0].Seq)
}

func TestCompleteInterview(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	iv := interview.Interview{ResumeID: "r1", QuestionLimit: 1, Status: interview.StatusActive}
	require.NoError(t, st.CreateInterview(ctx, &iv))

	fb := interview.Feedback{
		TechnicalScore:     6,
		CommunicationScore: 7,
		Strengths:          interview.StringSlice{"clear answers"},
		Weaknesses:         interview.StringSlice{"shallow depth"},
		Summary:            "Decent round.",
	}
	require.NoError(t, st.CompleteInterview(ctx, iv.ID, fb))

	got, err := st.GetInterview(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, interview.StatusCompleted, got.Status)
	assert.False(t, got.CompletedAt.IsZero())
	require.NotNil(t, got.Feedback)
	assert.Equal(t, 6, got.Feedback.TechnicalScore)
	assert.Equal(t, interview.StringSlice{"clear answers"}, got.Feedback.Strengths)

	// Completion is one-way; a second attempt matches no active row.
	err = st.CompleteInterview(ctx, iv.ID, fb)
	assert.ErrorIs(t, err, ErrInterviewNotFound)
}

func TestExportBookkeeping(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	done := interview.Interview{ResumeID: "r1", QuestionLimit: 1, Status: interview.StatusActive}
	open := interview.Interview{ResumeID: "r1", QuestionLimit: 1, Status: interview.StatusActive}
	require.NoError(t, st.CreateInterview(ctx, &done))
	require.NoError(t, st.CreateInterview(ctx, &open))

	require.NoError(t, st.CompleteInterview(ctx, done.ID, interview.Feedback{Summary: "ok", TechnicalScore: 5}))

	pending, err := st.UnexportedCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, done.ID, pending[0].ID)

	require.NoError(t, st.MarkExported(ctx, []string{done.ID}))

	pending, err = st.UnexportedCompleted(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

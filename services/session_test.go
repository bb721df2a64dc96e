package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cropguard-web/imaging"
	"cropguard-web/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_GetCreatesAndReuses(t *testing.T) {
	store := NewSessionStore(time.Hour, 0)

	s := store.Get("")
	require.NotEmpty(t, s.ID)
	assert.Same(t, s, store.Get(s.ID))
	assert.NotSame(t, s, store.Get("unknown"))
	assert.Equal(t, 2, store.Len())
}

func TestSessionStore_Sweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(time.Hour, 0)
	store.now = func() time.Time { return now }

	old := store.Get("")
	ctx, _ := old.Begin(context.Background(), KindHistory)

	now = now.Add(30 * time.Minute)
	fresh := store.Get("")

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
	assert.Same(t, fresh, store.Get(fresh.ID))
	assert.Error(t, ctx.Err(), "in-flight requests of expired sessions are canceled")
}

func TestSessionStore_ExpiredIDGetsNewSession(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(time.Minute, 0)
	store.now = func() time.Time { return now }

	s := store.Get("")
	now = now.Add(2 * time.Minute)
	assert.NotEqual(t, s.ID, store.Get(s.ID).ID)
}

func TestSessionStore_StartStop(t *testing.T) {
	store := NewSessionStore(time.Hour, time.Millisecond)
	store.Start()
	store.Stop()
	store.Stop()
}

func TestSession_NewerRequestSupersedesOlder(t *testing.T) {
	s := newSession("s1")

	oldCtx, oldTicket := s.Begin(context.Background(), KindHistory)
	newCtx, newTicket := s.Begin(context.Background(), KindHistory)

	assert.True(t, errors.Is(oldCtx.Err(), context.Canceled))
	assert.NoError(t, newCtx.Err())
	assert.False(t, s.isCurrent(oldTicket))
	assert.True(t, s.isCurrent(newTicket))

	err := s.Apply(newTicket, func(s *Session) { s.history.Page = 3 })
	require.NoError(t, err)

	err = s.Apply(oldTicket, func(s *Session) { s.history.Page = 1 })
	assert.True(t, errors.Is(err, ErrSuperseded))
	assert.Equal(t, 3, s.History().Page)

	s.End(oldTicket)
	assert.NoError(t, newCtx.Err(), "ending a stale request does not cancel the current one")
	s.End(newTicket)
	assert.Error(t, newCtx.Err())
}

func TestSession_KindsAreIndependent(t *testing.T) {
	s := newSession("s1")

	historyCtx, _ := s.Begin(context.Background(), KindHistory)
	_, analyzeTicket := s.Begin(context.Background(), KindAnalyze)

	assert.NoError(t, historyCtx.Err())
	assert.True(t, s.isCurrent(analyzeTicket))
}

func TestSession_StageTransitions(t *testing.T) {
	s := newSession("s1")
	assert.Equal(t, StageEmpty, s.View().Stage)

	u := &imaging.Upload{FileName: "leaf.png", ContentType: "image/png", Data: make([]byte, 1<<20)}
	s.SelectFile(u, &imaging.Preview{DataURL: "data:image/png;base64,"})
	v := s.View()
	assert.Equal(t, StageFilePreviewed, v.Stage)
	assert.Equal(t, "leaf.png", v.FileName)
	assert.InDelta(t, 1.0, v.FileSizeMB, 1e-9)

	s.StartAnalysis()
	assert.Equal(t, StageAnalyzing, s.View().Stage)

	_, ticket := s.Begin(context.Background(), KindAnalyze)
	p := &models.Prediction{PredictionID: models.NewPredictionID("abc123"), PredictedClass: "Apple_scab", ModelType: models.ModelFruit}
	require.NoError(t, s.Apply(ticket, func(s *Session) { s.showResult(p) }))
	v = s.View()
	assert.Equal(t, StageResultDisplayed, v.Stage)
	assert.True(t, v.ResultVisible)
	require.Len(t, v.Recent, 1)

	assert.False(t, s.MarkFeedbackSubmitted(models.NewPredictionID("other")))
	assert.True(t, s.MarkFeedbackSubmitted(models.NewPredictionID("abc123")))
	_, submitted := s.CurrentPrediction()
	assert.True(t, submitted)
	assert.Equal(t, StageFeedbackSubmitted, s.View().Stage)

	s.SelectFile(u, nil)
	v = s.View()
	assert.Equal(t, StageFilePreviewed, v.Stage)
	assert.False(t, v.ResultVisible)

	s.RemoveFile()
	v = s.View()
	assert.Equal(t, StageEmpty, v.Stage)
	assert.Empty(t, v.FileName)
}

func TestSession_RecentCacheIsCapped(t *testing.T) {
	s := newSession("s1")

	for i := 0; i < MaxRecentPredictions+20; i++ {
		_, ticket := s.Begin(context.Background(), KindAnalyze)
		p := &models.Prediction{PredictionID: models.NewPredictionID(fmt.Sprintf("p%d", i))}
		require.NoError(t, s.Apply(ticket, func(s *Session) { s.showResult(p) }))
	}

	recent := s.View().Recent
	assert.Len(t, recent, MaxRecentPredictions)
	assert.Equal(t, fmt.Sprintf("p%d", MaxRecentPredictions+19), recent[0].ID.String())
	assert.Equal(t, "p20", recent[len(recent)-1].ID.String())
}

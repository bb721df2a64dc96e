package services

import (
	"context"
	"sync"
	"time"

	"cropguard-web/imaging"
	"cropguard-web/metrics"
	"cropguard-web/models"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// Stage is where a session is in the upload → result lifecycle
type Stage int

const (
	StageEmpty Stage = iota
	StageFilePreviewed
	StageAnalyzing
	StageResultDisplayed
	StageFeedbackSubmitted
)

func (s Stage) String() string {
	switch s {
	case StageEmpty:
		return "empty"
	case StageFilePreviewed:
		return "file_previewed"
	case StageAnalyzing:
		return "analyzing"
	case StageResultDisplayed:
		return "result_displayed"
	case StageFeedbackSubmitted:
		return "feedback_submitted"
	}
	return "unknown"
}

// Request kinds that are sequenced per session
const (
	KindAnalyze   = "analyze"
	KindHistory   = "history"
	KindAnalytics = "analytics"
)

// MaxRecentPredictions caps the per-session cache of fresh predictions
const MaxRecentPredictions = 100

// HistoryState is the pagination and filter cursor of the history page
type HistoryState struct {
	Page          int
	ModelFilter   string
	Query         string
	Disease       string
	MinConfidence float64
	Total         int
	Estimated     bool
	Entries       []models.HistoryEntry
	Loaded        bool
}

// Session is the view state of one browser session
type Session struct {
	ID string

	mu                sync.Mutex
	stage             Stage
	upload            *imaging.Upload
	preview           *imaging.Preview
	current           *models.Prediction
	resultVisible     bool
	feedbackSubmitted bool
	recent            []models.HistoryEntry
	history           HistoryState
	analytics         *models.Analytics
	stats             *models.SystemStats
	lastSeen          time.Time

	seq     map[string]uint64
	cancels map[string]context.CancelFunc
}

func newSession(id string) *Session {
	return &Session{
		ID:       id,
		history:  HistoryState{Page: 1},
		lastSeen: time.Now(),
		seq:      make(map[string]uint64),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Ticket identifies one in-flight request of a given kind
type Ticket struct {
	kind string
	seq  uint64
}

// Begin starts a sequenced request. Any in-flight request of the same kind
// is canceled and will no longer be allowed to update the session.
func (s *Session) Begin(parent context.Context, kind string) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.cancels[kind]; ok {
		prev()
	}
	s.seq[kind]++
	s.cancels[kind] = cancel
	return ctx, Ticket{kind: kind, seq: s.seq[kind]}
}

// Apply runs fn under the session lock if t is still the latest request of
// its kind, and returns ErrSuperseded otherwise
func (s *Session) Apply(t Ticket, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq[t.kind] != t.seq {
		metrics.StaleResponsesTotal.WithLabelValues(t.kind).Inc()
		return ErrSuperseded
	}
	fn(s)
	return nil
}

// End releases the resources of a request started with Begin
func (s *Session) End(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq[t.kind] == t.seq {
		if cancel, ok := s.cancels[t.kind]; ok {
			cancel()
			delete(s.cancels, t.kind)
		}
	}
}

// isCurrent reports whether t is the latest request of its kind
func (s *Session) isCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq[t.kind] == t.seq
}

// SelectFile stores a validated upload and hides any previous result
func (s *Session) SelectFile(u *imaging.Upload, p *imaging.Preview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = u
	s.preview = p
	s.resultVisible = false
	s.stage = StageFilePreviewed
}

// RemoveFile clears the selected upload and the result panel
func (s *Session) RemoveFile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = nil
	s.preview = nil
	s.resultVisible = false
	s.stage = StageEmpty
}

// Upload returns the currently selected file, if any
func (s *Session) Upload() *imaging.Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload
}

// setStage is only called while holding the lock through Apply
func (s *Session) setStage(stage Stage) {
	s.stage = stage
}

// showResult makes p the current prediction; called through Apply
func (s *Session) showResult(p *models.Prediction) {
	s.current = p
	s.resultVisible = true
	s.feedbackSubmitted = false
	s.stage = StageResultDisplayed
	s.recent = prependCapped(s.recent, models.HistoryEntryFromPrediction(*p), MaxRecentPredictions)
}

// StartAnalysis moves a previewed file into the analyzing stage
func (s *Session) StartAnalysis() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upload != nil {
		s.stage = StageAnalyzing
	}
}

// CurrentPrediction returns the prediction feedback would apply to
func (s *Session) CurrentPrediction() (*models.Prediction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.feedbackSubmitted
}

// MarkFeedbackSubmitted records that the current prediction was rated
func (s *Session) MarkFeedbackSubmitted(id models.PredictionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.PredictionID.String() != id.String() {
		return false
	}
	s.feedbackSubmitted = true
	s.stage = StageFeedbackSubmitted
	return true
}

// SetStats stores the navigation counters
func (s *Session) SetStats(stats *models.SystemStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

// Analytics returns the last analytics snapshot
func (s *Session) Analytics() *models.Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analytics
}

// History returns a copy of the history cursor
func (s *Session) History() HistoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history
	h.Entries = append([]models.HistoryEntry(nil), s.history.Entries...)
	return h
}

func (s *Session) setHistoryFilters(query, disease string, minConfidence float64) HistoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Query = query
	s.history.Disease = disease
	s.history.MinConfidence = minConfidence
	h := s.history
	h.Entries = append([]models.HistoryEntry(nil), s.history.Entries...)
	return h
}

// SessionView is an immutable snapshot of a session used for rendering
type SessionView struct {
	ID                string
	Stage             Stage
	FileName          string
	FileSizeMB        float64
	Preview           *imaging.Preview
	Current           *models.Prediction
	ResultVisible     bool
	FeedbackSubmitted bool
	Recent            []models.HistoryEntry
	Stats             *models.SystemStats
}

// View snapshots the session
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SessionView{
		ID:                s.ID,
		Stage:             s.stage,
		Preview:           s.preview,
		Current:           s.current,
		ResultVisible:     s.resultVisible,
		FeedbackSubmitted: s.feedbackSubmitted,
		Recent:            append([]models.HistoryEntry(nil), s.recent...),
		Stats:             s.stats,
	}
	if s.upload != nil {
		v.FileName = s.upload.FileName
		v.FileSizeMB = s.upload.SizeMB()
	}
	return v
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind, cancel := range s.cancels {
		cancel()
		delete(s.cancels, kind)
	}
}

func prependCapped(list []models.HistoryEntry, entry models.HistoryEntry, max int) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(list)+1)
	out = append(out, entry)
	out = append(out, list...)
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// SessionStore holds sessions in memory and expires idle ones
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSessionStore creates a new session store
func NewSessionStore(ttl, sweepInterval time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		interval: sweepInterval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Get returns the session for id, creating a fresh one (with a new id) when
// id is unknown or expired
func (st *SessionStore) Get(id string) *Session {
	now := st.now()

	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok && now.Sub(s.idleSince()) <= st.ttl {
		s.touch(now)
		return s
	}

	s = newSession(uuid.NewString())
	s.lastSeen = now

	st.mu.Lock()
	st.sessions[s.ID] = s
	count := len(st.sessions)
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	return s
}

// Len returns the number of sessions held
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than the TTL
func (st *SessionStore) Sweep() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	count := len(st.sessions)
	st.mu.Unlock()

	for _, s := range expired {
		s.cancelAll()
	}
	metrics.ActiveSessions.Set(float64(count))
	if len(expired) > 0 {
		log.Infof("Expired %d idle sessions, %d remaining", len(expired), count)
	}
	return len(expired)
}

// Start launches the janitor goroutine
func (st *SessionStore) Start() {
	if st.interval <= 0 {
		return
	}
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(st.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.Sweep()
			case <-st.stopCh:
				return
			}
		}
	}()
}

// Stop stops the janitor goroutine
func (st *SessionStore) Stop() {
	select {
	case <-st.stopCh:
	default:
		close(st.stopCh)
	}
	st.wg.Wait()
}

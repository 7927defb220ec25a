package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essay-grader/internal/db"
	"essay-grader/internal/grading"
	"essay-grader/internal/rubric"
)

type fakeStore struct {
	mu       sync.Mutex
	subs     map[string]*db.Submission
	statuses map[string][]string
}

func newFakeStore(subs ...*db.Submission) *fakeStore {
	s := &fakeStore{subs: map[string]*db.Submission{}, statuses: map[string][]string{}}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *fakeStore) GetSubmission(ctx context.Context, id string) (*db.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeStore) SetStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id].Status = status
	s.statuses[id] = append(s.statuses[id], status)
	return nil
}

func (s *fakeStore) SetCompleted(ctx context.Context, id string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id].Status = db.StatusCompleted
	s.subs[id].Result = result
	s.statuses[id] = append(s.statuses[id], db.StatusCompleted)
	return nil
}

func (s *fakeStore) SetFailed(ctx context.Context, id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id].Status = db.StatusFailed
	s.subs[id].ErrorMessage = sql.NullString{String: msg, Valid: true}
	s.statuses[id] = append(s.statuses[id], db.StatusFailed)
	return nil
}

func (s *fakeStore) SetEssayText(ctx context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id].EssayText = text
	return nil
}

func (s *fakeStore) get(id string) db.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.subs[id]
}

type fakeEngine struct {
	res *grading.ConsensusResult
	err error
}

func (e *fakeEngine) Reconcile(ctx context.Context, essay, theme string, partial grading.Partial) (*grading.ConsensusResult, error) {
	return e.res, e.err
}

// countingGrader returns fixed, agreeing verdicts and counts invocations.
type countingGrader struct {
	calls atomic.Int64
}

func (g *countingGrader) Grade(ctx context.Context, essay, theme, personaID string) (grading.GraderVerdict, error) {
	g.calls.Add(1)
	v := grading.GraderVerdict{PersonaID: personaID, TotalScore: 600}
	for i := 1; i <= rubric.NumCriteria; i++ {
		v.Criteria = append(v.Criteria, grading.CriterionVerdict{Criterion: i, Score: 120, Rationale: "steady"})
	}
	return v, nil
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (e *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type fakePhotos struct {
	data map[string][]byte
}

func (p *fakePhotos) GetPhoto(ctx context.Context, ref string) ([]byte, string, error) {
	d, ok := p.data[ref]
	if !ok {
		return nil, "", errors.New("missing photo")
	}
	return d, "image/jpeg", nil
}

type fakeOCR struct {
	text string
	err  error
}

func (o *fakeOCR) Transcribe(ctx context.Context, image []byte, mimeType string) (string, error) {
	return o.text, o.err
}

func submission(id string) *db.Submission {
	return &db.Submission{
		ID:        id,
		UserID:    "user-1",
		Theme:     "digital inclusion",
		EssayText: "an essay",
		Status:    db.StatusPending,
	}
}

func correctTask(t *testing.T, p CorrectEssayPayload) *asynq.Task {
	t.Helper()
	task, err := NewCorrectEssayTask(p)
	require.NoError(t, err)
	return task
}

func TestHandleCorrectEssayCompletes(t *testing.T) {
	store := newFakeStore(submission("sub-1"))
	engine := &fakeEngine{res: &grading.ConsensusResult{FinalTotal: 600, SourceLabel: "average of graders 1 and 2"}}
	p := &Processor{Store: store, Engine: engine}

	err := p.HandleCorrectEssay(context.Background(), correctTask(t, CorrectEssayPayload{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	sub := store.get("sub-1")
	assert.Equal(t, db.StatusCompleted, sub.Status)
	assert.Equal(t, []string{db.StatusProcessing, db.StatusCompleted}, store.statuses["sub-1"])

	var res grading.ConsensusResult
	require.NoError(t, json.Unmarshal(sub.Result, &res))
	assert.Equal(t, float64(600), res.FinalTotal)
}

func TestHandleCorrectEssayRecordsFailure(t *testing.T) {
	store := newFakeStore(submission("sub-1"))
	engine := &fakeEngine{err: errors.New("both graders unavailable")}
	p := &Processor{Store: store, Engine: engine}

	// Domain failures are recorded, not re-raised to the queue.
	err := p.HandleCorrectEssay(context.Background(), correctTask(t, CorrectEssayPayload{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	sub := store.get("sub-1")
	assert.Equal(t, db.StatusFailed, sub.Status)
	assert.Contains(t, sub.ErrorMessage.String, "both graders unavailable")
}

func TestHandleCorrectEssayDropsUnknownSubmission(t *testing.T) {
	store := newFakeStore()
	p := &Processor{Store: store, Engine: &fakeEngine{}}

	err := p.HandleCorrectEssay(context.Background(), correctTask(t, CorrectEssayPayload{SubmissionID: "ghost"}))
	require.NoError(t, err)
	assert.Empty(t, store.statuses["ghost"])
}

func TestHandleCorrectEssayResumptionSkipsGraders(t *testing.T) {
	store := newFakeStore(submission("sub-1"))
	grader := &countingGrader{}
	p := &Processor{Store: store, Engine: grading.NewConsensus(grader)}

	// First delivery grades from scratch: two agreeing graders, no supervisor.
	err := p.HandleCorrectEssay(context.Background(), correctTask(t, CorrectEssayPayload{SubmissionID: "sub-1"}))
	require.NoError(t, err)
	require.Equal(t, int64(2), grader.calls.Load())
	first := store.get("sub-1").Result

	var firstRes grading.ConsensusResult
	require.NoError(t, json.Unmarshal(first, &firstRes))
	require.Len(t, firstRes.RawVerdicts, 2)

	// Redelivery with both verdicts supplied re-invokes nothing.
	a, b := firstRes.RawVerdicts[0], firstRes.RawVerdicts[1]
	err = p.HandleCorrectEssay(context.Background(), correctTask(t, CorrectEssayPayload{
		SubmissionID: "sub-1",
		GraderA:      &a,
		GraderB:      &b,
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), grader.calls.Load())
	assert.JSONEq(t, string(first), string(store.get("sub-1").Result))
}

func TestHandleTranscribePhoto(t *testing.T) {
	sub := submission("sub-1")
	sub.EssayText = ""
	sub.PhotoRef = sql.NullString{String: "s3://essays/photos/x", Valid: true}
	store := newFakeStore(sub)
	enq := &fakeEnqueuer{}
	p := &Processor{
		Store:  store,
		Photos: &fakePhotos{data: map[string][]byte{"s3://essays/photos/x": {0xff, 0xd8}}},
		OCR:    &fakeOCR{text: "transcribed essay text"},
		Asynq:  enq,
	}

	task, err := NewTranscribePhotoTask("sub-1")
	require.NoError(t, err)
	require.NoError(t, p.HandleTranscribePhoto(context.Background(), task))

	assert.Equal(t, "transcribed essay text", store.get("sub-1").EssayText)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskCorrectEssay, enq.tasks[0].Type())
}

func TestHandleTranscribePhotoInvalidImage(t *testing.T) {
	sub := submission("sub-1")
	sub.PhotoRef = sql.NullString{String: "s3://essays/photos/x", Valid: true}
	store := newFakeStore(sub)
	p := &Processor{
		Store:  store,
		Photos: &fakePhotos{data: map[string][]byte{"s3://essays/photos/x": {0x00}}},
		OCR:    &fakeOCR{err: errors.New("the submitted image does not look like a valid essay")},
		Asynq:  &fakeEnqueuer{},
	}

	task, err := NewTranscribePhotoTask("sub-1")
	require.NoError(t, err)
	require.NoError(t, p.HandleTranscribePhoto(context.Background(), task))

	got := store.get("sub-1")
	assert.Equal(t, db.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage.String, "valid essay")
}

func TestHandleTranscribePhotoWithoutPhoto(t *testing.T) {
	store := newFakeStore(submission("sub-1"))
	p := &Processor{Store: store, Asynq: &fakeEnqueuer{}}

	task, err := NewTranscribePhotoTask("sub-1")
	require.NoError(t, err)
	require.NoError(t, p.HandleTranscribePhoto(context.Background(), task))
	assert.Equal(t, db.StatusFailed, store.get("sub-1").Status)
}

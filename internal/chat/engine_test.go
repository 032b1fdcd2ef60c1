package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pdfpilot/pdfpilot-backend/internal/clients/pinecone"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/pkg/apperr"
	"github.com/pdfpilot/pdfpilot-backend/internal/repos"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

type fakeFileRepo struct {
	file     *types.File
	getCalls int
}

func (f *fakeFileRepo) Create(_ context.Context, _ *gorm.DB, file *types.File) (*types.File, error) {
	return file, nil
}

func (f *fakeFileRepo) GetByIDAndUser(_ context.Context, _ *gorm.DB, fileID, userID uuid.UUID) (*types.File, error) {
	f.getCalls++
	if f.file != nil && f.file.ID == fileID && f.file.UserID == userID {
		return f.file, nil
	}
	return nil, nil
}

func (f *fakeFileRepo) GetByKeyAndUser(_ context.Context, _ *gorm.DB, _ string, _ uuid.UUID) (*types.File, error) {
	return nil, nil
}

func (f *fakeFileRepo) ListByUser(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.File, error) {
	return nil, nil
}

func (f *fakeFileRepo) UpdateUploadStatus(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ types.UploadStatus) error {
	return nil
}

func (f *fakeFileRepo) SetPageCount(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ int) error {
	return nil
}

func (f *fakeFileRepo) FullDeleteByID(_ context.Context, _ *gorm.DB, _ uuid.UUID) error {
	return nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	existing  []*types.Message
	created   []*types.Message
	createErr error
}

func (m *fakeMessageRepo) Create(_ context.Context, _ *gorm.DB, msg *types.Message) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	out := *msg
	out.ID = uuid.New()
	out.CreatedAt = time.Now()
	m.created = append(m.created, &out)
	return &out, nil
}

// ListRecentByFile mimics the query: newest first across prior turns plus
// anything created during the test.
func (m *fakeMessageRepo) ListRecentByFile(_ context.Context, _ *gorm.DB, fileID uuid.UUID, limit int) ([]*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*types.Message, 0, len(m.existing)+len(m.created))
	for i := len(m.created) - 1; i >= 0; i-- {
		if m.created[i].FileID == fileID {
			all = append(all, m.created[i])
		}
	}
	for i := len(m.existing) - 1; i >= 0; i-- {
		if m.existing[i].FileID == fileID {
			all = append(all, m.existing[i])
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *fakeMessageRepo) ListByFileCursor(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ *uuid.UUID, _ int) (*repos.MessagePage, error) {
	return nil, nil
}

func (m *fakeMessageRepo) createdSnapshot() []*types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Message, len(m.created))
	copy(out, m.created)
	return out
}

type fakeAI struct {
	mu          sync.Mutex
	embedCalls  [][]string
	embedErr    error
	deltas      []string
	streamErr   error
	streamCalls int
	lastSystem  string
	lastUser    string
}

func (a *fakeAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.embedCalls = append(a.embedCalls, inputs)
	if a.embedErr != nil {
		return nil, a.embedErr
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (a *fakeAI) StreamChat(ctx context.Context, system, user string, onDelta func(delta string) error) (string, error) {
	a.mu.Lock()
	a.streamCalls++
	a.lastSystem = system
	a.lastUser = user
	deltas := a.deltas
	streamErr := a.streamErr
	a.mu.Unlock()

	var full strings.Builder
	for _, d := range deltas {
		// A real client's read loop dies once the request context is
		// cancelled.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err := onDelta(d); err != nil {
			return "", err
		}
		full.WriteString(d)
	}
	if streamErr != nil {
		return "", streamErr
	}
	return full.String(), nil
}

type fakeVectorStore struct {
	mu         sync.Mutex
	matches    []pinecone.Match
	queryErr   error
	queries    []string
	queryTopKs []int
}

func (s *fakeVectorStore) Upsert(_ context.Context, _ string, _ []pinecone.Vector) error {
	return nil
}

func (s *fakeVectorStore) Query(_ context.Context, namespace string, _ []float32, topK int) ([]pinecone.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, namespace)
	s.queryTopKs = append(s.queryTopKs, topK)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.matches, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

func drainStream(t *testing.T, stream *AnswerStream) (string, error) {
	t.Helper()
	var full strings.Builder
	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), err
		}
		full.WriteString(frag)
	}
}

func TestAnswerStreamsAndPersistsOnce(t *testing.T) {
	userID := uuid.New()
	fileID := uuid.New()
	files := &fakeFileRepo{file: &types.File{ID: fileID, UserID: userID}}
	messages := &fakeMessageRepo{}
	ai := &fakeAI{deltas: []string{"The answer ", "is on ", "page 3."}}
	store := &fakeVectorStore{matches: []pinecone.Match{
		{ID: "c1", Score: 0.9, Text: "chunk one", Page: 3},
		{ID: "c2", Score: 0.8, Text: "chunk two", Page: 4},
	}}

	e := NewEngine(testLogger(t), files, messages, ai, store)
	stream, err := e.Answer(context.Background(), userID, fileID, "Where is the answer?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	full, err := drainStream(t, stream)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if full != "The answer is on page 3." {
		t.Fatalf("streamed text: got %q", full)
	}

	created := messages.createdSnapshot()
	if len(created) != 2 {
		t.Fatalf("persisted messages: want=2 got=%d", len(created))
	}
	if !created[0].IsUserMessage || created[0].Text != "Where is the answer?" {
		t.Fatalf("first persisted message should be the question; got %+v", created[0])
	}
	if created[1].IsUserMessage || created[1].Text != "The answer is on page 3." {
		t.Fatalf("second persisted message should be the full answer; got %+v", created[1])
	}

	if len(store.queries) != 1 || store.queries[0] != fileID.String() {
		t.Fatalf("query namespace: want=%s got=%v", fileID, store.queries)
	}
	if store.queryTopKs[0] != retrievalTopK {
		t.Fatalf("query topK: want=%d got=%d", retrievalTopK, store.queryTopKs[0])
	}
}

func TestAnswerRecordsQuestionBeforeEmbedding(t *testing.T) {
	userID := uuid.New()
	fileID := uuid.New()
	files := &fakeFileRepo{file: &types.File{ID: fileID, UserID: userID}}
	messages := &fakeMessageRepo{}
	ai := &fakeAI{embedErr: errors.New("embeddings down")}
	store := &fakeVectorStore{}

	e := NewEngine(testLogger(t), files, messages, ai, store)
	_, err := e.Answer(context.Background(), userID, fileID, "hello")
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	created := messages.createdSnapshot()
	if len(created) != 1 || !created[0].IsUserMessage {
		t.Fatalf("question must be durable even when embedding fails; created=%v", created)
	}
	if len(store.queries) != 0 {
		t.Fatalf("no retrieval should run after a failed embed")
	}
}

func TestAnswerUnknownFileHasNoSideEffects(t *testing.T) {
	files := &fakeFileRepo{}
	messages := &fakeMessageRepo{}
	ai := &fakeAI{}
	store := &fakeVectorStore{}

	e := NewEngine(testLogger(t), files, messages, ai, store)
	_, err := e.Answer(context.Background(), uuid.New(), uuid.New(), "hello")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(messages.createdSnapshot()) != 0 {
		t.Fatalf("no message should be recorded for an unauthorized question")
	}
	if len(ai.embedCalls) != 0 || len(store.queries) != 0 {
		t.Fatalf("no embedding or retrieval should run for an unauthorized question")
	}
}

func TestAnswerNotOwnedLooksLikeMissing(t *testing.T) {
	ownerID := uuid.New()
	fileID := uuid.New()
	files := &fakeFileRepo{file: &types.File{ID: fileID, UserID: ownerID}}

	e := NewEngine(testLogger(t), files, &fakeMessageRepo{}, &fakeAI{}, &fakeVectorStore{})
	_, err := e.Answer(context.Background(), uuid.New(), fileID, "hello")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("a file owned by someone else must look missing, got %v", err)
	}
}

func TestAnswerEmptyQuestionRejected(t *testing.T) {
	e := NewEngine(testLogger(t), &fakeFileRepo{}, &fakeMessageRepo{}, &fakeAI{}, &fakeVectorStore{})
	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := e.Answer(context.Background(), uuid.New(), uuid.New(), q)
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Fatalf("question %q: expected invalid argument, got %v", q, err)
		}
	}
}

func TestAnswerStreamErrorPersistsNothingGenerated(t *testing.T) {
	userID := uuid.New()
	fileID := uuid.New()
	files := &fakeFileRepo{file: &types.File{ID: fileID, UserID: userID}}
	messages := &fakeMessageRepo{}
	ai := &fakeAI{deltas: []string{"partial "}, streamErr: errors.New("connection reset")}

	e := NewEngine(testLogger(t), files, messages, ai, &fakeVectorStore{})
	stream, err := e.Answer(context.Background(), userID, fileID, "hello")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	_, err = drainStream(t, stream)
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error from stream, got %v", err)
	}

	created := messages.createdSnapshot()
	if len(created) != 1 {
		t.Fatalf("only the question should be persisted after a broken stream; created=%d", len(created))
	}
	if !created[0].IsUserMessage {
		t.Fatalf("the surviving record must be the question")
	}
}

func TestAnswerCancellationPersistsNoAnswer(t *testing.T) {
	userID := uuid.New()
	fileID := uuid.New()
	files := &fakeFileRepo{file: &types.File{ID: fileID, UserID: userID}}
	messages := &fakeMessageRepo{}
	ai := &fakeAI{deltas: []string{"first", "second", "third"}}

	ctx, cancel := context.WithCancel(context.Background())
	e := NewEngine(testLogger(t), files, messages, ai, &fakeVectorStore{})
	stream, err := e.Answer(ctx, userID, fileID, "hello")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// Take one fragment, then walk away mid-stream.
	if _, err := stream.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	cancel()

	for {
		if _, err := stream.Recv(); err != nil {
			if err == io.EOF {
				t.Fatalf("cancelled stream must not complete")
			}
			break
		}
	}

	created := messages.createdSnapshot()
	if len(created) != 1 || !created[0].IsUserMessage {
		t.Fatalf("cancellation must persist no generated turn; created=%d", len(created))
	}
}

func TestAnswerPromptCarriesHistoryAndContext(t *testing.T) {
	userID := uuid.New()
	fileID := uuid.New()
	files := &fakeFileRepo{file: &types.File{ID: fileID, UserID: userID}}
	messages := &fakeMessageRepo{existing: []*types.Message{
		{ID: uuid.New(), FileID: fileID, IsUserMessage: true, Text: "What is chapter 1 about?"},
		{ID: uuid.New(), FileID: fileID, IsUserMessage: false, Text: "It introduces the dataset."},
		{ID: uuid.New(), FileID: fileID, IsUserMessage: true, Text: "And chapter 2?"},
	}}
	ai := &fakeAI{deltas: []string{"done"}}
	store := &fakeVectorStore{matches: []pinecone.Match{
		{ID: "c1", Text: "Chapter 3 covers evaluation.", Page: 12},
	}}

	e := NewEngine(testLogger(t), files, messages, ai, store)
	stream, err := e.Answer(context.Background(), userID, fileID, "What about chapter 3?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := drainStream(t, stream); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	prompt := ai.lastUser
	if !strings.Contains(prompt, "USER INPUT: What about chapter 3?") {
		t.Fatalf("prompt missing question:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Chapter 3 covers evaluation.") {
		t.Fatalf("prompt missing retrieved context:\n%s", prompt)
	}
	if !strings.Contains(prompt, "User: What is chapter 1 about?") ||
		!strings.Contains(prompt, "Assistant: It introduces the dataset.") {
		t.Fatalf("prompt missing labeled history:\n%s", prompt)
	}
	// Oldest first.
	if strings.Index(prompt, "What is chapter 1 about?") > strings.Index(prompt, "And chapter 2?") {
		t.Fatalf("history must be oldest first:\n%s", prompt)
	}
	// The just-recorded question must not double as history.
	if strings.Contains(prompt, "User: What about chapter 3?") {
		t.Fatalf("current question must not appear in history:\n%s", prompt)
	}
	if ai.lastSystem != systemPrompt {
		t.Fatalf("system prompt not forwarded")
	}
}

func TestAnswerHistoryWindowCapped(t *testing.T) {
	userID := uuid.New()
	fileID := uuid.New()
	files := &fakeFileRepo{file: &types.File{ID: fileID, UserID: userID}}

	existing := make([]*types.Message, 0, 10)
	for i := 0; i < 10; i++ {
		existing = append(existing, &types.Message{
			ID:            uuid.New(),
			FileID:        fileID,
			IsUserMessage: i%2 == 0,
			Text:          fmt.Sprintf("turn %d", i),
		})
	}
	messages := &fakeMessageRepo{existing: existing}
	ai := &fakeAI{deltas: []string{"ok"}}

	e := NewEngine(testLogger(t), files, messages, ai, &fakeVectorStore{})
	stream, err := e.Answer(context.Background(), userID, fileID, "latest question")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := drainStream(t, stream); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	prompt := ai.lastUser
	for i := 4; i < 10; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("turn %d", i)) {
			t.Fatalf("recent turn %d missing from prompt:\n%s", i, prompt)
		}
	}
	for i := 0; i < 4; i++ {
		if strings.Contains(prompt, fmt.Sprintf("turn %d", i)) {
			t.Fatalf("turn %d should fall outside the window:\n%s", i, prompt)
		}
	}
}

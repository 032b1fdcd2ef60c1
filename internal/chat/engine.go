package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pdfpilot/pdfpilot-backend/internal/clients/openai"
	"github.com/pdfpilot/pdfpilot-backend/internal/clients/pinecone"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/pkg/apperr"
	"github.com/pdfpilot/pdfpilot-backend/internal/pkg/ctxutil"
	"github.com/pdfpilot/pdfpilot-backend/internal/repos"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

const (
	// retrievalTopK is how many chunks similarity search returns per
	// question.
	retrievalTopK = 4
	// historyWindow is how many prior turns the prompt carries.
	historyWindow = 6
)

// Engine answers questions about one ingested file: retrieve supporting
// chunks, fold in recent conversation, stream the model's completion, and
// persist the generated turn once the stream completes naturally.
type Engine interface {
	Answer(ctx context.Context, userID, fileID uuid.UUID, question string) (*AnswerStream, error)
}

type engine struct {
	log      *logger.Logger
	files    repos.FileRepo
	messages repos.MessageRepo
	ai       openai.Client
	store    pinecone.VectorStore
}

func NewEngine(
	baseLog *logger.Logger,
	files repos.FileRepo,
	messages repos.MessageRepo,
	ai openai.Client,
	store pinecone.VectorStore,
) Engine {
	return &engine{
		log:      baseLog.With("component", "AnswerEngine"),
		files:    files,
		messages: messages,
		ai:       ai,
		store:    store,
	}
}

// Answer runs the strictly sequential flow: authorize, record the
// question, embed, retrieve, window history, compose, then hand back a
// stream. Authorization and validation failures happen before any side
// effect; everything after the question record leaves the question
// durable no matter what fails later.
func (e *engine) Answer(ctx context.Context, userID, fileID uuid.UUID, question string) (*AnswerStream, error) {
	ctx = ctxutil.Default(ctx)

	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question required", apperr.ErrInvalidArgument)
	}

	file, err := e.files.GetByIDAndUser(ctx, nil, fileID, userID)
	if err != nil {
		return nil, fmt.Errorf("authorize file: %w", err)
	}
	if file == nil {
		// Missing and not-owned are indistinguishable on purpose.
		return nil, apperr.ErrNotFound
	}

	userMsg, err := e.messages.Create(ctx, nil, &types.Message{
		FileID:        fileID,
		UserID:        userID,
		IsUserMessage: true,
		Text:          question,
	})
	if err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	embeddings, err := e.ai.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", apperr.ErrUpstream, err)
	}

	matches, err := e.store.Query(ctx, fileID.String(), embeddings[0], retrievalTopK)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve context: %w", apperr.ErrUpstream, err)
	}

	history, err := e.windowHistory(ctx, fileID, userMsg.ID)
	if err != nil {
		return nil, fmt.Errorf("window history: %w", err)
	}

	userPrompt := buildUserPrompt(renderHistory(history), renderContext(matches), question)

	stream := newAnswerStream()
	go e.streamAndPersist(ctx, stream, userID, fileID, userPrompt)
	return stream, nil
}

// windowHistory returns the most recent turns oldest-first, excluding the
// question just recorded (it already appears verbatim in the prompt).
func (e *engine) windowHistory(ctx context.Context, fileID, questionID uuid.UUID) ([]*types.Message, error) {
	recent, err := e.messages.ListRecentByFile(ctx, nil, fileID, historyWindow+1)
	if err != nil {
		return nil, err
	}

	window := make([]*types.Message, 0, historyWindow)
	for _, msg := range recent {
		if msg.ID == questionID {
			continue
		}
		window = append(window, msg)
		if len(window) == historyWindow {
			break
		}
	}

	// Newest-first from the store; the prompt wants oldest-first.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window, nil
}

// streamAndPersist forwards model fragments to the stream and, only when
// the model stream completes naturally, persists the generated turn.
// Cancellation or a mid-stream error persists nothing.
func (e *engine) streamAndPersist(ctx context.Context, stream *AnswerStream, userID, fileID uuid.UUID, userPrompt string) {
	full, err := e.ai.StreamChat(ctx, systemPrompt, userPrompt, func(delta string) error {
		select {
		case stream.fragments <- delta:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err != nil {
		e.log.Warn("Answer stream ended without completion", "file_id", fileID, "error", err)
		stream.finish(fmt.Errorf("%w: completion stream: %w", apperr.ErrUpstream, err))
		return
	}

	// Detached from the request context: a client that disconnects right
	// after the final fragment must not lose the completed answer.
	persistCtx := context.WithoutCancel(ctx)
	if _, perr := e.messages.Create(persistCtx, nil, &types.Message{
		FileID:        fileID,
		UserID:        userID,
		IsUserMessage: false,
		Text:          full,
	}); perr != nil {
		e.log.Error("Failed to persist generated answer", "file_id", fileID, "error", perr)
		stream.finish(fmt.Errorf("persist answer: %w", perr))
		return
	}

	stream.finish(nil)
}

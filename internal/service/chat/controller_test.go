package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	chatmodel "github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
	"github.com/zhouzirui/kids-tutor/backend/internal/service/ai"
	"github.com/zhouzirui/kids-tutor/backend/internal/service/ai/mocks"
	chat "github.com/zhouzirui/kids-tutor/backend/internal/service/chat"
)

type recordingRenderer struct {
	mu       sync.Mutex
	states   []chat.State
	rendered [][]chatmodel.Turn
	failures []error
}

func (r *recordingRenderer) Working(state chat.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingRenderer) Render(turns []chatmodel.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, turns)
}

func (r *recordingRenderer) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

type pipelineFixture struct {
	completer  *mocks.MockCompleter
	controller *chat.Controller
	personas   persona.Store
}

func newFixture(t *testing.T, maxInput int) *pipelineFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	completer := mocks.NewMockCompleter(ctrl)
	personas := persona.NewMemoryStore(persona.Seed())
	prompts := ai.NewPersonaPromptManager()

	reviewerPersona, ok := personas.FindByID(persona.ReviewerID)
	require.True(t, ok)

	generator := ai.NewService(completer, prompts, "", zerolog.Nop())
	reviewer := ai.NewReviewer(completer, prompts, &reviewerPersona, "", zerolog.Nop())
	controller := chat.NewController(generator, reviewer, personas, chat.ControllerConfig{MaxInputChars: maxInput}, zerolog.Nop())

	return &pipelineFixture{completer: completer, controller: controller, personas: personas}
}

func newHandle(pipeline chatmodel.Pipeline) *chat.Handle {
	return chat.NewHandle(chatmodel.Session{
		ID:        "session-1",
		PersonaID: persona.DefaultTutorID,
		Pipeline:  pipeline,
	})
}

func TestSubmitGeneratorOnlyScenario(t *testing.T) {
	f := newFixture(t, chat.DefaultMaxInputChars)
	h := newHandle(chatmodel.GeneratorOnly)
	renderer := &recordingRenderer{}

	f.completer.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ai.GenerationRequest) (string, error) {
			require.Len(t, req.Messages, 2)
			assert.Equal(t, schema.System, req.Messages[0].Role)
			assert.Equal(t, schema.User, req.Messages[1].Role)
			assert.Equal(t, "クラスって何？", req.Messages[1].Content)
			assert.InDelta(t, 0.3, req.Temperature, 1e-6)
			return "クラスは設計図だよ🧩", nil
		})

	result, err := f.controller.Submit(context.Background(), h, "クラスって何？", renderer)
	require.NoError(t, err)
	assert.False(t, result.Reviewed)

	turns := h.Conversation.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, chatmodel.RoleUser, turns[0].Role)
	assert.Equal(t, "クラスって何？", turns[0].Text)
	assert.Equal(t, chatmodel.RoleAssistant, turns[1].Role)
	assert.Equal(t, "クラスは設計図だよ🧩", turns[1].Text)

	assert.Equal(t, []chat.State{chat.StateAwaitingGeneration}, renderer.states)
	require.Len(t, renderer.rendered, 1)
	assert.Len(t, renderer.rendered[0], 2)
	assert.Empty(t, renderer.failures)
	assert.Equal(t, chat.StateIdle, h.State())
}

func TestSubmitReviewerOutputReplacesDraft(t *testing.T) {
	f := newFixture(t, chat.DefaultMaxInputChars)
	h := newHandle(chatmodel.GeneratorThenReviewer)
	renderer := &recordingRenderer{}

	gomock.InOrder(
		f.completer.EXPECT().
			Complete(gomock.Any(), gomock.Any()).
			Return("それは危険です", nil),
		f.completer.EXPECT().
			Complete(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req ai.GenerationRequest) (string, error) {
				require.Len(t, req.Messages, 2)
				assert.Equal(t, "それは危険です", req.Messages[1].Content)
				assert.Zero(t, req.Temperature)
				return "やさしく言い換えた答え", nil
			}),
	)

	result, err := f.controller.Submit(context.Background(), h, "ナイフで遊んでいい？", renderer)
	require.NoError(t, err)
	assert.True(t, result.Reviewed)
	assert.Equal(t, "それは危険です", result.Draft)
	assert.Equal(t, "やさしく言い換えた答え", result.Assistant.Text)

	turns := h.Conversation.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "ナイフで遊んでいい？", turns[0].Text)
	assert.Equal(t, "やさしく言い換えた答え", turns[1].Text)
	for _, turn := range turns {
		assert.NotEqual(t, "それは危険です", turn.Text)
	}

	assert.Equal(t, []chat.State{chat.StateAwaitingGeneration, chat.StateAwaitingReview}, renderer.states)
}

func TestSubmitAppendsAfterExistingHistory(t *testing.T) {
	f := newFixture(t, chat.DefaultMaxInputChars)
	h := newHandle(chatmodel.GeneratorOnly)
	h.Conversation.Append(chatmodel.UserTurn("変数って何？"), chatmodel.AssistantTurn("変数は箱だよ📦"))
	before := h.Conversation.Turns()

	f.completer.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ai.GenerationRequest) (string, error) {
			require.Len(t, req.Messages, 4)
			return "ループはくりかえしだよ🔁", nil
		})

	_, err := f.controller.Submit(context.Background(), h, "ループって何？", nil)
	require.NoError(t, err)

	turns := h.Conversation.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, before, turns[:2])
	assert.Equal(t, chatmodel.RoleUser, turns[2].Role)
	assert.Equal(t, "ループって何？", turns[2].Text)
	assert.Equal(t, chatmodel.RoleAssistant, turns[3].Role)
	assert.Equal(t, "ループはくりかえしだよ🔁", turns[3].Text)
}

func TestSubmitFailureLeavesHistoryUntouched(t *testing.T) {
	tests := []struct {
		name     string
		pipeline chatmodel.Pipeline
		setup    func(m *mocks.MockCompleter)
		wantErr  error
	}{
		{
			name:     "generator authentication failure",
			pipeline: chatmodel.GeneratorOnly,
			setup: func(m *mocks.MockCompleter) {
				m.EXPECT().Complete(gomock.Any(), gomock.Any()).
					Return("", &ai.CompletionError{Kind: ai.ErrAuthentication, StatusCode: 401, Err: errors.New("bad key")})
			},
			wantErr: ai.ErrAuthentication,
		},
		{
			name:     "generator transport failure",
			pipeline: chatmodel.GeneratorThenReviewer,
			setup: func(m *mocks.MockCompleter) {
				m.EXPECT().Complete(gomock.Any(), gomock.Any()).
					Return("", &ai.CompletionError{Kind: ai.ErrTransport, Err: errors.New("connection reset")})
			},
			wantErr: ai.ErrTransport,
		},
		{
			name:     "reviewer rate limited",
			pipeline: chatmodel.GeneratorThenReviewer,
			setup: func(m *mocks.MockCompleter) {
				gomock.InOrder(
					m.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("draft", nil),
					m.EXPECT().Complete(gomock.Any(), gomock.Any()).
						Return("", &ai.CompletionError{Kind: ai.ErrRateLimitOrQuota, StatusCode: 429, Err: errors.New("slow down")}),
				)
			},
			wantErr: ai.ErrRateLimitOrQuota,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, chat.DefaultMaxInputChars)
			h := newHandle(tt.pipeline)
			h.Conversation.Append(chatmodel.UserTurn("前の質問"), chatmodel.AssistantTurn("前の答え"))
			renderer := &recordingRenderer{}
			tt.setup(f.completer)

			_, err := f.controller.Submit(context.Background(), h, "新しい質問", renderer)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, 2, h.Conversation.Len())
			require.Len(t, renderer.failures, 1)
			assert.ErrorIs(t, renderer.failures[0], tt.wantErr)
			assert.Empty(t, renderer.rendered)
			assert.Equal(t, chat.StateIdle, h.State())
		})
	}
}

func TestSubmitRejectsInputWithoutCalling(t *testing.T) {
	tests := []struct {
		name     string
		maxInput int
		text     string
	}{
		{name: "empty", maxInput: 200, text: ""},
		{name: "whitespace", maxInput: 200, text: "  \n\t "},
		{name: "over limit", maxInput: 200, text: strings.Repeat("あ", 201)},
		{name: "empty when unbounded", maxInput: 0, text: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No EXPECT: any completion call fails the test.
			f := newFixture(t, tt.maxInput)
			h := newHandle(chatmodel.GeneratorThenReviewer)
			renderer := &recordingRenderer{}

			_, err := f.controller.Submit(context.Background(), h, tt.text, renderer)
			require.ErrorIs(t, err, chat.ErrInputRejected)
			assert.Equal(t, 0, h.Conversation.Len())
			assert.Len(t, renderer.failures, 1)
			assert.Empty(t, renderer.states)
		})
	}
}

func TestSubmitInputBoundCountsRunes(t *testing.T) {
	f := newFixture(t, chat.DefaultMaxInputChars)
	h := newHandle(chatmodel.GeneratorOnly)
	f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("ok", nil)

	_, err := f.controller.Submit(context.Background(), h, strings.Repeat("あ", 200), nil)
	require.NoError(t, err)
}

func TestSubmitUnboundedInput(t *testing.T) {
	f := newFixture(t, 0)
	h := newHandle(chatmodel.GeneratorOnly)
	f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("ok", nil)

	_, err := f.controller.Submit(context.Background(), h, strings.Repeat("a", 5000), nil)
	require.NoError(t, err)
	assert.Zero(t, f.controller.MaxInputChars())
}

type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) GenerateResponse(ctx context.Context, _ *persona.Persona, _ []chatmodel.Turn, _ string) (string, error) {
	close(g.started)
	<-g.release
	return "done", nil
}

func TestSubmitRejectsConcurrentTurn(t *testing.T) {
	gen := &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	controller := chat.NewController(gen, nil, persona.NewMemoryStore(persona.Seed()), chat.ControllerConfig{MaxInputChars: 200}, zerolog.Nop())
	h := newHandle(chatmodel.GeneratorOnly)

	errCh := make(chan error, 1)
	go func() {
		_, err := controller.Submit(context.Background(), h, "first", nil)
		errCh <- err
	}()

	<-gen.started
	assert.Equal(t, chat.StateAwaitingGeneration, h.State())

	_, err := controller.Submit(context.Background(), h, "second", nil)
	require.ErrorIs(t, err, chat.ErrTurnInProgress)

	close(gen.release)
	require.NoError(t, <-errCh)
	assert.Equal(t, 2, h.Conversation.Len())
}

type staticGenerator string

func (g staticGenerator) GenerateResponse(context.Context, *persona.Persona, []chatmodel.Turn, string) (string, error) {
	return string(g), nil
}

func TestSubmitReviewerMissing(t *testing.T) {
	controller := chat.NewController(staticGenerator("draft"), nil, persona.NewMemoryStore(persona.Seed()), chat.ControllerConfig{}, zerolog.Nop())
	h := newHandle(chatmodel.GeneratorThenReviewer)

	_, err := controller.Submit(context.Background(), h, "question", nil)
	require.ErrorIs(t, err, chat.ErrReviewerUnavailable)
	assert.Equal(t, 0, h.Conversation.Len())
}

func TestSubmitUnknownPersona(t *testing.T) {
	controller := chat.NewController(staticGenerator("draft"), nil, persona.NewMemoryStore(nil), chat.ControllerConfig{}, zerolog.Nop())
	h := newHandle(chatmodel.GeneratorOnly)

	_, err := controller.Submit(context.Background(), h, "question", nil)
	require.ErrorIs(t, err, chat.ErrPersonaNotFound)
}

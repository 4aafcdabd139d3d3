package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
	"github.com/zhouzirui/kids-tutor/backend/internal/service/ai"
)

// DefaultMaxInputChars bounds a submission, counted in runes.
const DefaultMaxInputChars = 200

// State is the position of a session inside the current turn.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingGeneration State = "awaiting_generation"
	StateAwaitingReview     State = "awaiting_review"
	StateDone               State = "done"
)

// Generator produces the first-stage answer.
type Generator interface {
	GenerateResponse(ctx context.Context, tutor *persona.Persona, history []chat.Turn, userMessage string) (string, error)
}

// Reviewer revises a generated answer.
type Reviewer interface {
	Review(ctx context.Context, generatedText string) (string, error)
}

// Renderer is the display side of an interaction surface.
type Renderer interface {
	// Working is called on every transition into a waiting state.
	Working(state State)
	// Render receives the full history after a successful turn.
	Render(turns []chat.Turn)
	// Fail receives every error that aborts a turn.
	Fail(err error)
}

type nopRenderer struct{}

func (nopRenderer) Working(State)      {}
func (nopRenderer) Render([]chat.Turn) {}
func (nopRenderer) Fail(error)         {}

// Handle owns the conversation of one session and serializes its turns.
type Handle struct {
	Session      chat.Session
	Conversation *chat.Conversation

	turnMu  sync.Mutex
	stateMu sync.RWMutex
	state   State
}

// NewHandle returns a handle with an empty conversation.
func NewHandle(session chat.Session) *Handle {
	return &Handle{
		Session:      session,
		Conversation: chat.NewConversation(),
		state:        StateIdle,
	}
}

// State reports where the session is in its current turn.
func (h *Handle) State() State {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.state
}

func (h *Handle) setState(state State) {
	h.stateMu.Lock()
	h.state = state
	h.stateMu.Unlock()
}

// TurnResult is what a successful turn appended.
type TurnResult struct {
	User      chat.Turn `json:"user"`
	Assistant chat.Turn `json:"assistant"`
	// Draft is the generator output; it differs from Assistant.Text only when
	// the reviewer stage ran.
	Draft    string `json:"draft,omitempty"`
	Reviewed bool   `json:"reviewed"`
}

// ControllerConfig holds the per-application knobs of the controller.
type ControllerConfig struct {
	// MaxInputChars bounds submissions in runes; 0 disables the bound.
	MaxInputChars int
}

// Controller runs one user turn through the configured pipeline.
type Controller struct {
	generator     Generator
	reviewer      Reviewer
	personas      persona.Store
	maxInputChars int
	logger        zerolog.Logger
}

// NewController wires the pipeline stages. reviewer may be nil when no
// session uses the reviewer stage.
func NewController(generator Generator, reviewer Reviewer, personas persona.Store, cfg ControllerConfig, logger zerolog.Logger) *Controller {
	return &Controller{
		generator:     generator,
		reviewer:      reviewer,
		personas:      personas,
		maxInputChars: cfg.MaxInputChars,
		logger:        logger.With().Str("component", "controller").Logger(),
	}
}

// MaxInputChars reports the submission bound, 0 meaning unbounded.
func (c *Controller) MaxInputChars() int {
	return c.maxInputChars
}

// ValidateInput rejects empty submissions and submissions over the bound.
func (c *Controller) ValidateInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message is empty", ErrInputRejected)
	}
	if c.maxInputChars > 0 {
		if n := utf8.RuneCountInString(text); n > c.maxInputChars {
			return fmt.Errorf("%w: message has %d characters, limit is %d", ErrInputRejected, n, c.maxInputChars)
		}
	}
	return nil
}

// Submit runs one turn for h. On success the user turn and the final
// assistant turn are appended in that order and the renderer receives the
// new history. On any failure nothing is appended and the renderer receives
// the error.
func (c *Controller) Submit(ctx context.Context, h *Handle, text string, r Renderer) (TurnResult, error) {
	if r == nil {
		r = nopRenderer{}
	}

	result, err := c.submit(ctx, h, text, r)
	if err != nil {
		r.Fail(err)
		return TurnResult{}, err
	}
	r.Render(h.Conversation.Turns())
	return result, nil
}

func (c *Controller) submit(ctx context.Context, h *Handle, text string, r Renderer) (TurnResult, error) {
	if err := c.ValidateInput(text); err != nil {
		return TurnResult{}, err
	}

	if !h.turnMu.TryLock() {
		return TurnResult{}, ErrTurnInProgress
	}
	defer h.turnMu.Unlock()
	defer h.setState(StateIdle)

	tutor, ok := c.personas.FindByID(h.Session.PersonaID)
	if !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, h.Session.PersonaID)
	}

	logger := c.logger.With().
		Str("session", h.Session.ID).
		Str("persona", tutor.ID).
		Str("pipeline", string(h.Session.Pipeline)).
		Logger()
	start := time.Now()

	h.setState(StateAwaitingGeneration)
	r.Working(StateAwaitingGeneration)

	history := h.Conversation.Recent(ai.HistoryWindow)
	draft, err := c.generator.GenerateResponse(ctx, &tutor, history, text)
	if err != nil {
		logger.Warn().Err(err).Str("stage", "generator").Msg("turn aborted")
		return TurnResult{}, err
	}

	final := draft
	reviewed := false
	if h.Session.Pipeline.Reviewed() {
		if c.reviewer == nil {
			return TurnResult{}, ErrReviewerUnavailable
		}

		h.setState(StateAwaitingReview)
		r.Working(StateAwaitingReview)

		final, err = c.reviewer.Review(ctx, draft)
		if err != nil {
			logger.Warn().Err(err).Str("stage", "reviewer").Msg("turn aborted")
			return TurnResult{}, err
		}
		reviewed = true
	}

	h.setState(StateDone)
	userTurn := chat.UserTurn(text)
	assistantTurn := chat.AssistantTurn(final)
	h.Conversation.Append(userTurn, assistantTurn)

	logger.Info().
		Bool("reviewed", reviewed).
		Int("history", len(history)).
		Int("turns", h.Conversation.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("turn completed")

	return TurnResult{
		User:      userTurn,
		Assistant: assistantTurn,
		Draft:     draft,
		Reviewed:  reviewed,
	}, nil
}

package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
)

// Service encapsulates conversation state management.
type Service struct {
	mu         sync.RWMutex
	sessions   map[string]*Handle
	controller *Controller
	personas   persona.Store
	pipeline   chat.Pipeline
}

// NewService bootstraps the in-memory session registry. pipeline is applied
// to sessions created without an explicit one.
func NewService(controller *Controller, personas persona.Store, pipeline chat.Pipeline) *Service {
	if pipeline == "" {
		pipeline = chat.GeneratorOnly
	}
	return &Service{
		sessions:   make(map[string]*Handle),
		controller: controller,
		personas:   personas,
		pipeline:   pipeline,
	}
}

// DefaultPipeline returns the pipeline new sessions get by default.
func (s *Service) DefaultPipeline() chat.Pipeline {
	return s.pipeline
}

// CreateSession provisions an anonymous session bound to a tutor persona.
// Empty arguments fall back to the default tutor and pipeline.
func (s *Service) CreateSession(_ context.Context, personaID string, pipeline chat.Pipeline) (chat.Session, error) {
	if personaID == "" {
		personaID = persona.DefaultTutorID
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok || p.Kind != persona.KindTutor {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}
	if pipeline == "" {
		pipeline = s.pipeline
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		Pipeline:  pipeline,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = NewHandle(session)
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	h, err := s.Handle(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return h.Session, nil
}

// Handle returns the live handle of a session.
func (s *Service) Handle(_ context.Context, sessionID string) (*Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

// LoadTranscript returns stored turns for the provided session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	h, err := s.Handle(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return h.Conversation.Turns(), nil
}

// Submit runs one turn on the given session.
func (s *Service) Submit(ctx context.Context, sessionID, text string, r Renderer) (TurnResult, error) {
	h, err := s.Handle(ctx, sessionID)
	if err != nil {
		if r != nil {
			r.Fail(err)
		}
		return TurnResult{}, err
	}
	return s.controller.Submit(ctx, h, text, r)
}

// EndSession drops the session and its history.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

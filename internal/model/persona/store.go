package persona

// Store exposes persona retrieval for HTTP handlers and the chat pipeline.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns every persona, reviewers included.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Tutors filters the personas a session can be bound to.
func Tutors(s Store) []Persona {
	all := s.List()
	tutors := make([]Persona, 0, len(all))
	for _, item := range all {
		if item.Kind == KindTutor {
			tutors = append(tutors, item)
		}
	}
	return tutors
}

package chat

import (
	"fmt"
	"strings"
	"time"
)

// Pipeline selects which completion stages run for every turn of a session.
type Pipeline string

const (
	// GeneratorOnly answers with the tutor output as-is.
	GeneratorOnly Pipeline = "generator_only"
	// GeneratorThenReviewer passes the tutor output through the reviewer
	// before it is shown or stored.
	GeneratorThenReviewer Pipeline = "generator_then_reviewer"
)

// ParsePipeline maps configuration and request values onto a Pipeline.
// An empty value is not accepted; callers apply their own default first.
func ParsePipeline(raw string) (Pipeline, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(GeneratorOnly), "generator", "single":
		return GeneratorOnly, nil
	case string(GeneratorThenReviewer), "reviewer", "two_stage":
		return GeneratorThenReviewer, nil
	default:
		return "", fmt.Errorf("unknown pipeline %q", raw)
	}
}

// Reviewed reports whether the reviewer stage is part of the pipeline.
func (p Pipeline) Reviewed() bool {
	return p == GeneratorThenReviewer
}

// Session captures a transient anonymous conversation.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	Pipeline  Pipeline  `json:"pipeline"`
	CreatedAt time.Time `json:"createdAt"`
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatmodel "github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/kids-tutor/backend/internal/model/persona"
	"github.com/zhouzirui/kids-tutor/backend/internal/service/ai"
	"github.com/zhouzirui/kids-tutor/backend/internal/service/chat"
)

type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type cannedGenerator struct {
	reply string
	err   error
	calls int
}

func (g *cannedGenerator) GenerateResponse(context.Context, *persona.Persona, []chatmodel.Turn, string) (string, error) {
	g.calls++
	return g.reply, g.err
}

func newService(gen chat.Generator) *chat.Service {
	store := persona.NewMemoryStore(persona.Seed())
	controller := chat.NewController(gen, nil, store, chat.ControllerConfig{MaxInputChars: chat.DefaultMaxInputChars}, zerolog.Nop())
	return chat.NewService(controller, store, chatmodel.GeneratorOnly)
}

func TestREPLPrintsHistoryAfterTurn(t *testing.T) {
	gen := &cannedGenerator{reply: "クラスは設計図のようなものだよ。"}
	var out bytes.Buffer
	repl := NewREPL(newService(gen), &scriptedInput{lines: []string{"クラスって何？", "/quit"}}, &out)

	require.NoError(t, repl.Run(context.Background(), "", ""))

	text := out.String()
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, text, WorkingLabel)
	assert.Contains(t, text, UserLabel+": クラスって何？")
	assert.Contains(t, text, AssistantLabel+": クラスは設計図のようなものだよ。")
	assert.Less(t, strings.Index(text, UserLabel+":"), strings.Index(text, AssistantLabel+":"))
}

func TestREPLSkipsBlankLinesAndStopsAtEOF(t *testing.T) {
	gen := &cannedGenerator{reply: "unused"}
	var out bytes.Buffer
	repl := NewREPL(newService(gen), &scriptedInput{lines: []string{"   ", ""}}, &out)

	require.NoError(t, repl.Run(context.Background(), "", ""))
	assert.Zero(t, gen.calls)
}

func TestREPLReportsFailureWithoutHistory(t *testing.T) {
	gen := &cannedGenerator{err: &ai.CompletionError{Kind: ai.ErrAuthentication, Err: errors.New("401")}}
	var out bytes.Buffer
	repl := NewREPL(newService(gen), &scriptedInput{lines: []string{"hello", "/history"}}, &out)

	require.NoError(t, repl.Run(context.Background(), "", ""))

	text := out.String()
	assert.Contains(t, text, "APIキー")
	assert.NotContains(t, text, UserLabel+": hello")
}

func TestREPLRejectsOverlongInput(t *testing.T) {
	gen := &cannedGenerator{reply: "unused"}
	var out bytes.Buffer
	long := strings.Repeat("あ", chat.DefaultMaxInputChars+1)
	repl := NewREPL(newService(gen), &scriptedInput{lines: []string{long}}, &out)

	require.NoError(t, repl.Run(context.Background(), "", ""))
	assert.Zero(t, gen.calls)
	assert.Contains(t, out.String(), "入力を確認してください")
}

func TestREPLUnknownPersona(t *testing.T) {
	var out bytes.Buffer
	repl := NewREPL(newService(&cannedGenerator{}), &scriptedInput{}, &out)

	err := repl.Run(context.Background(), "nobody", "")
	assert.ErrorIs(t, err, chat.ErrPersonaNotFound)
}

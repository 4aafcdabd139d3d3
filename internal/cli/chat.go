// Package cli is the terminal surface of the tutor: a line prompt, a
// working indicator while a turn is in flight, and the full history
// reprinted after every successful turn.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	chatmodel "github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/kids-tutor/backend/internal/service/chat"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// Labels used when the history is printed.
const (
	UserLabel      = "ユーザー"
	AssistantLabel = "アシスタント"
	WorkingLabel   = "考え中..."
)

// LineReader is the input side of the terminal.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// Input wraps liner with a persisted input history.
type Input struct {
	line        *liner.State
	historyFile string
}

// NewInput opens the terminal for line editing. historyFile may be empty.
func NewInput(historyFile string) *Input {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	in := &Input{line: line, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return in
}

// DefaultHistoryFile returns the input history path under the user config dir.
func DefaultHistoryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "kids-tutor", "chat_history")
}

// Prompt reads one line; non-empty lines enter the input history.
func (in *Input) Prompt(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

// Close persists the input history and restores the terminal.
func (in *Input) Close() error {
	if in.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(in.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = in.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return in.line.Close()
}

// Printer renders controller events to a terminal.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter returns a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Working prints the indicator once, when generation starts.
func (p *Printer) Working(state chat.State) {
	if state != chat.StateAwaitingGeneration {
		return
	}
	p.println(infoStyle.Render(WorkingLabel))
}

// Render reprints the whole conversation.
func (p *Printer) Render(turns []chatmodel.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, infoStyle.Render(strings.Repeat("─", 30)))
	for _, turn := range turns {
		fmt.Fprintf(p.out, "%s %s\n", labelFor(turn.Role), turn.Text)
	}
	fmt.Fprintln(p.out, infoStyle.Render(strings.Repeat("─", 30)))
}

// Fail prints a turn error in terms a user can act on.
func (p *Printer) Fail(err error) {
	p.println(fmt.Sprintf("%s %s", errorStyle.Render("[エラー]"), describe(err)))
}

func (p *Printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func labelFor(role chatmodel.Role) string {
	if role == chatmodel.RoleUser {
		return userStyle.Render(UserLabel + ":")
	}
	return assistantStyle.Render(AssistantLabel + ":")
}

func describe(err error) string {
	switch chat.Classify(err) {
	case chat.KindInputRejected:
		return "入力を確認してください: " + err.Error()
	case chat.KindAuthentication:
		return "APIキーを確認してください: " + err.Error()
	case chat.KindRateLimit:
		return "利用制限に達しました。しばらく待ってから試してください: " + err.Error()
	case chat.KindTransport:
		return "通信に失敗しました: " + err.Error()
	default:
		return err.Error()
	}
}

// REPL runs one terminal session against the chat service.
type REPL struct {
	svc     *chat.Service
	in      LineReader
	printer *Printer
	out     io.Writer
}

// NewREPL binds the terminal to svc.
func NewREPL(svc *chat.Service, in LineReader, out io.Writer) *REPL {
	return &REPL{svc: svc, in: in, printer: NewPrinter(out), out: out}
}

// Run creates a session and reads lines until /quit, EOF or Ctrl+C.
func (r *REPL) Run(ctx context.Context, personaID string, pipeline chatmodel.Pipeline) error {
	session, err := r.svc.CreateSession(ctx, personaID, pipeline)
	if err != nil {
		return err
	}
	defer func() { _ = r.svc.EndSession(context.Background(), session.ID) }()

	r.printWelcome(session)

	for {
		if ctx.Err() != nil {
			return nil
		}

		text, err := r.in.Prompt(promptStyle.Render("> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "/") {
			if !r.handleCommand(ctx, session.ID, trimmed) {
				return nil
			}
			continue
		}

		// Failures reach the user through Printer.Fail.
		_, _ = r.svc.Submit(ctx, session.ID, text, r.printer)
	}
}

// handleCommand reports whether the loop should continue.
func (r *REPL) handleCommand(ctx context.Context, sessionID, cmd string) bool {
	switch strings.ToLower(strings.Fields(cmd)[0]) {
	case "/quit", "/exit":
		return false
	case "/history":
		turns, err := r.svc.LoadTranscript(ctx, sessionID)
		if err != nil {
			r.printer.Fail(err)
			return true
		}
		r.printer.Render(turns)
	case "/help":
		fmt.Fprintln(r.out, infoStyle.Render("/history  これまでの会話を表示"))
		fmt.Fprintln(r.out, infoStyle.Render("/quit     終了"))
	default:
		fmt.Fprintf(r.out, "%s %s\n", errorStyle.Render("[エラー]"), "unknown command: "+cmd)
	}
	return true
}

func (r *REPL) printWelcome(session chatmodel.Session) {
	fmt.Fprintln(r.out, titleStyle.Render("プログラミング教室チャット"))
	fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("persona:"), session.PersonaID)
	fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("pipeline:"), session.Pipeline)
	fmt.Fprintln(r.out, infoStyle.Render("質問を入力してEnterを押してください。/help でコマンド一覧"))
}

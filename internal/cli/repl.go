// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Interactive plain-mode chat for terminals without a TUI.
//
// Handles the "alfachat --plain" mode: a readline loop that talks the
// same WebSocket protocol as the full-screen client but prints
// responses directly as they stream, with no reveal pacing.
//
// Interactive commands (during chat):
//   /help, /h           Show available commands
//   /files [path]       List workspace files
//   /rag on|off         Toggle retrieval context for sends
//   /rag status         Show document index status
//   /rag process        Rebuild the document index
//   /edit TEXT          Replace the last sent message and regenerate
//   /retry              Regenerate the last response
//   /clear              Clear the screen
//   /quit, /q           Exit
//   Ctrl+D              Exit
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"

	"github.com/jeranaias/alfachat-tui/internal/config"
	"github.com/jeranaias/alfachat-tui/internal/files"
	"github.com/jeranaias/alfachat-tui/internal/rag"
	"github.com/jeranaias/alfachat-tui/internal/render"
	"github.com/jeranaias/alfachat-tui/internal/transport"
	"github.com/jeranaias/alfachat-tui/internal/util"
)

// historyFileName is the readline history file under the config dir.
const historyFileName = "repl_history"

// connectTimeout bounds the wait for the server's connected event.
const connectTimeout = 10 * time.Second

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates the line editor and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, historyFileName),
	}
	c.loadHistory()
	return c
}

func (c *ChatCLI) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// saveHistory persists history with owner-only permissions.
func (c *ChatCLI) saveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.saveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// REPL is one plain-mode chat session.
type REPL struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	client *transport.Client
	events chan transport.Envelope
	closed chan error

	userID string
	useRAG bool

	// lastPrompt and lastMessageID support /retry and /edit.
	lastPrompt    string
	lastMessageID string

	filesAPI *files.Client
	ragAPI   *rag.Client

	input *ChatCLI
}

// NewREPL creates a session bound to the configured server.
func NewREPL(cfg *config.Config, logger *slog.Logger) *REPL {
	return &REPL{
		cfg:      cfg,
		logger:   logger,
		out:      os.Stdout,
		events:   make(chan transport.Envelope, 32),
		closed:   make(chan error, 1),
		filesAPI: files.NewClient(cfg.Server.URL),
		ragAPI:   rag.NewClient(cfg.Server.URL),
	}
}

// Run connects and drives the prompt loop until exit.
func Run(cfg *config.Config, logger *slog.Logger) error {
	r := NewREPL(cfg, logger)
	if err := r.connect(); err != nil {
		return err
	}
	defer r.client.Close()

	r.input = NewChatCLI()
	defer r.input.Close()

	r.printBanner()
	return r.loop()
}

// connect dials the server and waits for the connected event, printing
// any replayed history.
func (r *REPL) connect() error {
	client, err := transport.Dial(context.Background(), r.cfg.WSURL(), r.logger)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", r.cfg.Server.URL, err)
	}
	r.client = client

	go func() {
		r.closed <- client.ReadLoop(context.Background(), func(env transport.Envelope) {
			r.events <- env
		})
	}()

	deadline := time.After(connectTimeout)
	for {
		select {
		case env := <-r.events:
			if env.Event != transport.EventConnected {
				continue
			}
			var ev transport.ConnectedEvent
			if err := env.Decode(&ev); err != nil {
				return fmt.Errorf("malformed connected event: %w", err)
			}
			r.userID = ev.UserID
			r.printHistory(ev.Messages)
			return nil
		case err := <-r.closed:
			if err != nil {
				return fmt.Errorf("connection closed: %w", err)
			}
			return errors.New("connection closed before session was established")
		case <-deadline:
			client.Close()
			return errors.New("timed out waiting for the server session")
		}
	}
}

// =============================================================================
// PROMPT LOOP
// =============================================================================

func (r *REPL) loop() error {
	for {
		line, err := r.input.ReadInput(styled(promptStyle, "> "))
		if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(r.out, styled(infoStyle, "(Ctrl+D or /quit to exit)"))
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.runCommand(line)
			if err != nil {
				fmt.Fprintln(r.out, styled(errorStyle, "error: ")+err.Error())
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.send(line); err != nil {
			fmt.Fprintln(r.out, styled(errorStyle, "error: ")+err.Error())
		}
	}
}

// send submits a prompt and prints the streamed response.
func (r *REPL) send(text string) error {
	id := uuid.NewString()
	env, err := transport.NewEnvelope(transport.EventSendMessage, transport.SendMessageEvent{
		UserID:    r.userID,
		Message:   text,
		MessageID: id,
		UseRAG:    r.useRAG,
	})
	if err != nil {
		return err
	}
	if err := r.client.Send(env); err != nil {
		return err
	}
	r.lastPrompt = text
	r.lastMessageID = id

	_, err = streamResponse(r.events, r.streamTimeout(), r.out)
	return err
}

// streamTimeout is how long to wait for stream traffic before giving
// up on a response.
func (r *REPL) streamTimeout() time.Duration {
	if d := r.cfg.Watchdog(); d > 0 {
		return d
	}
	return time.Minute
}

// streamResponse prints stream chunks as they arrive and returns the
// assembled response. The timeout applies between events, not to the
// whole response.
func streamResponse(events <-chan transport.Envelope, timeout time.Duration, w io.Writer) (string, error) {
	var b strings.Builder
	for {
		select {
		case env := <-events:
			switch env.Event {
			case transport.EventStream:
				var ev transport.StreamEvent
				if err := env.Decode(&ev); err != nil {
					return b.String(), err
				}
				if ev.Content != "" {
					b.WriteString(ev.Content)
					fmt.Fprint(w, ev.Content)
				}
				if ev.Done {
					fmt.Fprintln(w)
					fmt.Fprintln(w)
					return b.String(), nil
				}
			case transport.EventError:
				var ev transport.ErrorEvent
				if err := env.Decode(&ev); err != nil {
					return b.String(), err
				}
				return b.String(), errors.New(ev.Message)
			}
		case <-time.After(timeout):
			return b.String(), errors.New("timed out waiting for the response")
		}
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// runCommand dispatches a slash command. It returns true when the
// session should end.
func (r *REPL) runCommand(line string) (bool, error) {
	name, arg := splitCommand(line)
	switch name {
	case "/help", "/h":
		r.printHelp()
		return false, nil

	case "/quit", "/q", "/exit":
		return true, nil

	case "/clear":
		fmt.Fprint(r.out, "\033[2J\033[H")
		return false, nil

	case "/files":
		return false, r.listFiles(arg)

	case "/rag":
		return false, r.ragCommand(arg)

	case "/edit":
		return false, r.editLast(arg)

	case "/retry":
		return false, r.retry()

	default:
		return false, fmt.Errorf("unknown command %q, try /help", name)
	}
}

// splitCommand separates a slash command from its argument.
func splitCommand(line string) (name, arg string) {
	name, arg, _ = strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (r *REPL) listFiles(path string) error {
	listing, err := r.filesAPI.List(context.Background(), path)
	if err != nil {
		return err
	}
	if len(listing.Files) == 0 {
		fmt.Fprintln(r.out, styled(infoStyle, "(empty)"))
		return nil
	}
	for _, entry := range listing.Files {
		line := entry.Icon + " " + entry.Name
		if !entry.IsDir() {
			line += "  " + styled(infoStyle, entry.SizeFormatted)
		}
		fmt.Fprintln(r.out, line)
	}
	fmt.Fprintln(r.out, styled(infoStyle, strconv.Itoa(listing.TotalCount)+" item(s)"))
	return nil
}

func (r *REPL) ragCommand(arg string) error {
	switch arg {
	case "on":
		r.useRAG = true
		fmt.Fprintln(r.out, styled(commandStyle, "retrieval context enabled"))
		return nil
	case "off":
		r.useRAG = false
		fmt.Fprintln(r.out, styled(commandStyle, "retrieval context disabled"))
		return nil
	case "status", "":
		stats, err := r.ragAPI.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "index: %s, %d document(s)\n", stats.Status, stats.DocumentCount)
		return nil
	case "process":
		fmt.Fprintln(r.out, styled(infoStyle, "indexing..."))
		stats, err := r.ragAPI.Process(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "indexed %d of %d file(s), %d chunk(s)\n",
			stats.ProcessedFiles, stats.TotalFiles, stats.TotalChunks)
		for _, e := range stats.Errors {
			fmt.Fprintln(r.out, styled(warningStyle, "  "+e))
		}
		return nil
	default:
		return fmt.Errorf("usage: /rag on|off|status|process")
	}
}

// editLast replaces the last sent message server-side and prints the
// regenerated response.
func (r *REPL) editLast(text string) error {
	if text == "" {
		return errors.New("usage: /edit TEXT")
	}
	if r.lastMessageID == "" {
		return errors.New("nothing sent yet")
	}
	env, err := transport.NewEnvelope(transport.EventUpdateMessage, transport.UpdateMessageEvent{
		MessageID:  r.lastMessageID,
		NewContent: text,
	})
	if err != nil {
		return err
	}
	if err := r.client.Send(env); err != nil {
		return err
	}
	r.lastPrompt = text
	return r.awaitUpdated()
}

// awaitUpdated waits for the regenerated response after an edit.
func (r *REPL) awaitUpdated() error {
	deadline := time.After(r.streamTimeout())
	for {
		select {
		case env := <-r.events:
			switch env.Event {
			case transport.EventMessageUpdated:
				var ev transport.MessageUpdatedEvent
				if err := env.Decode(&ev); err != nil {
					return err
				}
				fmt.Fprintln(r.out, ev.NewContent)
				fmt.Fprintln(r.out)
				return nil
			case transport.EventError:
				var ev transport.ErrorEvent
				if err := env.Decode(&ev); err != nil {
					return err
				}
				return errors.New(ev.Message)
			}
		case <-deadline:
			return errors.New("timed out waiting for the updated response")
		}
	}
}

// retry asks for a fresh response to the last prompt.
func (r *REPL) retry() error {
	if r.lastPrompt == "" {
		return errors.New("nothing to retry")
	}
	fmt.Fprintln(r.out, styled(infoStyle, "regenerating: "+util.TruncateRunes(r.lastPrompt, 60)))
	env, err := transport.NewEnvelope(transport.EventSendMessage, transport.SendMessageEvent{
		UserID:     r.userID,
		Message:    r.lastPrompt,
		MessageID:  uuid.NewString(),
		UseRAG:     r.useRAG,
		Regenerate: true,
	})
	if err != nil {
		return err
	}
	if err := r.client.Send(env); err != nil {
		return err
	}
	_, err = streamResponse(r.events, r.streamTimeout(), r.out)
	return err
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *REPL) printBanner() {
	fmt.Fprintln(r.out, styled(bannerStyle, "Alfa AI"))
	fmt.Fprintln(r.out, styled(infoStyle, "server: "+r.cfg.Server.URL))
	fmt.Fprintln(r.out, styled(infoStyle, "/help for commands, Ctrl+D to exit"))
	fmt.Fprintln(r.out)
}

// printHistory shows the replayed conversation so a resumed session has
// its context on screen.
func (r *REPL) printHistory(history []transport.HistoryMessage) {
	if len(history) == 0 {
		return
	}
	for _, msg := range history {
		label := msg.Role + ": "
		content := msg.Content
		if msg.Role == "user" {
			label = styled(promptStyle, "you: ")
		} else {
			label = styled(commandStyle, msg.Role+": ")
			if ColorsEnabled() {
				content = render.HighlightFences(content)
			}
		}
		fmt.Fprintln(r.out, label+content)
	}
	fmt.Fprintln(r.out)
}

func (r *REPL) printHelp() {
	rows := [][2]string{
		{"/help, /h", "show this help"},
		{"/files [path]", "list workspace files"},
		{"/rag on|off", "toggle retrieval context"},
		{"/rag status", "show document index status"},
		{"/rag process", "rebuild the document index"},
		{"/edit TEXT", "replace the last message and regenerate"},
		{"/retry", "regenerate the last response"},
		{"/clear", "clear the screen"},
		{"/quit, /q", "exit"},
	}
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %-16s %s\n", styled(commandStyle, row[0]), row[1])
	}
}

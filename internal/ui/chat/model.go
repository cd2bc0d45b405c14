// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
package chat

import (
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/alfachat-tui/internal/config"
	"github.com/jeranaias/alfachat-tui/internal/files"
	"github.com/jeranaias/alfachat-tui/internal/model"
	"github.com/jeranaias/alfachat-tui/internal/rag"
	"github.com/jeranaias/alfachat-tui/internal/render"
	"github.com/jeranaias/alfachat-tui/internal/scroll"
	"github.com/jeranaias/alfachat-tui/internal/stream"
	"github.com/jeranaias/alfachat-tui/internal/transport"
	"github.com/jeranaias/alfachat-tui/internal/ui/components"
	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State is the connection state of the chat view.
type State int

const (
	StateConnecting State = iota // Dialing or waiting for the connected event
	StateReady                   // Session established
	StateOffline                 // Connection lost, reconnect pending
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. It owns the
// transcript, the reveal coordinator, the scroll controller and the
// transport bridge, and routes every inbound event through the update
// loop so none of them need locking.
type Model struct {
	cfg    *config.Config
	logger *slog.Logger
	theme  *styles.Theme

	state  State
	width  int
	height int

	// Conversation plumbing. The bridge owns the outbound protocol and
	// applies inbound events; the coordinator paces the reveal.
	transcript *model.Transcript
	coord      *stream.Coordinator
	bridge     *transport.Bridge
	sender     *deferredSender
	client     *transport.Client

	// Channels bridging the read loop goroutine into Update.
	envelopes chan transport.Envelope
	readErrs  chan error

	scroller *scroll.Controller

	// UI components
	renderer  *render.Renderer
	header    *components.Header
	viewport  *components.ChatViewport
	input     *components.InputArea
	statusBar *components.StatusBar
	spinner   components.Spinner
	toasts    *components.ToastManager
	welcome   components.Welcome
	filePanel *components.FilePanel

	// HTTP API clients
	filesAPI *files.Client
	ragAPI   *rag.Client

	keyMap KeyMap

	// File panel / RAG state
	showFiles   bool
	ragEnabled  bool
	attachments []string

	// Edit-in-place state
	editing bool
	editID  string

	// ticking is true while a reveal tick is scheduled, so at most one
	// tick is ever in flight.
	ticking  bool
	greeted  bool
	quitting bool
}

// deferredSender satisfies transport.Sender before the dial completes.
// The bridge is constructed once; the sender behind it arrives later.
type deferredSender struct {
	sender transport.Sender
}

func (d *deferredSender) Send(env transport.Envelope) error {
	if d.sender == nil {
		return transport.ErrNotConnected
	}
	return d.sender.Send(env)
}

// New creates the chat model from configuration. The returned model is
// ready for tea.NewProgram.
func New(cfg *config.Config, logger *slog.Logger) Model {
	theme := styles.NewTheme()

	transcript := model.NewTranscript()
	if cfg.UI.WelcomeMessage != "" {
		transcript.Append(model.NewWelcomeMessage(cfg.UI.WelcomeMessage))
	}

	coordOpts := []stream.Option{}
	if cfg.Stream.RunesPerTick > 0 {
		coordOpts = append(coordOpts, stream.WithRunesPerTick(cfg.Stream.RunesPerTick))
	}
	if d := cfg.Watchdog(); d > 0 {
		coordOpts = append(coordOpts, stream.WithIdleTimeout(d))
	}
	coord := stream.New(transcript, coordOpts...)

	sender := &deferredSender{}
	bridge := transport.NewBridge(transcript, coord, sender, logger)

	var renderer *render.Renderer
	if cfg.UI.Markdown {
		renderer = render.New(80)
	} else {
		renderer = render.NewPassthrough(80)
	}

	viewport := components.NewChatViewport(theme, renderer)
	viewport.SetShowTimestamps(cfg.UI.ShowTimestamps)

	scroller := scroll.NewController(viewport,
		scroll.WithDebounce(cfg.ScrollDebounce()))

	toasts := components.NewToastManager()

	welcome := components.NewWelcome(theme)
	welcome.SetServer(cfg.Server.URL)

	statusBar := components.NewStatusBar(theme)
	statusBar.SetConnection(components.ConnConnecting)

	// Structural transcript changes (append, replace, clear) flow to
	// the viewport and the status bar through the store's own
	// notifications; per-message streaming mutations repaint through
	// the reveal tick instead.
	transcript.Subscribe(func(model.Change) {
		viewport.SetMessages(transcript.Messages())
		statusBar.SetMessageCount(transcript.Len())
	})

	m := Model{
		cfg:        cfg,
		logger:     logger,
		theme:      theme,
		state:      StateConnecting,
		transcript: transcript,
		coord:      coord,
		bridge:     bridge,
		sender:     sender,
		envelopes:  make(chan transport.Envelope, 32),
		readErrs:   make(chan error, 1),
		scroller:   scroller,
		renderer:   renderer,
		header:     components.NewHeader(theme),
		viewport:   viewport,
		input:      components.NewInputArea(theme),
		statusBar:  statusBar,
		spinner:    components.NewSpinner(theme),
		toasts:     toasts,
		welcome:    welcome,
		filePanel:  components.NewFilePanel(theme),
		filesAPI:   files.NewClient(cfg.Server.URL),
		ragAPI:     rag.NewClient(cfg.Server.URL),
		keyMap:     DefaultKeyMap(),
	}

	// The reveal hook extends each streaming message by the newly
	// revealed suffix. Both strings are prefixes of the same buffer, so
	// the byte-index diff is always valid.
	coord.OnReveal(func(s *stream.Session) {
		msg, err := transcript.Get(s.MessageID)
		if err != nil {
			return
		}
		shown := msg.GetDisplayContent()
		revealed := s.RevealedText()
		if len(revealed) > len(shown) {
			msg.AppendDelta(revealed[len(shown):])
		}
	})

	// The done hook flushes whatever the reveal loop had not shown yet,
	// then settles the message. Server-reported errors are toasted by
	// the bridge's error hook, so only the local watchdog toasts here.
	coord.OnDone(func(messageID, content string, streamErr error) {
		msg, err := transcript.Get(messageID)
		if err != nil {
			return
		}
		shown := msg.GetDisplayContent()
		if len(content) > len(shown) {
			msg.AppendDelta(content[len(shown):])
		}
		if streamErr != nil {
			msg.FailStream()
			if errors.Is(streamErr, stream.ErrStalled) {
				toasts.AddError("Response stalled; stream aborted")
			}
			return
		}
		msg.FinalizeStream()
	})

	bridge.OnError(func(message string) {
		toasts.AddError(message)
	})

	return m
}

// Init starts the dial and focuses the input line.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.input.Focus(),
		m.connect(),
		components.ToastTickCmd(),
	)
}

// needsTick reports whether the passive loops have work left.
func (m Model) needsTick() bool {
	return m.coord.Active() ||
		m.scroller.IsAnimating() ||
		m.scroller.HasQueued() ||
		m.bridge.Waiting()
}

// ensureTick schedules a reveal tick if one is needed and none is in
// flight.
func (m *Model) ensureTick() tea.Cmd {
	if m.ticking || !m.needsTick() {
		return nil
	}
	m.ticking = true
	return revealTickCmd(m.cfg.RevealTick())
}

// refreshTranscript pushes the current transcript into the viewport
// and status bar.
func (m *Model) refreshTranscript() {
	m.viewport.SetMessages(m.transcript.Messages())
	m.statusBar.SetMessageCount(m.transcript.Len())
}

// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/parlor-foundation/parlor/games/tictactoe"
	"github.com/parlor-foundation/parlor/lib/codec"
	"github.com/parlor-foundation/parlor/peer"
	"github.com/parlor-foundation/parlor/wire"
)

// session is the immutable identity the model displays.
type session struct {
	matchID wire.MatchID
	seat    wire.PlayerID
	hosting bool
	invites []invite
}

// invite is one seat's join token, shown in the host's sidebar.
type invite struct {
	seat  wire.PlayerID
	token wire.Credentials
}

// Messages delivered from transport callbacks via uiBridge.
type pushMsg struct{ push wire.Push }
type statusMsg struct{ status peer.Status }
type connectFailedMsg struct{ err error }

// seatMarks are the board glyphs, indexed by seat.
var seatMarks = []string{"X", "O", "△", "□"}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	outcomeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	chatStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	boardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// chatHistory bounds the visible chat backlog.
const chatHistory = 8

type model struct {
	transport *peer.Transport
	info      session

	board    *tictactoe.State
	version  uint64
	ended    bool
	outcome  string
	presence []wire.SeatPresence
	status   peer.Status
	chat     []string
	cursor   int

	input     textinput.Model
	chatFocus bool
	err       error
}

func newModel(transport *peer.Transport, info session) model {
	input := textinput.New()
	input.Placeholder = "press tab to chat"
	input.CharLimit = 200
	return model{
		transport: transport,
		info:      info,
		input:     input,
	}
}

func (m model) Init() tea.Cmd {
	transport := m.transport
	return func() tea.Msg {
		if err := transport.Connect(context.Background()); err != nil {
			return connectFailedMsg{err: err}
		}
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case pushMsg:
		return m.applyPush(msg.push), nil
	case statusMsg:
		m.status = msg.status
		return m, nil
	case connectFailedMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.chatFocus {
		switch msg.Type {
		case tea.KeyEnter:
			if text := strings.TrimSpace(m.input.Value()); text != "" {
				m.transport.SendChat(wire.ChatMessage{
					ID:   uuid.NewString(),
					Body: text,
				})
			}
			m.input.Reset()
			return m, nil
		case tea.KeyEsc, tea.KeyTab:
			m.chatFocus = false
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		m.chatFocus = true
		return m, m.input.Focus()
	case "left", "h":
		m.moveCursor(-1, 0)
	case "right", "l":
		m.moveCursor(1, 0)
	case "up", "k":
		m.moveCursor(0, -1)
	case "down", "j":
		m.moveCursor(0, 1)
	case "enter", " ":
		m.place()
	case "r":
		m.transport.RequestSync()
	}
	return m, nil
}

func (m *model) moveCursor(dx, dy int) {
	if m.board == nil {
		return
	}
	size := m.board.Size
	x := m.cursor%size + dx
	y := m.cursor/size + dy
	if x < 0 || x >= size || y < 0 || y >= size {
		return
	}
	m.cursor = y*size + x
}

// place submits the cursor cell. The engine is the judge of turn
// order and occupancy; an out-of-turn press just gets rejected and
// nothing moves.
func (m *model) place() {
	if m.board == nil || m.ended {
		return
	}
	move, err := tictactoe.PlaceMove(m.cursor, "")
	if err != nil {
		return
	}
	m.transport.SendAction(move, m.version)
}

func (m model) applyPush(push wire.Push) model {
	switch push.Kind {
	case wire.PushSync:
		snapshot, err := wire.DecodeSnapshot(push.Sync.Snapshot, push.Sync.Compression)
		if err != nil {
			return m
		}
		m.setBoard(snapshot, push.Sync.Version, push.Sync.Ended, push.Sync.Outcome)
	case wire.PushState:
		m.setBoard(push.State.View, push.State.Version, push.State.Ended, push.State.Outcome)
	case wire.PushChat:
		line := fmt.Sprintf("[%s] %s", push.Chat.Message.Sender, push.Chat.Message.Body)
		m.chat = append(m.chat, line)
		if len(m.chat) > chatHistory {
			m.chat = m.chat[len(m.chat)-chatHistory:]
		}
	case wire.PushPresence:
		m.presence = push.Presence.Seats
	}
	return m
}

func (m *model) setBoard(view []byte, version uint64, ended bool, outcome string) {
	var board tictactoe.State
	if err := codec.Unmarshal(view, &board); err != nil {
		return
	}
	m.board = &board
	m.version = version
	m.ended = ended
	m.outcome = outcome
	if m.cursor >= len(board.Cells) {
		m.cursor = 0
	}
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("connect failed: %v\n", m.err)
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(m.viewBoard())
	b.WriteString("\n")
	if m.outcome != "" {
		b.WriteString(outcomeStyle.Render(m.outcome))
		b.WriteString("\n")
	}
	b.WriteString(m.viewChat())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("arrows move · enter places · tab chats · r re-syncs · q quits"))
	b.WriteString("\n")
	if m.info.hosting {
		b.WriteString(m.viewInvites())
	}
	return b.String()
}

func (m model) viewHeader() string {
	parts := []string{
		headerStyle.Render("parlor " + string(m.info.matchID)),
		fmt.Sprintf("seat %s (%s)", m.info.seat, seatMark(m.info.seat)),
		m.status.String(),
	}
	for _, seat := range m.presence {
		dot := "○"
		if seat.Connected {
			dot = "●"
		}
		parts = append(parts, fmt.Sprintf("%s %s", dot, seat.PlayerID))
	}
	return strings.Join(parts, "  ")
}

func (m model) viewBoard() string {
	if m.board == nil {
		return boardStyle.Render("waiting for snapshot...")
	}

	var rows []string
	for y := 0; y < m.board.Size; y++ {
		var cells []string
		for x := 0; x < m.board.Size; x++ {
			index := y*m.board.Size + x
			mark := "·"
			if owner := m.board.Cells[index]; owner >= 0 {
				mark = seatMarks[int(owner)%len(seatMarks)]
			}
			if index == m.cursor && !m.ended {
				mark = cursorStyle.Render(mark)
			}
			cells = append(cells, mark)
		}
		rows = append(rows, strings.Join(cells, " "))
	}

	board := boardStyle.Render(strings.Join(rows, "\n"))
	if m.ended {
		return board
	}
	turn := fmt.Sprintf("turn: seat %d (%s)", m.board.Turn, seatMarks[m.board.Turn%len(seatMarks)])
	return lipgloss.JoinVertical(lipgloss.Left, board, faintStyle.Render(turn))
}

func (m model) viewChat() string {
	if len(m.chat) == 0 {
		return faintStyle.Render("(no chat yet)")
	}
	return chatStyle.Render(strings.Join(m.chat, "\n"))
}

func (m model) viewInvites() string {
	var lines []string
	lines = append(lines, faintStyle.Render("invite others with:"))
	for _, inv := range m.info.invites {
		if inv.seat == m.info.seat {
			continue
		}
		lines = append(lines, faintStyle.Render(fmt.Sprintf(
			"  parlor join --match %s --seat %s --token %s",
			m.info.matchID, inv.seat, inv.token,
		)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func seatMark(seat wire.PlayerID) string {
	for i, mark := range seatMarks {
		if string(seat) == fmt.Sprintf("%d", i) {
			return mark
		}
	}
	return "?"
}

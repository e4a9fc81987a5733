// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package tui renders the map screen in a terminal.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vorlif/spreak"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/mapview"
	"github.com/wneessen/mapscreen/internal/permission"
	"github.com/wneessen/mapscreen/internal/presenter"
	"github.com/wneessen/mapscreen/internal/screen"
)

const (
	frameInterval = time.Second / 30

	// cardHeight is the height of the address card including its border.
	cardHeight   = 3
	footerHeight = 1
)

// Screen is the map screen driven by the terminal.
type Screen interface {
	State() screen.State
	Subscribe(size int) (<-chan screen.State, func())
	Tap(c geo.Coordinate) error
	MoveCamera(center geo.Coordinate, zoom float64) error
	Retry() error
}

type (
	stateMsg        screen.State
	dialogMsg       permission.Dialog
	frameMsg        time.Time
	statesClosedMsg struct{}
)

// choices are the answers of the permission dialog in display order.
var choices = []permission.Answer{
	permission.AnswerAllow,
	permission.AnswerDeny,
	permission.AnswerDenyDontAskAgain,
}

// Model is the bubbletea model of the map screen.
type Model struct {
	screen     Screen
	states     <-chan screen.State
	unsub      func()
	dialogs    <-chan permission.Dialog
	presenter  *presenter.Presenter
	t          *spreak.Localizer
	cellPixels float64
	now        func() time.Time

	spinner   spinner.Model
	state     screen.State
	dialog    *permission.Dialog
	choice    int
	animating bool
	cursorCol int
	cursorRow int
	width     int
	height    int
	err       error
}

// New returns a Model showing scr. Permission dialogs arriving on dialogs are shown as a
// modal; dialogs may be nil if permissions are answered elsewhere.
func New(scr Screen, dialogs <-chan permission.Dialog, pres *presenter.Presenter, lang *spreak.Localizer,
	cellPixels float64,
) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	states, unsub := scr.Subscribe(8)
	return Model{
		screen:     scr,
		states:     states,
		unsub:      unsub,
		dialogs:    dialogs,
		presenter:  pres,
		t:          lang,
		cellPixels: cellPixels,
		now:        time.Now,
		spinner:    spin,
		state:      scr.State(),
		width:      80,
		height:     24,
	}
}

// Run shows the model until the user quits or the context is cancelled.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	defer m.unsub()
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen(), tea.WithMouseCellMotion()}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForState(m.states),
		waitForDialog(m.dialogs),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.cursorCol, m.cursorRow = m.mapWidth()/2, m.mapHeight()/2
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateMsg:
		m.state = screen.State(msg)
		cmds := []tea.Cmd{waitForState(m.states)}
		if !m.animating && m.state.Map.Animating(m.now()) {
			m.animating = true
			cmds = append(cmds, frame())
		}
		return m, tea.Batch(cmds...)

	case statesClosedMsg:
		return m, tea.Quit

	case frameMsg:
		if m.state.Map.Animating(m.now()) {
			return m, frame()
		}
		m.animating = false
		return m, nil

	case dialogMsg:
		dialog := permission.Dialog(msg)
		m.dialog = &dialog
		m.choice = 0
		return m, waitForDialog(m.dialogs)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.dialog != nil {
		return m.handleDialogKey(msg)
	}

	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	}

	switch m.state.Phase {
	case screen.PhaseRationale, screen.PhaseDenied:
		switch msg.String() {
		case "enter", " ", "r":
			m.err = m.screen.Retry()
		}
	case screen.PhaseMapActive:
		return m.handleMapKey(msg)
	}
	return m, nil
}

func (m Model) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "shift+tab", "h":
		m.choice = (m.choice + len(choices) - 1) % len(choices)
	case "right", "tab", "l":
		m.choice = (m.choice + 1) % len(choices)
	case "a":
		return m.answer(permission.AnswerAllow)
	case "d":
		return m.answer(permission.AnswerDeny)
	case "n":
		return m.answer(permission.AnswerDenyDontAskAgain)
	case "enter", " ":
		return m.answer(choices[m.choice])
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) answer(answer permission.Answer) (tea.Model, tea.Cmd) {
	m.dialog.Answer(answer)
	m.dialog = nil
	return m, nil
}

func (m Model) handleMapKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vp, err := m.viewport()
	if err != nil {
		return m, nil
	}
	camera := m.state.Map.Target()

	switch msg.String() {
	case "up", "k":
		m.cursorRow = max(m.cursorRow-1, 0)
	case "down", "j":
		m.cursorRow = min(m.cursorRow+1, vp.Height-1)
	case "left", "h":
		m.cursorCol = max(m.cursorCol-1, 0)
	case "right", "l":
		m.cursorCol = min(m.cursorCol+1, vp.Width-1)
	case "enter", " ":
		m.err = m.screen.Tap(vp.Unproject(m.cursorCol, m.cursorRow))
	case "+", "=":
		m.err = m.screen.MoveCamera(camera.Center, camera.Zoom+1)
	case "-", "_":
		m.err = m.screen.MoveCamera(camera.Center, camera.Zoom-1)
	case "w":
		m.err = m.screen.MoveCamera(vp.Unproject(vp.Width/2, vp.Height/4), camera.Zoom)
	case "s":
		m.err = m.screen.MoveCamera(vp.Unproject(vp.Width/2, vp.Height*3/4), camera.Zoom)
	case "a":
		m.err = m.screen.MoveCamera(vp.Unproject(vp.Width/4, vp.Height/2), camera.Zoom)
	case "d":
		m.err = m.screen.MoveCamera(vp.Unproject(vp.Width*3/4, vp.Height/2), camera.Zoom)
	case "c":
		if user, ok := m.state.Map.UserLocation(); ok {
			m.err = m.screen.MoveCamera(user.Position, camera.Zoom)
		}
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.dialog != nil || m.state.Phase != screen.PhaseMapActive {
		return m, nil
	}
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	vp, err := m.viewport()
	if err != nil {
		return m, nil
	}
	col, row := msg.X, msg.Y-cardHeight
	if col < 0 || col >= vp.Width || row < 0 || row >= vp.Height {
		return m, nil
	}
	m.cursorCol, m.cursorRow = col, row
	m.err = m.screen.Tap(vp.Unproject(col, row))
	return m, nil
}

// viewport returns the map area for the camera as seen now.
func (m Model) viewport() (mapview.Viewport, error) {
	return mapview.NewViewport(m.state.Map.CameraAt(m.now()), m.mapWidth(), m.mapHeight(), m.cellPixels)
}

func (m Model) mapWidth() int {
	return max(m.width, 1)
}

func (m Model) mapHeight() int {
	return max(m.height-cardHeight-footerHeight, 1)
}

func waitForState(states <-chan screen.State) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-states
		if !ok {
			return statesClosedMsg{}
		}
		return stateMsg(state)
	}
}

func waitForDialog(dialogs <-chan permission.Dialog) tea.Cmd {
	if dialogs == nil {
		return nil
	}
	return func() tea.Msg {
		return dialogMsg(<-dialogs)
	}
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

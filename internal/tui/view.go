// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/wneessen/mapscreen/internal/mapview"
	"github.com/wneessen/mapscreen/internal/screen"
)

const (
	MsgGrant       = "Grant Permission"
	MsgRequest     = "Request Permission"
	MsgDialog      = "Allow mapscreen to access this device's location?"
	MsgAllow       = "Allow"
	MsgDeny        = "Deny"
	MsgDenyForever = "Deny & don't ask again"
	MsgMapHelp     = "arrows: move  enter: mark  +/-: zoom  wasd: pan  c: center  q: quit"
	MsgRetryHelp   = "enter: retry  q: quit"

	gridCol = 8
	gridRow = 4

	glyphGrid   = "·"
	glyphMarker = "●"
	glyphUser   = "◉"
)

type cell struct {
	glyph string
	style lipgloss.Style
}

func (m Model) View() string {
	if m.dialog != nil {
		return m.dialogView()
	}
	switch m.state.Phase {
	case screen.PhaseMapActive:
		return lipgloss.JoinVertical(lipgloss.Left, m.cardView(), m.mapView(), m.footerView())
	case screen.PhaseRationale:
		return m.permissionView(MsgGrant)
	case screen.PhaseDenied:
		return m.permissionView(MsgRequest)
	default:
		return m.waitingView()
	}
}

func (m Model) cardView() string {
	tplCtx := m.presenter.BuildContext(m.state, m.now())
	text := tplCtx.Icon + " " + tplCtx.Address
	text = runewidth.Truncate(text, max(m.width-4, 1), "…")
	return cardStyle.Width(max(m.width-2, 1)).Render(textStyle.Render(text))
}

func (m Model) mapView() string {
	width, height := m.mapWidth(), m.mapHeight()
	vp, err := m.viewport()
	if err != nil {
		return errorStyle.Render(err.Error())
	}

	grid := make([][]cell, height)
	for row := range grid {
		grid[row] = make([]cell, width)
		for col := range grid[row] {
			grid[row][col] = cell{glyph: " ", style: textStyle}
			if col%gridCol == 0 && row%gridRow == 0 {
				grid[row][col] = cell{glyph: glyphGrid, style: gridStyle}
			}
		}
	}

	var user *mapview.Marker
	for _, marker := range m.state.Map.Visible(vp) {
		if marker.IsUser() {
			user = &marker
			continue
		}
		if col, row, ok := vp.Project(marker.Position); ok {
			grid[row][col] = cell{glyph: glyphMarker, style: markerStyle}
		}
	}
	if user != nil {
		if col, row, ok := vp.Project(user.Position); ok {
			grid[row][col] = cell{glyph: glyphUser, style: userStyle}
		}
	}

	if m.cursorRow < height && m.cursorCol < width {
		cursor := &grid[m.cursorRow][m.cursorCol]
		cursor.style = cursor.style.Inherit(cursorStyle)
	}

	lines := make([]string, height)
	var buf strings.Builder
	for row := range grid {
		buf.Reset()
		for _, c := range grid[row] {
			buf.WriteString(c.style.Render(c.glyph))
		}
		lines[row] = buf.String()
	}
	return strings.Join(lines, "\n")
}

func (m Model) footerView() string {
	var parts []string
	if m.state.Map.Animating(m.now()) {
		parts = append(parts, m.spinner.View())
	}
	if marker, ok := m.markerUnderCursor(); ok {
		title, snippet := marker.Title, marker.Snippet
		if marker.IsUser() {
			title, snippet = m.t.Get(title), m.t.Get(snippet)
		}
		parts = append(parts, textStyle.Render(fmt.Sprintf("%s: %s", title, snippet)))
	} else {
		parts = append(parts, dimStyle.Render(m.t.Get(MsgMapHelp)))
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	}
	return runewidth.Truncate(strings.Join(parts, " "), max(m.width, 1), "")
}

func (m Model) permissionView(button string) string {
	tplCtx := m.presenter.BuildContext(m.state, m.now())
	content := lipgloss.JoinVertical(lipgloss.Center,
		textStyle.Width(min(max(m.width-4, 1), 60)).Align(lipgloss.Center).Render(tplCtx.Address),
		"",
		activeButtonStyle.Render(m.t.Get(button)),
		"",
		dimStyle.Render(m.t.Get(MsgRetryHelp)),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) waitingView() string {
	tplCtx := m.presenter.BuildContext(m.state, m.now())
	content := m.spinner.View() + " " + textStyle.Render(tplCtx.Address)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) dialogView() string {
	buttons := make([]string, 0, len(choices))
	for i, label := range []string{MsgAllow, MsgDeny, MsgDenyForever} {
		style := buttonStyle
		if i == m.choice {
			style = activeButtonStyle
		}
		buttons = append(buttons, style.Render(m.t.Get(label)), " ")
	}
	content := dialogStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		textStyle.Render(m.t.Get(MsgDialog)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, buttons...),
	))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// markerUnderCursor returns the marker drawn in the cursor cell. The user marker wins over
// custom markers in the same cell.
func (m Model) markerUnderCursor() (mapview.Marker, bool) {
	vp, err := m.viewport()
	if err != nil {
		return mapview.Marker{}, false
	}
	var found mapview.Marker
	var ok bool
	for _, marker := range m.state.Map.Visible(vp) {
		col, row, inside := vp.Project(marker.Position)
		if !inside || col != m.cursorCol || row != m.cursorRow {
			continue
		}
		if marker.IsUser() {
			return marker, true
		}
		found, ok = marker, true
	}
	return found, ok
}

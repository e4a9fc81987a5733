// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter renders screen snapshots through the user-configurable text templates.
package presenter

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"

	"github.com/wneessen/mapscreen/internal/config"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/mapview"
	"github.com/wneessen/mapscreen/internal/screen"
)

type TemplateContext struct {
	Phase   string
	Icon    string
	Address string
	Outcome string

	Located  bool
	Location geo.Coordinate
	Source   string

	Camera      mapview.Camera
	Markers     []mapview.Marker
	MarkerCount int
	UpdatedAt   time.Time
}

type Presenter struct {
	TextTemplate       *template.Template
	AltTextTemplate    *template.Template
	TooltipTemplate    *template.Template
	AltTooltipTemplate *template.Template

	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
}

// New parses the configured templates and test-renders them against an empty context.
func New(conf *config.Config, loc *spreak.Localizer) (*Presenter, error) {
	pres := &Presenter{
		localizer: loc,
		humanizer: humanize.MustNew(humanize.WithLocale(de.New())).CreateHumanizer(loc.Language()),
	}

	var err error
	templates := []struct {
		name   string
		text   string
		target **template.Template
	}{
		{"text", conf.Templates.Text, &pres.TextTemplate},
		{"alt_text", conf.Templates.AltText, &pres.AltTextTemplate},
		{"tooltip", conf.Templates.Tooltip, &pres.TooltipTemplate},
		{"alt_tooltip", conf.Templates.AltTooltip, &pres.AltTooltipTemplate},
	}
	for _, tpl := range templates {
		*tpl.target, err = template.New(tpl.name).Funcs(pres.templateFuncMap()).Parse(tpl.text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", tpl.name, err)
		}
	}

	if _, err = pres.Render(TemplateContext{}); err != nil {
		return nil, err
	}
	return pres, nil
}

// BuildContext flattens a screen snapshot into the template context.
func (p *Presenter) BuildContext(state screen.State, now time.Time) TemplateContext {
	markers := state.Map.Markers()
	tplCtx := TemplateContext{
		Phase:       state.Phase.String(),
		Icon:        PhaseIcons[state.Phase],
		Address:     p.address(state),
		Outcome:     string(state.AddressOutcome),
		Located:     state.Located,
		Camera:      state.Map.CameraAt(now),
		Markers:     markers,
		MarkerCount: len(markers),
		UpdatedAt:   state.UpdatedAt,
	}
	if state.Located {
		tplCtx.Location = state.Location.Coordinate
		tplCtx.Source = string(state.Location.Origin)
	}
	return tplCtx
}

// Render executes all templates and returns their output keyed by template name.
func (p *Presenter) Render(tplCtx TemplateContext) (map[string]string, error) {
	output := make(map[string]string, 4)
	for name, tpl := range map[string]*template.Template{
		"text":        p.TextTemplate,
		"alt_text":    p.AltTextTemplate,
		"tooltip":     p.TooltipTemplate,
		"alt_tooltip": p.AltTooltipTemplate,
	} {
		buf := bytes.NewBuffer(nil)
		if err := tpl.Execute(buf, tplCtx); err != nil {
			return nil, fmt.Errorf("failed to render %s template: %w", name, err)
		}
		output[name] = buf.String()
	}
	return output, nil
}

// address returns the text of the address card. Outside the map the card shows the
// permission message instead.
func (p *Presenter) address(state screen.State) string {
	switch state.Phase {
	case screen.PhaseMapActive:
		if state.AddressSeq == 0 {
			return p.localizer.Get(screen.MsgFetchingAddress)
		}
		return state.Address
	case screen.PhaseRationale:
		return p.localizer.Get(MsgRationale)
	case screen.PhaseDenied:
		return p.localizer.Get(MsgDenied)
	default:
		return p.localizer.Get(MsgWaiting)
	}
}

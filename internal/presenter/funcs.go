// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/humanize"

	"github.com/wneessen/mapscreen/internal/geo"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":    p.timeFormat,
		"localizedTime": p.localizedTime,
		"ago":           p.ago,
		"floatFormat":   p.floatFormat,
		"coord":         p.coord,
		"trunc":         p.trunc,
		"loc":           p.loc,
		"lc":            strings.ToLower,
		"uc":            strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	if raw, ok := i18nVars[strings.ToLower(val)]; ok {
		return p.localizer.Get(raw)
	}
	return val
}

func (p *Presenter) localizedTime(val time.Time) string {
	if val.IsZero() {
		return "-"
	}
	return p.humanizer.FormatTime(val, humanize.TimeFormat)
}

func (p *Presenter) ago(val time.Time) string {
	if val.IsZero() {
		return "-"
	}
	return p.humanizer.NaturalTime(val)
}

func (p *Presenter) timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Trunc(val*pow)/pow)
}

func (p *Presenter) coord(val geo.Coordinate) string {
	return fmt.Sprintf("%s, %s", p.floatFormat(val.Lat, 4), p.floatFormat(val.Lon, 4))
}

// trunc shortens val to width terminal cells.
func (p *Presenter) trunc(val string, width int) string {
	return runewidth.Truncate(val, width, "…")
}

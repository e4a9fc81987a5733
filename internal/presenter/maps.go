// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/mapscreen/internal/screen"
)

// Texts of the permission screens.
const (
	MsgRationale = "Location permission is required to display the map centered at your location."
	MsgDenied    = "Location permission is required for this app to function."
	MsgWaiting   = "Waiting for location permission..."
)

// PhaseIcons maps screen phases to the icon shown in front of the text output.
var PhaseIcons = map[screen.Phase]string{
	screen.PhaseUninitialized:     "⏳",
	screen.PhasePermissionPending: "⏳",
	screen.PhaseRationale:         "❔",
	screen.PhaseDenied:            "🚫",
	screen.PhaseMapActive:         "📍",
}

var i18nVars = map[string]localize.MsgID{
	"location":   "Location",
	"markers":    "Markers",
	"updated":    "Updated",
	"last_known": "Last known location",
	"current":    "Current location",
	"fallback":   "Default location",
}

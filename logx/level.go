// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logx provides the leveled, colored terminal logging used by
// the renderer and its command.
package logx

import "log/slog"

// UserLevel is the verbosity level the user selected. Messages at
// or above it are shown. The logger installed by [SetDefaultLogger]
// reads it on every message, so it can be changed at any time.
// It defaults to [slog.LevelWarn], or [slog.LevelDebug] when built
// with the debug tag.
var UserLevel = defaultUserLevel

// LevelFromFlags returns the level selected by the usual verbosity
// flags:
//   - vv: [slog.LevelDebug]
//   - v: [slog.LevelInfo]
//   - q: [slog.LevelError]
//   - (default: the build default of [UserLevel])
//
// The flags are checked in that order, so vv wins over q.
func LevelFromFlags(vv, v, q bool) slog.Level {
	switch {
	case vv:
		return slog.LevelDebug
	case v:
		return slog.LevelInfo
	case q:
		return slog.LevelError
	default:
		return defaultUserLevel
	}
}

// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"io"
	"log/slog"

	ethlog "github.com/ethereum/go-ethereum/log"
)

// Legacy verbosity levels, as accepted by the --verbosity flag.
const (
	LegacyLevelCrit = iota
	LegacyLevelError
	LegacyLevelWarn
	LegacyLevelInfo
	LegacyLevelDebug
	LegacyLevelTrace
)

// Levels re-exported for callers that build handlers.
const (
	LevelTrace = ethlog.LevelTrace
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelCrit  = ethlog.LevelCrit
)

type discardHandler struct{}

// DiscardHandler returns a no-op handler
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, _ slog.Record) error {
	return nil
}

func (h *discardHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return false
}

func (h *discardHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *discardHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return &discardHandler{}
}

// levelHandler drops records below a level that may change at runtime.
type levelHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *levelHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level.Level()
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{h.Handler.WithAttrs(attrs), h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{h.Handler.WithGroup(name), h.level}
}

// NewTerminalHandlerWithLevel returns a handler producing human readable output.
// Passing a *slog.LevelVar lets the level be changed while running.
func NewTerminalHandlerWithLevel(wr io.Writer, lvl slog.Leveler, useColor bool) slog.Handler {
	return &levelHandler{ethlog.NewTerminalHandlerWithLevel(wr, LevelTrace, useColor), lvl}
}

// JSONHandlerWithLevel returns a handler producing one JSON object per record.
func JSONHandlerWithLevel(wr io.Writer, lvl slog.Leveler) slog.Handler {
	return &levelHandler{ethlog.JSONHandlerWithLevel(wr, LevelTrace), lvl}
}

// FromLegacyLevel converts a 0-5 verbosity into a slog level. Values above
// LegacyLevelTrace are clamped to trace.
func FromLegacyLevel(lvl int) slog.Level {
	if lvl > LegacyLevelTrace {
		lvl = LegacyLevelTrace
	}
	if lvl < LegacyLevelCrit {
		lvl = LegacyLevelCrit
	}
	return ethlog.FromLegacyLevel(lvl)
}

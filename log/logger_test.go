// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextFollowsDefault(t *testing.T) {
	logger := WithContext("pkg", "treasury")

	var buf bytes.Buffer
	SetDefault(JSONHandlerWithLevel(&buf, LevelDebug))
	defer SetDefault(DiscardHandler())

	logger.With("round", 7).Info("participation created", "requests", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "participation created", rec["msg"])
	assert.Equal(t, "treasury", rec["pkg"])
	assert.Equal(t, float64(7), rec["round"])
	assert.Equal(t, float64(3), rec["requests"])
}

func TestDiscardHandler(t *testing.T) {
	SetDefault(DiscardHandler())
	logger := WithContext("pkg", "test")
	assert.False(t, logger.Enabled(context.Background(), LevelError))
	logger.Error("dropped")
}

func TestFromLegacyLevel(t *testing.T) {
	assert.Equal(t, LevelInfo, FromLegacyLevel(LegacyLevelInfo))
	assert.Equal(t, LevelTrace, FromLegacyLevel(9))
	assert.Equal(t, LevelCrit, FromLegacyLevel(-1))
}

func TestLevelVar(t *testing.T) {
	var lvl slog.LevelVar
	lvl.Set(LevelInfo)

	var buf bytes.Buffer
	SetDefault(JSONHandlerWithLevel(&buf, &lvl))
	defer SetDefault(DiscardHandler())

	logger := WithContext("pkg", "test")
	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	lvl.Set(LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

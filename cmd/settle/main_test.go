package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/pokerledger/internal/model"
	"github.com/susu3304/pokerledger/internal/settlement"
)

const yamlSession = `
policy: report
rounding_unit: 1
players:
  - id: p1
    name: Alice
  - id: p2
    name: Bob
  - id: p3
    name: Carol
session:
  id: friday
  config:
    buy_in_amount: 100
    chip_ratio: 1
  players:
    - player_id: p1
      buy_in_count: 1
      cash_out: 260
    - player_id: p2
      buy_in_count: 1
      cash_out: 50
    - player_id: p3
      buy_in_count: 1
`

const jsonSession = `{
  "players": [{"id": "p1", "name": "Alice"}, {"id": "p2", "name": "Bob"}],
  "session": {
    "config": {"buy_in_amount": 100, "chip_ratio": 0.5},
    "players": [
      {"player_id": "p1", "buy_in_count": 2, "cash_out": 150},
      {"player_id": "p2", "buy_in_count": 1, "extra_buy_in": 50, "cash_out": 50}
    ]
  }
}`

func TestSettle_YAMLShortage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlSession), 0o644))

	f, err := loadFile(path)
	require.NoError(t, err)
	assert.False(t, f.Session.Active)
	require.NotNil(t, f.Session.Players[2].CashOut, "missing cash-out is finalised to zero")

	out, err := settle(context.Background(), f)
	require.NoError(t, err)

	sum := out.Summary
	assert.True(t, sum.Shortage())
	assert.InDelta(t, 10.0, sum.Discrepancy, 1e-9)
	require.Len(t, sum.Results, 3)
	assert.Equal(t, "Alice", sum.Results[0].PlayerName)
	assert.InDelta(t, 150.0, sum.Results[0].AdjustedProfit, 1e-9)

	assert.Equal(t, []settlement.Transfer{
		{FromID: "p3", ToID: "p1", Amount: 100},
		{FromID: "p2", ToID: "p1", Amount: 50},
	}, out.Transfers)
}

func TestSettle_JSONSurplus(t *testing.T) {
	f, err := parseFile([]byte(jsonSession))
	require.NoError(t, err)
	assert.Equal(t, "file", f.Session.ID)

	out, err := settle(context.Background(), f)
	require.NoError(t, err)

	// 350 in, 200 out: both players lost and the surplus is refunded to them.
	sum := out.Summary
	assert.True(t, sum.Surplus())
	assert.InDelta(t, 0.0, sum.Results[0].AdjustedProfit+sum.Results[1].AdjustedProfit, 1e-9)
}

func TestSettle_UnknownPolicy(t *testing.T) {
	f, err := parseFile([]byte(yamlSession))
	require.NoError(t, err)
	f.Policy = "ignore"

	_, err = settle(context.Background(), f)
	assert.Error(t, err)
}

func TestParseFile_Invalid(t *testing.T) {
	const header = "session:\n  config:\n    buy_in_amount: 100\n  players:\n"
	tests := []struct {
		name string
		raw  string
		is   error
	}{
		{"not yaml", "session: [unclosed", nil},
		{"bad buy-in", "session:\n  config:\n    buy_in_amount: 0\n    chip_ratio: 1\n  players:\n    - player_id: p1\n", model.ErrInvalidConfig},
		{"no players", "session:\n  config:\n    buy_in_amount: 100\n    chip_ratio: 1\n", nil},
		{"negative buy-in count", header + "    - player_id: p1\n      buy_in_count: -1\n", model.ErrInvalidPlayer},
		{"negative extra", header + "    - player_id: p1\n      buy_in_count: 1\n      extra_buy_in: -20\n", model.ErrInvalidPlayer},
		{"negative cash-out", header + "    - player_id: p1\n      buy_in_count: 1\n      cash_out: -5\n", model.ErrInvalidPlayer},
		{"missing player id", header + "    - buy_in_count: 1\n", model.ErrInvalidPlayer},
		{"duplicate player", header + "    - player_id: p1\n      buy_in_count: 1\n    - player_id: p1\n      buy_in_count: 2\n", model.ErrInvalidPlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFile([]byte(tt.raw))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestParseFile_ChipRatioOptional(t *testing.T) {
	raw := "session:\n  config:\n    buy_in_amount: 100\n  players:\n" +
		"    - player_id: p1\n      buy_in_count: 1\n      cash_out: 150\n" +
		"    - player_id: p2\n      buy_in_count: 1\n      cash_out: 50\n"
	f, err := parseFile([]byte(raw))
	require.NoError(t, err)
	assert.Zero(t, f.Session.Config.ChipRatio)

	out, err := settle(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []settlement.Transfer{{FromID: "p2", ToID: "p1", Amount: 50}}, out.Transfers)
}

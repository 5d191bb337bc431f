package guild_test

import (
	"github.com/magic-lib/go-plat-guildcache/guild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseOnlineUsesLatestSeasonRating(t *testing.T) {
	payload := `{
		"online": 14,
		"seasonRanks": {
			"29": {"rating": 9000},
			"31": {"rating": 12000},
			"oops": {"rating": 999999}
		}
	}`
	entry, ok := guild.ParseOnline(payload)
	require.True(t, ok)
	assert.EqualValues(t, 14, entry.Online)
	require.NotNil(t, entry.SeasonRating)
	assert.EqualValues(t, 12000, *entry.SeasonRating)
}

func TestParseOnline(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ok      bool
		rating  *int64
	}{
		{"no ranks", `{"online":3}`, true, nil},
		{"ranks not object", `{"online":3,"seasonRanks":[1,2]}`, true, nil},
		{"no numeric season", `{"online":3,"seasonRanks":{"x":{"rating":1}}}`, true, nil},
		{"latest without rating", `{"online":3,"seasonRanks":{"1":{"rating":5},"2":{}}}`, true, nil},
		{"missing online", `{"seasonRanks":{}}`, false, nil},
		{"negative online", `{"online":-1}`, false, nil},
		{"fractional online", `{"online":1.5}`, false, nil},
		{"not json", `<html>`, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := guild.ParseOnline(tt.payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.rating, entry.SeasonRating)
		})
	}
}

package guild

import (
	"encoding/json"
	"strconv"
)

// Online 在线人数及最新赛季评分
type Online struct {
	Online       uint32 `json:"online"`
	SeasonRating *int64 `json:"season_rating,omitempty"`
}

type onlinePayload struct {
	Online      *uint64         `json:"online"`
	SeasonRanks json.RawMessage `json:"seasonRanks"`
}

// ParseOnline online 缺失或不是非负整数时返回 false，
// 评分取 seasonRanks 中数值最大的赛季
func ParseOnline(payload string) (Online, bool) {
	var p onlinePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil || p.Online == nil {
		return Online{}, false
	}
	return Online{
		Online:       uint32(*p.Online),
		SeasonRating: latestSeasonRating(p.SeasonRanks),
	}, true
}

func latestSeasonRating(raw json.RawMessage) *int64 {
	var ranks map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &ranks) != nil {
		return nil
	}

	latest, found := int64(0), false
	var latestRank json.RawMessage
	for k, v := range ranks {
		season, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			continue
		}
		if !found || season > latest {
			latest, latestRank, found = season, v, true
		}
	}
	if !found {
		return nil
	}

	var rank struct {
		Rating *int64 `json:"rating"`
	}
	if json.Unmarshal(latestRank, &rank) != nil {
		return nil
	}
	return rank.Rating
}

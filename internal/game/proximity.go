package game

import (
	"math"
	"slices"
)

// VisionRadius 鄰近判定的視野半徑（地圖座標單位）
const VisionRadius = 250.0

// distance 歐幾里得距離
func distance(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(dx*dx + dy*dy)
}

// nearbyIDs 計算玩家的鄰近集合
//
// 鄰近只在開放空間有意義：雙方都必須不在任何區域內，
// 且歐幾里得距離不超過視野半徑。結果排序以保證可比較性。
func nearbyIDs(state *State, playerID string) []string {
	player, exists := state.Players[playerID]
	if !exists {
		return nil
	}

	var result []string
	for id, other := range state.Players {
		if id == playerID {
			continue
		}
		if player.CurrentZoneID != NoZone || other.CurrentZoneID != NoZone {
			continue
		}
		if distance(player.X, player.Y, other.X, other.Y) <= VisionRadius {
			result = append(result, id)
		}
	}
	slices.Sort(result)
	return result
}

// updateNearby 在玩家移動後重算其鄰近集合
//
// 演算法只對移動者做完整重算，再以互惠的增刪維持對稱不變量：
//   - 新集合整批取代移動者的 NearbyUsers
//   - 新增的鄰居：把移動者補進對方的清單（若不存在）
//   - 退出的鄰居：把移動者從對方的清單移除
//
// 回傳集合是否發生變化，僅供診斷日誌使用。
func updateNearby(state *State, playerID string) bool {
	player, exists := state.Players[playerID]
	if !exists {
		return false
	}

	newNearby := nearbyIDs(state, playerID)

	// 互惠追加可能打亂順序，比較前先排序舊集合
	oldNearby := slices.Clone(player.NearbyUsers)
	slices.Sort(oldNearby)
	if slices.Equal(newNearby, oldNearby) {
		return false
	}

	player.NearbyUsers = newNearby

	for _, id := range newNearby {
		if other, ok := state.Players[id]; ok {
			other.AddNearby(playerID)
		}
	}

	for id, other := range state.Players {
		if id == playerID {
			continue
		}
		if other.HasNearby(playerID) && !slices.Contains(newNearby, id) {
			other.RemoveNearby(playerID)
		}
	}

	return true
}

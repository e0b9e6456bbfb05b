package game

import "slices"

// Patch 一輪訊息處理後的增量狀態變更
//
// 鍵存在表示新增或修改，Removed 清單表示刪除。
type Patch struct {
	Players        map[string]*Player `json:"players,omitempty"`
	RemovedPlayers []string           `json:"removedPlayers,omitempty"`
	Zones          map[int]*Zone      `json:"zones,omitempty"`
	RemovedZones   []int              `json:"removedZones,omitempty"`
	Doors          map[int]*Door      `json:"doors,omitempty"`
	RemovedDoors   []int              `json:"removedDoors,omitempty"`
}

// Empty 檢查是否沒有任何變更
func (p *Patch) Empty() bool {
	return len(p.Players) == 0 && len(p.RemovedPlayers) == 0 &&
		len(p.Zones) == 0 && len(p.RemovedZones) == 0 &&
		len(p.Doors) == 0 && len(p.RemovedDoors) == 0
}

// Syncer 狀態同步策略
//
// 房間在每輪訊息處理結束後呼叫 Diff，把結果廣播給所有成員。
// 介面保持可替換：增量差分、完整快照或二進位編碼都不影響遊戲邏輯。
type Syncer interface {
	Diff(prev, next *State) *Patch
}

// DiffSyncer 逐項比對的增量差分實作
type DiffSyncer struct{}

// Diff 比對兩份狀態，產出增量變更
func (DiffSyncer) Diff(prev, next *State) *Patch {
	patch := &Patch{}

	for id, p := range next.Players {
		old, exists := prev.Players[id]
		if !exists || !playerEqual(old, p) {
			if patch.Players == nil {
				patch.Players = make(map[string]*Player)
			}
			patch.Players[id] = p
		}
	}
	for id := range prev.Players {
		if _, exists := next.Players[id]; !exists {
			patch.RemovedPlayers = append(patch.RemovedPlayers, id)
		}
	}

	for id, z := range next.Zones {
		old, exists := prev.Zones[id]
		if !exists || *old != *z {
			if patch.Zones == nil {
				patch.Zones = make(map[int]*Zone)
			}
			patch.Zones[id] = z
		}
	}
	for id := range prev.Zones {
		if _, exists := next.Zones[id]; !exists {
			patch.RemovedZones = append(patch.RemovedZones, id)
		}
	}

	for id, d := range next.Doors {
		old, exists := prev.Doors[id]
		if !exists || *old != *d {
			if patch.Doors == nil {
				patch.Doors = make(map[int]*Door)
			}
			patch.Doors[id] = d
		}
	}
	for id := range prev.Doors {
		if _, exists := next.Doors[id]; !exists {
			patch.RemovedDoors = append(patch.RemovedDoors, id)
		}
	}

	slices.Sort(patch.RemovedPlayers)
	slices.Sort(patch.RemovedZones)
	slices.Sort(patch.RemovedDoors)

	return patch
}

// FullPatch 把整份狀態表示成一個補丁（新成員的初始同步用）
func FullPatch(s *State) *Patch {
	return DiffSyncer{}.Diff(NewState(), s)
}

// playerEqual 逐欄位比對玩家
func playerEqual(a, b *Player) bool {
	return a.ID == b.ID &&
		a.Email == b.Email &&
		a.Name == b.Name &&
		a.Avatar == b.Avatar &&
		a.X == b.X &&
		a.Y == b.Y &&
		a.CurrentZoneID == b.CurrentZoneID &&
		slices.Equal(a.NearbyUsers, b.NearbyUsers)
}

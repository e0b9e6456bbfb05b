package game

import "slices"

// NoZone Player.CurrentZoneID 的哨兵值：不在任何區域內
const NoZone = -1

// Player 房間內的玩家
//
// NearbyUsers 維持對稱不變量：q 在 p 的鄰近清單中，
// 若且唯若 p 也在 q 的清單中；且永遠不包含自己。
type Player struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Avatar        string   `json:"avatar"`
	X             float64  `json:"x"`
	Y             float64  `json:"y"`
	CurrentZoneID int      `json:"currentZoneId"`
	NearbyUsers   []string `json:"nearbyUsers"`
}

// HasNearby 檢查某玩家是否在鄰近清單中
func (p *Player) HasNearby(id string) bool {
	return slices.Contains(p.NearbyUsers, id)
}

// AddNearby 加入鄰近清單（冪等）
func (p *Player) AddNearby(id string) {
	if !p.HasNearby(id) {
		p.NearbyUsers = append(p.NearbyUsers, id)
	}
}

// RemoveNearby 從鄰近清單移除
func (p *Player) RemoveNearby(id string) {
	p.NearbyUsers = slices.DeleteFunc(p.NearbyUsers, func(v string) bool {
		return v == id
	})
}

// Zone 地圖上的區域，帶獨立的開放/鎖定狀態
//
// IsOpen 與門的 IsOpen 是兩個獨立的布林空間：
// 區域預設開放（未上鎖），門的初始開關來自地圖解析結果。
type Zone struct {
	ID       int    `json:"id"`
	IsOpen   bool   `json:"isOpen"`
	LockedBy string `json:"lockedBy,omitempty"`
}

// Door 屬於某個區域的門
type Door struct {
	ID     int  `json:"id"`
	ZoneID int  `json:"zoneId"`
	IsOpen bool `json:"isOpen"`
}

// State 房間的同步狀態：一個房間恰好一份，隨房間銷毀
type State struct {
	Players map[string]*Player `json:"players"`
	Zones   map[int]*Zone      `json:"zones"`
	Doors   map[int]*Door      `json:"doors"`
}

// NewState 創建空房間狀態
func NewState() *State {
	return &State{
		Players: make(map[string]*Player),
		Zones:   make(map[int]*Zone),
		Doors:   make(map[int]*Door),
	}
}

// Clone 深拷貝，用作增量同步的快照基準
func (s *State) Clone() *State {
	c := NewState()
	for id, p := range s.Players {
		cp := *p
		cp.NearbyUsers = slices.Clone(p.NearbyUsers)
		c.Players[id] = &cp
	}
	for id, z := range s.Zones {
		cz := *z
		c.Zones[id] = &cz
	}
	for id, d := range s.Doors {
		cd := *d
		c.Doors[id] = &cd
	}
	return c
}

// PlayersInZone 檢查是否有玩家（排除 exceptID）位於指定區域
func (s *State) PlayersInZone(zoneID int, exceptID string) bool {
	for _, p := range s.Players {
		if p.ID != exceptID && p.CurrentZoneID == zoneID {
			return true
		}
	}
	return false
}

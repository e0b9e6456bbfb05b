package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWithPlayers(players ...*Player) *State {
	s := NewState()
	for _, p := range players {
		s.Players[p.ID] = p
	}
	return s
}

func TestNearbyIDs(t *testing.T) {
	tests := []struct {
		name     string
		players  []*Player
		playerID string
		want     []string
	}{
		{
			name: "半徑內的玩家",
			players: []*Player{
				{ID: "a", X: 0, Y: 0, CurrentZoneID: NoZone},
				{ID: "b", X: 100, Y: 0, CurrentZoneID: NoZone},
				{ID: "c", X: 0, Y: 200, CurrentZoneID: NoZone},
			},
			playerID: "a",
			want:     []string{"b", "c"},
		},
		{
			name: "恰好在半徑邊界",
			players: []*Player{
				{ID: "a", X: 0, Y: 0, CurrentZoneID: NoZone},
				{ID: "b", X: 250, Y: 0, CurrentZoneID: NoZone},
			},
			playerID: "a",
			want:     []string{"b"},
		},
		{
			name: "超出半徑",
			players: []*Player{
				{ID: "a", X: 0, Y: 0, CurrentZoneID: NoZone},
				{ID: "b", X: 251, Y: 0, CurrentZoneID: NoZone},
			},
			playerID: "a",
			want:     nil,
		},
		{
			name: "對方在區域內",
			players: []*Player{
				{ID: "a", X: 0, Y: 0, CurrentZoneID: NoZone},
				{ID: "b", X: 100, Y: 0, CurrentZoneID: 1},
			},
			playerID: "a",
			want:     nil,
		},
		{
			name: "自己在區域內",
			players: []*Player{
				{ID: "a", X: 0, Y: 0, CurrentZoneID: 1},
				{ID: "b", X: 100, Y: 0, CurrentZoneID: NoZone},
			},
			playerID: "a",
			want:     nil,
		},
		{
			name: "結果排序",
			players: []*Player{
				{ID: "z", X: 0, Y: 0, CurrentZoneID: NoZone},
				{ID: "m", X: 10, Y: 0, CurrentZoneID: NoZone},
				{ID: "a", X: 20, Y: 0, CurrentZoneID: NoZone},
			},
			playerID: "z",
			want:     []string{"a", "m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := stateWithPlayers(tt.players...)
			assert.Equal(t, tt.want, nearbyIDs(state, tt.playerID))
		})
	}
}

// assertSymmetric 驗證鄰近圖的對稱不變量
func assertSymmetric(t *testing.T, state *State) {
	t.Helper()

	for id, p := range state.Players {
		for _, nearbyID := range p.NearbyUsers {
			require.NotEqual(t, id, nearbyID, "玩家不得出現在自己的鄰近集合中")

			other, exists := state.Players[nearbyID]
			require.True(t, exists)
			assert.True(t, other.HasNearby(id),
				"%s 在 %s 的集合中但 %s 不在 %s 的集合中", nearbyID, id, id, nearbyID)
		}
	}
}

func TestUpdateNearbySymmetry(t *testing.T) {
	state := stateWithPlayers(
		&Player{ID: "a", X: 0, Y: 0, CurrentZoneID: NoZone},
		&Player{ID: "b", X: 100, Y: 0, CurrentZoneID: NoZone},
		&Player{ID: "c", X: 600, Y: 0, CurrentZoneID: NoZone},
	)

	assert.True(t, updateNearby(state, "a"))
	assertSymmetric(t, state)
	assert.Equal(t, []string{"b"}, state.Players["a"].NearbyUsers)
	assert.Empty(t, state.Players["c"].NearbyUsers)

	// c 靠近：三人兩兩相鄰
	state.Players["c"].X = 200
	assert.True(t, updateNearby(state, "c"))
	assertSymmetric(t, state)
	assert.Equal(t, []string{"a", "b"}, state.Players["c"].NearbyUsers)

	// a 走遠：只剩 b 與 c 相鄰
	state.Players["a"].X = 1000
	assert.True(t, updateNearby(state, "a"))
	assertSymmetric(t, state)
	assert.Empty(t, state.Players["a"].NearbyUsers)
	assert.Equal(t, []string{"c"}, state.Players["b"].NearbyUsers)
}

func TestUpdateNearbyNoChange(t *testing.T) {
	state := stateWithPlayers(
		&Player{ID: "a", X: 0, Y: 0, CurrentZoneID: NoZone},
		&Player{ID: "b", X: 100, Y: 0, CurrentZoneID: NoZone},
	)

	require.True(t, updateNearby(state, "a"))

	// 集合沒變就回報 false
	state.Players["a"].Y = 10
	assert.False(t, updateNearby(state, "a"))
}

func TestUpdateNearbyMissingPlayer(t *testing.T) {
	state := NewState()
	assert.False(t, updateNearby(state, "ghost"))
}

package tilemap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/virtualspace/internal/tilemap"
)

// loadTestMap 讀取測試地圖
func loadTestMap(t *testing.T) *tilemap.Parser {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", "office.json"))
	require.NoError(t, err)

	parser, err := tilemap.Parse(data)
	require.NoError(t, err)

	return parser
}

// TestParse 測試地圖解析
func TestParse(t *testing.T) {
	parser := loadTestMap(t)

	t.Run("collects objects from nested group layers", func(t *testing.T) {
		// zones 圖層 3 個 + doors 圖層 4 個
		assert.Len(t, parser.Objects(), 7)
	})

	t.Run("tags objects with layer path and global id", func(t *testing.T) {
		objects := parser.Objects()
		require.NotEmpty(t, objects)

		first := objects[0]
		assert.Equal(t, []string{"interactive", "zones"}, first.LayerPath)
		assert.Equal(t, 5, first.LayerID)
		assert.Equal(t, tilemap.GlobalID(5, first.Object.ID), first.GlobalID)
	})

	t.Run("zone identity comes from the id property", func(t *testing.T) {
		zones := parser.Zones()
		// broken-zone 缺少 id 屬性，應被略過
		require.Len(t, zones, 2)
		assert.Equal(t, 1, zones[0].ZoneID)
		assert.Equal(t, 2, zones[1].ZoneID)
	})

	t.Run("doors carry zone membership and open flag", func(t *testing.T) {
		doors := parser.Doors()
		require.Len(t, doors, 3)

		assert.Equal(t, 1, doors[0].ZoneID)
		assert.False(t, doors[0].IsOpen)
		assert.Equal(t, 1, doors[1].ZoneID)
		assert.True(t, doors[1].IsOpen)

		// 沒有 isOpen 屬性的門預設關閉
		assert.Equal(t, 2, doors[2].ZoneID)
		assert.False(t, doors[2].IsOpen)
	})

	t.Run("non zone or door objects are ignored", func(t *testing.T) {
		for _, z := range parser.Zones() {
			assert.Equal(t, "zone", z.Object.Type)
		}
		for _, d := range parser.Doors() {
			assert.Equal(t, "door", d.Object.Type)
		}
	})
}

// TestParse_InvalidJSON 測試非法 JSON
func TestParse_InvalidJSON(t *testing.T) {
	_, err := tilemap.Parse([]byte("{not json"))
	assert.Error(t, err)
}

// TestParser_Zone 測試區域查找
func TestParser_Zone(t *testing.T) {
	parser := loadTestMap(t)

	tests := []struct {
		name   string
		zoneID int
		found  bool
	}{
		{name: "existing zone", zoneID: 1, found: true},
		{name: "second zone", zoneID: 2, found: true},
		{name: "unknown zone", zoneID: 99, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zone, ok := parser.Zone(tt.zoneID)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.zoneID, zone.ZoneID)
			}
		})
	}
}

// TestParser_DoorsByZone 測試依區域查門
func TestParser_DoorsByZone(t *testing.T) {
	parser := loadTestMap(t)

	tests := []struct {
		name   string
		zoneID int
		count  int
	}{
		{name: "zone with two doors", zoneID: 1, count: 2},
		{name: "zone with one door", zoneID: 2, count: 1},
		{name: "zone without doors", zoneID: 99, count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doors := parser.DoorsByZone(tt.zoneID)
			assert.Len(t, doors, tt.count)
			for _, d := range doors {
				assert.Equal(t, tt.zoneID, d.ZoneID)
			}
		})
	}
}

// TestGlobalID 測試全域 ID 合成
func TestGlobalID(t *testing.T) {
	assert.Equal(t, (5<<16)|31, tilemap.GlobalID(5, 31))
	assert.NotEqual(t, tilemap.GlobalID(5, 31), tilemap.GlobalID(6, 31))
}

// TestDirStore 測試目錄地圖存取
func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join("testdata", "office.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "office.json"), data, 0o600))

	store := tilemap.NewDirStore(dir)

	t.Run("reads existing map", func(t *testing.T) {
		got, err := store.Read("office")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("missing map returns ErrNotFound", func(t *testing.T) {
		_, err := store.Read("nowhere")
		assert.ErrorIs(t, err, tilemap.ErrNotFound)
	})

	t.Run("path traversal is rejected", func(t *testing.T) {
		_, err := store.Read("../office")
		assert.ErrorIs(t, err, tilemap.ErrNotFound)
	})

	t.Run("load parses through the store", func(t *testing.T) {
		parser, err := tilemap.Load(store, "office")
		require.NoError(t, err)
		assert.Len(t, parser.Zones(), 2)
	})
}

// Package tilemap 負責解析 Tiled 格式的 JSON 地圖文件。
//
// 系統設計問題：
//   如何從靜態地圖文件中提取遊戲需要的拓撲結構（區域與門）？
//
// 核心挑戰：
//   1. 遞迴結構：圖層可以是 tile/image/objectgroup/group，group 內可再嵌套圖層
//   2. 識別穩定性：物件在不同圖層可能有相同的本地 ID，需要合成全域 ID
//   3. 屬性驅動：區域/門的身份來自自定義屬性，而非物件本身的 ID
//
// 設計方案：
//   ✅ 帶類型標籤的圖層結構（type 欄位區分變體）
//   ✅ 遞迴訪問器 - 統一收集所有物件圖層的物件
//   ✅ (layerID << 16) | objectID - 合成全域唯一 ID
package tilemap

import "encoding/json"

// LayerType 圖層類型標籤
type LayerType string

const (
	LayerTile        LayerType = "tilelayer"
	LayerImage       LayerType = "imagelayer"
	LayerObjectGroup LayerType = "objectgroup"
	LayerGroup       LayerType = "group"
)

// Map Tiled 地圖文件的頂層結構
type Map struct {
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	TileWidth  int       `json:"tilewidth"`
	TileHeight int       `json:"tileheight"`
	Infinite   bool      `json:"infinite"`
	Layers     []Layer   `json:"layers"`
	Tilesets   []Tileset `json:"tilesets"`
	Type       string    `json:"type"`
	Version    string    `json:"version"`
}

// Layer 圖層（帶類型標籤的變體結構）
//
// Type 決定哪些欄位有效：
//   - tilelayer：Data（瓦片索引，本引擎不使用）
//   - imagelayer：Image
//   - objectgroup：Objects
//   - group：Layers（遞迴嵌套）
type Layer struct {
	ID      int       `json:"id"`
	Name    string    `json:"name"`
	Type    LayerType `json:"type"`
	Visible bool      `json:"visible"`
	Opacity float64   `json:"opacity"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`

	// tilelayer 專用（保留原始資料，引擎不解碼瓦片）
	Data json.RawMessage `json:"data,omitempty"`

	// imagelayer 專用
	Image string `json:"image,omitempty"`

	// objectgroup 專用
	Objects []Object `json:"objects,omitempty"`

	// group 專用
	Layers []Layer `json:"layers,omitempty"`
}

// Object 物件圖層中的物件
type Object struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Rotation   float64    `json:"rotation"`
	Visible    bool       `json:"visible"`
	Properties []Property `json:"properties,omitempty"`
}

// Property 物件的自定義屬性
type Property struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Tileset 圖塊集引用
type Tileset struct {
	FirstGID int    `json:"firstgid"`
	Source   string `json:"source,omitempty"`
	Name     string `json:"name,omitempty"`
}

// IntProperty 取得整數屬性值
//
// JSON 解碼後數字一律是 float64，這裡統一轉換。
func (o *Object) IntProperty(name string) (int, bool) {
	for _, p := range o.Properties {
		if p.Name != name {
			continue
		}
		switch v := p.Value.(type) {
		case float64:
			return int(v), true
		case int:
			return v, true
		}
	}
	return 0, false
}

// BoolProperty 取得布林屬性值
func (o *Object) BoolProperty(name string) (bool, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			if v, ok := p.Value.(bool); ok {
				return v, true
			}
		}
	}
	return false, false
}

// StringProperty 取得字串屬性值
func (o *Object) StringProperty(name string) (string, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			if v, ok := p.Value.(string); ok {
				return v, true
			}
		}
	}
	return "", false
}

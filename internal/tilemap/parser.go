package tilemap

import (
	"encoding/json"
	"fmt"
)

// 物件類型標記（來自地圖編輯器中物件的 type 欄位）
const (
	objectTypeZone = "zone"
	objectTypeDoor = "door"
)

// ParsedObject 解析後的物件，附帶所屬圖層資訊
//
// GlobalID 由 (layerID << 16) | objectID 合成：
// 物件 ID 只在圖層內唯一，跨圖層需要這個合成 ID 消歧義。
type ParsedObject struct {
	Object
	LayerPath []string
	LayerID   int
	GlobalID  int
}

// ZoneObject 地圖上的區域物件
//
// ZoneID 取自物件的自定義屬性 id，而非物件本身的 ID。
type ZoneObject struct {
	ParsedObject
	ZoneID int
}

// DoorObject 地圖上的門物件，每扇門恰好屬於一個區域
type DoorObject struct {
	ParsedObject
	ZoneID int
	IsOpen bool
}

// Parser 地圖拓撲解析器
//
// 載入後不可變，生命週期與一個房間綁定。
type Parser struct {
	mapData *Map
	objects []ParsedObject
	zones   []ZoneObject
	doors   []DoorObject
}

// Parse 解析地圖文件內容
func Parse(data []byte) (*Parser, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("解析地圖 JSON: %w", err)
	}

	p := &Parser{mapData: &m}

	// 遞迴收集所有物件圖層的物件
	p.walkLayers(m.Layers, nil, func(layer *Layer, path []string) {
		if layer.Type != LayerObjectGroup {
			return
		}
		for _, obj := range layer.Objects {
			p.objects = append(p.objects, ParsedObject{
				Object:    obj,
				LayerPath: path,
				LayerID:   layer.ID,
				GlobalID:  GlobalID(layer.ID, obj.ID),
			})
		}
	})

	p.collectZonesAndDoors()

	return p, nil
}

// GlobalID 合成跨圖層唯一的物件 ID
func GlobalID(layerID, objectID int) int {
	return (layerID << 16) | objectID
}

// walkLayers 遞迴訪問所有圖層
//
// path 是從根到當前圖層的名稱路徑，group 圖層會繼續向下展開。
func (p *Parser) walkLayers(layers []Layer, path []string, visit func(layer *Layer, path []string)) {
	for i := range layers {
		layer := &layers[i]
		layerPath := append(append([]string{}, path...), layer.Name)
		visit(layer, layerPath)
		if layer.Type == LayerGroup {
			p.walkLayers(layer.Layers, layerPath, visit)
		}
	}
}

// collectZonesAndDoors 從物件清單過濾出區域與門
//
// 缺少必要屬性的物件視為地圖資料缺陷，直接略過，
// 不讓單一壞物件阻止整張地圖載入。
func (p *Parser) collectZonesAndDoors() {
	for _, obj := range p.objects {
		switch obj.Type {
		case objectTypeZone:
			zoneID, ok := obj.IntProperty("id")
			if !ok {
				continue
			}
			p.zones = append(p.zones, ZoneObject{ParsedObject: obj, ZoneID: zoneID})

		case objectTypeDoor:
			zoneID, ok := obj.IntProperty("zoneId")
			if !ok {
				continue
			}
			isOpen, _ := obj.BoolProperty("isOpen")
			p.doors = append(p.doors, DoorObject{ParsedObject: obj, ZoneID: zoneID, IsOpen: isOpen})
		}
	}
}

// Map 取得原始地圖結構
func (p *Parser) Map() *Map {
	return p.mapData
}

// Objects 取得所有解析後的物件
func (p *Parser) Objects() []ParsedObject {
	return p.objects
}

// Zones 取得所有區域物件
func (p *Parser) Zones() []ZoneObject {
	return p.zones
}

// Doors 取得所有門物件
func (p *Parser) Doors() []DoorObject {
	return p.doors
}

// Zone 依區域 ID 查找區域物件
func (p *Parser) Zone(zoneID int) (ZoneObject, bool) {
	for _, z := range p.zones {
		if z.ZoneID == zoneID {
			return z, true
		}
	}
	return ZoneObject{}, false
}

// DoorsByZone 取得屬於指定區域的所有門
func (p *Parser) DoorsByZone(zoneID int) []DoorObject {
	var result []DoorObject
	for _, d := range p.doors {
		if d.ZoneID == zoneID {
			result = append(result, d)
		}
	}
	return result
}

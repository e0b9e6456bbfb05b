package tilemap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound 地圖文件不存在
//
// 對房間創建是致命錯誤，不重試。
var ErrNotFound = errors.New("地圖不存在")

// Store 地圖文件存取介面
type Store interface {
	Read(mapID string) ([]byte, error)
}

// DirStore 以目錄為後端的地圖存取，mapID 對應 <dir>/<mapID>.json
type DirStore struct {
	dir string
}

// NewDirStore 創建目錄地圖存取
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Read 讀取地圖文件內容
func (s *DirStore) Read(mapID string) ([]byte, error) {
	// 阻止 mapID 挾帶路徑跳出地圖目錄
	if filepath.Base(mapID) != mapID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mapID)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, mapID+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, mapID)
		}
		return nil, fmt.Errorf("讀取地圖文件: %w", err)
	}
	return data, nil
}

// Load 讀取並解析地圖
func Load(store Store, mapID string) (*Parser, error) {
	data, err := store.Read(mapID)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

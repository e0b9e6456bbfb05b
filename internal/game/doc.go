// Package game 實現頻道房間的權威模擬核心
//
// 一個房間對應一個頻道，持有該頻道的完整同步狀態：
// 玩家座標、鄰近關係圖、區域與門的開關。房間以 actor 模型運行，
// 所有狀態修改由單一 goroutine 序列化執行，每輪處理後
// 以增量補丁向所有成員廣播變更。
//
// 房間的創建由 Factory 統籌：頻道驗證、原子頻道預約、
// 地圖拓撲載入依序完成，保證任一時刻每個頻道至多一個活躍房間。
package game

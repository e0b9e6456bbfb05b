package game

// triggerDoor 門觸發的三分支狀態機
//
// 分支只看觸發者的位置與區域的開關狀態：
//   - 在區域內：無條件切換開關，不做距離檢查；上鎖時記錄鎖定者
//   - 在區域外、區域開放：提示觸發者必須進入區域才能關門
//   - 在區域外、區域上鎖：距任一扇門在視野半徑內可搖門鈴，否則提示太遠
//
// 未知的區域 ID、或區域沒有任何門，一律靜默忽略。
func (r *Room) triggerDoor(playerID string, zoneID int) error {
	player, exists := r.state.Players[playerID]
	if !exists {
		return ErrPlayerNotFound
	}

	zone, exists := r.state.Zones[zoneID]
	if !exists {
		return nil
	}
	doors := r.parser.DoorsByZone(zoneID)
	if len(doors) == 0 {
		return nil
	}

	if player.CurrentZoneID == zoneID {
		zone.IsOpen = !zone.IsOpen
		if zone.IsOpen {
			zone.LockedBy = ""
		} else {
			zone.LockedBy = playerID
		}
		r.logger.Debug("區域開關已切換",
			"zone_id", zoneID,
			"is_open", zone.IsOpen,
			"player_id", playerID)
		return nil
	}

	sess := r.sessions[playerID]

	if zone.IsOpen {
		if sess != nil {
			sess.Send(EventMessage, MessagePayload{Message: "必須在區域內才能關上門"})
		}
		return nil
	}

	withinReach := false
	for _, d := range doors {
		if distance(player.X, player.Y, d.Object.X, d.Object.Y) <= VisionRadius {
			withinReach = true
			break
		}
	}
	if !withinReach {
		if sess != nil {
			sess.Send(EventMessage, MessagePayload{Message: "離門太遠了"})
		}
		return nil
	}

	// 門鈴以排除法決定收件人：區域內的成員已經知道門外有人，
	// 通知對象是「目前不在該區域內」的所有人，搖鈴者自己除外。
	payload := DoorRingPayload{ZoneID: zoneID, By: playerID}
	for id, target := range r.sessions {
		if id == playerID {
			continue
		}
		if p, ok := r.state.Players[id]; ok && p.CurrentZoneID == zoneID {
			continue
		}
		target.Send(EventDoorRing, payload)
	}
	return nil
}

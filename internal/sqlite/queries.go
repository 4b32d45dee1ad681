package sqlite

const (
	queryEnsureRoom = `
		INSERT INTO rooms (id, state, last_active_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`
	queryGetRoom = `
		SELECT id, state, last_active_at, created_at
		FROM rooms WHERE id = ?`
	queryRoomState       = `SELECT state FROM rooms WHERE id = ?`
	queryUpdateRoomState = `UPDATE rooms SET state = ?, last_active_at = ? WHERE id = ?`
	queryTouchRoom       = `UPDATE rooms SET last_active_at = ? WHERE id = ?`
	queryDeleteIdleRooms = `DELETE FROM rooms WHERE last_active_at < ?`

	queryInsertMessage = `
		INSERT INTO room_messages (room_id, id, sender_identity, sender_name, sender_avatar, text, reactions, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	queryHistory = `
		SELECT id, sender_identity, sender_name, sender_avatar, text, reactions, ts
		FROM room_messages
		WHERE room_id = ?
		ORDER BY ts ASC, id ASC`
	queryHistoryPage = `
		SELECT id, sender_identity, sender_name, sender_avatar, text, reactions, ts
		FROM room_messages
		WHERE room_id = ?
		  AND (ts < ? OR (ts = ? AND id < ?))
		ORDER BY ts DESC, id DESC
		LIMIT ?`
	queryHistoryHead = `
		SELECT id, sender_identity, sender_name, sender_avatar, text, reactions, ts
		FROM room_messages
		WHERE room_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?`
	queryAddReaction = `
		UPDATE room_messages
		SET reactions = json_insert(reactions, '$[#]', ?)
		WHERE room_id = ? AND id = ?
		RETURNING id, sender_identity, sender_name, sender_avatar, text, reactions, ts`

	queryUpsertMember = `
		INSERT INTO room_members (room_id, identity, name, avatar_ref, joined_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (room_id, identity)
		DO UPDATE SET name = excluded.name, avatar_ref = excluded.avatar_ref`
	queryDeleteMember = `DELETE FROM room_members WHERE room_id = ? AND identity = ?`
	queryListMembers  = `
		SELECT identity, name, avatar_ref, joined_at
		FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, identity ASC`
)

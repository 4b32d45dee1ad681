package postgres

const (
	queryEnsureRoom = `
		INSERT INTO rooms (id, state, last_active_at, created_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, state, last_active_at, created_at`
	queryGetRoom = `
		SELECT id, state, last_active_at, created_at
		FROM rooms WHERE id = $1`
	queryLockRoomState   = `SELECT state FROM rooms WHERE id = $1 FOR UPDATE`
	queryUpdateRoomState = `UPDATE rooms SET state = $2, last_active_at = $3 WHERE id = $1`
	queryTouchRoom       = `UPDATE rooms SET last_active_at = $2 WHERE id = $1`
	queryDeleteIdleRooms = `DELETE FROM rooms WHERE last_active_at < $1`

	queryInsertMessage = `
		INSERT INTO room_messages (room_id, id, sender_identity, sender_name, sender_avatar, text, reactions, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	queryHistory = `
		SELECT id, sender_identity, sender_name, sender_avatar, text, reactions, ts
		FROM room_messages
		WHERE room_id = $1
		ORDER BY ts ASC, id ASC`
	queryHistoryPage = `
		SELECT id, sender_identity, sender_name, sender_avatar, text, reactions, ts
		FROM room_messages
		WHERE room_id = $1
		  AND (
		    $2::bigint IS NULL
		    OR ts < $2
		    OR (ts = $2 AND id < $3)
		  )
		ORDER BY ts DESC, id DESC
		LIMIT $4`
	queryAddReaction = `
		UPDATE room_messages
		SET reactions = array_append(reactions, $3)
		WHERE room_id = $1 AND id = $2
		RETURNING id, sender_identity, sender_name, sender_avatar, text, reactions, ts`

	queryUpsertMember = `
		INSERT INTO room_members (room_id, identity, name, avatar_ref, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, identity)
		DO UPDATE SET name = EXCLUDED.name, avatar_ref = EXCLUDED.avatar_ref`
	queryDeleteMember = `DELETE FROM room_members WHERE room_id = $1 AND identity = $2`
	queryListMembers  = `
		SELECT identity, name, avatar_ref, joined_at
		FROM room_members
		WHERE room_id = $1
		ORDER BY joined_at ASC, identity ASC`
)

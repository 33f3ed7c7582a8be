package room

import "github.com/syncroom/server/internal/protocol"

// stampExecuteAt computes the absolute server time at which every client
// should perform an action. The delay gives the broadcast time to reach
// all subscribers before the deadline. Stamps are monotonic per room:
// the single writer holds the room lock while stamping, and the high-water
// mark guards against wall-clock regression.
func (s *service) stampExecuteAt(entry *roomEntry) int64 {
	executeAt := s.nowMs() + s.cfg.ScheduleDelay.Milliseconds()
	if executeAt <= entry.lastExecuteAt {
		executeAt = entry.lastExecuteAt + 1
	}
	entry.lastExecuteAt = executeAt

	return executeAt
}

// stampImmediate stamps an action for immediate execution. Spatial updates
// do not need the coordinated-timing delay transport actions do, but the
// per-room monotonic guarantee still holds.
func (s *service) stampImmediate(entry *roomEntry) int64 {
	executeAt := s.nowMs()
	if executeAt <= entry.lastExecuteAt {
		executeAt = entry.lastExecuteAt + 1
	}
	entry.lastExecuteAt = executeAt

	return executeAt
}

func scheduledMessage(actionType string, payload any, executeAt int64) *protocol.ScheduledActionMessage {
	return &protocol.ScheduledActionMessage{
		ScheduledAction: protocol.ScheduledAction{
			Type:    actionType,
			Payload: payload,
		},
		ServerTimeToExecute: executeAt,
	}
}

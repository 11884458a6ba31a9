package assistant

import "time"

func NewStreamInput(system string, msgs []AssistantMessage, image string) StreamInput {
	return StreamInput{
		System:      system,
		Msgs:        msgs,
		ImageBase64: image,
	}
}

func NewMessage(role Role, content string, at time.Time) AssistantMessage {
	return AssistantMessage{Content: content, CreatedAt: at, MsgRole: role}
}

// lastUserIndex is where an image belongs; -1 when there is no user turn.
func lastUserIndex(msgs []AssistantMessage) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].MsgRole == USER {
			return i
		}
	}
	return -1
}

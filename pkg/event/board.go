package event

const (
	KitchenBoardTopic  = "kitchen.board"
	EventBoardSnapshot = "BOARD_SNAPSHOT"
)

// SubscribeFrame is the control frame a client sends after the socket opens.
type SubscribeFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

func NewSubscribeFrame(topic string) SubscribeFrame {
	return SubscribeFrame{Action: "subscribe", Topic: topic}
}

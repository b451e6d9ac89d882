package chat

type Command interface {
	Chat() ChatID
}

// SendCommand carries a send intent. MessageID is optional; when set, a retried
// send with the same id is stored once.
type SendCommand struct {
	ChatID    ChatID
	MessageID string
	SenderID  string
	Text      string
}

func (c SendCommand) Chat() ChatID {
	return c.ChatID
}

// ListQuery asks for the messages of a chat placed strictly after SinceID.
// An empty SinceID lists the whole chat.
type ListQuery struct {
	ChatID  ChatID
	SinceID string
}

func (q ListQuery) Chat() ChatID {
	return q.ChatID
}

package projection

import (
	"fmt"
	"order-chat/domain/chat"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func message(id string, at time.Time) chat.Message {
	return chat.Message{ID: id, ChatID: "chat-1", SenderID: "vendor-a", Text: "text " + id, CreatedAt: at}
}

func TestMessageLog_Append_Dedup(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog()
	m := message("m1", time.Now())

	// The same message arriving on both paths is stored once
	req.True(log.Append(m))
	req.False(log.Append(m))

	req.Len(log.List("chat-1"), 1)
}

func TestMessageLog_List_OrderedWhateverArrivalOrder(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Given messages arriving out of order, two sharing a timestamp
	log.Append(message("c", at.Add(2*time.Second)))
	log.Append(message("b", at))
	log.Append(message("d", at.Add(time.Second)))
	log.Append(message("a", at))

	ids := []string{}
	for _, m := range log.List("chat-1") {
		ids = append(ids, m.ID)
	}
	req.Equal([]string{"a", "b", "d", "c"}, ids)

	last, ok := log.LastSeen("chat-1")
	req.True(ok)
	req.Equal("c", last)
	_, ok = log.LastSeen("chat-2")
	req.False(ok)
}

func TestMessageLog_Append_Concurrent(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog()
	at := time.Now()

	// When 8 goroutines append the same 100 messages
	var inserted atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("m%03d", i)
				if log.Append(message(id, at.Add(time.Duration(i)*time.Millisecond))) {
					inserted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	// Then each one is inserted exactly once, in order
	req.Equal(int64(100), inserted.Load())
	messages := log.List("chat-1")
	req.Len(messages, 100)
	for i := 1; i < len(messages); i++ {
		req.True(chat.Less(messages[i-1], messages[i]))
	}
}

func TestMessageLog_MarkRead(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog()
	log.Append(message("m1", time.Now()))

	// The sender cannot mark its own message as read
	req.False(log.MarkRead("m1", "vendor-a"))
	req.False(log.List("chat-1")[0].IsRead)

	req.True(log.MarkRead("m1", "customer"))
	req.False(log.MarkRead("m1", "customer"))
	req.True(log.List("chat-1")[0].IsRead)

	req.False(log.MarkRead("unknown", "customer"))
}

func TestMessageLog_ApplyRead(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog()
	log.Append(message("m1", time.Now()))

	req.True(log.ApplyRead("m1"))
	req.False(log.ApplyRead("m1"))
	req.Equal(1, log.count("chat-1"))
}

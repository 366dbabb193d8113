package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/sdbot/core/logger"
)

func chatCtx(chatID int64) context.Context {
	return logger.WithUpdateMeta(context.Background(), 1, chatID, chatID)
}

func TestDispatcherKeepsChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 64})

	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 20; i++ {
		for _, chat := range []int64{10, 11, -12} {
			chat, i := chat, i
			err := d.Enqueue(chatCtx(chat), "send.text", "sendMessage", func() error {
				if i%3 == 0 {
					time.Sleep(time.Millisecond)
				}
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()

	for chat, seq := range got {
		if len(seq) != 20 {
			t.Fatalf("chat %d got %d jobs", chat, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("chat %d out of order: %v", chat, seq)
			}
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	calls := 0
	done := make(chan struct{})
	err := d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		calls++
		if calls < 3 {
			return timeoutErr{}
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried")
	}
	d.Close()
	if calls != 3 || d.ErrorCount() != 0 {
		t.Fatalf("calls = %d errors = %d", calls, d.ErrorCount())
	}
}

func TestDispatcherCountsPermanentFailure(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	calls := 0
	_ = d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		calls++
		return errors.New("Bad Request: chat not found (400)")
	})
	d.Close()
	if calls != 1 || d.ErrorCount() != 1 {
		t.Fatalf("calls = %d errors = %d", calls, d.ErrorCount())
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	if err := d.Enqueue(context.Background(), "send.text", "", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestClassifyAndSanitize(t *testing.T) {
	if kind := classifyError(context.DeadlineExceeded); kind != "timeout" {
		t.Fatalf("kind = %s", kind)
	}
	if code := httpStatusFromError(errors.New("telegram: Bad Gateway (502)")); code != 502 {
		t.Fatalf("code = %d", code)
	}
	msg := sanitizeErrorMessage(errors.New(`Post "https://api.telegram.org/bot1:AAA/sendMessage": EOF`))
	if msg != `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF` {
		t.Fatalf("msg = %s", msg)
	}
}

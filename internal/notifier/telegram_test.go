package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tn := NewTelegramNotifier("TOKEN", "42", srv.Client())
	tn.BaseURL = srv.URL
	return tn
}

func TestTelegram_Notify(t *testing.T) {
	tn := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		assert.Equal(t, "HTML", payload["parse_mode"])
		assert.Contains(t, payload["text"], "RELIANCE")
	})

	require.NoError(t, tn.Notify(context.Background(), sampleAlert()))
}

func TestTelegram_NotifyError(t *testing.T) {
	tn := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	})

	err := tn.Notify(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestTelegram_PollingRepliesToOwnChatOnly(t *testing.T) {
	var polls atomic.Int32
	replies := make(chan string, 2)
	tn := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"ok":true,"result":[
					{"update_id":7,"message":{"text":"/crossed","chat":{"id":99}}},
					{"update_id":8,"message":{"text":" /crossed ","chat":{"id":42}}}]}`))
				return
			}
			assert.Equal(t, "9", r.URL.Query().Get("offset"))
			time.Sleep(10 * time.Millisecond)
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		case "/botTOKEN/sendMessage":
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			replies <- payload["text"]
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(_ context.Context, cmd string) string { return "got " + cmd }, zap.NewNop())
		close(done)
	}()

	select {
	case reply := <-replies:
		assert.Equal(t, "got /crossed", reply)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	<-done
	assert.Empty(t, replies)
}

type MockChannel struct {
	mock.Mock
	name string
}

func (m *MockChannel) Name() string { return m.name }

func (m *MockChannel) Notify(ctx context.Context, alert Alert) error {
	return m.Called(ctx, alert).Error(0)
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	email := &MockChannel{name: "email"}
	tg := &MockChannel{name: "telegram"}
	email.On("Notify", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	tg.On("Notify", mock.Anything, mock.Anything).Return(nil)

	err := Fanout{email, tg}.Notify(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email: smtp down")
	email.AssertExpectations(t)
	tg.AssertExpectations(t)

	assert.NoError(t, Fanout{tg}.Notify(context.Background(), sampleAlert()))
}

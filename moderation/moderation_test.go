package moderation

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/models"
)

func samplePost() *models.Post {
	return &models.Post{ID: "p1", AuthorID: "u1", Title: "Hello", Approval: models.ApprovalPending}
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	id1, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()
	require.Len(t, b.Subscribers(), 2)

	b.Publish(NewPostEvent(PostCreated, samplePost(), time.Now()))

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		require.Equal(t, PostCreated, ev.Type)
		require.Equal(t, "p1", ev.PostID)
		require.Equal(t, "1", ev.ID)
	}

	b.Unsubscribe(id1)
	_, ok := <-ch1
	require.False(t, ok, "channel is closed on unsubscribe")
	require.Len(t, b.Subscribers(), 1)
	b.Unsubscribe(id1) // second call is a no-op
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish(NewPostEvent(PostUpdated, samplePost(), time.Now()))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	require.Len(t, ch, subscriberBuffer)
}

func TestEventSSEFraming(t *testing.T) {
	ev := NewPostEvent(PostApproved, samplePost(), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	ev.ID = "7"
	frame, err := ev.SSE()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(frame, "id: 7\nevent: post.approved\ndata: {"))
	require.True(t, strings.HasSuffix(frame, "}\n\n"))
}

func TestHandleEventsStreamsSSE(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(NewHandlers(b, nil).HandleEvents())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, ": connected"))

	b.Publish(NewPostEvent(PostRejected, samplePost(), time.Now()))

	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	require.Equal(t, PostRejected, ev.Type)
	require.Equal(t, models.ApprovalPending, ev.Approval)
}

func TestHandleWebSocket(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(NewHandlers(b, nil).HandleWebSocket())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return len(b.Subscribers()) == 1 }, 2*time.Second, 10*time.Millisecond)
	b.Publish(NewPostEvent(PostDeleted, samplePost(), time.Now()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, PostDeleted, ev.Type)
	require.Equal(t, "p1", ev.PostID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return len(b.Subscribers()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCloseDisconnectsEverySubscriber(t *testing.T) {
	b := NewBroadcaster()
	_, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()

	b.Close()

	for _, ch := range []<-chan Event{ch1, ch2} {
		_, ok := <-ch
		require.False(t, ok)
	}
	require.Empty(t, b.Subscribers())
	b.Publish(NewPostEvent(PostDeleted, samplePost(), time.Now()))
}

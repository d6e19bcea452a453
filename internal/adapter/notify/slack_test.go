package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
)

type slackAPI struct {
	mu    sync.Mutex
	posts []map[string]string
	fail  string
}

func (s *slackAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.mu.Lock()
		s.posts = append(s.posts, map[string]string{
			"channel": r.PostForm.Get("channel"),
			"text":    r.PostForm.Get("text"),
		})
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if s.fail != "" {
			w.Write([]byte(`{"ok":false,"error":"` + s.fail + `"}`))
			return
		}
		w.Write([]byte(`{"ok":true,"channel":"C0123","ts":"1767600000.000100"}`))
	})
	return mux
}

func newTestSlack(t *testing.T, api *slackAPI) *SlackNotifier {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	n, err := NewSlackNotifier(config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C0123"}, nopLogger(),
		WithSlackAPIURL(srv.URL+"/"))
	require.NoError(t, err)
	return n
}

func TestSlackNotify(t *testing.T) {
	api := &slackAPI{}
	n := newTestSlack(t, api)
	assert.Equal(t, "slack", n.Name())

	err := n.Notify(context.Background(), domain.Notification{
		Title: "Laporan Guru Harian",
		Body:  `{"total_siswa": 30, "hadir": 28}`,
	})
	require.NoError(t, err)

	require.Len(t, api.posts, 1)
	assert.Equal(t, "C0123", api.posts[0]["channel"])
	assert.Contains(t, api.posts[0]["text"], "*Laporan Guru Harian*")
	assert.Contains(t, api.posts[0]["text"], `"hadir": 28`)
}

func TestSlackNotifyAPIError(t *testing.T) {
	api := &slackAPI{fail: "channel_not_found"}
	n := newTestSlack(t, api)

	err := n.Notify(context.Background(), domain.Notification{Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotifyFailed)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestSlackNotifyMissingAttachment(t *testing.T) {
	api := &slackAPI{}
	n := newTestSlack(t, api)

	err := n.Notify(context.Background(), domain.Notification{Title: "x", FilePath: "/nonexistent/laporan.pdf"})
	assert.ErrorIs(t, err, domain.ErrNotifyFailed)
	assert.Len(t, api.posts, 1, "text is posted before the attachment is read")
}

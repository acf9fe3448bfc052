package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingMailer struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	delay time.Duration
}

func (r *recordingMailer) Send(ctx context.Context, msg Message) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingMailer) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	rec := &recordingMailer{delay: 10 * time.Millisecond}
	d := NewDispatcher(rec, discardLogger())

	d.Dispatch(Registered("a@example.com"))
	d.Dispatch(JobCompleted("b@example.com", "Mow lawn", "Bob"))

	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, rec.messages(), 2)

	d.Dispatch(Registered("late@example.com"))
	assert.Len(t, rec.messages(), 2, "dispatch after close is dropped")
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	rec := &recordingMailer{err: errors.New("provider down")}
	d := NewDispatcher(rec, discardLogger())

	d.Dispatch(Registered("a@example.com"))
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, rec.messages(), 1)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(Registered("a@example.com"))
	assert.NoError(t, d.Close(context.Background()))
}

func TestSendGridMailer(t *testing.T) {
	var payload map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendGridMailer("SG.key", srv.URL, "noreply@sidequest.test", "Side Quest")
	msg := ChosenForJob("worker@example.com", "Paint fence", "Saturday", 90)
	require.NoError(t, m.Send(context.Background(), msg))

	assert.Equal(t, "Bearer SG.key", auth)
	assert.Equal(t, msg.Subject, payload["subject"])
	assert.Contains(t, msg.Body, "90 minutes")
}

func TestSendGridMailer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := NewSendGridMailer("bad", srv.URL, "noreply@sidequest.test", "Side Quest")
	err := m.Send(context.Background(), Registered("a@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, NewLogMailer(discardLogger()).Send(context.Background(), Registered("a@example.com")))
}

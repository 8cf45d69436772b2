package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/large-farva/livechart/internal/telemetry"
)

// recorder collects everything a Client reports.
type recorder struct {
	mu       sync.Mutex
	statuses []Status
	errs     []string
	msgs     []telemetry.Snapshot
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnMessage: func(s telemetry.Snapshot) {
			r.mu.Lock()
			r.msgs = append(r.msgs, s)
			r.mu.Unlock()
		},
		OnStatusChange: func(s Status) {
			r.mu.Lock()
			r.statuses = append(r.statuses, s)
			r.mu.Unlock()
		},
		OnError: func(e string) {
			r.mu.Lock()
			r.errs = append(r.errs, e)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() ([]Status, []string, []telemetry.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...), append([]string(nil), r.errs...), append([]telemetry.Snapshot(nil), r.msgs...)
}

func (r *recorder) count(s Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, st := range r.statuses {
		if st == s {
			n++
		}
	}
	return n
}

// fakeTimers records scheduled retries instead of running them.
type fakeTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

type fakeTimer struct{}

func (fakeTimer) Stop() bool { return true }

func (f *fakeTimers) afterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
	f.fns = append(f.fns, fn)
	return fakeTimer{}
}

func (f *fakeTimers) scheduled() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

func (f *fakeTimers) fire(i int) {
	f.mu.Lock()
	fn := f.fns[i]
	f.mu.Unlock()
	fn()
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// feedServer upgrades every request, sends msgs, then holds the connection
// open until the client goes away.
func feedServer(msgs ...string) (*httptest.Server, *atomic.Int32) {
	var upgrades atomic.Int32
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgrades.Add(1)
		defer conn.Close()
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv, &upgrades
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBackoffDelay(t *testing.T) {

	Convey("Backoff should double from the base and stop at the cap", t, func() {
		want := []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
			16 * time.Second, 16 * time.Second, 16 * time.Second,
		}
		for i, w := range want {
			So(backoffDelay(DefaultBaseDelay, DefaultMaxDelay, i), ShouldEqual, w)
		}
		So(backoffDelay(DefaultBaseDelay, DefaultMaxDelay, 60), ShouldEqual, DefaultMaxDelay)
	})
}

func TestValidateEndpoint(t *testing.T) {

	Convey("Only ws and wss URLs with a host are accepted", t, func() {
		u, err := ValidateEndpoint(" ws://localhost:8004 ")
		So(err, ShouldBeNil)
		So(u, ShouldEqual, "ws://localhost:8004")

		_, err = ValidateEndpoint("wss://example.com/stream")
		So(err, ShouldBeNil)

		for _, bad := range []string{"http://localhost:8004", "localhost:8004", "ws://", "::nope"} {
			_, err := ValidateEndpoint(bad)
			So(err, ShouldNotBeNil)
		}
	})
}

func TestClientReceives(t *testing.T) {

	srv, _ := feedServer(
		`{"cpu": [[100, 50], [200, 51]]}`,
		`{"cpu": "garbage"}`,
		`{"cpu": [[300, 52]]}`,
	)
	defer srv.Close()

	Convey("A client should report status, forward valid payloads and surface bad ones", t, func() {
		rec := &recorder{}
		c := New(Options{})
		c.Connect(wsURL(srv), rec.handlers())
		defer c.Disconnect()

		So(waitFor(func() bool {
			_, _, msgs := rec.snapshot()
			return len(msgs) == 2
		}), ShouldBeTrue)

		statuses, errs, msgs := rec.snapshot()
		So(statuses, ShouldResemble, []Status{StatusConnecting, StatusConnected})
		So(errs, ShouldHaveLength, 1)
		So(errs[0], ShouldContainSubstring, "invalid payload")
		So(msgs[0]["cpu"], ShouldResemble, []telemetry.Point{{T: 100, V: 50}, {T: 200, V: 51}})
		So(msgs[1]["cpu"], ShouldResemble, []telemetry.Point{{T: 300, V: 52}})
		So(c.IsConnected(), ShouldBeTrue)
		So(c.Status(), ShouldEqual, StatusConnected)
	})
}

func TestClientSingleConnection(t *testing.T) {

	srv, upgrades := feedServer()
	defer srv.Close()

	Convey("Connecting twice should not open a second connection", t, func() {
		rec := &recorder{}
		c := New(Options{})
		c.Connect(wsURL(srv), rec.handlers())
		So(waitFor(c.IsConnected), ShouldBeTrue)

		c.Connect("ws://elsewhere.invalid", rec.handlers())
		time.Sleep(50 * time.Millisecond)

		So(upgrades.Load(), ShouldEqual, 1)
		So(c.Endpoint(), ShouldEqual, wsURL(srv))
		statuses, _, _ := rec.snapshot()
		So(statuses, ShouldResemble, []Status{StatusConnecting, StatusConnected})

		c.Disconnect()
	})
}

func TestClientDisconnectIdempotent(t *testing.T) {

	srv, _ := feedServer()
	defer srv.Close()

	Convey("Disconnect should emit exactly one status per call and nothing else", t, func() {
		rec := &recorder{}
		timers := &fakeTimers{}
		c := New(Options{AfterFunc: timers.afterFunc})
		c.Connect(wsURL(srv), rec.handlers())
		So(waitFor(c.IsConnected), ShouldBeTrue)

		c.Disconnect()
		So(waitFor(func() bool { return rec.count(StatusDisconnected) == 1 }), ShouldBeTrue)
		c.Disconnect()
		So(waitFor(func() bool { return rec.count(StatusDisconnected) == 2 }), ShouldBeTrue)

		// Give the torn-down read loop a chance to report anything stale.
		time.Sleep(100 * time.Millisecond)

		statuses, errs, _ := rec.snapshot()
		So(statuses, ShouldResemble, []Status{
			StatusConnecting, StatusConnected, StatusDisconnected, StatusDisconnected,
		})
		So(errs, ShouldBeEmpty)
		So(timers.scheduled(), ShouldBeEmpty)
		So(c.IsConnected(), ShouldBeFalse)
	})
}

func TestClientInvalidEndpoint(t *testing.T) {

	Convey("A malformed endpoint should report an error without scheduling a retry", t, func() {
		rec := &recorder{}
		timers := &fakeTimers{}
		c := New(Options{AfterFunc: timers.afterFunc})
		c.Connect("http://localhost:8004", rec.handlers())

		statuses, errs, _ := rec.snapshot()
		So(statuses, ShouldResemble, []Status{StatusConnecting, StatusError})
		So(errs, ShouldHaveLength, 1)
		So(errs[0], ShouldContainSubstring, "invalid endpoint")
		So(timers.scheduled(), ShouldBeEmpty)
		So(c.IsConnected(), ShouldBeFalse)
	})
}

func TestClientBackoffSchedule(t *testing.T) {

	// A closed server gives a fast, reliable dial failure.
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := wsURL(srv)
	srv.Close()

	Convey("Consecutive failures should back off 1s, 2s, 4s, 8s, 16s and then stop", t, func() {
		rec := &recorder{}
		timers := &fakeTimers{}
		c := New(Options{MaxRetries: DefaultMaxRetries, AfterFunc: timers.afterFunc})
		c.Connect(endpoint, rec.handlers())

		for i := 0; i < 5; i++ {
			n := i + 1
			So(waitFor(func() bool { return len(timers.scheduled()) == n }), ShouldBeTrue)
			timers.fire(i)
		}
		So(waitFor(func() bool { return rec.count(StatusDisconnected) == 6 }), ShouldBeTrue)
		time.Sleep(50 * time.Millisecond)

		So(timers.scheduled(), ShouldResemble, []time.Duration{
			1000 * time.Millisecond,
			2000 * time.Millisecond,
			4000 * time.Millisecond,
			8000 * time.Millisecond,
			16000 * time.Millisecond,
		})
		So(c.Retries(), ShouldEqual, 5)
		So(c.Idle(), ShouldBeTrue)
		So(rec.count(StatusError), ShouldEqual, 6)

		_, errs, _ := rec.snapshot()
		So(errs[0], ShouldEqual, "connection error")
	})
}

func TestClientZeroRetries(t *testing.T) {

	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := wsURL(srv)
	srv.Close()

	Convey("With MaxRetries zero the first close should be final", t, func() {
		rec := &recorder{}
		timers := &fakeTimers{}
		c := New(Options{MaxRetries: 0, AfterFunc: timers.afterFunc})
		c.Connect(endpoint, rec.handlers())

		So(waitFor(func() bool { return rec.count(StatusDisconnected) == 1 }), ShouldBeTrue)
		time.Sleep(50 * time.Millisecond)

		So(timers.scheduled(), ShouldBeEmpty)
		So(c.Retries(), ShouldEqual, 0)
		So(c.Idle(), ShouldBeTrue)
		So(rec.count(StatusConnecting), ShouldEqual, 1)
	})

	Convey("A negative MaxRetries should fall back to the default", t, func() {
		timers := &fakeTimers{}
		c := New(Options{MaxRetries: -1, AfterFunc: timers.afterFunc})
		c.Connect(endpoint, (&recorder{}).handlers())

		So(waitFor(func() bool { return len(timers.scheduled()) == 1 }), ShouldBeTrue)
		So(c.Retries(), ShouldEqual, 1)
		c.Disconnect()
	})
}

func TestClientRetriesAfterServerClose(t *testing.T) {

	var upgrades atomic.Int32
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if upgrades.Add(1) == 1 {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
			_ = conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	Convey("An unexpected close should schedule a retry and a successful open resets the count", t, func() {
		rec := &recorder{}
		timers := &fakeTimers{}
		c := New(Options{MaxRetries: DefaultMaxRetries, AfterFunc: timers.afterFunc})
		c.Connect(wsURL(srv), rec.handlers())

		So(waitFor(func() bool { return len(timers.scheduled()) == 1 }), ShouldBeTrue)
		So(timers.scheduled()[0], ShouldEqual, time.Second)
		So(c.Retries(), ShouldEqual, 1)

		timers.fire(0)
		So(waitFor(c.IsConnected), ShouldBeTrue)
		So(c.Retries(), ShouldEqual, 0)

		c.Disconnect()
		statuses, errs, _ := rec.snapshot()
		So(errs, ShouldBeEmpty)
		So(statuses[:4], ShouldResemble, []Status{
			StatusConnecting, StatusConnected, StatusDisconnected, StatusConnecting,
		})
	})
}

func TestClientDisconnectCancelsRetry(t *testing.T) {

	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := wsURL(srv)
	srv.Close()

	Convey("A retry that fires after Disconnect should do nothing", t, func() {
		rec := &recorder{}
		timers := &fakeTimers{}
		c := New(Options{MaxRetries: DefaultMaxRetries, AfterFunc: timers.afterFunc})
		c.Connect(endpoint, rec.handlers())
		So(waitFor(func() bool { return len(timers.scheduled()) == 1 }), ShouldBeTrue)

		c.Disconnect()
		before := rec.count(StatusConnecting)
		timers.fire(0)
		time.Sleep(50 * time.Millisecond)

		So(rec.count(StatusConnecting), ShouldEqual, before)
		So(c.Status(), ShouldEqual, StatusDisconnected)
	})
}

func TestHandlersMayReenter(t *testing.T) {

	Convey("A handler calling Disconnect should not deadlock", t, func() {
		var c *Client
		var statuses []Status
		c = New(Options{})
		c.Connect("bogus", Handlers{
			OnStatusChange: func(s Status) { statuses = append(statuses, s) },
			OnError:        func(string) { c.Disconnect() },
		})
		So(statuses, ShouldResemble, []Status{StatusConnecting, StatusError, StatusDisconnected})
	})
}

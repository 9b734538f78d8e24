package apex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "apexwatch/pkg/logx"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	now := time.Unix(100000, 0)
	cases := []struct {
		name  string
		since int64
		want  string
	}{
		{"negative is unknown", -1, "未知"},
		{"seconds only", now.Unix() - 5, "5秒"},
		{"exact minute", now.Unix() - 60, "1分钟"},
		{"minutes", now.Unix() - 61, "1分钟"},
		{"hours and minutes", now.Unix() - 3661, "1小时1分钟"},
		{"hour with zero minutes", now.Unix() - 3600, "1小时0分钟"},
		{"future timestamp clamps to zero", now.Unix() + 30, "0秒"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatDuration(tc.since, now); got != tc.want {
				t.Fatalf("FormatDuration(%d) = %q, want %q", tc.since, got, tc.want)
			}
		})
	}
}

func TestNormalizePlatform(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"PC", "PC", true},
		{"pc", "PC", true},
		{"switch", "SWITCH", true},
		{" x1 ", "X1", true},
		{"xbox", "XBOX", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizePlatform(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("NormalizePlatform(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()

	if got := (Status{State: "inMatch"}).Text(); got != "游戏中" {
		t.Fatalf("known state text = %q", got)
	}
	if got := (Status{State: "weird", APIText: "Weird"}).Text(); got != "Weird" {
		t.Fatalf("unknown state should fall back to API text, got %q", got)
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 2 * time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestFetchOK(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"auth":     q.Get("auth"),
			"player":   q.Get("player"),
			"platform": q.Get("platform"),
		}
		w.Write([]byte(`{"realtime":{"currentState":"inLobby","currentStateAsText":"In lobby","currentStateSinceTimestamp":12345}}`))
	})

	st, err := c.Fetch(context.Background(), "Wraith Main", "PC")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if st.State != "inLobby" || st.SinceUnix != 12345 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if gotQuery["auth"] != "k" || gotQuery["player"] != "Wraith Main" || gotQuery["platform"] != "PC" {
		t.Fatalf("unexpected query params: %v", gotQuery)
	}
}

func TestFetchMissingSinceTimestamp(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"realtime":{"currentState":"offline"}}`))
	})
	st, err := c.Fetch(context.Background(), "p", "PC")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if st.SinceUnix != -1 {
		t.Fatalf("SinceUnix = %d, want -1 for missing timestamp", st.SinceUnix)
	}
	if st.Duration(time.Now()) != "未知" {
		t.Fatalf("missing timestamp should render as unknown")
	}
}

func TestFetchErrorKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    ErrorKind
	}{
		{
			"non-200", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			}, KindStatus,
		},
		{
			"bad json", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"realtime":`))
			}, KindMalformed,
		},
		{
			"api error payload", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Error":"Player not found"}`))
			}, KindMalformed,
		},
		{
			"missing realtime", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			}, KindMalformed,
		},
		{
			"missing state", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"realtime":{"currentStateAsText":"x"}}`))
			}, KindMalformed,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newTestClient(t, tc.handler)
			_, err := c.Fetch(context.Background(), "p", "PC")
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("want *FetchError, got %v", err)
			}
			if fe.Kind != tc.want {
				t.Fatalf("kind = %s, want %s", fe.Kind, tc.want)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "p", "PC")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %v", err)
	}
	if fe.Kind != KindTimeout {
		t.Fatalf("kind = %s, want timeout", fe.Kind)
	}
}

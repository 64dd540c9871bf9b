package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type capturedRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// graphQLServer answers every request with respond(req) and records the requests.
func graphQLServer(t *testing.T, respond func(req capturedRequest) (int, string)) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "id-token" {
			t.Errorf("Authorization = %q, want raw id token", got)
		}
		var req capturedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		status, body := respond(req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func newTestClient(url string) *Client {
	c := New(url, staticToken("id-token"))
	c.retryWait = time.Millisecond
	return c
}

func TestClient_FetchCloudState(t *testing.T) {
	server, reqs := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":{"cloudState":{
			"primeDeviceId":"ABC123","trackId":"t1","trackArtistId":"a1","isPlaying":true,
			"positionMs":"30000","positionUpdatedAt":1700000000000,"repeatMode":"ALL",
			"shuffleMode":"ON","volume":42}}}`
	})

	cs, err := newTestClient(server.URL).FetchCloudState(context.Background())
	if err != nil {
		t.Fatalf("FetchCloudState() error = %v", err)
	}

	if reqs()[0].OperationName != "GetCloudState" {
		t.Errorf("operationName = %q", reqs()[0].OperationName)
	}
	if *cs.PrimeDeviceID != "ABC123" || *cs.TrackID != "t1" || *cs.TrackArtistID != "a1" {
		t.Errorf("ids = %v %v %v", *cs.PrimeDeviceID, *cs.TrackID, *cs.TrackArtistID)
	}
	if *cs.PositionMs != 30000 {
		t.Errorf("PositionMs = %d, want 30000 from a string", *cs.PositionMs)
	}
	if *cs.PositionUpdatedAt != 1700000000000 {
		t.Errorf("PositionUpdatedAt = %d", *cs.PositionUpdatedAt)
	}
	if *cs.RepeatMode != core.RepeatAll {
		t.Errorf("RepeatMode = %q", *cs.RepeatMode)
	}
	if !*cs.Shuffle {
		t.Error("Shuffle = false, want true")
	}
	if *cs.Volume != 42 {
		t.Errorf("Volume = %d", *cs.Volume)
	}
}

func TestClient_FetchCloudStateNull(t *testing.T) {
	server, _ := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":{"cloudState":null}}`
	})

	cs, err := newTestClient(server.URL).FetchCloudState(context.Background())
	if err != nil {
		t.Fatalf("FetchCloudState() error = %v", err)
	}
	if cs != nil {
		t.Errorf("FetchCloudState() = %+v, want nil", cs)
	}
}

func TestClient_PartialCloudState(t *testing.T) {
	server, _ := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":{"cloudState":{"isPlaying":false,"positionMs":12000,"volume":null,"shuffleMode":null}}}`
	})

	cs, err := newTestClient(server.URL).FetchCloudState(context.Background())
	if err != nil {
		t.Fatalf("FetchCloudState() error = %v", err)
	}
	if cs.Volume != nil || cs.Shuffle != nil || cs.TrackID != nil || cs.PositionUpdatedAt != nil {
		t.Errorf("absent fields decoded as present: %+v", cs)
	}
	if *cs.PositionMs != 12000 || *cs.IsPlaying {
		t.Errorf("cs = %+v", cs)
	}
}

func TestClient_PublishSessionMutation(t *testing.T) {
	server, reqs := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":{"cloudStateUpdate":true}}`
	})
	c := newTestClient(server.URL)

	m := core.SessionMutation{
		Volume:            core.Ptr(55),
		IsPlaying:         core.Ptr(true),
		PositionMs:        core.Ptr(int64(1500)),
		PositionUpdatedAt: core.Ptr(int64(1700000000000)),
		Shuffle:           core.Ptr(false),
		RepeatMode:        core.Ptr(core.RepeatOne),
	}
	if err := c.PublishSessionMutation(context.Background(), m); err != nil {
		t.Fatalf("PublishSessionMutation() error = %v", err)
	}

	input := reqs()[0].Variables["input"].(map[string]interface{})
	attrs := input["attributes"].(map[string]interface{})

	want := map[string]interface{}{
		"volume":            float64(55),
		"isPlaying":         true,
		"positionMs":        "1500",
		"positionUpdatedAt": "1700000000000",
		"shuffleMode":       "OFF",
		"repeatMode":        "ONE",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attributes[%s] = %#v, want %#v", k, attrs[k], v)
		}
	}
	if len(attrs) != len(want) {
		t.Errorf("attributes = %v, want exactly %d fields", attrs, len(want))
	}
}

func TestClient_PublishPrimeChange(t *testing.T) {
	server, reqs := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":{"cloudStateUpdate":true}}`
	})

	m := core.SessionMutation{PrimeDeviceID: core.Ptr("XYZ789")}
	if err := newTestClient(server.URL).PublishSessionMutation(context.Background(), m); err != nil {
		t.Fatalf("PublishSessionMutation() error = %v", err)
	}
	if len(reqs()) != 1 {
		t.Fatalf("sent %d requests, want 1", len(reqs()))
	}
	if reqs()[0].OperationName != "ChangePrimeDevice" || reqs()[0].Variables["primeDeviceId"] != "XYZ789" {
		t.Errorf("request = %+v", reqs()[0])
	}
}

func TestClient_ResolvePlayableURL(t *testing.T) {
	server, reqs := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":{"songPlay":"https://cdn.example.com/t1.mp3?sig=abc"}}`
	})

	url, err := newTestClient(server.URL).ResolvePlayableURL(context.Background(), core.PlayRequest{TrackID: "t1", ArtistID: "a1"})
	if err != nil {
		t.Fatalf("ResolvePlayableURL() error = %v", err)
	}
	if url != "https://cdn.example.com/t1.mp3?sig=abc" {
		t.Errorf("url = %q", url)
	}

	input := reqs()[0].Variables["input"].(map[string]interface{})
	if input["contextId"] != "t1" || input["contextType"] != "SONG" {
		t.Errorf("input = %v, want song context fallback", input)
	}
}

func TestClient_ResolveEmptyURL(t *testing.T) {
	server, _ := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":{"songPlay":null}}`
	})

	_, err := newTestClient(server.URL).ResolvePlayableURL(context.Background(), core.PlayRequest{TrackID: "t1", ArtistID: "a1"})
	if !errors.Is(err, tandemerrors.ErrResolveFailed) {
		t.Errorf("error = %v, want ErrResolveFailed", err)
	}
}

func TestClient_FetchTrack(t *testing.T) {
	server, _ := graphQLServer(t, func(req capturedRequest) (int, string) {
		if req.Variables["songId"] == "missing" {
			return 200, `{"data":{"song":null}}`
		}
		return 200, `{"data":{"song":{"id":"t1","title":"Song","duration":215,"imageUrl":"",
			"artist":{"id":"a1","name":"Band","imageUrl":"https://img/a1.jpg"}}}}`
	})
	c := newTestClient(server.URL)

	track, err := c.FetchTrack(context.Background(), "t1", "a1")
	if err != nil {
		t.Fatalf("FetchTrack() error = %v", err)
	}
	if track.Duration != 215*time.Second || track.ArtistName != "Band" {
		t.Errorf("track = %+v", track)
	}
	if track.ImageURL != "https://img/a1.jpg" {
		t.Errorf("ImageURL = %q, want artist image fallback", track.ImageURL)
	}

	missing, err := c.FetchTrack(context.Background(), "missing", "a1")
	if err != nil || missing != nil {
		t.Errorf("FetchTrack(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestClient_FetchAlbum(t *testing.T) {
	server, _ := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":{"album":{"id":"al1","name":"Record","artist":{"id":"a1","name":"Band"},
			"songs":{"edges":[{"node":{"id":"t1","title":"One","duration":100,"artist":{"id":"a1","name":"Band"}}},
			{"node":{"id":"t2","title":"Two","duration":"120","artist":{"id":"a1","name":"Band"}}}],
			"pageInfo":{"endCursor":"","hasNextPage":false}}}}}`
	})

	col, err := newTestClient(server.URL).FetchAlbum(context.Background(), "al1", "a1")
	if err != nil {
		t.Fatalf("FetchAlbum() error = %v", err)
	}
	if col.Context.Type != core.ContextAlbum || col.Context.Name != "Record" {
		t.Errorf("Context = %+v", col.Context)
	}
	if len(col.Tracks) != 2 || col.Tracks[1].Duration != 120*time.Second {
		t.Errorf("Tracks = %+v", col.Tracks)
	}
}

func TestClient_GraphQLErrors(t *testing.T) {
	server, _ := graphQLServer(t, func(capturedRequest) (int, string) {
		return 200, `{"data":null,"errors":[{"message":"Not Authorized to access cloudState","errorType":"Unauthorized"}]}`
	})

	_, err := newTestClient(server.URL).FetchCloudState(context.Background())
	if !IsGraphQLError(err) {
		t.Fatalf("error = %v, want *GraphQLError", err)
	}
	if !errors.Is(err, tandemerrors.ErrNotAuthenticated) {
		t.Errorf("errors.Is(ErrNotAuthenticated) = false for %v", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server, _ := graphQLServer(t, func(capturedRequest) (int, string) {
		if calls.Add(1) < 3 {
			return 503, `{"message":"try later"}`
		}
		return 200, `{"data":{"devices":[{"deviceId":"ABC123","name":"Desktop","type":"desktop"}]}}`
	})

	devices, err := newTestClient(server.URL).FetchDevices(context.Background())
	if err != nil {
		t.Fatalf("FetchDevices() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(devices) != 1 || devices[0].Class != core.DeviceDesktop {
		t.Errorf("devices = %+v", devices)
	}
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server, _ := graphQLServer(t, func(capturedRequest) (int, string) {
		calls.Add(1)
		return 500, `boom`
	})

	err := newTestClient(server.URL).PublishHeartbeat(context.Background(), core.Device{ID: "ABC123"})
	if !errors.Is(err, tandemerrors.ErrServerError) {
		t.Errorf("error = %v, want ErrServerError", err)
	}
	if calls.Load() != maxRetries+1 {
		t.Errorf("calls = %d, want %d", calls.Load(), maxRetries+1)
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server, _ := graphQLServer(t, func(capturedRequest) (int, string) {
		calls.Add(1)
		return 401, `{"errors":[{"message":"Valid authorization header not provided."}]}`
	})

	err := newTestClient(server.URL).PublishHeartbeat(context.Background(), core.Device{ID: "ABC123"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() {
		t.Fatalf("error = %v, want unauthorized *APIError", err)
	}
	if apiErr.Message != "Valid authorization header not provided." {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_NoEndpoint(t *testing.T) {
	err := New("", staticToken("x")).PublishHeartbeat(context.Background(), core.Device{})
	if !errors.Is(err, tandemerrors.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{Status: 429, Message: "slow down"}
	if got := err.Error(); got != "API error 429: slow down" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, tandemerrors.ErrRateLimited) {
		t.Error("429 does not unwrap to ErrRateLimited")
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in    string
		want  int64
		valid bool
	}{
		{`123`, 123, true},
		{`"456"`, 456, true},
		{`1.7e3`, 1700, true},
		{`null`, 0, false},
		{`""`, 0, false},
	}
	for _, tt := range tests {
		var f flexInt
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Errorf("Unmarshal(%s) error = %v", tt.in, err)
			continue
		}
		if f.Valid != tt.valid || f.Value != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %d valid=%v", tt.in, f, tt.want, tt.valid)
		}
	}

	var f flexInt
	if err := json.Unmarshal([]byte(`"soon"`), &f); err == nil {
		t.Error("Unmarshal(\"soon\") expected error")
	}
}

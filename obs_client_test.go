// obs_client_test.go: tests for the obs-websocket control channel
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData struct {
		InputName     string            `json:"inputName"`
		InputSettings map[string]string `json:"inputSettings"`
		Overlay       bool              `json:"overlay"`
	} `json:"requestData"`
}

// fakeOBS speaks enough of obs-websocket v5 to identify a client and record
// its requests.
type fakeOBS struct {
	t        *testing.T
	server   *httptest.Server
	password string
	// dropAfterIdentify closes the connection right after Identified
	dropAfterIdentify bool

	mu       sync.Mutex
	requests []recordedRequest
}

const (
	fakeSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
	fakeChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
)

func newFakeOBS(t *testing.T, password string) *fakeOBS {
	f := &fakeOBS{t: t, password: password}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOBS) address() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeOBS) handle(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	hello := map[string]interface{}{"obsWebSocketVersion": "5.0.0", "rpcVersion": 1}
	if f.password != "" {
		hello["authentication"] = map[string]string{"challenge": fakeChallenge, "salt": fakeSalt}
	}
	if err := conn.WriteJSON(map[string]interface{}{"op": 0, "d": hello}); err != nil {
		return
	}

	var identify struct {
		Op int `json:"op"`
		D  struct {
			RPCVersion     int    `json:"rpcVersion"`
			Authentication string `json:"authentication"`
		} `json:"d"`
	}
	if err := conn.ReadJSON(&identify); err != nil || identify.Op != 1 {
		return
	}
	if f.password != "" && identify.D.Authentication != expectedAuth(f.password) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4009, "Authentication failed."), time.Now().Add(time.Second))
		return
	}
	if err := conn.WriteJSON(map[string]interface{}{"op": 2, "d": map[string]int{"negotiatedRpcVersion": 1}}); err != nil {
		return
	}
	if f.dropAfterIdentify {
		return
	}

	for {
		var msg struct {
			Op int             `json:"op"`
			D  json.RawMessage `json:"d"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		var req recordedRequest
		if err := json.Unmarshal(msg.D, &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		_ = conn.WriteJSON(map[string]interface{}{"op": 7, "d": map[string]interface{}{
			"requestType":   req.RequestType,
			"requestId":     req.RequestID,
			"requestStatus": map[string]interface{}{"result": true, "code": 100},
		}})
	}
}

func (f *fakeOBS) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

// expectedAuth mirrors the obs-websocket documentation step by step.
func expectedAuth(password string) string {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write([]byte(fakeSalt))
	secret := base64.StdEncoding.EncodeToString(h.Sum(nil))

	h = sha256.New()
	h.Write([]byte(secret))
	h.Write([]byte(fakeChallenge))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func dialFake(t *testing.T, f *fakeOBS, config OBSConfig) (*OBSClient, error) {
	t.Helper()
	config.Address = f.address()
	config.DialTimeout = 2 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return DialOBS(ctx, config)
}

func TestOBSClient_SetSourceText(t *testing.T) {
	f := newFakeOBS(t, "")
	client, err := dialFake(t, f, OBSConfig{Logger: NewTestLogger()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SetSourceText(context.Background(), "Clock", "Time: 12:00"))

	require.Eventually(t, func() bool { return len(f.recorded()) == 1 }, 2*time.Second, 10*time.Millisecond)
	req := f.recorded()[0]
	assert.Equal(t, "SetInputSettings", req.RequestType)
	assert.Equal(t, "Clock", req.RequestData.InputName)
	assert.Equal(t, "Time: 12:00", req.RequestData.InputSettings["text"])
	assert.True(t, req.RequestData.Overlay)
	_, err = uuid.Parse(req.RequestID)
	assert.NoError(t, err)
}

func TestOBSClient_RequestIDsAreUnique(t *testing.T) {
	f := newFakeOBS(t, "")
	client, err := dialFake(t, f, OBSConfig{})
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, client.SetSourceText(context.Background(), "S", "x"))
	}
	require.Eventually(t, func() bool { return len(f.recorded()) == 5 }, 2*time.Second, 10*time.Millisecond)

	seen := make(map[string]bool)
	for _, req := range f.recorded() {
		assert.False(t, seen[req.RequestID])
		seen[req.RequestID] = true
	}
}

func TestOBSClient_Authentication(t *testing.T) {
	t.Run("correct password", func(t *testing.T) {
		f := newFakeOBS(t, "supersecret")
		client, err := dialFake(t, f, OBSConfig{Password: "supersecret", PasswordProtected: true})
		require.NoError(t, err)
		client.Close()
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFakeOBS(t, "supersecret")
		_, err := dialFake(t, f, OBSConfig{Password: "nope", PasswordProtected: true})
		require.Error(t, err)
		assert.Equal(t, ErrCodeControlAuth, ErrorCodeOf(err))
	})

	t.Run("password required but not configured", func(t *testing.T) {
		f := newFakeOBS(t, "supersecret")
		_, err := dialFake(t, f, OBSConfig{})
		require.Error(t, err)
		assert.Equal(t, ErrCodeControlAuth, ErrorCodeOf(err))
	})
}

func TestOBSAuthentication_MatchesReferenceComputation(t *testing.T) {
	assert.Equal(t, expectedAuth("supersecret"), obsAuthentication("supersecret", fakeSalt, fakeChallenge))
	assert.NotEqual(t, obsAuthentication("a", fakeSalt, fakeChallenge), obsAuthentication("b", fakeSalt, fakeChallenge))
}

func TestOBSClient_ConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := DialOBS(ctx, OBSConfig{Address: "127.0.0.1:1", DialTimeout: 500 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, ErrCodeControlConnect, ErrorCodeOf(err))
}

func TestOBSClient_ConnectionLost(t *testing.T) {
	f := newFakeOBS(t, "")
	f.dropAfterIdentify = true
	client, err := dialFake(t, f, OBSConfig{})
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection loss was not detected")
	}
	assert.Equal(t, ErrCodeControlLost, ErrorCodeOf(client.Err()))

	err = client.SetSourceText(context.Background(), "S", "x")
	assert.Equal(t, ErrCodeControlLost, ErrorCodeOf(err))
}

func TestOBSClient_CloseIsNotALoss(t *testing.T) {
	f := newFakeOBS(t, "")
	client, err := dialFake(t, f, OBSConfig{})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	<-client.Done()
	assert.NoError(t, client.Err())
}

func TestObsURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "ws://localhost:4455"},
		{"localhost:4444", "ws://localhost:4444"},
		{"ws://10.0.0.2:4455", "ws://10.0.0.2:4455"},
		{"wss://obs.example.com", "wss://obs.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, obsURL(tt.in), tt.in)
	}
}

func TestWriterTarget(t *testing.T) {
	var out strings.Builder
	target := NewWriterTarget(&out)

	require.NoError(t, target.SetSourceText(context.Background(), "A", "one"))
	require.NoError(t, target.SetSourceText(context.Background(), "A", "one"))
	require.NoError(t, target.SetSourceText(context.Background(), "A", "two"))

	assert.Equal(t, "A: one\nA: two\n", out.String())
	text, ok := target.Text("A")
	assert.True(t, ok)
	assert.Equal(t, "two", text)

	require.NoError(t, target.Close())
	<-target.Done()
	assert.NoError(t, target.Err())
}

// obs_client.go: obs-websocket v5 control channel
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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// obs-websocket v5 op codes
const (
	obsOpHello           = 0
	obsOpIdentify        = 1
	obsOpIdentified      = 2
	obsOpEvent           = 5
	obsOpRequest         = 6
	obsOpRequestResponse = 7

	obsRPCVersion = 1
)

// DefaultOBSAddress is the obs-websocket default listen address.
const DefaultOBSAddress = "localhost:4455"

const defaultOBSWriteTimeout = 5 * time.Second

// OBSConfig configures the OBS control channel.
type OBSConfig struct {
	// Address is host:port or a ws:// URL
	Address           string
	Password          string
	PasswordProtected bool
	DialTimeout       time.Duration
	Logger            Logger
}

// OBSClient pushes source text updates to OBS Studio over obs-websocket v5.
//
// Updates are sent as SetInputSettings requests with overlay enabled and
// are not awaited; responses are only logged. Any read failure is treated
// as loss of the control channel.
type OBSClient struct {
	conn   *websocket.Conn
	logger Logger

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
	closing   bool
}

type obsMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type obsHello struct {
	OBSWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type obsIdentify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type obsRequest struct {
	RequestType string      `json:"requestType"`
	RequestID   string      `json:"requestId"`
	RequestData interface{} `json:"requestData,omitempty"`
}

type obsRequestResponse struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
}

// DialOBS connects and identifies with OBS.
func DialOBS(ctx context.Context, config OBSConfig) (*OBSClient, error) {
	address := obsURL(config.Address)
	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := NewLogger(config.Logger)

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, NewControlConnectError(address, err)
	}

	c := &OBSClient{conn: conn, logger: logger, done: make(chan struct{})}
	if err := c.identify(config, timeout); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("Connected to OBS", "address", address)
	go c.readLoop()
	return c, nil
}

func obsURL(address string) string {
	if address == "" {
		address = DefaultOBSAddress
	}
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		return address
	}
	return "ws://" + address
}

func (c *OBSClient) identify(config OBSConfig, timeout time.Duration) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	var msg obsMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		return NewControlProtocolError("no hello received", err)
	}
	if msg.Op != obsOpHello {
		return NewControlProtocolError(fmt.Sprintf("expected hello, got op %d", msg.Op), nil)
	}
	var hello obsHello
	if err := json.Unmarshal(msg.D, &hello); err != nil {
		return NewControlProtocolError("malformed hello", err)
	}

	identify := obsIdentify{RPCVersion: obsRPCVersion}
	if hello.Authentication != nil {
		if !config.PasswordProtected || config.Password == "" {
			return NewControlAuthError("server requires a password", nil)
		}
		identify.Authentication = obsAuthentication(config.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}

	if err := c.writeJSON(obsOpIdentify, identify, timeout); err != nil {
		return NewControlConnectError("identify", err)
	}

	if err := c.conn.ReadJSON(&msg); err != nil {
		if websocket.IsCloseError(err, 4009) {
			return NewControlAuthError("authentication failed", err)
		}
		return NewControlProtocolError("identify rejected", err)
	}
	if msg.Op != obsOpIdentified {
		return NewControlProtocolError(fmt.Sprintf("expected identified, got op %d", msg.Op), nil)
	}
	return nil
}

// obsAuthentication computes the v5 authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func obsAuthentication(password, salt, challenge string) string {
	secretHash := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretHash[:])
	authHash := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(authHash[:])
}

func (c *OBSClient) writeJSON(op int, d interface{}, timeout time.Duration) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(obsMessage{Op: op, D: payload})
}

func (c *OBSClient) readLoop() {
	for {
		var msg obsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.fail(err)
			return
		}

		switch msg.Op {
		case obsOpRequestResponse:
			var resp obsRequestResponse
			if err := json.Unmarshal(msg.D, &resp); err != nil {
				c.logger.Debug("Ignoring malformed OBS response", "error", err)
				continue
			}
			c.logger.Debug("OBS request completed",
				"request_type", resp.RequestType,
				"request_id", resp.RequestID,
				"result", resp.RequestStatus.Result,
				"code", resp.RequestStatus.Code,
				"comment", resp.RequestStatus.Comment)
		case obsOpEvent:
		default:
			c.logger.Debug("Ignoring OBS message", "op", msg.Op)
		}
	}
}

func (c *OBSClient) fail(err error) {
	c.mu.Lock()
	if !c.closing && c.err == nil {
		c.err = NewControlLostError(err)
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
}

// SetSourceText sends a SetInputSettings request replacing the input's text.
func (c *OBSClient) SetSourceText(ctx context.Context, source, text string) error {
	select {
	case <-c.done:
		if err := c.Err(); err != nil {
			return err
		}
		return NewControlWriteError(source, fmt.Errorf("control channel closed"))
	default:
	}

	timeout := defaultOBSWriteTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	req := obsRequest{
		RequestType: "SetInputSettings",
		RequestID:   uuid.NewString(),
		RequestData: map[string]interface{}{
			"inputName":     source,
			"inputSettings": map[string]string{"text": text},
			"overlay":       true,
		},
	}
	if err := c.writeJSON(obsOpRequest, req, timeout); err != nil {
		return NewControlWriteError(source, err)
	}
	c.logger.Debug("Changing settings of source", "source", source, "request_id", req.RequestID)
	return nil
}

// Done is closed when the connection is gone.
func (c *OBSClient) Done() <-chan struct{} { return c.done }

// Err returns the reason the connection was lost, or nil after Close.
func (c *OBSClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the session with a normal closure.
func (c *OBSClient) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.closeOnce.Do(func() { close(c.done) })
	return err
}

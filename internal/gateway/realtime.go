package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

const (
	realtimeSubprotocol     = "graphql-ws"
	defaultHandshakeTimeout = 10 * time.Second
	defaultKeepAliveTimeout = 5 * time.Minute
	writeTimeout            = 5 * time.Second
)

const (
	onCloudStateSubscription = `subscription OnCloudState {
  onCloudState { ` + cloudStateFields + ` }
}`

	onDevicePingSubscription = `subscription OnDevicePing {
  onDevicePing { deviceId name type }
}`
)

// Realtime opens push subscriptions over the AppSync realtime websocket protocol.
type Realtime struct {
	url              string
	host             string
	tokens           TokenSource
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	logger           zerolog.Logger
}

// RealtimeOption configures a Realtime.
type RealtimeOption func(*Realtime)

// WithRealtimeLogger sets the logger.
func WithRealtimeLogger(l zerolog.Logger) RealtimeOption {
	return func(r *Realtime) { r.logger = l }
}

// WithHandshakeTimeout bounds the connection_init/connection_ack exchange.
func WithHandshakeTimeout(d time.Duration) RealtimeOption {
	return func(r *Realtime) { r.handshakeTimeout = d }
}

// NewRealtime returns a subscriber for realtimeURL. graphqlURL is the HTTP
// endpoint whose host is presented in the authorization header.
func NewRealtime(realtimeURL, graphqlURL string, tokens TokenSource, opts ...RealtimeOption) *Realtime {
	host := ""
	if u, err := url.Parse(graphqlURL); err == nil {
		host = u.Host
	}
	r := &Realtime{
		url:              realtimeURL,
		host:             host,
		tokens:           tokens,
		dialer:           &websocket.Dialer{Subprotocols: []string{realtimeSubprotocol}, HandshakeTimeout: 45 * time.Second},
		handshakeTimeout: defaultHandshakeTimeout,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "realtime").Logger()
	return r
}

type realtimeMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ackPayload struct {
	ConnectionTimeoutMs int64 `json:"connectionTimeoutMs"`
}

type dataPayload struct {
	Data   json.RawMessage    `json:"data"`
	Errors []GraphQLErrorItem `json:"errors"`
}

// Subscription is one live push subscription on its own connection.
type Subscription struct {
	id     string
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}
	done    chan struct{}
}

// Subscribe starts a subscription. onData receives the "data" object of every
// event; onError receives protocol errors and an unexpected end of the
// connection. Neither is called after Close.
func (r *Realtime) Subscribe(ctx context.Context, operation, query string, onData func(json.RawMessage), onError func(error)) (*Subscription, error) {
	if r.url == "" {
		return nil, fmt.Errorf("%w: no realtime endpoint configured", tandemerrors.ErrInvalidConfig)
	}

	token, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	auth := map[string]string{"host": r.host, "Authorization": token}
	authJSON, err := json.Marshal(auth)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(r.url)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("header", base64.StdEncoding.EncodeToString(authJSON))
	q.Set("payload", base64.StdEncoding.EncodeToString([]byte("{}")))
	u.RawQuery = q.Encode()

	conn, _, err := r.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: realtime dial failed: %v", tandemerrors.ErrNetworkError, err)
	}

	keepAlive, err := r.handshake(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	sub := &Subscription{
		id:     uuid.NewString(),
		conn:   conn,
		logger: r.logger.With().Str("operation", operation).Logger(),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	request, err := json.Marshal(graphQLRequest{Query: query, Variables: map[string]interface{}{}, OperationName: operation})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	start := map[string]interface{}{
		"id":   sub.id,
		"type": "start",
		"payload": map[string]interface{}{
			"data":       string(request),
			"extensions": map[string]interface{}{"authorization": auth},
		},
	}
	if err := sub.write(start); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to start subscription: %w", err)
	}

	go sub.readLoop(keepAlive, onData, onError)
	return sub, nil
}

// handshake performs connection_init and returns the keep-alive timeout
// announced by the server.
func (r *Realtime) handshake(conn *websocket.Conn) (time.Duration, error) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(realtimeMessage{Type: "connection_init"}); err != nil {
		return 0, fmt.Errorf("connection_init failed: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(r.handshakeTimeout))
	for {
		var msg realtimeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return 0, fmt.Errorf("waiting for connection_ack: %w", err)
		}
		switch msg.Type {
		case "connection_ack":
			var ack ackPayload
			_ = json.Unmarshal(msg.Payload, &ack)
			if ack.ConnectionTimeoutMs > 0 {
				return time.Duration(ack.ConnectionTimeoutMs) * time.Millisecond, nil
			}
			return defaultKeepAliveTimeout, nil
		case "ka":
			continue
		case "connection_error":
			return 0, fmt.Errorf("%w: %s", tandemerrors.ErrNotAuthenticated, payloadErrors(msg.Payload))
		default:
			return 0, fmt.Errorf("unexpected %q before connection_ack", msg.Type)
		}
	}
}

func (s *Subscription) readLoop(keepAlive time.Duration, onData func(json.RawMessage), onError func(error)) {
	defer close(s.done)

	report := func(err error) {
		select {
		case <-s.closed:
		default:
			if onError != nil {
				onError(err)
			}
		}
	}

	for {
		// The server sends "ka" within keepAlive; silence means the connection is dead.
		_ = s.conn.SetReadDeadline(time.Now().Add(keepAlive))

		var msg realtimeMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			report(fmt.Errorf("%w: %v", tandemerrors.ErrSubscriptionClosed, err))
			return
		}

		switch msg.Type {
		case "ka":
		case "start_ack":
			s.logger.Debug().Msg("subscription started")
		case "data":
			if msg.ID != s.id {
				continue
			}
			var p dataPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				report(fmt.Errorf("malformed subscription data: %w", err))
				continue
			}
			if len(p.Errors) > 0 {
				report(&GraphQLError{Operation: "subscription", Errors: p.Errors})
				continue
			}
			if onData != nil && len(p.Data) > 0 {
				onData(p.Data)
			}
		case "error", "connection_error":
			report(fmt.Errorf("subscription error: %s", payloadErrors(msg.Payload)))
		case "complete":
			report(tandemerrors.ErrSubscriptionClosed)
			return
		default:
			s.logger.Debug().Str("type", msg.Type).Msg("ignoring realtime message")
		}
	}
}

func (s *Subscription) write(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// Close stops the subscription and tears down the connection immediately.
// It waits for the read loop, so it must not be called from onData or onError.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.closed)
		_ = s.write(realtimeMessage{ID: s.id, Type: "stop"})
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
		s.writeMu.Unlock()
		_ = s.conn.Close()
		<-s.done
	})
}

// Done is closed when the read loop exits.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func payloadErrors(raw json.RawMessage) string {
	var p dataPayload
	if err := json.Unmarshal(raw, &p); err == nil && len(p.Errors) > 0 {
		return (&GraphQLError{Operation: "realtime", Errors: p.Errors}).Error()
	}
	if len(raw) == 0 {
		return "unknown error"
	}
	return string(raw)
}

// SubscribeSessionEvents delivers every cloud-state push to onEvent.
// The returned function unsubscribes.
func (r *Realtime) SubscribeSessionEvents(ctx context.Context, onEvent func(core.CloudState), onError func(error)) (func(), error) {
	sub, err := r.Subscribe(ctx, "OnCloudState", onCloudStateSubscription, func(data json.RawMessage) {
		var env struct {
			OnCloudState *cloudStateWire `json:"onCloudState"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			r.logger.Warn().Err(err).Msg("malformed cloud state event")
			return
		}
		if env.OnCloudState != nil {
			onEvent(env.OnCloudState.toCore())
		}
	}, onError)
	if err != nil {
		return nil, err
	}
	return sub.Close, nil
}

// SubscribeDevicePings delivers every device ping to onEvent.
// The returned function unsubscribes.
func (r *Realtime) SubscribeDevicePings(ctx context.Context, onEvent func(core.Device), onError func(error)) (func(), error) {
	sub, err := r.Subscribe(ctx, "OnDevicePing", onDevicePingSubscription, func(data json.RawMessage) {
		var env struct {
			OnDevicePing *deviceWire `json:"onDevicePing"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			r.logger.Warn().Err(err).Msg("malformed device ping event")
			return
		}
		if env.OnDevicePing != nil && env.OnDevicePing.DeviceID != "" {
			onEvent(env.OnDevicePing.toCore())
		}
	}, onError)
	if err != nil {
		return nil, err
	}
	return sub.Close, nil
}

// IsClosed reports whether err marks the end of a subscription.
func IsClosed(err error) bool {
	return errors.Is(err, tandemerrors.ErrSubscriptionClosed)
}

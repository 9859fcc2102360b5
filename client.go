package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
	"github.com/rhayalcantara/proyectos-sub001/pkg/log"
)

// ErrNotConnected is returned by Send and the typed wrappers when there
// is no live connection. Invocations are fire-and-forget: nothing is
// queued for later delivery.
var ErrNotConnected = errors.New("realtime: not connected")

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultStreamBuffer     = 64
)

// TokenProvider returns a fresh bearer token for a connection attempt.
// It is called once per attempt, never cached, so a rotated token is
// picked up by the next reconnect.
type TokenProvider func(ctx context.Context) (string, error)

// Options configures a Client.
type Options struct {
	// URL is the full websocket endpoint, e.g. wss://host/hubs/chat.
	URL string

	// Token supplies the bearer credential per connection attempt.
	Token TokenProvider

	// UserID and UserName identify the local user. They are stamped on
	// outgoing typing notifications; the server derives everything else
	// from the token.
	UserID   string
	UserName string

	// HandshakeTimeout bounds the websocket dial. Defaults to 10s.
	HandshakeTimeout time.Duration

	// StreamBuffer is the per-subscriber event buffer size. Defaults to 64.
	StreamBuffer int

	Logger *zerolog.Logger
}

// Client supervises a single websocket connection to the chat gateway:
// it owns the connection lifecycle, multiplexes invocations out and
// fans incoming events into bounded subscriber streams.
//
// Connect and Disconnect are idempotent. The Client never retries on
// its own; pair it with a Reconnector for automatic reconnection.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	logger zerolog.Logger

	events *eventBus
	states *stateBus

	mu      sync.Mutex
	conn    *websocket.Conn
	state   ConnectionState
	writeMu sync.Mutex
}

// NewClient creates a Client. It does not connect.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("realtime: URL is required")
	}
	if opts.Token == nil {
		return nil, errors.New("realtime: TokenProvider is required")
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = defaultStreamBuffer
	}
	logger := log.L()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: logger.With().Str("component", "realtime-client").Logger(),
		events: newEventBus(),
		states: newStateBus(),
		state:  StateDisconnected,
	}, nil
}

// Connect establishes the websocket connection. It is a no-op when a
// connection attempt is already in flight or a connection is live. The
// transport is fixed; there is no negotiation fallback. On failure the
// client returns to disconnected and the error is reported once; Connect
// never retries.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	token, err := c.opts.Token(ctx)
	if err != nil {
		c.failConnect()
		return fmt.Errorf("fetch token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		c.failConnect()
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	go c.readPump(conn)

	c.logger.Info().Str("url", c.opts.URL).Msg("connected")
	return nil
}

func (c *Client) failConnect() {
	c.mu.Lock()
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

// Disconnect closes the connection and clears the handle. Idempotent.
// Callers that do not want the Reconnector to chase this disconnect
// must call Reconnector.MarkIntentionalDisconnect first.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.state != StateDisconnected {
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
		c.logger.Info().Msg("disconnected")
	}
}

// IsConnected reports whether a live connection exists right now. It
// inspects the connection handle rather than trusting the cached state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.state == StateConnected
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// States returns a bounded stream of state transitions plus an
// unsubscribe function. Multiple subscribers each get their own stream.
func (c *Client) States() (<-chan ConnectionState, func()) {
	stamped, unsub := c.states.subscribe(c.opts.StreamBuffer)
	out := make(chan ConnectionState, c.opts.StreamBuffer)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sc := <-stamped:
				select {
				case out <- sc.state:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			unsub()
			close(done)
		})
	}
}

// Events returns a bounded stream of raw server events for the given
// event name ("" subscribes to every event), plus an unsubscribe
// function. When the subscriber falls behind, new events are dropped.
func (c *Client) Events(name string) (<-chan RawEvent, func()) {
	return c.events.subscribe(name, c.opts.StreamBuffer)
}

// setStateLocked transitions to the new state and publishes it. The
// caller holds c.mu.
func (c *Client) setStateLocked(to ConnectionState) {
	if c.state == to {
		return
	}
	if !transitionAllowed(c.state, to) {
		c.logger.Warn().
			Str("from", c.state.String()).
			Str("to", to.String()).
			Msg("illegal state transition suppressed")
		return
	}
	c.state = to
	c.states.publish(to)
}

// readPump reads frames until the connection dies, publishing each
// event on the bus. Whatever the cause, the end of the read loop is
// the single place a live session transitions to disconnected.
func (c *Client) readPump(conn *websocket.Conn) {
	defer c.connClosed(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("connection closed unexpectedly")
			}
			return
		}

		var frame domain.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn().Err(err).Msg("malformed frame dropped")
			continue
		}
		c.events.publish(RawEvent{Name: frame.Type, Data: frame.Data})
	}
}

// connClosed clears the handle and reports disconnection exactly once
// for this connection. If the handle already points elsewhere the
// session was replaced or closed deliberately and there is nothing to
// report.
func (c *Client) connClosed(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	c.setStateLocked(StateDisconnected)
}

// Send invokes a server method with the given payload. Fire-and-forget:
// when there is no live connection the invocation is dropped with a
// warning and ErrNotConnected; nothing is queued or retried.
func (c *Client) Send(method string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if conn == nil || !connected {
		c.logger.Warn().Str(log.FieldMethod, method).Msg("invocation dropped, not connected")
		return ErrNotConnected
	}

	frame, err := domain.NewFrame(method, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	data, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

// JoinChat subscribes this connection to a chat group.
func (c *Client) JoinChat(chatID string) error {
	return c.Send(domain.InvJoinChat, domain.ChatRef{ChatID: chatID})
}

// LeaveChat unsubscribes this connection from a chat group.
func (c *Client) LeaveChat(chatID string) error {
	return c.Send(domain.InvLeaveChat, domain.ChatRef{ChatID: chatID})
}

// SendMessage relays a message to everyone in its chat. Delivery and
// persistence happen elsewhere; this is notification only.
func (c *Client) SendMessage(msg Message) error {
	return c.Send(domain.InvSendMessage, domain.MensajeEnviado{
		MensajeID: msg.ID,
		ChatID:    msg.ChatID,
		Mensaje:   msg.toWire(),
	})
}

// SendTyping notifies the other chat members that the local user
// started or stopped typing.
func (c *Client) SendTyping(chatID string, isTyping bool) error {
	return c.Send(domain.InvSendTyping, domain.Typing{
		ChatID:          chatID,
		UsuarioID:       c.opts.UserID,
		NombreUsuario:   c.opts.UserName,
		EstaEscribiendo: isTyping,
	})
}

// MessageDelivered reports a message as delivered to this device.
func (c *Client) MessageDelivered(messageID, chatID string) error {
	return c.Send(domain.InvMessageDelivered, domain.MessageRef{MessageID: messageID, ChatID: chatID})
}

// MessageRead reports a message as read by the local user.
func (c *Client) MessageRead(messageID, chatID string) error {
	return c.Send(domain.InvMessageRead, domain.MessageRef{MessageID: messageID, ChatID: chatID})
}

// NotifyGroupUpdated announces changed group metadata to the group.
func (c *Client) NotifyGroupUpdated(chatID, name, description, image string) error {
	return c.Send(domain.InvNotifyGroupUpdated, domain.GroupUpdated{
		ChatID:      chatID,
		Nombre:      name,
		Descripcion: description,
		Imagen:      image,
	})
}

// NotifyParticipantAdded announces a new group participant.
func (c *Client) NotifyParticipantAdded(chatID, userID, name string) error {
	return c.Send(domain.InvNotifyParticipantAdded, domain.Participant{ChatID: chatID, UsuarioID: userID, Nombre: name})
}

// NotifyParticipantRemoved announces a removed group participant.
func (c *Client) NotifyParticipantRemoved(chatID, userID, name string) error {
	return c.Send(domain.InvNotifyParticipantRemoved, domain.Participant{ChatID: chatID, UsuarioID: userID, Nombre: name})
}

// NotifyParticipantLeft announces that a participant left on their own.
func (c *Client) NotifyParticipantLeft(chatID, userID, name string) error {
	return c.Send(domain.InvNotifyParticipantLeft, domain.Participant{ChatID: chatID, UsuarioID: userID, Nombre: name})
}

// NotifyRoleChanged announces a participant's new role.
func (c *Client) NotifyRoleChanged(chatID, userID, newRole string) error {
	return c.Send(domain.InvNotifyRoleChanged, domain.RoleChanged{ChatID: chatID, UsuarioID: userID, NuevoRol: newRole})
}

// CallUser sends a call offer to another user.
func (c *Client) CallUser(targetUserID, callType, sdpOffer string) error {
	return c.Send(domain.InvCallUser, domain.CallRequest{
		TargetUserID: targetUserID,
		CallType:     callType,
		SdpOffer:     sdpOffer,
	})
}

// AnswerCall accepts an incoming call with the local SDP answer.
func (c *Client) AnswerCall(callerID, sdpAnswer string) error {
	return c.Send(domain.InvAnswerCall, domain.AnswerRequest{CallerID: callerID, SdpAnswer: sdpAnswer})
}

// RejectCall declines an incoming call. An empty reason becomes the
// server default.
func (c *Client) RejectCall(callerID, reason string) error {
	return c.Send(domain.InvRejectCall, domain.RejectRequest{CallerID: callerID, Reason: reason})
}

// EndCall hangs up an established call with the other party.
func (c *Client) EndCall(otherUserID string) error {
	return c.Send(domain.InvEndCall, domain.EndRequest{OtherUserID: otherUserID})
}

// SendICECandidate forwards an ICE candidate to the call peer. The
// candidate string is relayed opaquely.
func (c *Client) SendICECandidate(targetUserID, candidate string) error {
	return c.Send(domain.InvSendICECandidate, domain.CandidateRequest{TargetUserID: targetUserID, Candidate: candidate})
}

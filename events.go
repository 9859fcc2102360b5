package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
)

// Message delivery states as they appear on the wire.
const (
	StatusSent      = "Enviado"
	StatusDelivered = "Entregado"
	StatusRead      = "Leido"
)

// Call types accepted by CallUser.
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// CallFailed reasons.
const (
	CallFailedBlocked     = "Blocked"
	CallFailedUserOffline = "UserOffline"
)

// Event is a typed domain event produced by the Mapper. Kind names the
// event category and is stable across releases.
type Event interface {
	Kind() string
}

// Message is a chat message, both the payload of SendMessage and the
// typed event for an incoming ReceiveMessage.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Content    string
	Type       string
	Status     string
	FileURL    string
	SentAt     time.Time
}

// Kind implements Event.
func (Message) Kind() string { return "message" }

func (m Message) toWire() domain.Mensaje {
	sentAt := m.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	status := m.Status
	if status == "" {
		status = StatusSent
	}
	return domain.Mensaje{
		ID:              m.ID,
		ChatID:          m.ChatID,
		RemitenteID:     m.SenderID,
		RemitenteNombre: m.SenderName,
		Contenido:       m.Content,
		Tipo:            m.Type,
		Estado:          status,
		URLArchivo:      m.FileURL,
		FechaEnvio:      formatWireTime(sentAt),
	}
}

func messageFromWire(w domain.Mensaje) Message {
	return Message{
		ID:         w.ID,
		ChatID:     w.ChatID,
		SenderID:   w.RemitenteID,
		SenderName: w.RemitenteNombre,
		Content:    w.Contenido,
		Type:       w.Tipo,
		Status:     w.Estado,
		FileURL:    w.URLArchivo,
		SentAt:     parseSendTime(w.FechaEnvio),
	}
}

// Typing reports a user starting or stopping typing in a chat.
type Typing struct {
	ChatID   string
	UserID   string
	UserName string
	IsTyping bool
}

func (Typing) Kind() string { return "typing" }

// StatusUpdate reports a message moving to delivered or read.
type StatusUpdate struct {
	MessageID string
	Status    string
}

func (StatusUpdate) Kind() string { return "message_status" }

// Presence reports a user going online or offline. LastSeen is zero
// when the server sent no usable timestamp.
type Presence struct {
	UserID   string
	Online   bool
	LastSeen time.Time
}

func (Presence) Kind() string { return "presence" }

// GroupUpdate reports changed group metadata.
type GroupUpdate struct {
	ChatID      string
	Name        string
	Description string
	Image       string
}

func (GroupUpdate) Kind() string { return "group_update" }

// ParticipantChange distinguishes the three membership events.
type ParticipantChange string

const (
	ParticipantAdded   ParticipantChange = "added"
	ParticipantRemoved ParticipantChange = "removed"
	ParticipantLeft    ParticipantChange = "left"
)

// ParticipantUpdate reports a group membership change.
type ParticipantUpdate struct {
	Change ParticipantChange
	ChatID string
	UserID string
	Name   string
}

func (ParticipantUpdate) Kind() string { return "participant" }

// RoleUpdate reports a participant's role change.
type RoleUpdate struct {
	ChatID  string
	UserID  string
	NewRole string
}

func (RoleUpdate) Kind() string { return "role_change" }

// CallOffer is an incoming call invitation.
type CallOffer struct {
	CallerID    string
	CallerName  string
	CallerPhoto string
	CallType    string
	SDPOffer    string
}

func (CallOffer) Kind() string { return "call_offer" }

// CallAnswer is the callee's SDP answer to an outgoing call.
type CallAnswer struct {
	SDPAnswer string
}

func (CallAnswer) Kind() string { return "call_answer" }

// CallRejected reports that the callee declined the call.
type CallRejected struct {
	UserID string
	Reason string
}

func (CallRejected) Kind() string { return "call_rejected" }

// CallEnded reports that the other party hung up.
type CallEnded struct {
	EndedBy string
}

func (CallEnded) Kind() string { return "call_ended" }

// ICECandidate is a relayed ICE candidate from the call peer.
type ICECandidate struct {
	Candidate string
}

func (ICECandidate) Kind() string { return "ice_candidate" }

// CallFailure reports that an outgoing call could not be placed.
type CallFailure struct {
	Reason  string
	Message string
}

func (CallFailure) Kind() string { return "call_failed" }

// Mapper turns the raw event stream into typed domain events. It is a
// pure transform: no state, no side effects beyond logging dropped
// payloads.
type Mapper struct {
	client *Client
	logger zerolog.Logger
}

// NewMapper creates a Mapper over the client's event stream.
func NewMapper(c *Client) *Mapper {
	return &Mapper{
		client: c,
		logger: c.logger.With().Str("component", "event-mapper").Logger(),
	}
}

// Events returns a bounded stream of typed events plus an unsubscribe
// function. Unsubscribing stops the mapping goroutine and closes the
// stream.
func (m *Mapper) Events() (<-chan Event, func()) {
	raw, unsubRaw := m.client.Events("")
	out := make(chan Event, m.client.opts.StreamBuffer)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case evt, ok := <-raw:
				if !ok {
					return
				}
				mapped := m.mapEvent(evt)
				if mapped == nil {
					continue
				}
				select {
				case out <- mapped:
				default:
					// Consumer behind, drop.
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			unsubRaw()
			close(done)
		})
	}
}

// mapEvent decodes one raw event into its typed form. Unknown names and
// undecodable payloads map to nil and are dropped with a debug log.
func (m *Mapper) mapEvent(evt RawEvent) Event {
	switch evt.Name {
	case domain.EventReceiveMessage:
		var p domain.MensajeEnviado
		if !m.decode(evt, &p) {
			return nil
		}
		msg := messageFromWire(p.Mensaje)
		if msg.ID == "" {
			msg.ID = p.MensajeID
		}
		if msg.ChatID == "" {
			msg.ChatID = p.ChatID
		}
		return msg

	case domain.EventUserTyping:
		var p domain.Typing
		if !m.decode(evt, &p) {
			return nil
		}
		return Typing{ChatID: p.ChatID, UserID: p.UsuarioID, UserName: p.NombreUsuario, IsTyping: p.EstaEscribiendo}

	case domain.EventMessageStatusUpdated:
		var p domain.MessageStatus
		if !m.decode(evt, &p) {
			return nil
		}
		return StatusUpdate{MessageID: p.MessageID, Status: p.Status}

	case domain.EventUserStatusChanged:
		var p domain.UserStatus
		if !m.decode(evt, &p) {
			return nil
		}
		return Presence{UserID: p.UserID, Online: p.IsOnline, LastSeen: parseDisplayTime(p.LastSeen)}

	case domain.EventGroupUpdated:
		var p domain.GroupUpdated
		if !m.decode(evt, &p) {
			return nil
		}
		return GroupUpdate{ChatID: p.ChatID, Name: p.Nombre, Description: p.Descripcion, Image: p.Imagen}

	case domain.EventParticipantAdded, domain.EventParticipantRemoved, domain.EventParticipantLeft:
		var p domain.Participant
		if !m.decode(evt, &p) {
			return nil
		}
		change := ParticipantAdded
		switch evt.Name {
		case domain.EventParticipantRemoved:
			change = ParticipantRemoved
		case domain.EventParticipantLeft:
			change = ParticipantLeft
		}
		return ParticipantUpdate{Change: change, ChatID: p.ChatID, UserID: p.UsuarioID, Name: p.Nombre}

	case domain.EventParticipantRoleChanged:
		var p domain.RoleChanged
		if !m.decode(evt, &p) {
			return nil
		}
		return RoleUpdate{ChatID: p.ChatID, UserID: p.UsuarioID, NewRole: p.NuevoRol}

	case domain.EventReceiveCallOffer:
		var p domain.CallOffer
		if !m.decode(evt, &p) {
			return nil
		}
		return CallOffer{CallerID: p.CallerID, CallerName: p.CallerName, CallerPhoto: p.CallerPhoto, CallType: p.CallType, SDPOffer: p.SdpOffer}

	case domain.EventReceiveCallAnswer:
		var p domain.CallAnswer
		if !m.decode(evt, &p) {
			return nil
		}
		return CallAnswer{SDPAnswer: p.SdpAnswer}

	case domain.EventCallRejected:
		var p domain.CallRejected
		if !m.decode(evt, &p) {
			return nil
		}
		return CallRejected{UserID: p.UserID, Reason: p.Reason}

	case domain.EventCallEnded:
		var p domain.CallEnded
		if !m.decode(evt, &p) {
			return nil
		}
		return CallEnded{EndedBy: p.EndedBy}

	case domain.EventReceiveICECandidate:
		var p domain.ICECandidate
		if !m.decode(evt, &p) {
			return nil
		}
		return ICECandidate{Candidate: p.Candidate}

	case domain.EventCallFailed:
		var p domain.CallFailed
		if !m.decode(evt, &p) {
			return nil
		}
		return CallFailure{Reason: p.Reason, Message: p.Message}

	default:
		m.logger.Debug().Str("event", evt.Name).Msg("unknown event dropped")
		return nil
	}
}

func (m *Mapper) decode(evt RawEvent, v interface{}) bool {
	frame := domain.Frame{Type: evt.Name, Data: evt.Data}
	if err := frame.DecodeData(v); err != nil {
		m.logger.Warn().Err(err).Str("event", evt.Name).Msg("undecodable payload dropped")
		return false
	}
	return true
}

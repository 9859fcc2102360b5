package domain

// Server -> client event names. Every client listens on these; they are
// multiplexed over the single websocket connection as the envelope
// "type" field.
const (
	EventReceiveMessage         = "ReceiveMessage"
	EventUserTyping             = "UserTyping"
	EventMessageStatusUpdated   = "MessageStatusUpdated"
	EventUserStatusChanged      = "UserStatusChanged"
	EventGroupUpdated           = "GroupUpdated"
	EventParticipantAdded       = "ParticipantAdded"
	EventParticipantRemoved     = "ParticipantRemoved"
	EventParticipantLeft        = "ParticipantLeft"
	EventParticipantRoleChanged = "ParticipantRoleChanged"
	EventReceiveCallOffer       = "ReceiveCallOffer"
	EventReceiveCallAnswer      = "ReceiveCallAnswer"
	EventCallRejected           = "CallRejected"
	EventCallEnded              = "CallEnded"
	EventReceiveICECandidate    = "ReceiveICECandidate"
	EventCallFailed             = "CallFailed"
)

// Message delivery states as they travel on the wire.
const (
	EstadoEnviado   = "Enviado"
	EstadoEntregado = "Entregado"
	EstadoLeido     = "Leido"
)

// Mensaje is the message body relayed inside a MensajeEnviado payload.
// Field names match the backend wire contract.
type Mensaje struct {
	ID              string `json:"id"`
	ChatID          string `json:"chatId"`
	RemitenteID     string `json:"remitenteId"`
	RemitenteNombre string `json:"remitenteNombre,omitempty"`
	Contenido       string `json:"contenido,omitempty"`
	Tipo            string `json:"tipo"`
	Estado          string `json:"estado"`
	URLArchivo      string `json:"urlArchivo,omitempty"`
	FechaEnvio      string `json:"fechaEnvio"`
}

// MensajeEnviado is the ReceiveMessage payload.
type MensajeEnviado struct {
	MensajeID string  `json:"mensajeId"`
	ChatID    string  `json:"chatId"`
	Mensaje   Mensaje `json:"mensaje"`
}

// Typing is the UserTyping payload.
type Typing struct {
	ChatID          string `json:"chatId"`
	UsuarioID       string `json:"usuarioId"`
	NombreUsuario   string `json:"nombreUsuario"`
	EstaEscribiendo bool   `json:"estaEscribiendo"`
}

// MessageStatus is the MessageStatusUpdated payload.
type MessageStatus struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// UserStatus is the UserStatusChanged payload. LastSeen is an ISO-8601
// string; parsing on the receiving side is tolerant of format drift.
type UserStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	LastSeen string `json:"lastSeen,omitempty"`
}

// GroupUpdated is the GroupUpdated payload.
type GroupUpdated struct {
	ChatID      string `json:"chatId"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion,omitempty"`
	Imagen      string `json:"imagen,omitempty"`
}

// Participant is the payload shared by ParticipantAdded,
// ParticipantRemoved and ParticipantLeft.
type Participant struct {
	ChatID    string `json:"chatId"`
	UsuarioID string `json:"usuarioId"`
	Nombre    string `json:"nombre"`
}

// RoleChanged is the ParticipantRoleChanged payload.
type RoleChanged struct {
	ChatID    string `json:"chatId"`
	UsuarioID string `json:"usuarioId"`
	NuevoRol  string `json:"nuevoRol"`
}

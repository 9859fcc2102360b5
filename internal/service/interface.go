package service

import (
	"context"

	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
	"github.com/rhayalcantara/proyectos-sub001/internal/hub"
)

// GatewayService relays chat events between connected clients and keeps
// the live broadcast groups in sync with persisted membership.
type GatewayService interface {
	HandleConnect(ctx context.Context, c *hub.Client) error
	HandleDisconnect(ctx context.Context, c *hub.Client) error

	HandleJoinChat(ctx context.Context, c *hub.Client, chatID string) error
	HandleLeaveChat(ctx context.Context, c *hub.Client, chatID string) error

	HandleSendMessage(ctx context.Context, c *hub.Client, msg domain.MensajeEnviado) error
	HandleTyping(ctx context.Context, c *hub.Client, typing domain.Typing) error
	HandleMessageDelivered(ctx context.Context, c *hub.Client, ref domain.MessageRef) error
	HandleMessageRead(ctx context.Context, c *hub.Client, ref domain.MessageRef) error

	HandleGroupUpdated(ctx context.Context, c *hub.Client, group domain.GroupUpdated) error
	HandleParticipantAdded(ctx context.Context, c *hub.Client, p domain.Participant) error
	HandleParticipantRemoved(ctx context.Context, c *hub.Client, p domain.Participant) error
	HandleParticipantLeft(ctx context.Context, c *hub.Client, p domain.Participant) error
	HandleRoleChanged(ctx context.Context, c *hub.Client, rc domain.RoleChanged) error
}

// CallService relays WebRTC call signaling. It holds no call state: every
// event is routed independently using the current connection map.
type CallService interface {
	HandleCallUser(ctx context.Context, c *hub.Client, req domain.CallRequest) error
	HandleAnswerCall(ctx context.Context, c *hub.Client, req domain.AnswerRequest) error
	HandleRejectCall(ctx context.Context, c *hub.Client, req domain.RejectRequest) error
	HandleEndCall(ctx context.Context, c *hub.Client, req domain.EndRequest) error
	HandleICECandidate(ctx context.Context, c *hub.Client, req domain.CandidateRequest) error
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
	"github.com/rhayalcantara/proyectos-sub001/internal/hub"
	"github.com/rhayalcantara/proyectos-sub001/internal/presence"
	"github.com/rhayalcantara/proyectos-sub001/internal/repository"
	"github.com/rhayalcantara/proyectos-sub001/pkg/log"
)

// ErrUnauthenticated aborts an operation arriving on a connection with no
// resolved identity. Nothing is relayed for such operations.
var ErrUnauthenticated = errors.New("no authenticated user on connection")

type gatewayService struct {
	hub      *hub.Hub
	store    repository.ChatStore
	presence presence.Store
}

// NewGatewayService creates the gateway relay service.
func NewGatewayService(h *hub.Hub, store repository.ChatStore, pres presence.Store) GatewayService {
	return &gatewayService{
		hub:      h,
		store:    store,
		presence: pres,
	}
}

// HandleConnect restores the user's persisted chat subscriptions, marks
// the user present and announces the change to every chat they belong to.
// The connection slot itself is already bound by the hub at this point.
func (s *gatewayService) HandleConnect(ctx context.Context, c *hub.Client) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}

	chatIDs, err := s.store.ChatIDsForUser(ctx, c.UserID)
	if err != nil {
		return err
	}

	for _, chatID := range chatIDs {
		s.hub.JoinChat(c, chatID)
	}

	now := time.Now().UTC()
	s.markPresence(ctx, c.UserID, true, now)
	s.notifyStatusChanged(c.UserID, chatIDs, true, now)

	l := log.L()
	l.Info().Str(log.FieldUserID, c.UserID).Int("chats", len(chatIDs)).Msg("user connected")
	return nil
}

// HandleDisconnect marks the user absent with a last-seen timestamp and
// announces it. The hub has already released the connection slot.
func (s *gatewayService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}

	chatIDs, err := s.store.ChatIDsForUser(ctx, c.UserID)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldUserID, c.UserID).Msg("failed to load chats on disconnect")
		chatIDs = nil
	}

	now := time.Now().UTC()
	s.markPresence(ctx, c.UserID, false, now)
	s.notifyStatusChanged(c.UserID, chatIDs, false, now)

	l := log.L()
	l.Info().Str(log.FieldUserID, c.UserID).Msg("user disconnected")
	return nil
}

// HandleJoinChat subscribes the connection to a chat group ad hoc,
// independent of persisted membership.
func (s *gatewayService) HandleJoinChat(ctx context.Context, c *hub.Client, chatID string) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	s.hub.JoinChat(c, chatID)
	return nil
}

func (s *gatewayService) HandleLeaveChat(ctx context.Context, c *hub.Client, chatID string) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	s.hub.LeaveChat(c, chatID)
	return nil
}

// HandleSendMessage relays the message notification to every current
// subscriber of the chat, sender included. Content durability belongs to
// the HTTP persistence path; this is notify-only.
func (s *gatewayService) HandleSendMessage(ctx context.Context, c *hub.Client, msg domain.MensajeEnviado) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(domain.EventReceiveMessage, &msg)
	if err != nil {
		return err
	}
	return s.hub.BroadcastToChat(msg.ChatID, frame, "")
}

// HandleTyping relays to everyone in the chat except the sender.
func (s *gatewayService) HandleTyping(ctx context.Context, c *hub.Client, typing domain.Typing) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(domain.EventUserTyping, &typing)
	if err != nil {
		return err
	}
	return s.hub.BroadcastToChat(typing.ChatID, frame, c.UserID)
}

func (s *gatewayService) HandleMessageDelivered(ctx context.Context, c *hub.Client, ref domain.MessageRef) error {
	return s.relayStatus(c, ref, domain.EstadoEntregado)
}

func (s *gatewayService) HandleMessageRead(ctx context.Context, c *hub.Client, ref domain.MessageRef) error {
	return s.relayStatus(c, ref, domain.EstadoLeido)
}

// relayStatus fans a delivery-status update out to every subscriber,
// sender included. The relay does not enforce the Enviado -> Entregado ->
// Leido progression; ordering is owned by the persistence path.
func (s *gatewayService) relayStatus(c *hub.Client, ref domain.MessageRef, status string) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(domain.EventMessageStatusUpdated, &domain.MessageStatus{
		MessageID: ref.MessageID,
		Status:    status,
	})
	if err != nil {
		return err
	}
	return s.hub.BroadcastToChat(ref.ChatID, frame, "")
}

func (s *gatewayService) HandleGroupUpdated(ctx context.Context, c *hub.Client, group domain.GroupUpdated) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(domain.EventGroupUpdated, &group)
	if err != nil {
		return err
	}
	return s.hub.BroadcastToChat(group.ChatID, frame, "")
}

// HandleParticipantAdded joins the affected participant's live connection
// (if any) to the broadcast group so their real-time feed matches the new
// persisted membership without a reconnect, then announces the change.
func (s *gatewayService) HandleParticipantAdded(ctx context.Context, c *hub.Client, p domain.Participant) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	if member, ok := s.hub.Connection(p.UsuarioID); ok {
		s.hub.JoinChat(member, p.ChatID)
	}
	frame, err := domain.NewFrame(domain.EventParticipantAdded, &p)
	if err != nil {
		return err
	}
	return s.hub.BroadcastToChat(p.ChatID, frame, "")
}

func (s *gatewayService) HandleParticipantRemoved(ctx context.Context, c *hub.Client, p domain.Participant) error {
	return s.removeParticipant(c, p, domain.EventParticipantRemoved)
}

func (s *gatewayService) HandleParticipantLeft(ctx context.Context, c *hub.Client, p domain.Participant) error {
	return s.removeParticipant(c, p, domain.EventParticipantLeft)
}

func (s *gatewayService) removeParticipant(c *hub.Client, p domain.Participant, event string) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(event, &p)
	if err != nil {
		return err
	}
	// The group broadcast races with the leave, so the affected
	// participant gets the event on their connection directly before
	// their subscription is dropped. The broadcast then excludes them.
	if member, ok := s.hub.Connection(p.UsuarioID); ok {
		if err := member.SendFrame(frame); err != nil {
			return err
		}
		s.hub.LeaveChat(member, p.ChatID)
	}
	return s.hub.BroadcastToChat(p.ChatID, frame, p.UsuarioID)
}

func (s *gatewayService) HandleRoleChanged(ctx context.Context, c *hub.Client, rc domain.RoleChanged) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(domain.EventParticipantRoleChanged, &rc)
	if err != nil {
		return err
	}
	return s.hub.BroadcastToChat(rc.ChatID, frame, "")
}

// markPresence persists the presence change and refreshes the cache.
// Presence bookkeeping is best-effort: failures are logged, never
// surfaced to the connection lifecycle.
func (s *gatewayService) markPresence(ctx context.Context, userID string, online bool, at time.Time) {
	if err := s.store.SetPresence(ctx, userID, online, at); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to persist presence")
	}
	if s.presence == nil {
		return
	}
	var err error
	if online {
		err = s.presence.MarkOnline(ctx, userID, at)
	} else {
		err = s.presence.MarkOffline(ctx, userID, at)
	}
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to update presence cache")
	}
}

func (s *gatewayService) notifyStatusChanged(userID string, chatIDs []string, online bool, at time.Time) {
	for _, chatID := range chatIDs {
		frame, err := domain.NewFrame(domain.EventUserStatusChanged, &domain.UserStatus{
			UserID:   userID,
			IsOnline: online,
			LastSeen: at.Format("2006-01-02T15:04:05.000Z"),
		})
		if err != nil {
			continue
		}
		s.hub.BroadcastToChat(chatID, frame, userID)
	}
}

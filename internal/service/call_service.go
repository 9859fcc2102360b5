package service

import (
	"context"
	"fmt"

	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
	"github.com/rhayalcantara/proyectos-sub001/internal/hub"
	"github.com/rhayalcantara/proyectos-sub001/internal/push"
	"github.com/rhayalcantara/proyectos-sub001/internal/repository"
	"github.com/rhayalcantara/proyectos-sub001/pkg/log"
)

type callService struct {
	hub   *hub.Hub
	store repository.ChatStore
	push  push.Sender
}

// NewCallService creates the call-signaling relay.
func NewCallService(h *hub.Hub, store repository.ChatStore, sender push.Sender) CallService {
	return &callService{
		hub:   h,
		store: store,
		push:  sender,
	}
}

// HandleCallUser routes a call offer. A block in either direction fails
// the call back to the caller only; an offline target gets a missed-call
// push and the caller a UserOffline failure. The offer is never queued.
func (s *callService) HandleCallUser(ctx context.Context, c *hub.Client, req domain.CallRequest) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}

	caller, err := s.store.GetUser(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("caller lookup: %w", err)
	}

	blocked, err := s.store.IsBlocked(ctx, c.UserID, req.TargetUserID)
	if err != nil {
		return fmt.Errorf("block check: %w", err)
	}
	if blocked {
		return s.failCall(c, domain.CallFailBlocked, "No puedes llamar a un usuario que has bloqueado")
	}

	blocked, err = s.store.IsBlocked(ctx, req.TargetUserID, c.UserID)
	if err != nil {
		return fmt.Errorf("block check: %w", err)
	}
	if blocked {
		return s.failCall(c, domain.CallFailBlocked, "No puedes llamar a este usuario")
	}

	target, ok := s.hub.Connection(req.TargetUserID)
	if !ok {
		s.dispatchMissedCallPush(ctx, caller, req)
		return s.failCall(c, domain.CallFailUserOffline, "El usuario no está disponible")
	}

	frame, err := domain.NewFrame(domain.EventReceiveCallOffer, &domain.CallOffer{
		CallerID:    caller.ID,
		CallerName:  caller.Nombre,
		CallerPhoto: caller.FotoPerfil,
		CallType:    req.CallType,
		SdpOffer:    req.SdpOffer,
	})
	if err != nil {
		return err
	}
	if err := target.SendFrame(frame); err != nil {
		return err
	}

	l := log.L()
	l.Info().
		Str(log.FieldCallerID, caller.ID).
		Str(log.FieldTargetID, req.TargetUserID).
		Str("call_type", req.CallType).
		Msg("call offer relayed")
	return nil
}

// HandleAnswerCall relays the SDP answer to the caller's live connection;
// a caller who dropped in the meantime gets nothing.
func (s *callService) HandleAnswerCall(ctx context.Context, c *hub.Client, req domain.AnswerRequest) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(domain.EventReceiveCallAnswer, &domain.CallAnswer{
		SdpAnswer: req.SdpAnswer,
	})
	if err != nil {
		return err
	}
	if !s.hub.SendToUser(req.CallerID, frame) {
		l := log.L()
		l.Debug().Str(log.FieldCallerID, req.CallerID).Msg("answer dropped, caller offline")
	}
	return nil
}

func (s *callService) HandleRejectCall(ctx context.Context, c *hub.Client, req domain.RejectRequest) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	reason := req.Reason
	if reason == "" {
		reason = domain.RejectReasonDefault
	}
	frame, err := domain.NewFrame(domain.EventCallRejected, &domain.CallRejected{
		UserID: c.UserID,
		Reason: reason,
	})
	if err != nil {
		return err
	}
	s.hub.SendToUser(req.CallerID, frame)
	return nil
}

func (s *callService) HandleEndCall(ctx context.Context, c *hub.Client, req domain.EndRequest) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(domain.EventCallEnded, &domain.CallEnded{
		EndedBy: c.UserID,
	})
	if err != nil {
		return err
	}
	s.hub.SendToUser(req.OtherUserID, frame)
	return nil
}

func (s *callService) HandleICECandidate(ctx context.Context, c *hub.Client, req domain.CandidateRequest) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	frame, err := domain.NewFrame(domain.EventReceiveICECandidate, &domain.ICECandidate{
		Candidate: req.Candidate,
	})
	if err != nil {
		return err
	}
	s.hub.SendToUser(req.TargetUserID, frame)
	return nil
}

// failCall surfaces a call failure to the caller only. Policy failures are
// always explicit, never a silent drop.
func (s *callService) failCall(c *hub.Client, reason, message string) error {
	frame, err := domain.NewFrame(domain.EventCallFailed, &domain.CallFailed{
		Reason:  reason,
		Message: message,
	})
	if err != nil {
		return err
	}
	return c.SendFrame(frame)
}

func (s *callService) dispatchMissedCallPush(ctx context.Context, caller *domain.User, req domain.CallRequest) {
	if s.push == nil {
		return
	}

	callTypeText := "llamada de voz"
	if req.CallType == domain.CallTypeVideo {
		callTypeText = "videollamada"
	}

	payload := &push.Payload{
		Title: fmt.Sprintf("Llamada perdida de %s", caller.Nombre),
		Body:  fmt.Sprintf("Intentó comunicarse contigo por %s", callTypeText),
		Icon:  "/favicon.ico",
		Badge: "/favicon.ico",
		Tag:   fmt.Sprintf("call-%s", caller.ID),
		Data:  push.Data{Type: "missed_call"},
	}

	if err := s.push.Send(ctx, req.TargetUserID, payload); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldTargetID, req.TargetUserID).Msg("failed to dispatch missed-call push")
	}
}

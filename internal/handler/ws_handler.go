package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rhayalcantara/proyectos-sub001/internal/config"
	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
	"github.com/rhayalcantara/proyectos-sub001/internal/hub"
	"github.com/rhayalcantara/proyectos-sub001/internal/presence"
	"github.com/rhayalcantara/proyectos-sub001/internal/service"
	"github.com/rhayalcantara/proyectos-sub001/pkg/auth"
	"github.com/rhayalcantara/proyectos-sub001/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub      *hub.Hub
	gateway  service.GatewayService
	calls    service.CallService
	auth     *auth.Manager
	presence presence.Store
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, gateway service.GatewayService, calls service.CallService, authMgr *auth.Manager, pres presence.Store, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		gateway:  gateway,
		calls:    calls,
		auth:     authMgr,
		presence: pres,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket authenticates the bearer credential, upgrades the
// connection and binds it to the user's slot. Every (re)connection attempt
// presents a fresh token, so rotation needs no special handling here.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), claims.UserID, claims.Nombre, h.hub, conn, h.wsCfg)

	h.hub.Register(client)

	ctx := context.Background()
	if err := h.gateway.HandleConnect(ctx, client); err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldUserID, client.UserID).Msg("connect bookkeeping failed")
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleMessage)
		if err := h.gateway.HandleDisconnect(ctx, client); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldUserID, client.UserID).Msg("disconnect bookkeeping failed")
		}
	}()
}

// authenticate resolves the bearer credential from the Authorization
// header or, for browser websocket clients that cannot set headers, the
// access_token query parameter.
func (h *WSHandler) authenticate(r *http.Request) (*auth.Claims, error) {
	token := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	return h.auth.ValidateToken(token)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldUserID, client.UserID).Msg("invalid frame")
		return
	}

	ctx := context.Background()

	var err error
	switch frame.Type {
	case domain.InvJoinChat:
		var ref domain.ChatRef
		if err = frame.DecodeData(&ref); err == nil {
			err = h.gateway.HandleJoinChat(ctx, client, ref.ChatID)
		}

	case domain.InvLeaveChat:
		var ref domain.ChatRef
		if err = frame.DecodeData(&ref); err == nil {
			err = h.gateway.HandleLeaveChat(ctx, client, ref.ChatID)
		}

	case domain.InvSendMessage:
		var msg domain.MensajeEnviado
		if err = frame.DecodeData(&msg); err == nil {
			err = h.gateway.HandleSendMessage(ctx, client, msg)
		}

	case domain.InvSendTyping:
		var typing domain.Typing
		if err = frame.DecodeData(&typing); err == nil {
			err = h.gateway.HandleTyping(ctx, client, typing)
		}

	case domain.InvMessageDelivered:
		var ref domain.MessageRef
		if err = frame.DecodeData(&ref); err == nil {
			err = h.gateway.HandleMessageDelivered(ctx, client, ref)
		}

	case domain.InvMessageRead:
		var ref domain.MessageRef
		if err = frame.DecodeData(&ref); err == nil {
			err = h.gateway.HandleMessageRead(ctx, client, ref)
		}

	case domain.InvNotifyGroupUpdated:
		var group domain.GroupUpdated
		if err = frame.DecodeData(&group); err == nil {
			err = h.gateway.HandleGroupUpdated(ctx, client, group)
		}

	case domain.InvNotifyParticipantAdded:
		var p domain.Participant
		if err = frame.DecodeData(&p); err == nil {
			err = h.gateway.HandleParticipantAdded(ctx, client, p)
		}

	case domain.InvNotifyParticipantRemoved:
		var p domain.Participant
		if err = frame.DecodeData(&p); err == nil {
			err = h.gateway.HandleParticipantRemoved(ctx, client, p)
		}

	case domain.InvNotifyParticipantLeft:
		var p domain.Participant
		if err = frame.DecodeData(&p); err == nil {
			err = h.gateway.HandleParticipantLeft(ctx, client, p)
		}

	case domain.InvNotifyRoleChanged:
		var rc domain.RoleChanged
		if err = frame.DecodeData(&rc); err == nil {
			err = h.gateway.HandleRoleChanged(ctx, client, rc)
		}

	case domain.InvCallUser:
		var req domain.CallRequest
		if err = frame.DecodeData(&req); err == nil {
			err = h.calls.HandleCallUser(ctx, client, req)
		}

	case domain.InvAnswerCall:
		var req domain.AnswerRequest
		if err = frame.DecodeData(&req); err == nil {
			err = h.calls.HandleAnswerCall(ctx, client, req)
		}

	case domain.InvRejectCall:
		var req domain.RejectRequest
		if err = frame.DecodeData(&req); err == nil {
			err = h.calls.HandleRejectCall(ctx, client, req)
		}

	case domain.InvEndCall:
		var req domain.EndRequest
		if err = frame.DecodeData(&req); err == nil {
			err = h.calls.HandleEndCall(ctx, client, req)
		}

	case domain.InvSendICECandidate:
		var req domain.CandidateRequest
		if err = frame.DecodeData(&req); err == nil {
			err = h.calls.HandleICECandidate(ctx, client, req)
		}

	default:
		l := log.L()
		l.Warn().Str(log.FieldUserID, client.UserID).Str(log.FieldMethod, frame.Type).Msg("unknown invocation")
		return
	}

	if err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldUserID, client.UserID).Str(log.FieldMethod, frame.Type).Msg("invocation failed")
	}
}

// HandlePresence answers presence queries for users the caller shares no
// open chat with, straight from the cache. Same bearer credential as the
// websocket endpoint.
func (h *WSHandler) HandlePresence(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/presence/")
	if userID == "" || strings.Contains(userID, "/") {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}
	if h.presence == nil {
		http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
		return
	}

	status, err := h.presence.Get(r.Context(), userID)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("presence lookup failed")
		http.Error(w, "presence lookup failed", http.StatusInternalServerError)
		return
	}

	resp := domain.UserStatus{UserID: status.UserID, IsOnline: status.IsOnline}
	if !status.LastSeen.IsZero() {
		resp.LastSeen = status.LastSeen.UTC().Format("2006-01-02T15:04:05.000Z")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&resp)
}

func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/hubs/chat", h.HandleWebSocket)
	mux.HandleFunc("/presence/", h.HandlePresence)
}

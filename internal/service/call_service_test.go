package service

import (
	"context"
	"strings"
	"testing"

	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
)

func TestCallUserRelaysOfferToTarget(t *testing.T) {
	h := newTestHub()
	store := newFakeStore()
	sender := &fakePush{}
	svc := NewCallService(h, store, sender)

	store.users["alice"] = &domain.User{ID: "alice", Nombre: "Alice", FotoPerfil: "alice.jpg"}
	caller := connectClient(t, h, "alice", "Alice")
	target := connectClient(t, h, "bob", "Bob")

	err := svc.HandleCallUser(context.Background(), caller, domain.CallRequest{
		TargetUserID: "bob",
		CallType:     domain.CallTypeVideo,
		SdpOffer:     "sdp-offer-blob",
	})
	if err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, target)
	if frame.Type != domain.EventReceiveCallOffer {
		t.Fatalf("frame type = %q, want %q", frame.Type, domain.EventReceiveCallOffer)
	}
	offer := decodeFrame[domain.CallOffer](t, frame)
	if offer.CallerID != "alice" || offer.CallerName != "Alice" || offer.CallerPhoto != "alice.jpg" {
		t.Fatalf("offer carries wrong caller profile: %+v", offer)
	}
	if offer.SdpOffer != "sdp-offer-blob" || offer.CallType != domain.CallTypeVideo {
		t.Fatalf("offer payload altered in relay: %+v", offer)
	}

	// The caller gets nothing until the callee acts.
	assertNoFrame(t, caller)
	if len(sender.records()) != 0 {
		t.Fatal("push dispatched for a delivered offer")
	}
}

func TestCallUserBlockedByCaller(t *testing.T) {
	h := newTestHub()
	store := newFakeStore()
	sender := &fakePush{}
	svc := NewCallService(h, store, sender)

	store.users["alice"] = &domain.User{ID: "alice", Nombre: "Alice"}
	store.block("alice", "bob")
	caller := connectClient(t, h, "alice", "Alice")
	target := connectClient(t, h, "bob", "Bob")

	err := svc.HandleCallUser(context.Background(), caller, domain.CallRequest{
		TargetUserID: "bob",
		CallType:     domain.CallTypeAudio,
		SdpOffer:     "sdp",
	})
	if err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, caller)
	if frame.Type != domain.EventCallFailed {
		t.Fatalf("frame type = %q, want %q", frame.Type, domain.EventCallFailed)
	}
	failed := decodeFrame[domain.CallFailed](t, frame)
	if failed.Reason != domain.CallFailBlocked {
		t.Fatalf("reason = %q, want %q", failed.Reason, domain.CallFailBlocked)
	}
	if failed.Message != "No puedes llamar a un usuario que has bloqueado" {
		t.Fatalf("unexpected message: %q", failed.Message)
	}

	// The target never learns the attempt happened.
	assertNoFrame(t, target)
	if len(sender.records()) != 0 {
		t.Fatal("push dispatched for a blocked call")
	}
}

func TestCallUserBlockedByTarget(t *testing.T) {
	h := newTestHub()
	store := newFakeStore()
	svc := NewCallService(h, store, &fakePush{})

	store.users["alice"] = &domain.User{ID: "alice", Nombre: "Alice"}
	store.block("bob", "alice")
	caller := connectClient(t, h, "alice", "Alice")
	target := connectClient(t, h, "bob", "Bob")

	if err := svc.HandleCallUser(context.Background(), caller, domain.CallRequest{
		TargetUserID: "bob",
		CallType:     domain.CallTypeAudio,
		SdpOffer:     "sdp",
	}); err != nil {
		t.Fatal(err)
	}

	failed := decodeFrame[domain.CallFailed](t, readFrame(t, caller))
	if failed.Reason != domain.CallFailBlocked {
		t.Fatalf("reason = %q, want %q", failed.Reason, domain.CallFailBlocked)
	}
	if failed.Message != "No puedes llamar a este usuario" {
		t.Fatalf("unexpected message: %q", failed.Message)
	}
	assertNoFrame(t, target)
}

func TestCallUserOfflineDispatchesMissedCallPush(t *testing.T) {
	h := newTestHub()
	store := newFakeStore()
	sender := &fakePush{}
	svc := NewCallService(h, store, sender)

	store.users["alice"] = &domain.User{ID: "alice", Nombre: "Alice"}
	caller := connectClient(t, h, "alice", "Alice")
	// bob never connects.

	if err := svc.HandleCallUser(context.Background(), caller, domain.CallRequest{
		TargetUserID: "bob",
		CallType:     domain.CallTypeVideo,
		SdpOffer:     "sdp",
	}); err != nil {
		t.Fatal(err)
	}

	failed := decodeFrame[domain.CallFailed](t, readFrame(t, caller))
	if failed.Reason != domain.CallFailUserOffline {
		t.Fatalf("reason = %q, want %q", failed.Reason, domain.CallFailUserOffline)
	}
	if failed.Message != "El usuario no está disponible" {
		t.Fatalf("unexpected message: %q", failed.Message)
	}

	records := sender.records()
	if len(records) != 1 {
		t.Fatalf("push records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.TargetUserID != "bob" {
		t.Fatalf("push target = %q, want bob", rec.TargetUserID)
	}
	if rec.Payload.Title != "Llamada perdida de Alice" {
		t.Fatalf("push title = %q", rec.Payload.Title)
	}
	if !strings.Contains(rec.Payload.Body, "videollamada") {
		t.Fatalf("video call body should mention videollamada: %q", rec.Payload.Body)
	}
	if rec.Payload.Tag != "call-alice" {
		t.Fatalf("push tag = %q, want call-alice", rec.Payload.Tag)
	}
	if rec.Payload.Data.Type != "missed_call" {
		t.Fatalf("push data type = %q, want missed_call", rec.Payload.Data.Type)
	}
}

func TestCallUserOfflineVoiceBody(t *testing.T) {
	h := newTestHub()
	store := newFakeStore()
	sender := &fakePush{}
	svc := NewCallService(h, store, sender)

	store.users["alice"] = &domain.User{ID: "alice", Nombre: "Alice"}
	caller := connectClient(t, h, "alice", "Alice")

	if err := svc.HandleCallUser(context.Background(), caller, domain.CallRequest{
		TargetUserID: "bob",
		CallType:     domain.CallTypeAudio,
		SdpOffer:     "sdp",
	}); err != nil {
		t.Fatal(err)
	}
	readFrame(t, caller)

	records := sender.records()
	if len(records) != 1 {
		t.Fatalf("push records = %d, want 1", len(records))
	}
	if !strings.Contains(records[0].Payload.Body, "llamada de voz") {
		t.Fatalf("voice call body should mention llamada de voz: %q", records[0].Payload.Body)
	}
}

func TestAnswerCallRelaysToCaller(t *testing.T) {
	h := newTestHub()
	store := newFakeStore()
	svc := NewCallService(h, store, &fakePush{})

	caller := connectClient(t, h, "alice", "Alice")
	callee := connectClient(t, h, "bob", "Bob")

	if err := svc.HandleAnswerCall(context.Background(), callee, domain.AnswerRequest{
		CallerID:  "alice",
		SdpAnswer: "sdp-answer-blob",
	}); err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, caller)
	if frame.Type != domain.EventReceiveCallAnswer {
		t.Fatalf("frame type = %q, want %q", frame.Type, domain.EventReceiveCallAnswer)
	}
	answer := decodeFrame[domain.CallAnswer](t, frame)
	if answer.SdpAnswer != "sdp-answer-blob" {
		t.Fatalf("answer altered in relay: %+v", answer)
	}
}

func TestAnswerCallCallerGoneIsSilent(t *testing.T) {
	h := newTestHub()
	svc := NewCallService(h, newFakeStore(), &fakePush{})
	callee := connectClient(t, h, "bob", "Bob")

	// Caller dropped between offer and answer: silent drop, no error.
	if err := svc.HandleAnswerCall(context.Background(), callee, domain.AnswerRequest{
		CallerID:  "alice",
		SdpAnswer: "sdp",
	}); err != nil {
		t.Fatal(err)
	}
	assertNoFrame(t, callee)
}

func TestRejectCallDefaultReason(t *testing.T) {
	h := newTestHub()
	svc := NewCallService(h, newFakeStore(), &fakePush{})

	caller := connectClient(t, h, "alice", "Alice")
	callee := connectClient(t, h, "bob", "Bob")

	if err := svc.HandleRejectCall(context.Background(), callee, domain.RejectRequest{
		CallerID: "alice",
	}); err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, caller)
	rejected := decodeFrame[domain.CallRejected](t, frame)
	if rejected.UserID != "bob" {
		t.Fatalf("rejected by = %q, want bob", rejected.UserID)
	}
	if rejected.Reason != domain.RejectReasonDefault {
		t.Fatalf("reason = %q, want %q", rejected.Reason, domain.RejectReasonDefault)
	}
}

func TestEndCallNotifiesOtherParty(t *testing.T) {
	h := newTestHub()
	svc := NewCallService(h, newFakeStore(), &fakePush{})

	alice := connectClient(t, h, "alice", "Alice")
	bob := connectClient(t, h, "bob", "Bob")

	if err := svc.HandleEndCall(context.Background(), alice, domain.EndRequest{
		OtherUserID: "bob",
	}); err != nil {
		t.Fatal(err)
	}

	ended := decodeFrame[domain.CallEnded](t, readFrame(t, bob))
	if ended.EndedBy != "alice" {
		t.Fatalf("ended by = %q, want alice", ended.EndedBy)
	}
	assertNoFrame(t, alice)
}

func TestICECandidateRelaysOpaquely(t *testing.T) {
	h := newTestHub()
	svc := NewCallService(h, newFakeStore(), &fakePush{})

	alice := connectClient(t, h, "alice", "Alice")
	bob := connectClient(t, h, "bob", "Bob")

	candidate := `{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54400 typ host"}`
	if err := svc.HandleICECandidate(context.Background(), alice, domain.CandidateRequest{
		TargetUserID: "bob",
		Candidate:    candidate,
	}); err != nil {
		t.Fatal(err)
	}

	relayed := decodeFrame[domain.ICECandidate](t, readFrame(t, bob))
	if relayed.Candidate != candidate {
		t.Fatalf("candidate altered in relay: %q", relayed.Candidate)
	}
}

func TestCallOperationsRequireIdentity(t *testing.T) {
	h := newTestHub()
	svc := NewCallService(h, newFakeStore(), &fakePush{})
	anon := connectClient(t, h, "", "")

	if err := svc.HandleCallUser(context.Background(), anon, domain.CallRequest{TargetUserID: "bob"}); err != ErrUnauthenticated {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if err := svc.HandleEndCall(context.Background(), anon, domain.EndRequest{OtherUserID: "bob"}); err != ErrUnauthenticated {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

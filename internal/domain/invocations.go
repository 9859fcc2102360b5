package domain

import "encoding/json"

// Client -> server invocation names.
const (
	InvJoinChat                 = "JoinChat"
	InvLeaveChat                = "LeaveChat"
	InvSendMessage              = "SendMessage"
	InvSendTyping               = "SendTyping"
	InvMessageDelivered         = "MessageDelivered"
	InvMessageRead              = "MessageRead"
	InvNotifyGroupUpdated       = "NotifyGroupUpdated"
	InvNotifyParticipantAdded   = "NotifyParticipantAdded"
	InvNotifyParticipantRemoved = "NotifyParticipantRemoved"
	InvNotifyParticipantLeft    = "NotifyParticipantLeft"
	InvNotifyRoleChanged        = "NotifyRoleChanged"
	InvCallUser                 = "CallUser"
	InvAnswerCall               = "AnswerCall"
	InvRejectCall               = "RejectCall"
	InvEndCall                  = "EndCall"
	InvSendICECandidate         = "SendICECandidate"
)

// Frame is the wire envelope for both directions: an invocation or event
// name plus its payload. Everything is multiplexed over the single
// websocket connection as frames.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewFrame wraps a payload under the given type name.
func NewFrame(typ string, payload interface{}) (*Frame, error) {
	if payload == nil {
		return &Frame{Type: typ}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: typ, Data: data}, nil
}

// Encode marshals the frame for the wire.
func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeData unmarshals the frame payload into v.
func (f *Frame) DecodeData(v interface{}) error {
	return json.Unmarshal(f.Data, v)
}

// ChatRef is the JoinChat / LeaveChat payload.
type ChatRef struct {
	ChatID string `json:"chatId"`
}

// MessageRef is the MessageDelivered / MessageRead payload.
type MessageRef struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

// CallRequest is the CallUser payload.
type CallRequest struct {
	TargetUserID string `json:"targetUserId"`
	CallType     string `json:"callType"`
	SdpOffer     string `json:"sdpOffer"`
}

// AnswerRequest is the AnswerCall payload.
type AnswerRequest struct {
	CallerID  string `json:"callerId"`
	SdpAnswer string `json:"sdpAnswer"`
}

// RejectRequest is the RejectCall payload.
type RejectRequest struct {
	CallerID string `json:"callerId"`
	Reason   string `json:"reason,omitempty"`
}

// EndRequest is the EndCall payload.
type EndRequest struct {
	OtherUserID string `json:"otherUserId"`
}

// CandidateRequest is the SendICECandidate payload.
type CandidateRequest struct {
	TargetUserID string `json:"targetUserId"`
	Candidate    string `json:"candidate"`
}

package domain

// Call types.
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// CallFailed reasons.
const (
	CallFailBlocked     = "Blocked"
	CallFailUserOffline = "UserOffline"
)

// RejectReasonDefault is used when RejectCall carries no reason.
const RejectReasonDefault = "Rejected"

// CallOffer is the ReceiveCallOffer payload. The SDP offer is relayed
// opaquely; the gateway never interprets it.
type CallOffer struct {
	CallerID    string `json:"callerId"`
	CallerName  string `json:"callerName"`
	CallerPhoto string `json:"callerPhoto,omitempty"`
	CallType    string `json:"callType"`
	SdpOffer    string `json:"sdpOffer"`
}

// CallAnswer is the ReceiveCallAnswer payload.
type CallAnswer struct {
	SdpAnswer string `json:"sdpAnswer"`
}

// CallRejected is the CallRejected payload.
type CallRejected struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// CallEnded is the CallEnded payload.
type CallEnded struct {
	EndedBy string `json:"endedBy"`
}

// ICECandidate is the ReceiveICECandidate payload, relayed opaquely.
type ICECandidate struct {
	Candidate string `json:"candidate"`
}

// CallFailed is the CallFailed payload.
type CallFailed struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

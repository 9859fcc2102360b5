package log

const (
	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Relay
	FieldChatID    = "chat_id"
	FieldMessageID = "message_id"
	FieldCallerID  = "caller_id"
	FieldTargetID  = "target_id"
	FieldMethod    = "method"

	// Service
	FieldService = "service"
)

package ws

import "time"

// Application close codes, in the 4000+ range reserved for private use.
const (
	// CloseInvalidUserID rejects sockets whose path segment is not an integer.
	CloseInvalidUserID = 4001
	// CloseSessionSuperseded terminates an old socket when the same user
	// connects again.
	CloseSessionSuperseded = 4002
)

// Frame type names. Incoming frames carry these in their "type" field;
// outgoing frames are built around them.
const (
	MsgTypeError = "error"
	MsgTypeText  = "text"

	MsgTypeChatMessage  = "chat_message"
	MsgTypeGroupMessage = "group_message"

	MsgTypeJoin       = "join"
	MsgTypeUserJoined = "user_joined"
	MsgTypeUserLeft   = "user_left"

	MsgTypeCallOffer    = "call_offer"
	MsgTypeCallAnswer   = "call_answer"
	MsgTypeCallRejected = "call_rejected"
	MsgTypeCallBusy     = "call_busy"
	MsgTypeCallEnded    = "call_ended"
	MsgTypeCandidate    = "candidate"

	MsgTypeGroupCallStart    = "group-call-start"
	MsgTypeGroupCallJoin     = "group-call-join"
	MsgTypeGroupCallLeave    = "group-call-leave"
	MsgTypeGroupCallEnded    = "group-call-ended"
	MsgTypeGroupCallBusy     = "group-call-busy"
	MsgTypeGroupCallOffer    = "group-call-offer"
	MsgTypeGroupCallAnswer   = "group-call-answer"
	MsgTypeGroupICECandidate = "group-ice-candidate"

	MsgTypeOngoingGroupCalls = "ongoing-group-calls"
)

// groupFramePrefix routes any unrecognized "group-*" type through the group
// relay path.
const groupFramePrefix = "group-"

// SendResult reports what happened to a unicast delivery attempt.
type SendResult int

const (
	// SendDelivered means the frame was written to the recipient's socket.
	SendDelivered SendResult = iota
	// SendAbsent means the recipient has no registered session.
	SendAbsent
	// SendFailed means the write failed and the recipient was disconnected.
	SendFailed
)

type errorFrame struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// rawTextFrame wraps an undecodable inbound payload when raw relay is
// enabled.
type rawTextFrame struct {
	Type       string `json:"type"`
	FromUserID int64  `json:"from_user_id"`
	Content    string `json:"content"`
}

type userJoinedFrame struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username any    `json:"username"`
}

type userLeftFrame struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type groupCallStartFrame struct {
	Type           string `json:"type"`
	UserID         int64  `json:"userId"`
	SenderUsername string `json:"sender_username"`
	GroupID        int64  `json:"groupId"`
	IsVideo        any    `json:"isVideo"`
	Recipients     any    `json:"recipients"`
}

type groupCallJoinFrame struct {
	Type               string  `json:"type"`
	UserID             int64   `json:"userId"`
	SenderUsername     string  `json:"sender_username"`
	GroupID            int64   `json:"groupId"`
	IsVideo            any     `json:"isVideo"`
	ActiveParticipants []int64 `json:"activeParticipants"`
	JoinTime           any     `json:"joinTime"`
}

type groupCallLeaveFrame struct {
	Type           string `json:"type"`
	UserID         int64  `json:"userId"`
	SenderUsername string `json:"sender_username"`
	GroupID        int64  `json:"groupId"`
}

type groupCallEndedFrame struct {
	Type           string `json:"type"`
	UserID         int64  `json:"userId"`
	SenderUsername string `json:"sender_username"`
	GroupID        int64  `json:"groupId"`
	Reason         string `json:"reason"`
}

// groupCallDroppedFrame announces a call ending because its last participant
// disconnected rather than leaving explicitly.
type groupCallDroppedFrame struct {
	Type    string `json:"type"`
	GroupID int64  `json:"groupId"`
	Reason  string `json:"reason"`
}

type groupCallBusyFrame struct {
	Type           string `json:"type"`
	UserID         int64  `json:"userId"`
	SenderUsername string `json:"sender_username"`
	GroupID        int64  `json:"groupId"`
	To             *int64 `json:"to,omitempty"`
	Reason         any    `json:"reason"`
}

type ongoingCallInfo struct {
	GroupID          int64   `json:"groupId"`
	GroupName        string  `json:"groupName"`
	Participants     []int64 `json:"participants"`
	ParticipantCount int     `json:"participantCount"`
	IsVideo          bool    `json:"isVideo"`
}

type ongoingCallsFrame struct {
	Type  string            `json:"type"`
	Calls []ongoingCallInfo `json:"calls"`
}

// ChatMessageFrame is the realtime copy of a direct message persisted over
// REST.
type ChatMessageFrame struct {
	Type           string    `json:"type"`
	ID             int64     `json:"id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	SenderUsername string    `json:"sender_username"`
}

// GroupMessageFrame is the realtime copy of a group message persisted over
// REST.
type GroupMessageFrame struct {
	Type           string    `json:"type"`
	ID             int64     `json:"id"`
	GroupID        int64     `json:"group_id"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

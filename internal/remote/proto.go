package remote

import "encoding/json"

// Wire envelopes for the websocket transport. The client sends correlated
// requests; the service answers with result or error envelopes and pushes
// event envelopes at any time.

const (
	frameResult = "result"
	frameError  = "error"
	frameEvent  = "event"
)

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type envelope struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	Err  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *wireError) Error() string { return e.Msg }

// Method names understood by the remote service.
const (
	methodWhoami         = "whoami"
	methodDialogList     = "dialog_list"
	methodChannelList    = "channel_list"
	methodContactList    = "contacts_list"
	methodChannelMembers = "channel_members"
	methodChatMembers    = "chat_members"
	methodSendMessage    = "send_message"
)

// errCodeIllegal marks responses for things the service refuses to
// enumerate, e.g. hidden channel subscriber lists.
const errCodeIllegal = "illegal_response"

package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/ot"
)

// CursorPayload is the wire shape of a cursor/selection update.
type CursorPayload struct {
	Position     int  `json:"position"`
	SelectionEnd *int `json:"selectionEnd,omitempty"`
}

// User is the wire shape of a participant's display record.
type User struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Avatar      string `json:"avatar,omitempty"`
}

// ClientMessage is the inbound tagged union (spec.md §4.5): exactly one
// of the payload fields is populated, matching Type.
type ClientMessage struct {
	Type       ClientType     `json:"type"`
	DocumentID string         `json:"documentId"`
	Operation  *ot.Op         `json:"operation,omitempty"`
	Cursor     *CursorPayload `json:"cursor,omitempty"`
	OTPToken   string         `json:"otpToken,omitempty"`
	// Language and OTP back the supplemented set-language / set-otp
	// messages (SPEC_FULL.md item 1/2). OTP is a pointer so an explicit
	// null clears document protection.
	Language *string `json:"language,omitempty"`
	OTP      *string `json:"otp,omitempty"`
	// User carries the caller-supplied display record. It is optional on
	// join-document (an absent User falls back to an anonymous default)
	// and required on set-user-info, which lets an already-joined session
	// update its own record post-connect — generalizing the teacher's
	// ClientInfo/Hue mechanism to the userId/displayName/color/avatar
	// fields spec.md's Presence record names.
	User *User `json:"user,omitempty"`
}

// UnmarshalJSON validates that the payload present matches Type, so
// malformed envelopes are rejected at the decode boundary rather than
// silently admitted with a nil payload.
func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	type alias ClientMessage
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	switch a.Type {
	case ClientJoinDocument:
		// documentId only; no payload required.
	case ClientOperation:
		if a.Operation == nil {
			return fmt.Errorf("protocol: %q message missing operation", ClientOperation)
		}
	case ClientCursorUpdate:
		if a.Cursor == nil {
			return fmt.Errorf("protocol: %q message missing cursor", ClientCursorUpdate)
		}
	case ClientSetLanguage:
		if a.Language == nil {
			return fmt.Errorf("protocol: %q message missing language", ClientSetLanguage)
		}
	case ClientSetOTP:
		// OTP may legitimately be nil (clearing protection).
	case ClientSetUserInfo:
		if a.User == nil {
			return fmt.Errorf("protocol: %q message missing user", ClientSetUserInfo)
		}
	default:
		return fmt.Errorf("protocol: unknown client message type %q", a.Type)
	}
	*m = ClientMessage(a)
	return nil
}

// ServerMessage is implemented by every outbound payload; each concrete
// type self-tags via its embedded Type field so a plain json.Marshal on
// the interface value produces the envelope directly.
type ServerMessage interface {
	serverMessage()
}

type DocumentStateMsg struct {
	Type        ServerType          `json:"type"`
	Content     string              `json:"content"`
	Version     int                 `json:"version"`
	Metadata    document.Metadata   `json:"metadata"`
	ActiveUsers []document.Presence `json:"activeUsers"`
}

func NewDocumentStateMsg(content string, version int, meta document.Metadata, active []document.Presence) *DocumentStateMsg {
	return &DocumentStateMsg{Type: ServerDocumentState, Content: content, Version: version, Metadata: meta, ActiveUsers: active}
}
func (*DocumentStateMsg) serverMessage() {}

type OperationImmediateMsg struct {
	Type        ServerType `json:"type"`
	Operation   ot.Op      `json:"operation"`
	TempContent string     `json:"tempContent"`
	User        User       `json:"user"`
}

func NewOperationImmediateMsg(op ot.Op, tempContent string, user User) *OperationImmediateMsg {
	return &OperationImmediateMsg{Type: ServerOperationLive, Operation: op, TempContent: tempContent, User: user}
}
func (*OperationImmediateMsg) serverMessage() {}

type DocumentSyncMsg struct {
	Type       ServerType        `json:"type"`
	Content    string            `json:"content"`
	Version    int               `json:"version"`
	Operations []ot.Op           `json:"operations"`
	Metadata   document.Metadata `json:"metadata"`
}

func NewDocumentSyncMsg(content string, version int, ops []ot.Op, meta document.Metadata) *DocumentSyncMsg {
	return &DocumentSyncMsg{Type: ServerDocumentSync, Content: content, Version: version, Operations: ops, Metadata: meta}
}
func (*DocumentSyncMsg) serverMessage() {}

type UserJoinedMsg struct {
	Type     ServerType `json:"type"`
	User     User       `json:"user"`
	SocketID string     `json:"socketId"`
}

func NewUserJoinedMsg(user User, socketID string) *UserJoinedMsg {
	return &UserJoinedMsg{Type: ServerUserJoined, User: user, SocketID: socketID}
}
func (*UserJoinedMsg) serverMessage() {}

type UserLeftMsg struct {
	Type     ServerType `json:"type"`
	User     User       `json:"user"`
	SocketID string     `json:"socketId"`
}

func NewUserLeftMsg(user User, socketID string) *UserLeftMsg {
	return &UserLeftMsg{Type: ServerUserLeft, User: user, SocketID: socketID}
}
func (*UserLeftMsg) serverMessage() {}

type UsersUpdatedMsg struct {
	Type        ServerType          `json:"type"`
	ActiveUsers []document.Presence `json:"activeUsers"`
}

func NewUsersUpdatedMsg(active []document.Presence) *UsersUpdatedMsg {
	return &UsersUpdatedMsg{Type: ServerUsersUpdated, ActiveUsers: active}
}
func (*UsersUpdatedMsg) serverMessage() {}

type CursorUpdateMsg struct {
	Type      ServerType    `json:"type"`
	User      User          `json:"user"`
	Cursor    CursorPayload `json:"cursor"`
	Timestamp int64         `json:"timestamp"`
}

func NewCursorUpdateMsg(user User, cursor CursorPayload, timestamp int64) *CursorUpdateMsg {
	return &CursorUpdateMsg{Type: ServerCursorUpdate, User: user, Cursor: cursor, Timestamp: timestamp}
}
func (*CursorUpdateMsg) serverMessage() {}

type LanguageUpdateMsg struct {
	Type     ServerType `json:"type"`
	Language string     `json:"language"`
	User     User       `json:"user"`
}

func NewLanguageUpdateMsg(language string, user User) *LanguageUpdateMsg {
	return &LanguageUpdateMsg{Type: ServerLanguageUpdate, Language: language, User: user}
}
func (*LanguageUpdateMsg) serverMessage() {}

type OTPUpdateMsg struct {
	Type ServerType `json:"type"`
	OTP  *string    `json:"otp"`
	User User       `json:"user"`
}

func NewOTPUpdateMsg(otp *string, user User) *OTPUpdateMsg {
	return &OTPUpdateMsg{Type: ServerOTPUpdate, OTP: otp, User: user}
}
func (*OTPUpdateMsg) serverMessage() {}

// UserInfoUpdateMsg broadcasts a joined session's updated display record
// (see DESIGN.md's internal/protocol entry; generalizes the teacher's
// UserInfoMsg/Hue).
type UserInfoUpdateMsg struct {
	Type     ServerType `json:"type"`
	User     User       `json:"user"`
	SocketID string     `json:"socketId"`
}

func NewUserInfoUpdateMsg(user User, socketID string) *UserInfoUpdateMsg {
	return &UserInfoUpdateMsg{Type: ServerUserInfoUpdate, User: user, SocketID: socketID}
}
func (*UserInfoUpdateMsg) serverMessage() {}

type ErrorMsg struct {
	Type    ServerType `json:"type"`
	Message string     `json:"message"`
}

func NewErrorMsg(message string) *ErrorMsg {
	return &ErrorMsg{Type: ServerError, Message: message}
}
func (*ErrorMsg) serverMessage() {}

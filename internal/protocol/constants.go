// Package protocol defines the wire messages exchanged between a
// transport session and the rest of the system.
package protocol

// ClientType discriminates the `type` field of an inbound message.
type ClientType string

const (
	ClientJoinDocument ClientType = "join-document"
	ClientOperation    ClientType = "operation"
	ClientCursorUpdate ClientType = "cursor-update"
	// ClientSetLanguage and ClientSetOTP are supplemented beyond
	// spec.md's distilled wire protocol (see SPEC_FULL.md item 1/2).
	ClientSetLanguage ClientType = "set-language"
	ClientSetOTP      ClientType = "set-otp"
	// ClientSetUserInfo lets a joined session update its own display
	// record post-connect, generalizing the teacher's ClientInfo/Hue
	// mechanism (see DESIGN.md).
	ClientSetUserInfo ClientType = "set-user-info"
)

// ServerType discriminates the `type` field of an outbound message.
type ServerType string

const (
	ServerDocumentState ServerType = "document-state"
	ServerOperationLive ServerType = "operation-immediate"
	ServerDocumentSync  ServerType = "document-sync"
	ServerUserJoined    ServerType = "user-joined"
	ServerUserLeft      ServerType = "user-left"
	ServerUsersUpdated  ServerType = "users-updated"
	ServerCursorUpdate  ServerType = "cursor-update"
	ServerError         ServerType = "error"
	ServerLanguageUpdate ServerType = "language-update"
	ServerOTPUpdate      ServerType = "otp-update"
	ServerUserInfoUpdate ServerType = "user-info-update"
)

// SystemUserID is the user id reserved for operations synthesized by the
// server itself rather than attributed to a connecting user. No code
// path in this module currently produces such operations.
const SystemUserID = "system"

package engine

import "github.com/kolabo/syncpad/internal/protocol"

// Emitter is the Hub-provided handle an Engine uses to deliver outbound
// messages. The engine never references the Hub itself, only this
// narrow interface, so there is no ownership cycle between the two
// (spec.md §9's "Cycles between engine and Hub" note).
type Emitter interface {
	// EmitToOthers delivers msg to every session of documentID except
	// exceptSessionID.
	EmitToOthers(documentID, exceptSessionID string, msg protocol.ServerMessage)
	// EmitToAll delivers msg to every session of documentID.
	EmitToAll(documentID string, msg protocol.ServerMessage)
	// EmitToSession delivers msg to exactly one session, if still
	// connected.
	EmitToSession(documentID, sessionID string, msg protocol.ServerMessage)
}

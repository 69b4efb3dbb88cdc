package engine

import (
	"github.com/kolabo/syncpad/internal/protocol"
	"github.com/kolabo/syncpad/pkg/document"
)

func toUser(p document.Presence) protocol.User {
	return protocol.User{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Color:       p.Color,
		Avatar:      p.Avatar,
	}
}

func activeList(active map[string]document.Presence) []document.Presence {
	out := make([]document.Presence, 0, len(active))
	for _, p := range active {
		out = append(out, p)
	}
	return out
}

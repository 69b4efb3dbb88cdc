package engine

import "github.com/kolabo/syncpad/pkg/ot"

// AuditSink receives the applied batch of every flush that changed
// content, asynchronously and best-effort (spec.md §9's unbounded
// operation-history open question; see pkg/audit and DESIGN.md).
// A Record call must never block the caller meaningfully nor propagate
// failures back into the flush path.
type AuditSink interface {
	Record(documentID string, version int, ops []ot.Op)
}

type noopAudit struct{}

func (noopAudit) Record(string, int, []ot.Op) {}

// Package engine implements the Document Engine: the serialized
// per-document actor that owns content, the applied-operation tail, the
// pending-operation queue, and the presence map (spec.md §4.3).
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kolabo/syncpad/internal/protocol"
	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/ot"
)

// Config bounds the engine's debounce and retention behavior (spec.md
// §6's configuration table).
type Config struct {
	DebounceDelay time.Duration
	TailSize      int
	IdleEviction  time.Duration
}

// DefaultConfig mirrors spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 500 * time.Millisecond,
		TailSize:      10,
		IdleEviction:  30 * time.Minute,
	}
}

// Snapshot is the read-only view handed back from join and metadata
// queries.
type Snapshot struct {
	Content     string
	Version     int
	Metadata    document.Metadata
	ActiveUsers []document.Presence
}

// Stats reports the engine's operational counters (spec.md §4.3's
// `stats()`).
type Stats struct {
	Version         int
	ActiveUserCount int
	TailLength      int
	QueuedCount     int
	Metadata        document.Metadata
	UpdatedAt       time.Time
}

// Engine is one logical instance per active document id. All of its
// exported methods serialize on mu, satisfying the single-writer actor
// contract of spec.md §5 via a per-document lock.
type Engine struct {
	id      string
	cfg     Config
	store   document.Store
	emit    Emitter
	audit   AuditSink
	metrics Metrics
	log     *zap.Logger

	mu           sync.Mutex
	doc          *document.Document
	tail         []ot.Op
	queue        []ot.Op
	timer        *time.Timer
	state        State
	lastActivity time.Time
}

// New constructs an Engine for documentID. The document itself is not
// loaded until the first call that needs it (join, enqueue, snapshot,
// stats), matching spec.md §3's lazy-creation lifecycle.
func New(documentID string, store document.Store, emit Emitter, audit AuditSink, metrics Metrics, log *zap.Logger, cfg Config) *Engine {
	if audit == nil {
		audit = noopAudit{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		id:           documentID,
		cfg:          cfg,
		store:        store,
		emit:         emit,
		audit:        audit,
		metrics:      metrics,
		log:          log,
		state:        StateEmpty,
		lastActivity: time.Now(),
	}
}

func (e *Engine) ID() string { return e.id }

// ensureLoadedLocked must be called with mu held.
func (e *Engine) ensureLoadedLocked(ctx context.Context) error {
	if e.doc != nil {
		return nil
	}
	e.state = StateLoading

	doc, ok, err := e.store.Load(ctx, e.id)
	if err != nil {
		// Corrupt or unparsable snapshots are treated as absent, never
		// guessed at (spec.md §4.2, §7 "Corrupt snapshot").
		e.log.Warn("snapshot unreadable, starting fresh", zap.String("documentId", e.id), zap.Error(err))
		ok = false
	}
	if !ok {
		doc = document.New(e.id, "Untitled", "")
		if serr := e.store.Save(ctx, doc); serr != nil {
			e.log.Error("initial save failed", zap.String("documentId", e.id), zap.Error(serr))
			e.metrics.StoreSaveFailure(e.id)
		}
	}

	e.doc = doc
	e.tail = lastN(doc.OperationsTail, e.cfg.TailSize)
	e.state = StateIdle
	return nil
}

// Join attaches sessionID to the document, creating or loading it if
// needed, and returns the current snapshot. otpToken is checked against
// the document's OTP when one is set (SPEC_FULL.md item 2); pass "" when
// the document is known to be unprotected.
func (e *Engine) Join(ctx context.Context, sessionID string, user protocol.User, otpToken string) (*Snapshot, error) {
	e.mu.Lock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if e.doc.OTP != nil && *e.doc.OTP != otpToken {
		e.mu.Unlock()
		return nil, invalidOperation("otp required or incorrect")
	}

	presence := document.Presence{
		SessionID:   sessionID,
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		Color:       user.Color,
		Avatar:      user.Avatar,
		JoinedAt:    time.Now(),
	}
	e.doc.ActiveUsers[sessionID] = presence
	e.doc.Metadata.LastAccessedAt = time.Now()
	e.doc.Metadata.LastAccessedBy = user.UserID
	e.lastActivity = time.Now()

	snap := &Snapshot{
		Content:     e.doc.Content,
		Version:     e.doc.Version,
		Metadata:    e.doc.Metadata,
		ActiveUsers: activeList(e.doc.ActiveUsers),
	}
	active := snap.ActiveUsers
	e.mu.Unlock()

	e.metrics.SessionJoined(e.id)
	if e.emit != nil {
		e.emit.EmitToOthers(e.id, sessionID, protocol.NewUserJoinedMsg(user, sessionID))
		e.emit.EmitToAll(e.id, protocol.NewUsersUpdatedMsg(active))
	}
	return snap, nil
}

// Leave detaches sessionID, forcing a synchronous flush first if the
// session has queued, not-yet-flushed ops (spec.md §4.3).
func (e *Engine) Leave(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return nil
	}
	_, existed := e.doc.ActiveUsers[sessionID]
	hasQueued := false
	for _, op := range e.queue {
		if op.ClientID == sessionID {
			hasQueued = true
			break
		}
	}
	e.mu.Unlock()

	if hasQueued {
		if err := e.ForceFlush(ctx); err != nil {
			e.log.Warn("flush-on-leave failed", zap.String("documentId", e.id), zap.Error(err))
		}
	}

	e.mu.Lock()
	var user protocol.User
	if presence, ok := e.doc.ActiveUsers[sessionID]; ok {
		user = toUser(presence)
	}
	delete(e.doc.ActiveUsers, sessionID)
	active := activeList(e.doc.ActiveUsers)
	e.lastActivity = time.Now()
	e.mu.Unlock()

	e.metrics.SessionLeft(e.id)
	if existed && e.emit != nil {
		e.emit.EmitToOthers(e.id, sessionID, protocol.NewUserLeftMsg(user, sessionID))
		e.emit.EmitToAll(e.id, protocol.NewUsersUpdatedMsg(active))
	}
	return nil
}

// Enqueue runs pipeline steps 1-3: admission, immediate echo, and
// enqueue-with-debounce (spec.md §4.3).
func (e *Engine) Enqueue(ctx context.Context, sessionID string, op ot.Op) error {
	e.mu.Lock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	presence, ok := e.doc.ActiveUsers[sessionID]
	if !ok {
		e.mu.Unlock()
		return &Error{Kind: KindUnknownDocument, Message: "operation from session not joined to this document"}
	}

	if err := ot.Validate(op, len(e.doc.Content)); err != nil {
		e.mu.Unlock()
		e.metrics.OperationRejected(e.id)
		if e.emit != nil {
			e.emit.EmitToSession(e.id, sessionID, protocol.NewErrorMsg(err.Error()))
		}
		return invalidOperation(err.Error())
	}

	op.ClientID = sessionID
	if op.UserID == "" {
		op.UserID = presence.UserID
	}
	if op.Timestamp == 0 {
		op.Timestamp = time.Now().UnixMilli()
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}

	transformed, terr := ot.TransformSequence(op, e.tail)
	var echo protocol.ServerMessage
	if terr != nil {
		e.log.Warn("immediate-echo transform failed", zap.String("documentId", e.id), zap.Error(terr))
	} else if transformed == nil {
		e.metrics.OperationAbsorbed(e.id)
	} else {
		tempContent, aerr := ot.Apply(e.doc.Content, *transformed)
		if aerr != nil {
			e.log.Warn("immediate-echo apply failed", zap.String("documentId", e.id), zap.Error(aerr))
		} else {
			echo = protocol.NewOperationImmediateMsg(*transformed, tempContent, toUser(presence))
		}
	}

	e.queue = append(e.queue, op)
	e.state = StateDirty
	e.lastActivity = time.Now()
	e.resetTimerLocked()
	e.mu.Unlock()

	e.metrics.OperationAdmitted(e.id)
	if echo != nil && e.emit != nil {
		e.emit.EmitToOthers(e.id, sessionID, echo)
	}
	return nil
}

// resetTimerLocked must be called with mu held. The timer callback uses
// a detached background context rather than the request's, since the
// request that triggered it may have disconnected long before the timer
// fires.
func (e *Engine) resetTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.cfg.DebounceDelay, func() {
		if err := e.flush(context.Background()); err != nil {
			e.log.Error("debounced flush failed", zap.String("documentId", e.id), zap.Error(err))
		}
	})
}

// ForceFlush runs the flush pipeline synchronously regardless of the
// debounce timer, as required on leave and on shutdown drain.
func (e *Engine) ForceFlush(ctx context.Context) error {
	return e.flush(ctx)
}

// Cursor updates sessionID's presence cursor and relays it to peers
// (spec.md §4.3).
func (e *Engine) Cursor(ctx context.Context, sessionID string, cursor document.Cursor) error {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return &Error{Kind: KindUnknownDocument, Message: "document not loaded"}
	}
	presence, ok := e.doc.ActiveUsers[sessionID]
	if !ok {
		e.mu.Unlock()
		return &Error{Kind: KindUnknownDocument, Message: "cursor from session not joined to this document"}
	}
	presence.Cursor = cursor
	presence.LastCursorUpdate = time.Now()
	e.doc.ActiveUsers[sessionID] = presence
	e.lastActivity = time.Now()
	e.mu.Unlock()

	if e.emit != nil {
		payload := protocol.CursorPayload{Position: cursor.Position, SelectionEnd: cursor.SelectionEnd}
		e.emit.EmitToOthers(e.id, sessionID, protocol.NewCursorUpdateMsg(toUser(presence), payload, time.Now().UnixMilli()))
	}
	return nil
}

// SetLanguage updates the document's syntax-highlighting tag
// (SPEC_FULL.md item 1, from the teacher's Kolabpad.SetLanguage).
func (e *Engine) SetLanguage(ctx context.Context, sessionID, language string) error {
	e.mu.Lock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	presence := e.doc.ActiveUsers[sessionID]
	e.doc.Metadata.Language = language
	doc := e.doc
	e.mu.Unlock()

	if err := e.store.Save(ctx, doc); err != nil {
		e.log.Warn("save after language change failed", zap.String("documentId", e.id), zap.Error(err))
	}
	if e.emit != nil {
		e.emit.EmitToAll(e.id, protocol.NewLanguageUpdateMsg(language, toUser(presence)))
	}
	return nil
}

// SetOTP changes or clears the document's access secret (SPEC_FULL.md
// item 2, from the teacher's SetOTP/secret.go).
func (e *Engine) SetOTP(ctx context.Context, sessionID string, otp *string) error {
	e.mu.Lock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	presence := e.doc.ActiveUsers[sessionID]
	e.doc.OTP = otp
	doc := e.doc
	e.mu.Unlock()

	if err := e.store.Save(ctx, doc); err != nil {
		e.log.Warn("save after otp change failed", zap.String("documentId", e.id), zap.Error(err))
	}
	if e.emit != nil {
		e.emit.EmitToAll(e.id, protocol.NewOTPUpdateMsg(otp, toUser(presence)))
	}
	return nil
}

// SetUserInfo updates sessionID's own display record post-connect
// (see DESIGN.md's internal/protocol entry; generalizes the teacher's
// Kolabpad.SetUserInfo/ClientInfo/Hue mechanism). UserID is left
// untouched: a session cannot reassign itself to a different caller
// identity mid-connection.
func (e *Engine) SetUserInfo(ctx context.Context, sessionID string, patch protocol.User) error {
	e.mu.Lock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	presence, ok := e.doc.ActiveUsers[sessionID]
	if !ok {
		e.mu.Unlock()
		return &Error{Kind: KindUnknownDocument, Message: "set-user-info from session not joined to this document"}
	}
	presence.DisplayName = patch.DisplayName
	presence.Color = patch.Color
	presence.Avatar = patch.Avatar
	e.doc.ActiveUsers[sessionID] = presence
	e.lastActivity = time.Now()
	e.mu.Unlock()

	if e.emit != nil {
		e.emit.EmitToAll(e.id, protocol.NewUserInfoUpdateMsg(toUser(presence), sessionID))
	}
	return nil
}

// Snapshot returns a read-only view for the metadata API.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return &Snapshot{
		Content:     e.doc.Content,
		Version:     e.doc.Version,
		Metadata:    e.doc.Metadata,
		ActiveUsers: activeList(e.doc.ActiveUsers),
	}, nil
}

// Stats reports the engine's operational counters (spec.md §4.3).
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return &Stats{
		Version:         e.doc.Version,
		ActiveUserCount: len(e.doc.ActiveUsers),
		TailLength:      len(e.tail),
		QueuedCount:     len(e.queue),
		Metadata:        e.doc.Metadata,
		UpdatedAt:       e.doc.Metadata.UpdatedAt,
	}, nil
}

// IdleExpired reports whether the engine has had zero sessions and no
// activity for longer than its configured idle eviction window (spec.md
// §5).
func (e *Engine) IdleExpired(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil || e.state == StateFlushing {
		return false
	}
	return len(e.doc.ActiveUsers) == 0 && now.Sub(e.lastActivity) > e.cfg.IdleEviction
}

// flush runs pipeline step 4 in full: merge, transform-against-applied,
// apply, commit, persist, and emit (spec.md §4.3).
func (e *Engine) flush(ctx context.Context) (flushErr error) {
	start := time.Now()
	e.mu.Lock()

	defer func() {
		if r := recover(); r != nil {
			// EngineFatal (spec.md §7): roll back the batch, drop the
			// queue, surface a diagnostic, keep the engine available.
			e.queue = nil
			e.state = StateIdle
			docID := e.id
			e.mu.Unlock()
			e.log.Error("engine panic during flush, batch dropped", zap.String("documentId", docID), zap.Any("recover", r))
			if e.emit != nil {
				e.emit.EmitToAll(docID, protocol.NewErrorMsg("internal error: edit batch dropped"))
			}
			flushErr = &Error{Kind: KindEngineFatal, Message: "panic during flush"}
		}
	}()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if len(e.queue) == 0 {
		e.state = StateIdle
		e.mu.Unlock()
		return nil
	}
	if err := e.ensureLoadedLocked(ctx); err != nil {
		e.mu.Unlock()
		return err
	}

	e.state = StateFlushing
	batch := e.queue
	e.queue = nil

	merged := mergeBatch(batch)

	applied := make([]ot.Op, 0, len(merged))
	text := e.doc.Content
	for _, op := range merged {
		opPrime, err := ot.TransformSequence(op, applied)
		if err != nil {
			e.log.Warn("flush transform failed, op dropped", zap.String("documentId", e.id), zap.Error(err))
			continue
		}
		if opPrime == nil {
			continue // absorbed, correct per TransformAbsorbed policy
		}
		newText, aerr := ot.Apply(text, *opPrime)
		if aerr != nil {
			e.log.Warn("flush apply failed, op dropped", zap.String("documentId", e.id), zap.Error(aerr))
			continue
		}
		text = newText
		opPrime.Applied = true
		applied = append(applied, *opPrime)
	}

	if len(applied) > 0 {
		e.doc.Content = text
		e.doc.Version++
		for i := range applied {
			applied[i].Version = e.doc.Version
		}
		e.doc.OperationsTail = append(e.doc.OperationsTail, applied...)
		if len(e.doc.OperationsTail) > e.cfg.TailSize {
			e.doc.OperationsTail = e.doc.OperationsTail[len(e.doc.OperationsTail)-e.cfg.TailSize:]
		}
		e.tail = append([]ot.Op(nil), e.doc.OperationsTail...)

		e.doc.Metadata.WordCount = document.WordCount(text)
		e.doc.Metadata.CharacterCount = len(text)
		e.doc.Metadata.UpdatedAt = time.Now()
		if last := applied[len(applied)-1].UserID; last != "" {
			e.doc.Metadata.LastModifiedBy = last
		}
		e.doc.LastSaved = time.Now()

		if err := e.store.Save(ctx, e.doc); err != nil {
			// StoreIOFailure (spec.md §7): log, keep in-memory state,
			// sync anyway; the next flush retries the save.
			e.log.Error("flush save failed", zap.String("documentId", e.id), zap.Error(err))
			e.metrics.StoreSaveFailure(e.id)
		}
	}

	e.state = StateIdle
	content, version, meta := e.doc.Content, e.doc.Version, e.doc.Metadata
	e.mu.Unlock()

	e.metrics.FlushDuration(e.id, time.Since(start))
	e.metrics.FlushBatchSize(e.id, len(applied))

	if e.emit != nil {
		e.emit.EmitToAll(e.id, protocol.NewDocumentSyncMsg(content, version, applied, meta))
	}
	if len(applied) > 0 {
		go e.audit.Record(e.id, version, applied)
	}
	return nil
}

// mergeBatch implements pipeline step 4(a)-(b): group by user, merge
// each group, flatten, then sort by (timestamp, userId).
func mergeBatch(batch []ot.Op) []ot.Op {
	groups := ot.GroupByUser(batch)
	merged := make([]ot.Op, 0, len(batch))
	for _, g := range groups {
		merged = append(merged, ot.Merge(g)...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].UserID < merged[j].UserID
	})
	return merged
}

func lastN(ops []ot.Op, n int) []ot.Op {
	if n <= 0 || len(ops) <= n {
		return append([]ot.Op(nil), ops...)
	}
	return append([]ot.Op(nil), ops[len(ops)-n:]...)
}

package accountauth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/veldtec/accountauth/crypto"
	"github.com/veldtec/accountauth/identity"
	"github.com/veldtec/accountauth/mail"
	"github.com/veldtec/accountauth/storage"
)

// Engine defines a public type used by accountauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config  Config
	store   storage.Store
	mailer  mail.Sender
	hasher  *crypto.Argon2
	google  *identity.Validator
	audit   *auditDispatcher
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time

	hooksMu sync.Mutex
	hooks   []DeletionHook
}

// Close describes the close operation and its observable behavior.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, accountID int64, email string, cause error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := newAuditEvent(eventType, success)
	event.Timestamp = e.now().UTC()
	event.AccountID = accountID
	event.Email = email
	if env, ok := requestEnvFromContext(ctx); ok {
		event.IP = env.ClientAddress
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

// logInternal records the real cause of a masked failure; the caller's
// client surface only sees the generic flow message.
func (e *Engine) logInternal(flow string, cause error) {
	e.logger.Error().Err(cause).Str("flow", flow).Msg("flow failed")
}

// Package store provides the origin-scoped durable key-value storage used
// by the pipeline for undelivered telemetry and notification history. The
// contract is deliberately forgiving: a missing or corrupt key loads as
// absent, and save failures are reportable but expected to be swallowed by
// callers whose in-memory state takes priority over durability.
package store

// Well-known keys for persisted pipeline state.
const (
	KeyTelemetry     = "pagepulse_telemetry"
	KeyNotifications = "pagepulse_notifications"
	KeySession       = "pagepulse_session"
	KeyUser          = "pagepulse_user"
)

// Store is a durable key-value store. Load returns (nil, nil) for a
// missing key; implementations must also map corrupt values to (nil, nil)
// rather than failing the caller.
type Store interface {
	Save(key string, value []byte) error
	Load(key string) ([]byte, error)
}

package classify

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Kind is the failure category a raw error maps to. It is the single
// source of truth for ignorable-vs-must-log decisions in the collector.
type Kind string

const (
	// KindRateLimited means the upstream asked us to slow down; the
	// caller suspends the sweep for a cool-down and retries the same page.
	KindRateLimited Kind = "rate_limited"
	// KindAccountPrivate means the account behind the feed turned
	// private; the feed is terminated and the entity flagged in storage.
	KindAccountPrivate Kind = "account_private"
	// KindTransientTransport covers connection resets, hang-ups,
	// address-in-use and buffer exhaustion. Expected under normal
	// operation and suppressed from the log stream.
	KindTransientTransport Kind = "transient_transport"
	// KindDuplicateKey is a unique-index violation on write. Expected
	// under upsert races and swallowed.
	KindDuplicateKey Kind = "duplicate_key"
	// KindStorageUnavailable is a storage round-trip failure; the current
	// item or entity is skipped and the sweep continues.
	KindStorageUnavailable Kind = "storage_unavailable"
	// KindNotFound is a missing remote resource.
	KindNotFound Kind = "not_found"
	// KindUnclassified is everything else; always logged with occasion
	// context, never fatal to the process.
	KindUnclassified Kind = "unclassified"
)

// Error is a classified error raised at the feed, download or storage
// boundary. Carrying the kind explicitly keeps classification away from
// string matching wherever we control the error producer.
type Error struct {
	Kind    Kind
	Message string
	Code    int // HTTP status code when relevant, otherwise 0
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCode creates a classified error carrying an HTTP status code.
func WithCode(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Message: message, Code: code}
}

// prefixTable is the fallback for errors we do not produce ourselves
// (driver errors, raw net errors). Matching is case-insensitive on the
// literal prefix of the error string.
var prefixTable = []struct {
	prefix string
	kind   Kind
}{
	{"please wait a few minutes", KindRateLimited},
	{"rate limit", KindRateLimited},
	{"too many requests", KindRateLimited},
	{"private user", KindAccountPrivate},
	{"account is private", KindAccountPrivate},
	{"unique constraint failed", KindDuplicateKey},
	{"constraint failed: unique", KindDuplicateKey},
	{"database is locked", KindStorageUnavailable},
	{"sql: database is closed", KindStorageUnavailable},
	{"read tcp", KindTransientTransport},
	{"write tcp", KindTransientTransport},
	{"dial tcp", KindTransientTransport},
	{"socket hang up", KindTransientTransport},
	{"unexpected eof", KindTransientTransport},
}

// Classify maps a raw failure to its Kind. Structured errors are
// inspected first, then well-known syscall sentinels, then the prefix
// table. A nil error classifies as KindUnclassified; callers are
// expected to pass real failures.
func Classify(err error) Kind {
	if err == nil {
		return KindUnclassified
	}

	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET,
		syscall.EPIPE,
		syscall.EADDRINUSE,
		syscall.ENOBUFS,
	} {
		if errors.Is(err, errno) {
			return KindTransientTransport
		}
	}

	msg := strings.ToLower(err.Error())
	for _, entry := range prefixTable {
		if strings.HasPrefix(msg, entry.prefix) {
			return entry.kind
		}
	}

	return KindUnclassified
}

// Ignorable reports whether a failure of this kind is suppressed from
// the log stream during feed iteration.
func Ignorable(kind Kind) bool {
	return kind == KindTransientTransport || kind == KindDuplicateKey
}

// IgnorableDownload reports whether a media download failure is expected
// and silent: redirected, vanished or gateway-failed files plus the
// transient transport set, including timeouts.
func IgnorableDownload(err error) bool {
	if err == nil {
		return false
	}

	var cerr *Error
	if errors.As(err, &cerr) {
		switch cerr.Code {
		case 302, 404, 502:
			return true
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	return Classify(err) == KindTransientTransport
}

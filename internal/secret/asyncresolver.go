package secret

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// cancelPollInterval is how often a supervising goroutine re-checks a
// cancellation token while racing the real resolution.
const cancelPollInterval = 10 * time.Millisecond

// CancellationToken is a shared cancellation flag. Copies share the
// same state: cancelling any copy makes IsCancelled true on all of
// them. Cancellation is cooperative — an in-flight resolution is not
// forcibly aborted and its side effects (e.g. a completed store) stand
// even when the caller observes Cancelled.
type CancellationToken struct {
	cancelled *atomic.Bool
}

// NewCancellationToken creates a fresh, uncancelled token.
func NewCancellationToken() CancellationToken {
	return CancellationToken{cancelled: new(atomic.Bool)}
}

// Cancel requests cancellation on every copy of this token.
func (t CancellationToken) Cancel() {
	if t.cancelled != nil {
		t.cancelled.Store(true)
	}
}

// IsCancelled reports whether any copy has been cancelled.
func (t CancellationToken) IsCancelled() bool {
	return t.cancelled != nil && t.cancelled.Load()
}

// Reset clears the cancellation state so the token can be reused.
func (t CancellationToken) Reset() {
	if t.cancelled != nil {
		t.cancelled.Store(false)
	}
}

// resultKind tags an AsyncCredentialResult variant.
type resultKind int

const (
	resultSuccess resultKind = iota
	resultCancelled
	resultError
	resultTimeout
)

// AsyncCredentialResult is the outcome of an async resolution: resolved
// credentials (possibly none), cancellation, timeout, or an error.
// Cancellation and timeout are expected interruptions, not failures,
// so they are variants here rather than errors.
type AsyncCredentialResult struct {
	kind   resultKind
	creds  *Credentials
	errMsg string
}

// SuccessResult wraps resolved credentials; creds may be nil when the
// resolution completed but found nothing.
func SuccessResult(creds *Credentials) AsyncCredentialResult {
	return AsyncCredentialResult{kind: resultSuccess, creds: creds}
}

// CancelledResult marks an observation of cancellation.
func CancelledResult() AsyncCredentialResult {
	return AsyncCredentialResult{kind: resultCancelled}
}

// ErrorResult wraps a resolution failure message.
func ErrorResult(msg string) AsyncCredentialResult {
	return AsyncCredentialResult{kind: resultError, errMsg: msg}
}

// TimeoutResult marks a deadline elapsing before the resolution finished.
func TimeoutResult() AsyncCredentialResult {
	return AsyncCredentialResult{kind: resultTimeout}
}

// IsSuccess reports whether the resolution completed.
func (r AsyncCredentialResult) IsSuccess() bool { return r.kind == resultSuccess }

// IsCancelled reports whether the operation was cancelled.
func (r AsyncCredentialResult) IsCancelled() bool { return r.kind == resultCancelled }

// IsError reports whether the resolution failed.
func (r AsyncCredentialResult) IsError() bool { return r.kind == resultError }

// IsTimeout reports whether the operation timed out.
func (r AsyncCredentialResult) IsTimeout() bool { return r.kind == resultTimeout }

// Credentials returns the resolved credentials for a success, nil
// otherwise.
func (r AsyncCredentialResult) Credentials() *Credentials {
	if r.kind != resultSuccess {
		return nil
	}
	return r.creds
}

// ErrorMessage returns the failure message for an error result.
func (r AsyncCredentialResult) ErrorMessage() string {
	if r.kind != resultError {
		return ""
	}
	return r.errMsg
}

// AsyncCredentialResolver wraps the synchronous resolver with
// cancellation- and timeout-bound variants so a UI thread never blocks
// on backend subprocesses.
type AsyncCredentialResolver struct {
	resolver *Resolver
}

// NewAsyncCredentialResolver creates an async resolver over the given
// manager.
func NewAsyncCredentialResolver(manager *Manager) *AsyncCredentialResolver {
	return &AsyncCredentialResolver{resolver: NewResolver(manager)}
}

// Resolver returns the underlying synchronous resolver.
func (a *AsyncCredentialResolver) Resolver() *Resolver {
	return a.resolver
}

// ResolveAsync resolves without cancellation or timeout, mapping any
// error into an Error result.
func (a *AsyncCredentialResolver) ResolveAsync(ctx context.Context, conn *Connection) AsyncCredentialResult {
	slog.Debug("starting credential resolution", "connection_id", conn.ID, "connection_name", conn.Name)

	creds, err := a.resolver.Resolve(ctx, conn)
	if err != nil {
		slog.Warn("credential resolution failed", "connection_id", conn.ID, "error", err)
		return ErrorResult(err.Error())
	}
	return SuccessResult(creds)
}

// start launches the resolution in the background. The buffered channel
// lets the goroutine finish even when the caller stopped listening, so
// an abandoned resolution still runs to completion with its side
// effects intact.
func (a *AsyncCredentialResolver) start(ctx context.Context, conn *Connection) <-chan AsyncCredentialResult {
	done := make(chan AsyncCredentialResult, 1)
	go func() {
		done <- a.ResolveAsync(ctx, conn)
	}()
	return done
}

// ResolveWithCancellation races the resolution against polls of the
// token. Cancellation observed before the start or after the underlying
// call completes discards the result and returns Cancelled; a store
// that already happened is not undone.
func (a *AsyncCredentialResolver) ResolveWithCancellation(ctx context.Context, conn *Connection, token CancellationToken) AsyncCredentialResult {
	if token.IsCancelled() {
		return CancelledResult()
	}

	done := a.start(ctx, conn)
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case result := <-done:
			if token.IsCancelled() {
				return CancelledResult()
			}
			return result
		case <-ticker.C:
			if token.IsCancelled() {
				return CancelledResult()
			}
		}
	}
}

// ResolveWithTimeout races the resolution against a deadline. An
// elapsed deadline yields Timeout, distinct from Cancelled; the
// underlying operation is abandoned, not aborted.
func (a *AsyncCredentialResolver) ResolveWithTimeout(ctx context.Context, conn *Connection, timeout time.Duration) AsyncCredentialResult {
	done := a.start(ctx, conn)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-done:
		return result
	case <-timer.C:
		slog.Warn("credential resolution timed out", "connection_id", conn.ID, "timeout", timeout)
		return TimeoutResult()
	}
}

// ResolveWithCancellationAndTimeout combines both races. The token is
// checked first as a fast path.
func (a *AsyncCredentialResolver) ResolveWithCancellationAndTimeout(ctx context.Context, conn *Connection, token CancellationToken, timeout time.Duration) AsyncCredentialResult {
	if token.IsCancelled() {
		return CancelledResult()
	}

	done := a.start(ctx, conn)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case result := <-done:
			if token.IsCancelled() {
				return CancelledResult()
			}
			return result
		case <-timer.C:
			slog.Warn("credential resolution timed out", "connection_id", conn.ID, "timeout", timeout)
			return TimeoutResult()
		case <-ticker.C:
			if token.IsCancelled() {
				return CancelledResult()
			}
		}
	}
}

// PendingResolution is the handle for a detached resolution: await the
// one-shot result or cancel it.
type PendingResolution struct {
	result <-chan AsyncCredentialResult
	token  CancellationToken
}

// Cancel requests cancellation of the pending resolution.
func (p *PendingResolution) Cancel() {
	p.token.Cancel()
}

// IsCancelled reports whether the resolution has been cancelled.
func (p *PendingResolution) IsCancelled() bool {
	return p.token.IsCancelled()
}

// Token returns the cancellation token for this resolution.
func (p *PendingResolution) Token() CancellationToken {
	return p.token
}

// Await blocks until the result arrives. Delivery is exactly once.
func (p *PendingResolution) Await() AsyncCredentialResult {
	return <-p.result
}

// SpawnResolution starts a detached resolution and returns its handle
// immediately. A zero timeout means no deadline.
func SpawnResolution(ctx context.Context, resolver *AsyncCredentialResolver, conn Connection, timeout time.Duration) *PendingResolution {
	result := make(chan AsyncCredentialResult, 1)
	token := NewCancellationToken()

	go func() {
		if timeout > 0 {
			result <- resolver.ResolveWithCancellationAndTimeout(ctx, &conn, token, timeout)
		} else {
			result <- resolver.ResolveWithCancellation(ctx, &conn, token)
		}
	}()

	return &PendingResolution{result: result, token: token}
}

// ResolveWithCallback starts a detached resolution and invokes callback
// exactly once with the result. The returned token cancels it.
func ResolveWithCallback(ctx context.Context, resolver *AsyncCredentialResolver, conn Connection, callback func(AsyncCredentialResult)) CancellationToken {
	token := NewCancellationToken()

	go func() {
		callback(resolver.ResolveWithCancellation(ctx, &conn, token))
	}()

	return token
}

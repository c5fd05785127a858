// Package relayerr defines the enumerated error kinds shared across the
// relay's components. Callers compare with errors.Is; causes are attached
// with fmt.Errorf("...: %w", cause).
package relayerr

import "errors"

var (
	// ErrAuth indicates the upstream challenge/response handshake failed
	// after exhausting retries.
	ErrAuth = errors.New("upstream authentication failed")

	// ErrLogin indicates the optional premium account login failed. Callers
	// may continue in non-premium mode.
	ErrLogin = errors.New("premium login failed")

	// ErrUpstream indicates a transient upstream fetch failure. Callers may
	// retry.
	ErrUpstream = errors.New("upstream request failed")

	// ErrNotFound indicates an unknown station id or no program at the
	// requested instant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates a malformed query parameter.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidInterval indicates a program interval with to <= ft or a
	// span exceeding 24 hours.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrResolvePlaylist indicates no playable URL was found in the
	// upstream's top-level playlist after retries.
	ErrResolvePlaylist = errors.New("could not resolve playlist")

	// ErrSpawn indicates the external transcoder could not be launched.
	ErrSpawn = errors.New("could not start transcoder")

	// ErrPortInUse indicates the HTTP listener could not bind.
	ErrPortInUse = errors.New("port already in use")

	// ErrShutdown indicates an operation was cancelled by server shutdown.
	ErrShutdown = errors.New("cancelled by shutdown")
)

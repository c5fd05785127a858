// Package upstreamauth implements the two-stage challenge/response handshake
// against the upstream live-radio service, plus optional premium account
// login. It exposes a small state machine (Uninitialized -> Handshaking ->
// Ready -> Refreshing -> Ready|Failed) and coalesces concurrent refreshes so
// that at most one handshake is in flight at a time.
package upstreamauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arung-agamani/denpa-radio/internal/relayerr"
)

// MaxRetries bounds the number of full re-handshakes attempted before a
// stage-1/stage-2 failure is surfaced as ErrAuth.
const MaxRetries = 2

// authKey is the fixed literal the upstream's partial-key challenge is
// computed against. It ships with the code, same as the upstream's own
// player bundle.
const authKey = "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0"

const (
	loginURL        = "https://radiko.jp/ap/member/webapi/member/login"
	checkURL        = "https://radiko.jp/ap/member/webapi/member/check"
	auth1URL        = "https://radiko.jp/v2/api/auth1"
	auth2URL        = "https://radiko.jp/v2/api/auth2"
	playLiveTpl     = "https://f-radiko.smartstream.ne.jp/%s/_definst_/simul-stream.stream/playlist.m3u8"
	playTimefreeTpl = "https://radiko.jp/v2/api/ts/playlist.m3u8?station_id=%s&l=15&ft=%s&to=%s"
)

type state int

const (
	stateUninitialized state = iota
	stateHandshaking
	stateReady
	stateRefreshing
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateHandshaking:
		return "handshaking"
	case stateReady:
		return "ready"
	case stateRefreshing:
		return "refreshing"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config configures the upstream auth client.
type Config struct {
	// HTTPTimeout bounds each individual upstream call.
	HTTPTimeout time.Duration

	// PremiumMail and PremiumPass, if both set, trigger an optional login
	// before the token handshake.
	PremiumMail string
	PremiumPass string
}

// Snapshot is a read-only view of the current auth session, safe to hold
// after the call that produced it — it is never mutated in place.
type Snapshot struct {
	Token      string
	AreaID     string
	Premium    bool
	AreaFree   bool
	AcquiredAt time.Time
}

// Client owns the upstream auth session. All fields besides the embedded
// http.Client and singleflight.Group are guarded by mu.
type Client struct {
	cfg  Config
	http *http.Client
	sf   singleflight.Group

	mu      sync.Mutex
	state   state
	session Snapshot
}

// New constructs a Client. The plaintext premium password is retained only
// for the duration of the login call; it is never logged.
func New(cfg Config) *Client {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.HTTPTimeout,
		},
		state: stateUninitialized,
	}
}

// Init performs the optional premium login (if credentials are configured)
// followed by a guaranteed token handshake. A login failure surfaces
// ErrLogin but does not prevent falling back to non-premium token
// acquisition; a handshake failure after retries surfaces ErrAuth and the
// client state becomes Failed.
func (c *Client) Init(ctx context.Context) error {
	var loginErr error
	premium := false

	if c.cfg.PremiumMail != "" && c.cfg.PremiumPass != "" {
		premium, loginErr = c.login(ctx)
		if loginErr != nil {
			slog.Warn("premium login failed, continuing in non-premium mode", "error", loginErr)
		}
	}

	snap, err := c.handshake(ctx, premium)
	if err != nil {
		c.mu.Lock()
		c.state = stateFailed
		c.mu.Unlock()
		if loginErr != nil {
			return errors.Join(err, loginErr)
		}
		return err
	}

	c.mu.Lock()
	c.state = stateReady
	c.session = snap
	c.mu.Unlock()

	if loginErr != nil {
		return fmt.Errorf("%w", relayerr.ErrLogin)
	}
	return nil
}

// Token returns a snapshot of the current session. It never blocks.
func (c *Client) Token() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// PremiumActive reports whether the current session carries cross-area
// privileges.
func (c *Client) PremiumActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Premium
}

// Refresh forces a new token handshake. Concurrent callers are coalesced so
// that at most one handshake is in flight; all waiters observe the same
// resulting token or the same resulting error.
func (c *Client) Refresh(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	premium := c.session.Premium
	c.state = stateRefreshing
	c.mu.Unlock()

	v, err, _ := c.sf.Do("refresh", func() (interface{}, error) {
		return c.handshake(ctx, premium)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = stateFailed
		return Snapshot{}, err
	}
	snap := v.(Snapshot)
	c.session = snap
	c.state = stateReady
	return snap, nil
}

// PlayLiveURL returns the templated live top-level playlist URL for a
// station.
func PlayLiveURL(stationID string) string {
	return fmt.Sprintf(playLiveTpl, stationID)
}

// PlayTimefreeURL returns the templated time-shift top-level playlist URL.
// ft and to are 14-digit wall-clock strings.
func PlayTimefreeURL(stationID, ft, to string) string {
	return fmt.Sprintf(playTimefreeTpl, stationID, ft, to)
}

func (c *Client) login(ctx context.Context) (bool, error) {
	form := url.Values{
		"mail": {c.cfg.PremiumMail},
		"pass": {c.cfg.PremiumPass},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("%w: building login request: %v", relayerr.ErrLogin, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.noRedirectClient().Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", relayerr.ErrLogin, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return false, fmt.Errorf("%w: login returned status %d", relayerr.ErrLogin, resp.StatusCode)
	}

	return c.checkPremium(ctx)
}

// noRedirectClient shares the cookie jar but does not follow redirects, so a
// 302 on login can be observed directly rather than silently chased.
func (c *Client) noRedirectClient() *http.Client {
	return &http.Client{
		Jar:     c.http.Jar,
		Timeout: c.http.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (c *Client) checkPremium(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return false, fmt.Errorf("%w: building check request: %v", relayerr.ErrLogin, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", relayerr.ErrLogin, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: member check returned status %d", relayerr.ErrLogin, resp.StatusCode)
	}
	// The member-check body is a small status document; its exact schema is
	// outside this spec's scope beyond "premium state granted". A 200 here
	// after a successful login is taken as premium-active.
	io.Copy(io.Discard, resp.Body)
	return true, nil
}

func (c *Client) handshake(ctx context.Context, premium bool) (Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		snap, err := c.handshakeOnce(ctx, premium)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		slog.Warn("upstream auth handshake attempt failed", "attempt", attempt, "error", err)
	}
	return Snapshot{}, fmt.Errorf("%w: %v", relayerr.ErrAuth, lastErr)
}

func (c *Client) handshakeOnce(ctx context.Context, premium bool) (Snapshot, error) {
	authToken, offset, length, err := c.auth1(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	partialKey, err := partialKey(offset, length)
	if err != nil {
		return Snapshot{}, err
	}

	areaID, err := c.auth2(ctx, authToken, partialKey)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Token:      authToken,
		AreaID:     areaID,
		Premium:    premium,
		AcquiredAt: time.Now(),
	}, nil
}

func (c *Client) auth1(ctx context.Context) (token string, offset, length int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, auth1URL, nil)
	if err != nil {
		return "", 0, 0, err
	}
	setDeviceHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("auth1 returned status %d", resp.StatusCode)
	}

	token = resp.Header.Get("x-radiko-authtoken")
	offsetStr := resp.Header.Get("x-radiko-keyoffset")
	lengthStr := resp.Header.Get("x-radiko-keylength")
	if token == "" || offsetStr == "" || lengthStr == "" {
		return "", 0, 0, errors.New("auth1 response missing required headers")
	}

	offset, err = strconv.Atoi(offsetStr)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid key offset %q: %w", offsetStr, err)
	}
	length, err = strconv.Atoi(lengthStr)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid key length %q: %w", lengthStr, err)
	}

	return token, offset, length, nil
}

func (c *Client) auth2(ctx context.Context, authToken, partialKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, auth2URL, nil)
	if err != nil {
		return "", err
	}
	setDeviceHeaders(req)
	req.Header.Set("X-Radiko-AuthToken", authToken)
	req.Header.Set("X-Radiko-Partialkey", partialKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth2 returned status %d", resp.StatusCode)
	}

	fields := strings.Split(strings.TrimSpace(string(body)), ",")
	if len(fields) == 0 || fields[0] == "" {
		return "", errors.New("auth2 response missing area id")
	}
	return fields[0], nil
}

func setDeviceHeaders(req *http.Request) {
	req.Header.Set("X-Radiko-App", "pc_html5")
	req.Header.Set("X-Radiko-App-Version", "0.0.1")
	req.Header.Set("X-Radiko-User", "dummy_user")
	req.Header.Set("X-Radiko-Device", "pc")
}

func partialKey(offset, length int) (string, error) {
	if offset < 0 || length < 0 || offset+length > len(authKey) {
		return "", fmt.Errorf("%w: key offset/length out of range (offset=%d length=%d)", relayerr.ErrAuth, offset, length)
	}
	return base64.StdEncoding.EncodeToString([]byte(authKey[offset : offset+length])), nil
}

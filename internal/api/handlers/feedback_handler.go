package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/feedbackhub/internal/application/services"
	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
)

const (
	feedbackRateLimit  = 5
	feedbackRateWindow = time.Hour

	maxMessageLength = 5000
	maxNameLength    = 200
	maxEmailLength   = 320

	apiKeyHeader = "X-API-Key"
)

// FeedbackSubmitter stores a submission for an optional project.
type FeedbackSubmitter interface {
	Submit(ctx context.Context, project *entities.Project, input services.SubmitFeedbackInput) (*entities.Feedback, error)
}

// APIKeyResolver maps an ingestion API key to its active project.
type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, apiKey string) (*entities.Project, error)
}

// IngestionProtection configures abuse controls on the ingestion endpoint.
type IngestionProtection struct {
	// DedupWindow drops byte-identical resubmissions from the same client
	// for this long. Zero disables duplicate suppression.
	DedupWindow time.Duration
	// TrustedProxies lists the IPs or CIDR ranges whose X-Forwarded-For and
	// X-Real-IP headers are believed. Other peers are identified by their
	// socket address.
	TrustedProxies []string
}

// FeedbackHandler handles feedback submissions.
type FeedbackHandler struct {
	service     FeedbackSubmitter
	projects    APIKeyResolver
	cache       providers.CacheProvider
	local       *localRateLimiter
	deduper     *localDeduper
	dedupWindow time.Duration
	trusted     []netip.Prefix
}

// NewFeedbackHandler creates a new feedback handler. cache may be nil, in
// which case rate limiting and duplicate suppression are kept in process.
func NewFeedbackHandler(service FeedbackSubmitter, projects APIKeyResolver, cache providers.CacheProvider, protection IngestionProtection) *FeedbackHandler {
	trusted, err := ParseTrustedProxies(protection.TrustedProxies)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring invalid trusted proxy entries")
	}
	return &FeedbackHandler{
		service:     service,
		projects:    projects,
		cache:       cache,
		local:       newLocalRateLimiter(),
		deduper:     newLocalDeduper(),
		dedupWindow: protection.DedupWindow,
		trusted:     trusted,
	}
}

// ParseTrustedProxies parses IPs and CIDR ranges. Valid entries are returned
// even when others fail to parse.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	var invalid []string
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				invalid = append(invalid, entry)
				continue
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			invalid = append(invalid, entry)
			continue
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	if len(invalid) > 0 {
		return prefixes, fmt.Errorf("invalid trusted proxies: %s", strings.Join(invalid, ", "))
	}
	return prefixes, nil
}

type feedbackRequest struct {
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Message  string            `json:"message"`
	Rating   *int              `json:"rating"`
	Metadata entities.Metadata `json:"metadata"`
}

// SubmitFeedback handles POST /api/feedback
func (h *FeedbackHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var payload feedbackRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		respondWithAppError(w, r, err, "invalid request payload")
		return
	}

	if len(payload.Message) > maxMessageLength {
		respondWithError(w, http.StatusBadRequest, "message is too long")
		return
	}
	if len(payload.Name) > maxNameLength {
		respondWithError(w, http.StatusBadRequest, "name is too long")
		return
	}
	if len(payload.Email) > maxEmailLength {
		respondWithError(w, http.StatusBadRequest, "email is too long")
		return
	}

	input := services.SubmitFeedbackInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Message:  payload.Message,
		Rating:   payload.Rating,
		Metadata: payload.Metadata,
	}
	// Rejected requests must not use up the client's rate budget
	if err := services.ValidateSubmission(input); err != nil {
		respondWithAppError(w, r, err, "invalid feedback")
		return
	}

	var project *entities.Project
	if apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader)); apiKey != "" {
		resolved, err := h.projects.ResolveAPIKey(r.Context(), apiKey)
		if err != nil {
			respondWithAppError(w, r, err, "failed to resolve API key")
			return
		}
		project = resolved
	}

	ip := h.clientIP(r)
	allowed, retryAfter := h.allowRequest(r.Context(), "feedback:rate:"+ip)
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	dupKey := ""
	if h.dedupWindow > 0 {
		dupKey = "feedback:dup:" + feedbackFingerprint(payload, project, ip)
		if !h.claim(r.Context(), dupKey) {
			respondWithJSON(w, http.StatusAccepted, map[string]string{
				"status": "duplicate_ignored",
			})
			return
		}
	}

	feedback, err := h.service.Submit(r.Context(), project, input)
	if err != nil {
		if dupKey != "" {
			h.release(r.Context(), dupKey)
		}
		respondWithAppError(w, r, err, "failed to submit feedback")
		return
	}

	respondWithJSON(w, http.StatusCreated, feedback)
}

func (h *FeedbackHandler) allowRequest(ctx context.Context, key string) (bool, time.Duration) {
	if h.cache == nil {
		return h.local.allow(key, feedbackRateLimit, feedbackRateWindow)
	}

	count, err := h.cache.Incr(ctx, key, int(feedbackRateWindow.Seconds()))
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("rate limit cache unavailable, using local limiter")
		return h.local.allow(key, feedbackRateLimit, feedbackRateWindow)
	}
	if count > feedbackRateLimit {
		return false, feedbackRateWindow
	}
	return true, feedbackRateWindow
}

// claim reports whether this is the first submission with key inside the
// dedup window and reserves it.
func (h *FeedbackHandler) claim(ctx context.Context, key string) bool {
	if h.cache == nil {
		return !h.deduper.seen(key, h.dedupWindow)
	}

	stored, err := h.cache.SetNX(ctx, key, []byte("1"), max(int(h.dedupWindow.Seconds()), 1))
	if err != nil {
		return !h.deduper.seen(key, h.dedupWindow)
	}
	return stored
}

// release frees a claim whose submission was not stored so the client can
// retry.
func (h *FeedbackHandler) release(ctx context.Context, key string) {
	h.deduper.forget(key)
	if h.cache != nil {
		_ = h.cache.Delete(ctx, key)
	}
}

type localRateLimiter struct {
	mu     sync.Mutex
	states map[string]*localRateState
}

type localRateState struct {
	count   int
	resetAt time.Time
}

func newLocalRateLimiter() *localRateLimiter {
	return &localRateLimiter{
		states: make(map[string]*localRateState),
	}
}

func (l *localRateLimiter) allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[key]
	if !ok || now.After(state.resetAt) {
		state = &localRateState{count: 0, resetAt: now.Add(window)}
		l.states[key] = state
	}

	if state.count >= limit {
		retryAfter := time.Until(state.resetAt)
		if retryAfter < 0 {
			retryAfter = window
		}
		return false, retryAfter
	}

	state.count++
	return true, window
}

type localDeduper struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newLocalDeduper() *localDeduper {
	return &localDeduper{
		entries: make(map[string]time.Time),
	}
}

func (d *localDeduper) seen(key string, window time.Duration) bool {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if expiresAt, ok := d.entries[key]; ok && now.Before(expiresAt) {
		return true
	}

	d.entries[key] = now.Add(window)
	return false
}

func (d *localDeduper) forget(key string) {
	d.mu.Lock()
	delete(d.entries, key)
	d.mu.Unlock()
}

// clientIP returns the peer address, or the client named by forwarding
// headers when the peer is a trusted proxy. X-Forwarded-For is read right to
// left and the first hop outside the trusted ranges wins.
func (h *FeedbackHandler) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !h.isTrusted(peer) {
		return host
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !h.isTrusted(hop) || i == 0 {
				return hop.Unmap().String()
			}
		}
	}
	if realIP, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return realIP.Unmap().String()
	}
	return host
}

func (h *FeedbackHandler) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range h.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// feedbackFingerprint identifies a byte-identical resubmission from the same
// client to the same project.
func feedbackFingerprint(payload feedbackRequest, project *entities.Project, ip string) string {
	rating := ""
	if payload.Rating != nil {
		rating = strconv.Itoa(*payload.Rating)
	}
	projectID := ""
	if project != nil {
		projectID = project.ID
	}

	parts := []string{
		projectID,
		rating,
		payload.Message,
		payload.Name,
		payload.Email,
		ip,
	}

	hash := sha256.New()
	for _, part := range parts {
		// length prefixes keep field boundaries unambiguous
		fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/mkarpis/chatdb/internal/logging"
)

const (
	healthAttempts    = 60
	healthInterval    = 2 * time.Second
	connectRetryPause = 5 * time.Second
	pollPause         = 500 * time.Millisecond

	// Chance per iteration that a simulated user abandons its current
	// conversation and starts a new one.
	rotateConversationChance = 0.1
	// Chance per iteration that a simulated user lists its conversations.
	listConversationsChance = 0.2
)

var errUnhealthy = errors.New("app not healthy yet")

// Harness owns the client and fans the configured workload out into
// user simulators, an optional broadcaster and optional long-pollers.
// Request failures are logged and retried; only startup failure or
// context cancellation stops a run.
type Harness struct {
	cfg    *Config
	client *Client
	logger logging.Logger

	// Health-wait cadence, adjustable in tests.
	healthEvery  time.Duration
	healthBudget uint64
}

func NewHarness(cfg *Config, logger logging.Logger) *Harness {
	return &Harness{
		cfg:          cfg,
		client:       NewClient(cfg.AppURL),
		logger:       logger.With("module", "loadgen"),
		healthEvery:  healthInterval,
		healthBudget: healthAttempts,
	}
}

func (h *Harness) Run(ctx context.Context) error {

	mode := "normal"
	if h.cfg.BurstMode {
		mode = "burst"
	}
	h.logger.Info(ctx, "load generator starting",
		"users", h.cfg.NumUsers,
		"request_delay", h.cfg.RequestDelay,
		"stream_ratio", h.cfg.StreamRatio,
		"read_ratio", h.cfg.ReadRatio,
		"mode", mode,
		"multi_user", h.cfg.MultiUserCount,
	)

	if err := h.waitForHealthy(ctx); err != nil {
		return err
	}

	assigned := h.assignedUserIDs()

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < h.cfg.NumUsers; i++ {
		if h.cfg.BurstMode {
			g.Go(func() error { return h.simulateBurstUser(ctx, i) })
		} else {
			g.Go(func() error { return h.simulateUser(ctx, i, assigned) })
		}
	}

	if h.cfg.BroadcastEnabled {
		g.Go(func() error { return h.broadcastLoop(ctx) })
	}

	if h.cfg.PollEnabled && len(assigned) > 0 {
		pollers := int(float64(len(assigned)) * h.cfg.PollRatio)
		if pollers < 1 {
			pollers = 1
		}
		for i := 0; i < pollers; i++ {
			uid := assigned[i%len(assigned)]
			g.Go(func() error { return h.pollLoop(ctx, i, uid) })
		}
	}

	return g.Wait()
}

// waitForHealthy blocks until /health answers 200. A server that never
// comes up is fatal; nothing else in a run is.
func (h *Harness) waitForHealthy(ctx context.Context) error {
	attempt := 0
	b := retry.WithMaxRetries(h.healthBudget, retry.NewConstant(h.healthEvery))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		status, err := h.client.Health(ctx)
		if err == nil && status == http.StatusOK {
			h.logger.Info(ctx, "app is healthy")
			return nil
		}
		h.logger.Info(ctx, "waiting for app", "attempt", attempt)
		return retry.RetryableError(errUnhealthy)
	})
}

// assignedUserIDs lists the deterministic user ids the server seeds for
// multi-user runs. Index i maps to 00000000-0000-4000-9000-<i padded>.
func (h *Harness) assignedUserIDs() []string {
	if h.cfg.MultiUserCount <= 1 {
		return nil
	}
	ids := make([]string, 0, h.cfg.MultiUserCount)
	for i := 0; i < h.cfg.MultiUserCount; i++ {
		ids = append(ids, fmt.Sprintf("00000000-0000-4000-9000-%012d", i))
	}
	return ids
}

// startDelay staggers worker starts across the ramp-up window.
func (h *Harness) startDelay(id int) time.Duration {
	return time.Duration(float64(id) / float64(max(h.cfg.NumUsers, 1)) * float64(h.cfg.RampUp))
}

// jitter spreads a delay uniformly over [0.5d, 1.5d] so workers drift
// apart instead of thundering together.
func jitter(d time.Duration) time.Duration {
	return time.Duration((0.5 + rand.Float64()) * float64(d))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func pickMessage() (string, int) {
	message := sampleMessages[rand.Intn(len(sampleMessages))]
	// Rough token estimate.
	return message, len(strings.Fields(message)) * 2
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// simulateUser runs one chat user: mostly writes into a conversation it
// rotates now and then, with reads, searches and notification checks
// mixed in per the configured ratios.
func (h *Harness) simulateUser(ctx context.Context, id int, assigned []string) error {
	if err := sleep(ctx, h.startDelay(id)); err != nil {
		return err
	}

	h.logger.Info(ctx, "user starting", "user", id)

	notifUser := ""
	if len(assigned) > 0 {
		notifUser = assigned[id%len(assigned)]
	}

	conversationID := ""
	for {
		if conversationID == "" || rand.Float64() < rotateConversationChance {
			convID, status, err := h.client.CreateConversation(ctx, fmt.Sprintf("User %d conversation", id))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				h.logger.Warn(ctx, "connection error, retrying", "user", id, "error", err)
				if err := sleep(ctx, connectRetryPause); err != nil {
					return err
				}
				continue
			}
			if status != http.StatusOK {
				h.logger.Warn(ctx, "failed to create conversation", "user", id, "status", status)
				if err := sleep(ctx, h.cfg.RequestDelay); err != nil {
					return err
				}
				continue
			}
			conversationID = convID
			h.logger.Info(ctx, "created conversation", "user", id, "conversation", shortID(conversationID))
		}

		message, tokenCount := pickMessage()

		if rand.Float64() < h.cfg.StreamRatio {
			start := time.Now()
			status, err := h.client.StreamMessage(ctx, conversationID, message, tokenCount)
			h.observe(ctx, id, "stream", status, time.Since(start), err)
		} else {
			start := time.Now()
			status, err := h.client.AddMessage(ctx, conversationID, message, tokenCount)
			h.observe(ctx, id, "message", status, time.Since(start), err)
		}

		if rand.Float64() < listConversationsChance {
			_, _ = h.client.ListConversations(ctx)
		}

		if rand.Float64() < h.cfg.ReadRatio && conversationID != "" {
			_, _ = h.client.GetMessages(ctx, conversationID)
		}

		if h.cfg.SearchEnabled && rand.Float64() < h.cfg.SearchRatio {
			term := searchTerms[rand.Intn(len(searchTerms))]
			matches, status, err := h.client.SearchMessages(ctx, term)
			switch {
			case err != nil:
				h.logger.Warn(ctx, "search error", "user", id, "term", term, "error", err)
			case status == http.StatusOK:
				h.logger.Info(ctx, "search done", "user", id, "term", term, "results", matches)
			default:
				h.logger.Warn(ctx, "search failed", "user", id, "term", term, "status", status)
			}
		}

		if notifUser != "" && rand.Float64() < h.cfg.UnreadCheckRatio {
			count, status, err := h.client.UnreadCount(ctx, notifUser)
			if err == nil && status == http.StatusOK {
				h.logger.Info(ctx, "unread count", "user", id, "count", count)
			}
		}

		if notifUser != "" && rand.Float64() < h.cfg.MarkReadRatio {
			marked, status, err := h.client.MarkAllRead(ctx, notifUser)
			if err == nil && status == http.StatusOK {
				h.logger.Info(ctx, "marked read", "user", id, "marked", marked)
			}
		}

		if notifUser != "" && rand.Float64() < h.cfg.ListNotifsRatio {
			start := time.Now()
			count, status, err := h.client.ListNotifications(ctx, notifUser)
			switch {
			case err != nil:
				h.logger.Warn(ctx, "list notifications error", "user", id, "error", err)
			case status == http.StatusOK:
				h.logger.Info(ctx, "listed notifications", "user", id, "count", count,
					"elapsed", time.Since(start).Round(100*time.Millisecond))
			default:
				h.logger.Warn(ctx, "list notifications failed", "user", id, "status", status)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sleep(ctx, jitter(h.cfg.RequestDelay)); err != nil {
			return err
		}
	}
}

// observe logs the outcome of a timed write.
func (h *Harness) observe(ctx context.Context, id int, op string, status int, elapsed time.Duration, err error) {
	elapsed = elapsed.Round(100 * time.Millisecond)
	switch {
	case err != nil && ctx.Err() == nil:
		h.logger.Warn(ctx, op+" error", "user", id, "elapsed", elapsed, "error", err)
	case err != nil:
		// Shutting down; the caller exits on the next sleep.
	case status == http.StatusOK:
		h.logger.Info(ctx, op+" sent", "user", id, "elapsed", elapsed)
	default:
		h.logger.Warn(ctx, op+" failed", "user", id, "status", status, "elapsed", elapsed)
	}
}

// simulateBurstUser creates a fresh conversation per round and fires
// BurstConcurrency parallel message writes into it, all of which
// read-modify-write the same owner's token counter.
func (h *Harness) simulateBurstUser(ctx context.Context, id int) error {
	if err := sleep(ctx, h.startDelay(id)); err != nil {
		return err
	}

	h.logger.Info(ctx, "burst user starting", "user", id, "concurrency", h.cfg.BurstConcurrency)

	for {
		convID, status, err := h.client.CreateConversation(ctx, fmt.Sprintf("Burst user %d conversation", id))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.logger.Warn(ctx, "connection error, retrying", "user", id, "error", err)
			if err := sleep(ctx, connectRetryPause); err != nil {
				return err
			}
			continue
		}
		if status != http.StatusOK {
			h.logger.Warn(ctx, "failed to create conversation", "user", id, "status", status)
			if err := sleep(ctx, h.cfg.RequestDelay); err != nil {
				return err
			}
			continue
		}

		var wg sync.WaitGroup
		for i := 0; i < h.cfg.BurstConcurrency; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				message, tokenCount := pickMessage()
				start := time.Now()
				status, err := h.client.AddMessage(ctx, convID, message, tokenCount)
				h.observe(ctx, id, fmt.Sprintf("burst[%d]", idx), status, time.Since(start), err)
			}(i)
		}
		wg.Wait()

		if err := sleep(ctx, jitter(h.cfg.RequestDelay)); err != nil {
			return err
		}
	}
}

// broadcastLoop periodically broadcasts to every user. With serializable
// isolation enabled a conflicting run answers 409 and is simply logged;
// deciding whether to retry is left to whoever reads the logs.
func (h *Harness) broadcastLoop(ctx context.Context) error {
	for {
		payload := map[string]any{"message": fmt.Sprintf("broadcast at %d", time.Now().Unix())}
		start := time.Now()
		recipients, status, err := h.client.Broadcast(ctx, h.cfg.BroadcastSerializable, payload)
		elapsed := time.Since(start).Round(100 * time.Millisecond)
		switch {
		case err != nil && ctx.Err() == nil:
			h.logger.Warn(ctx, "broadcast error", "error", err, "elapsed", elapsed)
		case err != nil:
		case status == http.StatusOK:
			h.logger.Info(ctx, "broadcast sent", "recipients", recipients, "elapsed", elapsed)
		default:
			h.logger.Warn(ctx, "broadcast failed", "status", status, "elapsed", elapsed)
		}

		if err := sleep(ctx, h.cfg.BroadcastInterval); err != nil {
			return err
		}
	}
}

// pollLoop long-polls one user's notifications, advancing its cursor to
// the newest created_at it has seen.
func (h *Harness) pollLoop(ctx context.Context, id int, userID string) error {
	since := ""
	for {
		start := time.Now()
		notifs, status, err := h.client.PollNotifications(ctx, userID, since)
		elapsed := time.Since(start).Round(100 * time.Millisecond)
		switch {
		case err != nil && ctx.Err() == nil:
			h.logger.Warn(ctx, "poll error", "poller", id, "error", err, "elapsed", elapsed)
			if err := sleep(ctx, connectRetryPause); err != nil {
				return err
			}
		case err != nil:
		case status == http.StatusOK && len(notifs) > 0:
			h.logger.Info(ctx, "poll got notifications", "poller", id, "count", len(notifs), "elapsed", elapsed)
			if last := notifs[len(notifs)-1].CreatedAt; last != "" {
				since = last
			}
		case status == http.StatusOK:
			h.logger.Debug(ctx, "poll returned empty", "poller", id, "elapsed", elapsed)
		default:
			h.logger.Warn(ctx, "poll failed", "poller", id, "status", status)
		}

		if err := sleep(ctx, pollPause); err != nil {
			return err
		}
	}
}

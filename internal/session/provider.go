package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/socialfeed/backend/internal/models"
)

// Snapshot events.
const (
	EventSignedIn       = "signed-in"
	EventSignedOut      = "signed-out"
	EventProfileChanged = "profile-changed"
)

const (
	channelPrefix  = "session:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix

	subscriberBuffer = 8
	publishTimeout   = 5 * time.Second
)

// ErrClosed is returned by Start after the provider has been closed.
var ErrClosed = errors.New("session provider closed")

// Snapshot is one observation of a user's identity. Profile is nil once the user signed out.
// A signed-out snapshot naming a SessionID only concerns that session.
type Snapshot struct {
	Event     string          `json:"event"`
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId,omitempty"`
	Profile   *models.Profile `json:"profile"`
}

// Subscription receives every snapshot published for one user until it is unsubscribed.
type Subscription struct {
	C <-chan Snapshot

	ch        chan Snapshot
	userID    string
	sessionID string
	id        uint64
}

// Provider tracks identity changes and mirrors each user's profile. It is constructed once
// at start-up and injected into whatever needs the acting user's profile.
type Provider struct {
	cache  *ProfileCache
	loader ProfileLoader
	redis  *redis.Client
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
	closed bool

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewProvider constructs a Provider. A nil redis client keeps snapshot delivery in-process.
func NewProvider(loader ProfileLoader, cacheTTL time.Duration, client *redis.Client, logger *slog.Logger) *Provider {
	if loader == nil {
		panic("session: profile loader must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		cache:  NewProfileCache(loader, cacheTTL),
		loader: loader,
		redis:  client,
		logger: logger,
		subs:   make(map[string]map[uint64]*Subscription),
	}
}

// Start subscribes to the shared snapshot channel when redis is configured. It returns
// once the subscription is confirmed.
func (p *Provider) Start(ctx context.Context) error {
	if p.redis == nil {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	pubsub := p.redis.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to session events: %w", err)
	}

	p.mu.Lock()
	p.pubsub = pubsub
	p.mu.Unlock()

	p.wg.Add(1)
	go p.consume(pubsub.Channel())
	return nil
}

// Close stops the redis subscription and closes every open Subscription.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pubsub := p.pubsub
	p.mu.Unlock()

	var err error
	if pubsub != nil {
		err = pubsub.Close()
		p.wg.Wait()
	}

	p.mu.Lock()
	for _, byID := range p.subs {
		for _, sub := range byID {
			close(sub.ch)
		}
	}
	p.subs = make(map[string]map[uint64]*Subscription)
	p.mu.Unlock()
	return err
}

// Current returns the mirrored profile for userID.
func (p *Provider) Current(ctx context.Context, userID string) (models.Profile, error) {
	return p.cache.Lookup(ctx, userID)
}

// SignedIn loads a fresh profile for userID and announces it.
func (p *Provider) SignedIn(ctx context.Context, userID string) error {
	return p.announce(ctx, EventSignedIn, userID)
}

// ProfileChanged reloads userID's profile and announces the new state.
func (p *Provider) ProfileChanged(ctx context.Context, userID string) error {
	return p.announce(ctx, EventProfileChanged, userID)
}

// SignedOut announces that sessionID of userID no longer has an identity. Only
// subscribers of that session observe it; an empty sessionID signs out every session
// and clears the mirrored profile.
func (p *Provider) SignedOut(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		p.cache.Invalidate(userID)
	}
	return p.publish(ctx, Snapshot{Event: EventSignedOut, UserID: userID, SessionID: sessionID})
}

// Subscribe registers a listener for userID's snapshots as seen by sessionID.
func (p *Provider) Subscribe(userID, sessionID string) *Subscription {
	ch := make(chan Snapshot, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, userID: userID, sessionID: sessionID}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return sub
	}
	p.nextID++
	sub.id = p.nextID
	byID, ok := p.subs[userID]
	if !ok {
		byID = make(map[uint64]*Subscription)
		p.subs[userID] = byID
	}
	byID[sub.id] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call more than once.
func (p *Provider) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	byID, ok := p.subs[sub.userID]
	if !ok {
		return
	}
	if _, ok := byID[sub.id]; !ok {
		return
	}
	delete(byID, sub.id)
	if len(byID) == 0 {
		delete(p.subs, sub.userID)
	}
	close(sub.ch)
}

func (p *Provider) announce(ctx context.Context, event, userID string) error {
	p.cache.Invalidate(userID)
	profile, err := p.loader.Find(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", userID, err)
	}
	p.cache.Store(profile)
	return p.publish(ctx, Snapshot{Event: event, UserID: userID, Profile: &profile})
}

func (p *Provider) publish(ctx context.Context, snap Snapshot) error {
	if p.redis == nil {
		p.deliver(snap)
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.redis.Publish(pubCtx, channelFor(snap.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

func (p *Provider) consume(messages <-chan *redis.Message) {
	defer p.wg.Done()
	for msg := range messages {
		var snap Snapshot
		if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
			p.logger.Warn("discarding malformed session snapshot", "channel", msg.Channel, "error", err)
			continue
		}
		if snap.UserID == "" {
			snap.UserID = userFromChannel(msg.Channel)
		}
		p.deliver(snap)
	}
}

func (p *Provider) deliver(snap Snapshot) {
	switch {
	case snap.Event == EventSignedOut && snap.SessionID == "":
		p.cache.Invalidate(snap.UserID)
	case snap.Profile != nil:
		p.cache.Store(*snap.Profile)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, sub := range p.subs[snap.UserID] {
		if !sub.observes(snap) {
			continue
		}
		select {
		case sub.ch <- snap:
		default:
			p.logger.Warn("dropping session snapshot for slow subscriber", "user_id", snap.UserID, "event", snap.Event)
		}
	}
}

func (s *Subscription) observes(snap Snapshot) bool {
	return snap.Event != EventSignedOut || snap.SessionID == "" || snap.SessionID == s.sessionID
}

func channelFor(userID string) string {
	return channelPrefix + userID + channelSuffix
}

func userFromChannel(channel string) string {
	return strings.TrimSuffix(strings.TrimPrefix(channel, channelPrefix), channelSuffix)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/authwave/authwave/internal/cache"
	"github.com/authwave/authwave/internal/config"
	"github.com/authwave/authwave/internal/metrics"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/store"

	"github.com/google/uuid"
)

const ticketKeyPrefix = "cpanel:ticket:"

// TicketBroker implements the one-shot SSO handoff from the developer portal
// to the cPanel frontend. A ticket is an unguessable UUID living in the cache
// for a short TTL; redeeming it is an atomic get-and-delete, so exactly one
// redemption can ever succeed no matter how many race for it.
type TicketBroker struct {
	store   *store.Store
	cache   cache.Cache[string]
	cfg     *config.Config
	metrics metrics.Recorder
}

func NewTicketBroker(
	st *store.Store,
	c cache.Cache[string],
	cfg *config.Config,
	rec metrics.Recorder,
) *TicketBroker {
	return &TicketBroker{store: st, cache: c, cfg: cfg, metrics: rec}
}

// Ticket is an issued, not-yet-redeemed SSO ticket
type Ticket struct {
	Value     string
	URL       string
	ExpiresIn time.Duration
}

// Issue creates a ticket for an authenticated developer. The developer's
// standing is re-checked against the database here, not trusted from the
// bearer token: a block applied after token issuance must still stop SSO.
func (b *TicketBroker) Issue(ctx context.Context, developerID string) (*Ticket, error) {
	dev, err := b.store.GetDeveloperByID(developerID)
	if err != nil {
		b.metrics.RecordTicketIssued(false)
		return nil, ErrInvalidCredentials
	}
	if dev.IsBlocked {
		b.metrics.RecordTicketIssued(false)
		return nil, ErrAccountBlocked
	}
	if !dev.EmailVerified {
		b.metrics.RecordTicketIssued(false)
		return nil, ErrAccountNotVerified
	}

	value := uuid.New().String()
	err = b.cache.SetNX(ctx, ticketKeyPrefix+value, dev.ID, b.cfg.TicketTTL)
	if err != nil {
		// A UUID collision in the keyspace would surface as ErrKeyExists.
		// Treat any store failure the same way: the caller retries.
		b.metrics.RecordTicketIssued(false)
		log.Printf("[SSO] Ticket store write failed: %v", err)
		return nil, err
	}

	b.metrics.RecordTicketIssued(true)
	return &Ticket{
		Value:     value,
		URL:       fmt.Sprintf("%s/sso?ticket=%s", b.cfg.CPanelBaseURL, url.QueryEscape(value)),
		ExpiresIn: b.cfg.TicketTTL,
	}, nil
}

// Redeem exchanges a ticket for the developer it was issued to. The ticket is
// atomically removed on read; a second redemption of the same value, however
// close behind the first, gets ErrTicketGone. Unknown and expired tickets are
// indistinguishable from redeemed ones.
func (b *TicketBroker) Redeem(ctx context.Context, ticketValue string) (*models.Developer, error) {
	if ticketValue == "" {
		b.metrics.RecordTicketRedeemed("gone")
		return nil, ErrTicketGone
	}

	developerID, err := b.cache.GetDel(ctx, ticketKeyPrefix+ticketValue)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("[SSO] Ticket store read failed: %v", err)
		}
		b.metrics.RecordTicketRedeemed("gone")
		return nil, ErrTicketGone
	}

	dev, err := b.store.GetDeveloperByID(developerID)
	if err != nil {
		b.metrics.RecordTicketRedeemed("rejected")
		return nil, ErrTicketGone
	}
	// Standing is re-checked at redemption too; the ticket may have been
	// issued up to a TTL ago.
	if dev.IsBlocked {
		b.metrics.RecordTicketRedeemed("rejected")
		return nil, ErrAccountBlocked
	}
	if !dev.EmailVerified {
		b.metrics.RecordTicketRedeemed("rejected")
		return nil, ErrAccountNotVerified
	}

	b.metrics.RecordTicketRedeemed("success")
	return dev, nil
}

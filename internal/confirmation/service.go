package confirmation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/hold"
	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/pkg/fingerprint"
	"github.com/tistis/secure-booking/internal/policy"
)

// HoldService is the part of the hold manager the coordinator drives.
type HoldService interface {
	Get(ctx context.Context, tenantID, id string) (*hold.Hold, error)
	ExtendTo(ctx context.Context, tenantID, id string, until time.Time) (*hold.Hold, error)
	Release(ctx context.Context, tenantID, id string) (*hold.Hold, error)
}

type Service interface {
	// Request opens a pending confirmation for an active hold and hands the message to the sender.
	Request(ctx context.Context, in RequestInput) (*Confirmation, error)
	// RecordResponse applies a customer's answer. Declines release the hold.
	RecordResponse(ctx context.Context, tenantID, id string, response Response) (*Confirmation, error)
	// RecordReply parses an inbound message and applies it to the sender's newest pending confirmation.
	RecordReply(ctx context.Context, in ReplyInput) (*Confirmation, error)
	// ExpireStale expires lapsed pending confirmations and releases their holds.
	ExpireStale(ctx context.Context, limit int) (int, error)
	HasConfirmed(ctx context.Context, tenantID, holdID string) (bool, error)
	Get(ctx context.Context, tenantID, id string) (*Confirmation, error)
}

type service struct {
	repo     Repository
	holds    HoldService
	policies policy.Service
	sender   Sender
	clock    clock.Clock
	logger   *zap.Logger
}

func NewService(
	repo Repository,
	holds HoldService,
	policies policy.Service,
	sender Sender,
	clk clock.Clock,
	logger *zap.Logger,
) Service {
	return &service{
		repo:     repo,
		holds:    holds,
		policies: policies,
		sender:   sender,
		clock:    clk,
		logger:   logger,
	}
}

func normalizeRecipient(channel Channel, recipient string) (string, error) {
	if !channel.IsMessage() {
		return strings.TrimSpace(recipient), nil
	}
	phone, err := fingerprint.NormalizePhone(recipient)
	if err != nil {
		return "", ErrInvalidRecipient
	}
	return phone, nil
}

func (s *service) Request(ctx context.Context, in RequestInput) (*Confirmation, error) {
	if !in.Channel.Valid() {
		return nil, ErrInvalidChannel
	}
	recipient, err := normalizeRecipient(in.Channel, in.Recipient)
	if err != nil {
		return nil, err
	}

	h, err := s.holds.Get(ctx, in.TenantID, in.HoldID)
	if err != nil {
		return nil, err
	}
	if h.Status != hold.StatusActive {
		return nil, ErrHoldNotActive
	}

	pol, err := s.policies.GetPolicy(ctx, in.TenantID, h.Vertical)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	c := &Confirmation{
		TenantID:  in.TenantID,
		HoldID:    h.ID,
		Channel:   in.Channel,
		Recipient: recipient,
		Status:    StatusPending,
		SentAt:    now,
		ExpiresAt: now.Add(pol.ConfirmationTimeout()),
	}
	if pol.ConfirmationTimeoutMinutes <= 0 {
		c.ExpiresAt = h.ExpiresAt
	}

	// Confirmation rows are locked before the hold row, the same order the sweep uses.
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.ExpireLapsedForHold(ctx, h.ID, now); err != nil {
			return err
		}
		// The hold must survive the confirmation window plus time to convert.
		if _, err := s.holds.ExtendTo(ctx, in.TenantID, h.ID, c.ExpiresAt.Add(pol.HoldTTL())); err != nil {
			if errors.Is(err, hold.ErrHoldAlreadyTerminal) {
				return ErrHoldNotActive
			}
			return err
		}
		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("confirmation requested",
		zap.String("tenant_id", c.TenantID),
		zap.String("confirmation_id", c.ID),
		zap.String("hold_id", c.HoldID),
		zap.String("channel", string(c.Channel)),
		zap.Time("expires_at", c.ExpiresAt),
	)

	msg := OutboundMessage{
		ConfirmationID: c.ID,
		TenantID:       c.TenantID,
		HoldID:         c.HoldID,
		Channel:        c.Channel,
		Recipient:      c.Recipient,
		Body:           messageBody(c),
		ExpiresAt:      c.ExpiresAt,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		// The confirmation stays pending and lapses through the sweep.
		s.logger.Warn("confirmation send failed",
			zap.String("confirmation_id", c.ID),
			zap.Error(err),
		)
	}
	return c, nil
}

func (s *service) RecordResponse(ctx context.Context, tenantID, id string, response Response) (*Confirmation, error) {
	if !response.Valid() {
		return nil, ErrInvalidResponse
	}

	var result *Confirmation
	holdGone := false
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if c.Status != StatusPending {
			return ErrAlreadyResponded
		}
		now := s.clock.Now()
		if c.StatusAt(now) == StatusExpired {
			return ErrConfirmationExpired
		}

		// A hold that is no longer active closes its confirmation and the answer is discarded.
		h, err := s.holds.Get(ctx, tenantID, c.HoldID)
		if err != nil {
			return err
		}
		if h.Status != hold.StatusActive {
			if _, err := s.repo.UpdateStatus(ctx, c.ID, StatusPending, StatusExpired, nil); err != nil {
				return err
			}
			holdGone = true
			return nil
		}

		to := response.status()
		changed, err := s.repo.UpdateStatus(ctx, c.ID, StatusPending, to, &now)
		if err != nil {
			return err
		}
		if !changed {
			return ErrAlreadyResponded
		}
		c.Status = to
		c.RespondedAt = &now

		if to == StatusDeclined {
			if _, err := s.holds.Release(ctx, tenantID, c.HoldID); err != nil {
				return err
			}
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if holdGone {
		s.logger.Debug("confirmation closed: hold no longer active",
			zap.String("tenant_id", tenantID),
			zap.String("confirmation_id", id),
		)
		return nil, ErrHoldNotActive
	}

	s.logger.Info("confirmation answered",
		zap.String("tenant_id", tenantID),
		zap.String("confirmation_id", id),
		zap.String("hold_id", result.HoldID),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *service) RecordReply(ctx context.Context, in ReplyInput) (*Confirmation, error) {
	if !in.Channel.IsMessage() {
		return nil, ErrInvalidChannel
	}
	from, err := normalizeRecipient(in.Channel, in.From)
	if err != nil {
		return nil, err
	}
	response, ok := ParseReply(in.Text)
	if !ok {
		return nil, ErrUnrecognizedReply
	}

	c, err := s.repo.FindPendingByRecipient(ctx, in.TenantID, in.Channel, from)
	if err != nil {
		return nil, err
	}
	return s.RecordResponse(ctx, in.TenantID, c.ID, response)
}

func (s *service) ExpireStale(ctx context.Context, limit int) (int, error) {
	var expired []Expired
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		expired, err = s.repo.ExpireStale(ctx, s.clock.Now(), limit)
		if err != nil {
			return err
		}
		for _, e := range expired {
			if _, err := s.holds.Release(ctx, e.TenantID, e.HoldID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		s.logger.Info("expired stale confirmations", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

func (s *service) HasConfirmed(ctx context.Context, tenantID, holdID string) (bool, error) {
	return s.repo.HasConfirmed(ctx, tenantID, holdID)
}

// Get reports lapsed pending confirmations as expired even before the sweep runs.
func (s *service) Get(ctx context.Context, tenantID, id string) (*Confirmation, error) {
	c, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	c.Status = c.StatusAt(s.clock.Now())
	return c, nil
}

package policy

import (
	"context"
	"errors"
	"strings"
)

// Service resolves the booking policy for a tenant and vertical.
type Service interface {
	GetPolicy(ctx context.Context, tenantID string, vertical Vertical) (*VerticalBookingPolicy, error)
	Save(ctx context.Context, p *VerticalBookingPolicy) (*VerticalBookingPolicy, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// GetPolicy returns the tenant's stored policy, falling back to the vertical defaults.
func (s *service) GetPolicy(ctx context.Context, tenantID string, vertical Vertical) (*VerticalBookingPolicy, error) {
	if !vertical.Valid() {
		return nil, ErrInvalidVertical
	}

	p, err := s.repo.Get(ctx, tenantID, vertical)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	def := DefaultFor(tenantID, vertical)
	return &def, nil
}

// Save stores a tenant override. Tenant administration owns this path.
func (s *service) Save(ctx context.Context, p *VerticalBookingPolicy) (*VerticalBookingPolicy, error) {
	if strings.TrimSpace(p.TenantID) == "" {
		return nil, ErrInvalidPolicy
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !p.RequiresDeposit {
		p.DepositType = DepositNone
		p.DepositValue = 0
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

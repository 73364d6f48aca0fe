package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefront-api/internal/domain"
)

type Service interface {
	Add(ctx context.Context, userID string, req domain.AddToCartRequest) (domain.Cart, error)
	View(ctx context.Context, userID string) (domain.Cart, error)
	Remove(ctx context.Context, userID, key string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type cartStore interface {
	AddCartItem(ctx context.Context, userID string, e domain.CartEntry) error
	RemoveCartItem(ctx context.Context, userID, key string) error
	ClearCart(ctx context.Context, userID string) error
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
}

type service struct {
	repo cartStore
}

func NewService(repo cartStore) Service {
	return &service{repo: repo}
}

// Add normalises the size so "m" and "M" accumulate on the same entry.
func (s *service) Add(ctx context.Context, userID string, req domain.AddToCartRequest) (domain.Cart, error) {
	e := domain.CartEntry{
		ProductID: strings.TrimSpace(req.ProductID),
		Size:      domain.NormalizeSize(req.Size),
		Quantity:  req.Quantity,
	}
	if e.ProductID == "" || e.Size == "" {
		return nil, fmt.Errorf("product_id and size are required: %w", domain.ErrBadRequest)
	}
	if e.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", domain.ErrBadRequest)
	}
	if err := s.repo.AddCartItem(ctx, userID, e); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, userID)
}

func (s *service) View(ctx context.Context, userID string) (domain.Cart, error) {
	return s.repo.GetCart(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, key string) (domain.Cart, error) {
	if err := s.repo.RemoveCartItem(ctx, userID, normalizeKey(key)); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID string) error {
	return s.repo.ClearCart(ctx, userID)
}

// normalizeKey upper-cases the size suffix of "{productID}-{size}".
func normalizeKey(key string) string {
	i := strings.LastIndex(key, "-")
	if i < 0 {
		return key
	}
	return domain.CartKey(key[:i], key[i+1:])
}

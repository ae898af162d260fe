package service

import (
	"context"
	"sync"
	"time"

	"go-pos-ws/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService keeps one server-side cart per operator and drives checkout
// from it. Calls for the same operator are serialized.
type CartService interface {
	Get(ctx context.Context, op model.Operator) (*CartPreview, error)
	AddItem(ctx context.Context, op model.Operator, productID uuid.UUID, quantity int) (*CartPreview, error)
	SetItemQuantity(ctx context.Context, op model.Operator, productID uuid.UUID, quantity int) (*CartPreview, error)
	RemoveItem(ctx context.Context, op model.Operator, productID uuid.UUID) (*CartPreview, error)
	Clear(ctx context.Context, op model.Operator) error
	Checkout(ctx context.Context, op model.Operator, req CheckoutRequest) (*CheckoutResult, error)
	// SweepIdle drops carts untouched for longer than maxIdle and reports how many went.
	SweepIdle(maxIdle time.Duration) int
}

type cartSession struct {
	mu       sync.Mutex
	cart     *Cart
	lastUsed time.Time
	swept    bool
}

type cartService struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*cartSession
	lookup   ProductLookup
	checkout CheckoutService
	cfg      CheckoutConfig
	now      func() time.Time
}

func NewCartService(lookup ProductLookup, checkout CheckoutService, cfg CheckoutConfig) CartService {
	return &cartService{
		sessions: make(map[uuid.UUID]*cartSession),
		lookup:   lookup,
		checkout: checkout,
		cfg:      cfg,
		now:      time.Now,
	}
}

// with runs fn holding the operator's session lock.
func (s *cartService) with(op model.Operator, fn func(c *Cart) error) error {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[op.ID]
		if !ok {
			sess = &cartSession{cart: NewCart(s.lookup)}
			s.sessions[op.ID] = sess
		}
		s.mu.Unlock()

		// A swept session lost a race with SweepIdle; go round for a fresh one.
		if ran, err := sess.run(s.now(), fn); ran {
			return err
		}
	}
}

func (sess *cartSession) run(now time.Time, fn func(c *Cart) error) (bool, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.swept {
		return false, nil
	}
	sess.lastUsed = now
	return true, fn(sess.cart)
}

func (s *cartService) preview(ctx context.Context, c *Cart) (*CartPreview, error) {
	return c.Preview(ctx, s.cfg.TaxRate, s.cfg.PricesIncludeTax)
}

func (s *cartService) Get(ctx context.Context, op model.Operator) (*CartPreview, error) {
	var out *CartPreview
	err := s.with(op, func(c *Cart) (err error) {
		out, err = s.preview(ctx, c)
		return err
	})
	return out, err
}

// AddItem adds quantity units; a single unit goes through Cart.Add so an
// empty shelf reports out-of-stock.
func (s *cartService) AddItem(ctx context.Context, op model.Operator, productID uuid.UUID, quantity int) (*CartPreview, error) {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	var out *CartPreview
	err := s.with(op, func(c *Cart) error {
		if quantity == 1 {
			if _, err := c.Add(ctx, productID); err != nil {
				return err
			}
		} else if err := c.SetQuantity(ctx, productID, c.Quantity(productID)+quantity); err != nil {
			return err
		}
		var err error
		out, err = s.preview(ctx, c)
		return err
	})
	return out, err
}

func (s *cartService) SetItemQuantity(ctx context.Context, op model.Operator, productID uuid.UUID, quantity int) (*CartPreview, error) {
	var out *CartPreview
	err := s.with(op, func(c *Cart) error {
		if err := c.SetQuantity(ctx, productID, quantity); err != nil {
			return err
		}
		var err error
		out, err = s.preview(ctx, c)
		return err
	})
	return out, err
}

func (s *cartService) RemoveItem(ctx context.Context, op model.Operator, productID uuid.UUID) (*CartPreview, error) {
	var out *CartPreview
	err := s.with(op, func(c *Cart) (err error) {
		c.Remove(productID)
		out, err = s.preview(ctx, c)
		return err
	})
	return out, err
}

func (s *cartService) Clear(_ context.Context, op model.Operator) error {
	return s.with(op, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// Checkout commits the operator's cart and empties it on success. A failed
// checkout leaves the cart as it was.
func (s *cartService) Checkout(ctx context.Context, op model.Operator, req CheckoutRequest) (*CheckoutResult, error) {
	var out *CheckoutResult
	err := s.with(op, func(c *Cart) error {
		res, err := s.checkout.Checkout(ctx, op, c, req)
		if err != nil {
			return err
		}
		c.Clear()
		out = res
		return nil
	})
	return out, err
}

func (s *cartService) SweepIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue // in use right now
		}
		if sess.lastUsed.Before(cutoff) {
			sess.swept = true
			delete(s.sessions, id)
			swept++
		}
		sess.mu.Unlock()
	}
	if swept > 0 {
		zap.L().Info("idle carts swept", zap.Int("count", swept))
	}
	return swept
}

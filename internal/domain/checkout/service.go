// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/config"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/domain/payment"
	"github.com/vaarahi/storefront/internal/domain/pricing"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
	"github.com/vaarahi/storefront/internal/pkg/email"
	"github.com/vaarahi/storefront/internal/pkg/notify"
)

// ErrAlreadySettled is returned when a late callback targets a session that
// already failed or was cancelled. Terminal states are never overwritten.
var ErrAlreadySettled = errors.New("payment session already settled")

const maxHistory = 50

// Mailer delivers the order confirmation email.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, data email.OrderConfirmationData) error
}

// Service drives a session's cart through lock, pay and clear.
type Service struct {
	carts     *cart.Service
	providers *payment.Registry
	kv        kvstore.Store
	keys      kvstore.Keyspace
	notifier  notify.Notifier
	mailer    Mailer
	config    config.CheckoutConfig
	currency  string
	log       logrus.FieldLogger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	background sync.WaitGroup
}

// NewService creates a new checkout service. mailer may be nil.
func NewService(
	carts *cart.Service,
	providers *payment.Registry,
	kv kvstore.Store,
	keys kvstore.Keyspace,
	notifier notify.Notifier,
	mailer Mailer,
	cfg *config.Config,
	log logrus.FieldLogger,
) *Service {
	currency := cfg.Payment.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		carts:     carts,
		providers: providers,
		kv:        kv,
		keys:      keys,
		notifier:  notifier,
		mailer:    mailer,
		config:    cfg.Checkout,
		currency:  currency,
		log:       log.WithField("component", "checkout"),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Wait blocks until background confirmation emails have been handed off.
func (s *Service) Wait() {
	s.background.Wait()
}

// PlaceOrder validates the form, locks the cart and opens a provider order.
func (s *Service) PlaceOrder(ctx context.Context, sessionID, providerName string, customer Customer) (*PaymentSession, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	log := s.log.WithField("session_id", sessionID)

	if err := customer.Validate(); err != nil {
		s.notify(sessionID, notify.Error("Please fill in all required fields correctly."))
		return nil, err
	}

	store, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart: %w", err)
	}
	if len(store.Items()) == 0 {
		s.notify(sessionID, warning("Your cart is empty. Please add items to your cart before checkout."))
		return nil, ErrEmptyCart
	}

	active, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if !s.expired(active) {
			s.notify(sessionID, warning("A payment is already in progress. Complete or cancel it before placing a new order."))
			return nil, ErrCheckoutInProgress
		}
		if err := s.abandon(ctx, sessionID, store, active); err != nil {
			return nil, err
		}
	}

	provider, err := s.providers.Get(providerName)
	if err != nil {
		s.notify(sessionID, notify.Error("The selected payment method is not available."))
		return nil, &ValidationError{Field: "provider", Message: "unsupported payment provider"}
	}

	snap := store.Snapshot()
	amount := pricing.MinorUnits(snap.Totals.Total)
	if amount <= 0 {
		s.notify(sessionID, notify.Error("Your order total must be greater than zero."))
		return nil, &ValidationError{Field: "amount", Message: "order total must be positive"}
	}

	if err := store.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}

	now := s.now().UTC()
	sess := &PaymentSession{
		TransactionID: newTransactionID(now),
		Provider:      provider.Name(),
		Amount:        amount,
		Currency:      s.currency,
		Status:        StatusPending,
		Snapshot: OrderSnapshot{
			Items:    snap.Items,
			Subtotal: pricing.Format(snap.Totals.Subtotal),
			Discount: pricing.Format(snap.Totals.Discount),
			Total:    pricing.Format(snap.Totals.Total),
			Coupon:   snap.Totals.Coupon,
			Customer: customer,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	log = log.WithFields(logrus.Fields{
		"transaction_id": sess.TransactionID,
		"provider":       sess.Provider,
	})

	if err := s.saveActive(ctx, sessionID, sess); err != nil {
		s.unlockCart(ctx, store)
		return nil, err
	}

	order, err := provider.CreateOrder(ctx, payment.CreateOrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  sess.TransactionID,
		Notes:    map[string]string{"session_id": sessionID},
	})
	if err != nil {
		log.WithError(err).Error("Payment provider could not create order")
		s.fail(ctx, sessionID, store, sess, StatusFailure, ReasonProviderError,
			notify.Error("Payment failed: the payment service is unavailable. Please try again."))
		return nil, err
	}

	sess.ProviderOrderID = order.ID
	sess.KeyID = order.KeyID
	sess.CheckoutURL = order.CheckoutURL
	sess.UpdatedAt = s.now().UTC()

	if err := s.kv.Set(ctx, s.keys.ProviderOrder(order.ID), sessionID); err != nil {
		s.fail(ctx, sessionID, store, sess, StatusFailure, ReasonProviderError,
			notify.Error("There was an error processing your order. Please try again."))
		return nil, fmt.Errorf("failed to index provider order: %w", err)
	}
	if err := s.saveActive(ctx, sessionID, sess); err != nil {
		s.fail(ctx, sessionID, store, sess, StatusFailure, ReasonProviderError,
			notify.Error("There was an error processing your order. Please try again."))
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"provider_order_id": order.ID,
		"amount":            amount,
	}).Info("Payment session started")

	return sess, nil
}

// ConfirmSuccess verifies the provider's success callback and finalizes the
// order. A repeated confirmation returns the existing order as a duplicate.
func (s *Service) ConfirmSuccess(ctx context.Context, sessionID string, c Confirmation) (*Result, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	active, settled, err := s.resolve(ctx, sessionID, c.TransactionID, c.ProviderOrderID)
	if err != nil {
		return nil, err
	}
	if settled != nil {
		return s.settledResult(ctx, sessionID, settled)
	}

	store, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart: %w", err)
	}

	provider, err := s.providers.Get(active.Provider)
	if err != nil {
		return nil, err
	}
	// The signature covers the order id the server opened, never one supplied by the caller.
	verifyErr := provider.VerifyPayment(ctx, payment.Verification{
		OrderID:   active.ProviderOrderID,
		PaymentID: c.PaymentID,
		Signature: c.Signature,
	})

	if verifyErr != nil {
		reason := ReasonProviderError
		if errors.Is(verifyErr, payment.ErrSignatureMismatch) {
			reason = ReasonSignatureMismatch
		}
		s.log.WithFields(logrus.Fields{
			"session_id":     sessionID,
			"transaction_id": active.TransactionID,
			"reason":         reason,
		}).WithError(verifyErr).Warn("Payment verification failed")

		s.fail(ctx, sessionID, store, active, StatusFailure, reason,
			notify.Error("Payment verification failed. Your cart has been kept so you can try again."))
		return nil, fmt.Errorf("payment verification failed: %w", verifyErr)
	}

	return s.complete(ctx, sessionID, store, active, c.PaymentID)
}

// ReportFailure records a failure reported by the provider widget.
// It is ignored when the session has already settled.
func (s *Service) ReportFailure(ctx context.Context, sessionID, transactionID, reason string) (*PaymentSession, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	active, settled, err := s.resolve(ctx, sessionID, transactionID, "")
	if err != nil {
		return nil, err
	}
	if settled != nil {
		return settled, nil
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonDeclined
	}

	store, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart: %w", err)
	}
	s.fail(ctx, sessionID, store, active, StatusFailure, reason, notify.Error("Payment failed: "+reason))
	return active, nil
}

// Cancel closes the pending session after the shopper dismissed the payment
// window. It is ignored when the session has already settled.
func (s *Service) Cancel(ctx context.Context, sessionID, transactionID string) (*PaymentSession, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	active, settled, err := s.resolve(ctx, sessionID, transactionID, "")
	if err != nil {
		return nil, err
	}
	if settled != nil {
		return settled, nil
	}

	store, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart: %w", err)
	}
	s.fail(ctx, sessionID, store, active, StatusCancelled, ReasonDismissed, warning("Payment failed or cancelled by user"))
	return active, nil
}

// PollStatus asks the provider for the pending session's state and applies it.
// A provider error leaves the session pending.
func (s *Service) PollStatus(ctx context.Context, sessionID string) (*Result, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	active, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		latest, err := s.latest(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, ErrNoActiveSession
		}
		return s.settledResult(ctx, sessionID, latest)
	}

	store, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart: %w", err)
	}

	if s.expired(active) {
		if err := s.abandon(ctx, sessionID, store, active); err != nil {
			return nil, err
		}
		return &Result{Session: active}, nil
	}

	provider, err := s.providers.Get(active.Provider)
	if err != nil {
		return nil, err
	}
	status, err := provider.Status(ctx, active.ProviderOrderID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id":     sessionID,
			"transaction_id": active.TransactionID,
		}).WithError(err).Warn("Payment status poll failed")
		return &Result{Session: active}, err
	}

	switch status {
	case payment.StatusSuccess:
		return s.complete(ctx, sessionID, store, active, active.ProviderOrderID)
	case payment.StatusFailure:
		s.fail(ctx, sessionID, store, active, StatusFailure, ReasonDeclined, notify.Error("Payment failed: "+ReasonDeclined))
	}
	return &Result{Session: active}, nil
}

// HandleProviderEvent applies a verified server-to-server event. The session
// is found through the provider order index.
func (s *Service) HandleProviderEvent(ctx context.Context, providerOrderID string, ev ProviderEvent) (*Result, error) {
	sessionID, err := s.kv.Get(ctx, s.keys.ProviderOrder(providerOrderID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	active, settled, err := s.resolve(ctx, sessionID, "", providerOrderID)
	if err != nil {
		return nil, err
	}
	if settled != nil {
		return &Result{Session: settled, Duplicate: true}, nil
	}

	store, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart: %w", err)
	}

	switch ev.Kind {
	case EventPaymentCaptured:
		return s.complete(ctx, sessionID, store, active, ev.PaymentID)
	case EventPaymentFailed:
		reason := ev.Reason
		if reason == "" {
			reason = ReasonDeclined
		}
		s.fail(ctx, sessionID, store, active, StatusFailure, reason, notify.Error("Payment failed: "+reason))
		return &Result{Session: active}, nil
	default:
		return &Result{Session: active}, nil
	}
}

// ExpireStale cancels the session's pending payment when it is older than
// the configured timeout.
func (s *Service) ExpireStale(ctx context.Context, sessionID string) (bool, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	active, err := s.loadActive(ctx, sessionID)
	if err != nil || active == nil || !s.expired(active) {
		return false, err
	}

	store, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to open cart: %w", err)
	}
	if err := s.abandon(ctx, sessionID, store, active); err != nil {
		return false, err
	}
	return true, nil
}

// ExpireAll runs ExpireStale for every session holding a pending payment.
func (s *Service) ExpireAll(ctx context.Context) (int, error) {
	keys, err := s.kv.Keys(ctx, s.keys.SessionPrefix())
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	expired := 0
	for _, key := range keys {
		sessionID, name, ok := s.keys.SplitSession(key)
		if !ok || name != kvstore.KeyPaymentInfo {
			continue
		}
		done, err := s.ExpireStale(ctx, sessionID)
		if err != nil {
			s.log.WithField("session_id", sessionID).WithError(err).Warn("Failed to expire payment session")
			continue
		}
		if done {
			expired++
		}
	}
	return expired, nil
}

// Active returns the pending session, or nil.
func (s *Service) Active(ctx context.Context, sessionID string) (*PaymentSession, error) {
	return s.loadActive(ctx, sessionID)
}

// History returns settled sessions, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]PaymentSession, error) {
	var history []PaymentSession
	err := kvstore.GetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyPaymentHistory), &history)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []PaymentSession{}, nil
	}
	var corrupt *kvstore.CorruptValueError
	if errors.As(err, &corrupt) {
		s.log.WithField("session_id", sessionID).WithError(err).Warn("Corrupt payment history, starting over")
		return []PaymentSession{}, nil
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

// Orders returns the session's completed orders in placement order.
func (s *Service) Orders(ctx context.Context, sessionID string) ([]CompletedOrder, error) {
	var orders []CompletedOrder
	err := kvstore.GetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyCompletedOrders), &orders)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []CompletedOrder{}, nil
	}
	var corrupt *kvstore.CorruptValueError
	if errors.As(err, &corrupt) {
		s.log.WithField("session_id", sessionID).WithError(err).Error("Corrupt completed order log")
		return []CompletedOrder{}, nil
	}
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Order looks up one completed order.
func (s *Service) Order(ctx context.Context, sessionID, orderID string) (*CompletedOrder, error) {
	orders, err := s.Orders(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].OrderID == orderID {
			return &orders[i], nil
		}
	}
	return nil, ErrOrderNotFound
}

// complete records the order, settles the session, empties the cart and
// sends the confirmation.
func (s *Service) complete(ctx context.Context, sessionID string, store *cart.Store, sess *PaymentSession, paymentID string) (*Result, error) {
	log := s.log.WithFields(logrus.Fields{
		"session_id":     sessionID,
		"transaction_id": sess.TransactionID,
	})

	now := s.now().UTC()
	order, err := s.appendOrder(ctx, sessionID, CompletedOrder{
		OrderID:       newOrderID(now),
		TransactionID: sess.TransactionID,
		PaymentID:     paymentID,
		Provider:      sess.Provider,
		Amount:        sess.Snapshot.Total,
		Currency:      sess.Currency,
		Items:         sess.Snapshot.Items,
		CustomerInfo:  sess.Snapshot.Customer.Info(),
		Timestamp:     now,
		Status:        OrderStatusCompleted,
	})
	if err != nil {
		return nil, err
	}

	sess.Status = StatusSuccess
	sess.Reason = ""
	sess.PaymentID = paymentID
	sess.OrderID = order.OrderID
	sess.UpdatedAt = now
	if err := s.archive(ctx, sessionID, sess); err != nil {
		log.WithError(err).Error("Failed to archive payment session")
	}

	if err := store.Clear(ctx); err != nil {
		log.WithError(err).Error("Failed to clear cart after payment")
	}
	if err := store.RemoveCoupon(ctx); err != nil {
		log.WithError(err).Error("Failed to remove coupon after payment")
	}
	s.unlockCart(ctx, store)

	log.WithFields(logrus.Fields{
		"order_id":   order.OrderID,
		"payment_id": paymentID,
		"amount":     order.Amount,
	}).Info("Order completed")

	s.notify(sessionID, notify.Success("Payment successful! Order has been placed.").
		WithRedirect(s.confirmationURL(order.OrderID), s.config.RedirectDelay))
	s.sendConfirmation(order)

	return &Result{Session: sess, Order: order}, nil
}

// fail settles the session as failed or cancelled and releases the cart.
func (s *Service) fail(ctx context.Context, sessionID string, store *cart.Store, sess *PaymentSession, status Status, reason string, n notify.Notification) {
	sess.Status = status
	sess.Reason = reason
	sess.UpdatedAt = s.now().UTC()

	if err := s.archive(ctx, sessionID, sess); err != nil {
		s.log.WithField("session_id", sessionID).WithError(err).Error("Failed to archive payment session")
	}
	s.unlockCart(ctx, store)

	target := "failed"
	if status == StatusCancelled {
		target = "cancelled"
	}
	s.notify(sessionID, n.WithRedirect(s.config.CartPath+"?payment="+target, s.config.RedirectDelay))

	s.log.WithFields(logrus.Fields{
		"session_id":     sessionID,
		"transaction_id": sess.TransactionID,
		"status":         status,
		"reason":         reason,
	}).Info("Payment session closed")
}

func (s *Service) abandon(ctx context.Context, sessionID string, store *cart.Store, sess *PaymentSession) error {
	sess.Status = StatusCancelled
	sess.Reason = ReasonAbandoned
	sess.UpdatedAt = s.now().UTC()

	err := s.archive(ctx, sessionID, sess)
	s.unlockCart(ctx, store)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"session_id":     sessionID,
		"transaction_id": sess.TransactionID,
	}).Warn("Abandoned payment session expired")
	s.notify(sessionID, warning("Your previous payment attempt timed out and was cancelled."))
	return nil
}

// resolve finds the pending session the caller refers to. When the
// reference points at an already settled session, that one is returned
// as settled instead.
func (s *Service) resolve(ctx context.Context, sessionID, transactionID, providerOrderID string) (active, settled *PaymentSession, err error) {
	active, err = s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if active != nil && matches(active, transactionID, providerOrderID) {
		return active, nil, nil
	}

	history, err := s.History(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		if matches(&history[i], transactionID, providerOrderID) {
			return nil, &history[i], nil
		}
	}

	if active == nil {
		return nil, nil, ErrNoActiveSession
	}
	return nil, nil, ErrSessionMismatch
}

func matches(p *PaymentSession, transactionID, providerOrderID string) bool {
	if transactionID != "" && p.TransactionID != transactionID {
		return false
	}
	if providerOrderID != "" && p.ProviderOrderID != providerOrderID {
		return false
	}
	return true
}

func (s *Service) settledResult(ctx context.Context, sessionID string, settled *PaymentSession) (*Result, error) {
	if settled.Status != StatusSuccess {
		return &Result{Session: settled}, ErrAlreadySettled
	}
	order, err := s.Order(ctx, sessionID, settled.OrderID)
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, err
	}
	return &Result{Session: settled, Order: order, Duplicate: true}, nil
}

func (s *Service) latest(ctx context.Context, sessionID string) (*PaymentSession, error) {
	history, err := s.History(ctx, sessionID)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return &history[len(history)-1], nil
}

func (s *Service) loadActive(ctx context.Context, sessionID string) (*PaymentSession, error) {
	key := s.keys.Session(sessionID, kvstore.KeyPaymentInfo)

	var sess PaymentSession
	err := kvstore.GetJSON(ctx, s.kv, key, &sess)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	var corrupt *kvstore.CorruptValueError
	if errors.As(err, &corrupt) {
		s.log.WithField("session_id", sessionID).WithError(err).Warn("Corrupt payment session, discarding")
		if err := s.kv.Delete(ctx, key); err != nil {
			return nil, err
		}
		if store, err := s.carts.Open(ctx, sessionID); err == nil {
			s.unlockCart(ctx, store)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment session: %w", err)
	}
	if sess.Status.Terminal() {
		return nil, nil
	}
	return &sess, nil
}

func (s *Service) saveActive(ctx context.Context, sessionID string, sess *PaymentSession) error {
	if err := kvstore.SetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyPaymentInfo), sess); err != nil {
		return fmt.Errorf("failed to save payment session: %w", err)
	}
	return nil
}

// archive moves a settled session into the history and clears the active pointer.
func (s *Service) archive(ctx context.Context, sessionID string, sess *PaymentSession) error {
	history, err := s.History(ctx, sessionID)
	if err != nil {
		return err
	}
	history = append(history, *sess)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	if err := kvstore.SetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyPaymentHistory), history); err != nil {
		return fmt.Errorf("failed to save payment history: %w", err)
	}
	if err := s.kv.Delete(ctx, s.keys.Session(sessionID, kvstore.KeyPaymentInfo)); err != nil {
		return fmt.Errorf("failed to clear payment session: %w", err)
	}
	return nil
}

// appendOrder stores order unless one already exists for its transaction.
func (s *Service) appendOrder(ctx context.Context, sessionID string, order CompletedOrder) (*CompletedOrder, error) {
	orders, err := s.Orders(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].TransactionID == order.TransactionID {
			return &orders[i], nil
		}
	}

	orders = append(orders, order)
	if err := kvstore.SetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyCompletedOrders), orders); err != nil {
		return nil, fmt.Errorf("failed to save completed order: %w", err)
	}
	return &order, nil
}

func (s *Service) unlockCart(ctx context.Context, store *cart.Store) {
	if err := store.Unlock(ctx); err != nil {
		s.log.WithField("session_id", store.SessionID()).WithError(err).Error("Failed to unlock cart")
	}
}

func (s *Service) expired(sess *PaymentSession) bool {
	return s.now().Sub(sess.CreatedAt) > s.config.SessionTimeout
}

func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) notify(sessionID string, n notify.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(sessionID, n)
	}
}

func (s *Service) confirmationURL(orderID string) string {
	return s.config.ConfirmationPath + "?orderId=" + url.QueryEscape(orderID)
}

// sendConfirmation emails the customer without blocking the checkout.
func (s *Service) sendConfirmation(order *CompletedOrder) {
	if !s.config.SendConfirmation || s.mailer == nil || order.CustomerInfo.Email == "" {
		return
	}

	data := email.OrderConfirmationData{
		EmailTemplateData: email.EmailTemplateData{
			UserName:  order.CustomerInfo.Name,
			UserEmail: order.CustomerInfo.Email,
		},
		OrderID:       order.OrderID,
		TransactionID: order.TransactionID,
		OrderDate:     order.Timestamp.Format("02 Jan 2006"),
		OrderTotal:    formatAmount(order.Amount),
		Address: email.Address{
			Name:    order.CustomerInfo.Name,
			Street:  order.CustomerInfo.Address,
			City:    order.CustomerInfo.City,
			State:   order.CustomerInfo.State,
			Pincode: order.CustomerInfo.Pincode,
			Phone:   order.CustomerInfo.Phone,
		},
	}
	for _, item := range order.Items {
		price := decimal.NewFromFloat(item.Price)
		data.Items = append(data.Items, email.OrderItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    pricing.FormatINR(price),
			Total:    pricing.FormatINR(price.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		})
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.mailer.SendOrderConfirmation(ctx, data); err != nil {
			s.log.WithFields(logrus.Fields{
				"order_id": data.OrderID,
			}).WithError(err).Warn("Failed to send order confirmation email")
		}
	}()
}

func formatAmount(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return amount
	}
	return pricing.FormatINR(d)
}

func warning(message string) notify.Notification {
	return notify.Notification{Type: notify.TypeWarning, Message: message}
}

// newTransactionID returns TRX, the epoch milliseconds and a random suffix.
func newTransactionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "TRX" + strconv.FormatInt(now.UnixMilli(), 10) + suffix
}

// newOrderID returns ORD and the epoch milliseconds.
func newOrderID(now time.Time) string {
	return "ORD" + strconv.FormatInt(now.UnixMilli(), 10)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/ledger"
	"github.com/robumart/platform/internal/provider"
	"github.com/robumart/platform/internal/repository"
)

// Minimum top-up in kopecks.
const minTopUpKopecks = 1000

// CryptoInvoicer is the slice of the crypto provider the wallet needs.
type CryptoInvoicer interface {
	CreateInvoice(ctx context.Context, amountRub float64, description string) (*provider.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int64) (*provider.Invoice, error)
	VerifyWebhookSignature(rawBody []byte, signature string) bool
}

// BillCreator is the slice of the fiat gateway the wallet needs.
type BillCreator interface {
	CreateBill(ctx context.Context, amountRub float64, orderID, description string) (*provider.Bill, error)
	VerifyPostback(pb *provider.Postback) bool
}

// PaymentService handles balance top-ups across all channels. Whatever the
// channel, value enters the ledger through exactly one gate: the conditional
// pending→paid flip on the payment row.
type PaymentService struct {
	pool      *pgxpool.Pool
	payments  repository.PaymentRepository
	users     repository.UserRepository
	ledger    *ledger.Ledger
	cryptopay CryptoInvoicer
	paylink   BillCreator
	settings  domain.SettingsSource
	logger    *slog.Logger
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(
	pool *pgxpool.Pool,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	ldg *ledger.Ledger,
	cryptopay CryptoInvoicer,
	paylink BillCreator,
	settings domain.SettingsSource,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		pool:      pool,
		payments:  payments,
		users:     users,
		ledger:    ldg,
		cryptopay: cryptopay,
		paylink:   paylink,
		settings:  settings,
		logger:    logger,
	}
}

// CreateCryptoInvoice opens a crypto top-up. The payment id is the provider
// invoice id, which is what the webhook later reports.
func (s *PaymentService) CreateCryptoInvoice(ctx context.Context, userID uuid.UUID, amount int64) (*domain.Payment, error) {
	if amount < minTopUpKopecks {
		return nil, domain.ErrValidation(fmt.Sprintf("minimum top-up is %s ₽", domain.FormatRubles(minTopUpKopecks)))
	}

	rub := float64(amount) / 100
	inv, err := s.cryptopay.CreateInvoice(ctx, rub, "Balance top-up")
	if err != nil {
		return nil, domain.ErrInternal("create invoice", err)
	}

	payURL := inv.BotInvoiceURL
	if payURL == "" {
		payURL = inv.PayURL
	}
	data, _ := json.Marshal(domain.CryptoPayData{InvoiceID: inv.InvoiceID})

	payment := &domain.Payment{
		ID:           strconv.FormatInt(inv.InvoiceID, 10),
		UserID:       userID,
		Amount:       amount,
		Currency:     "RUB",
		Method:       domain.MethodCryptoPay,
		Status:       domain.PaymentStatusPending,
		InvoiceURL:   &payURL,
		ProviderData: data,
	}
	if err := s.payments.Create(ctx, s.pool, payment); err != nil {
		return nil, domain.ErrInternal("record payment", err)
	}

	s.logger.Info("crypto invoice created",
		"payment_id", payment.ID, "user_id", userID, "amount", domain.FormatRubles(amount))
	return payment, nil
}

// CreatePayLinkBill opens a fiat gateway top-up. Our generated payment id is
// passed as the gateway order id and comes back as InvId in the postback.
func (s *PaymentService) CreatePayLinkBill(ctx context.Context, userID uuid.UUID, amount int64) (*domain.Payment, error) {
	if amount < minTopUpKopecks {
		return nil, domain.ErrValidation(fmt.Sprintf("minimum top-up is %s ₽", domain.FormatRubles(minTopUpKopecks)))
	}

	paymentID := uuid.NewString()
	rub := float64(amount) / 100
	bill, err := s.paylink.CreateBill(ctx, rub, paymentID, "Balance top-up")
	if err != nil {
		return nil, domain.ErrInternal("create bill", err)
	}

	data, _ := json.Marshal(domain.PayLinkData{BillID: bill.BillID})
	payment := &domain.Payment{
		ID:           paymentID,
		UserID:       userID,
		Amount:       amount,
		Currency:     "RUB",
		Method:       domain.MethodPayLink,
		Status:       domain.PaymentStatusPending,
		InvoiceURL:   &bill.LinkPageURL,
		ProviderData: data,
	}
	if err := s.payments.Create(ctx, s.pool, payment); err != nil {
		return nil, domain.ErrInternal("record payment", err)
	}

	s.logger.Info("paylink bill created",
		"payment_id", payment.ID, "user_id", userID, "amount", domain.FormatRubles(amount))
	return payment, nil
}

// HandleCryptoPayWebhook applies a verified invoice update. The caller has
// already checked the signature against the raw body.
func (s *PaymentService) HandleCryptoPayWebhook(ctx context.Context, update *provider.InvoiceUpdate) error {
	if update.UpdateType != "invoice_paid" {
		return nil
	}
	paymentID := strconv.FormatInt(update.Payload.InvoiceID, 10)
	data, _ := json.Marshal(domain.CryptoPayData{
		InvoiceID: update.Payload.InvoiceID,
		Asset:     update.Payload.PaidAsset,
		PaidAt:    update.Payload.PaidAt,
	})
	_, err := s.ResolvePayment(ctx, paymentID, data)
	return err
}

// HandlePayLinkPostback applies a verified gateway postback. PayLink has no
// separate expiry channel, so a non-success postback closes the bill here.
func (s *PaymentService) HandlePayLinkPostback(ctx context.Context, pb *provider.Postback) error {
	if !pb.Succeeded() {
		data, _ := json.Marshal(domain.PayLinkData{
			OutSum:      pb.OutSum,
			FinalStatus: pb.Status,
		})
		closed, err := s.payments.MarkTerminalIfPending(ctx, s.pool, pb.InvID, domain.PaymentStatusCancelled, data)
		if err != nil {
			return domain.ErrInternal("cancel payment", err)
		}
		if closed {
			s.logger.Info("paylink bill cancelled by postback",
				"payment_id", pb.InvID, "status", pb.Status)
		}
		return nil
	}
	data, _ := json.Marshal(domain.PayLinkData{
		OutSum:      pb.OutSum,
		Commission:  pb.Commission,
		FinalStatus: pb.Status,
	})
	_, err := s.ResolvePayment(ctx, pb.InvID, data)
	return err
}

// CheckPayment re-checks a pending crypto payment against the provider. It
// exists because webhooks get lost; the resolution gate makes the overlap
// with a late webhook harmless.
func (s *PaymentService) CheckPayment(ctx context.Context, paymentID string, requester *domain.User) (*domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, s.pool, paymentID)
	if err != nil {
		return nil, domain.ErrInternal("load payment", err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound("payment", paymentID)
	}
	if payment.UserID != requester.ID && !requester.IsAdmin() {
		return nil, domain.ErrForbidden("not your payment")
	}
	if payment.Status != domain.PaymentStatusPending || payment.Method != domain.MethodCryptoPay {
		return payment, nil
	}

	invoiceID, err := strconv.ParseInt(payment.ID, 10, 64)
	if err != nil {
		return nil, domain.ErrInternal("bad invoice id", err)
	}
	inv, err := s.cryptopay.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, domain.ErrInternal("check invoice", err)
	}
	switch inv.Status {
	case "paid":
		data, _ := json.Marshal(domain.CryptoPayData{
			InvoiceID: inv.InvoiceID,
			Asset:     inv.PaidAsset,
			PaidAt:    inv.PaidAt,
		})
		if _, err := s.ResolvePayment(ctx, payment.ID, data); err != nil {
			return nil, err
		}
		payment.Status = domain.PaymentStatusPaid
	case "expired":
		closed, err := s.payments.MarkTerminalIfPending(ctx, s.pool, payment.ID, domain.PaymentStatusExpired, nil)
		if err != nil {
			return nil, domain.ErrInternal("expire payment", err)
		}
		if closed {
			payment.Status = domain.PaymentStatusExpired
			s.logger.Info("crypto invoice expired", "payment_id", payment.ID)
		}
	}
	return payment, nil
}

// ResolvePayment flips the payment to paid and credits the payer, in one
// transaction. Returns false without error when another caller already won
// the gate.
func (s *PaymentService) ResolvePayment(ctx context.Context, paymentID string, providerData []byte) (bool, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return false, domain.ErrInternal("load settings", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	won, err := s.payments.MarkPaid(ctx, tx, paymentID, providerData)
	if err != nil {
		return false, domain.ErrInternal("mark paid", err)
	}
	if !won {
		s.logger.Info("payment already resolved", "payment_id", paymentID)
		return false, nil
	}

	payment, err := s.payments.FindByID(ctx, tx, paymentID)
	if err != nil {
		return false, domain.ErrInternal("load payment", err)
	}
	if payment == nil {
		return false, domain.ErrNotFound("payment", paymentID)
	}

	if err := s.ledger.CreditPayment(ctx, tx, payment, settings); err != nil {
		return false, domain.ErrInternal("credit payment", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, domain.ErrInternal("commit payment", err)
	}

	s.logger.Info("payment credited",
		"payment_id", paymentID, "user_id", payment.UserID,
		"amount", domain.FormatRubles(payment.Amount), "method", payment.Method)
	return true, nil
}

// GetPayment returns one payment, enforcing ownership for non-admins.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string, requester *domain.User) (*domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, s.pool, paymentID)
	if err != nil {
		return nil, domain.ErrInternal("load payment", err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound("payment", paymentID)
	}
	if payment.UserID != requester.ID && !requester.IsAdmin() {
		return nil, domain.ErrForbidden("not your payment")
	}
	return payment, nil
}

// History returns the user's payments, newest first.
func (s *PaymentService) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Payment, error) {
	payments, err := s.payments.ListByUser(ctx, s.pool, userID, limit)
	if err != nil {
		return nil, domain.ErrInternal("list payments", err)
	}
	return payments, nil
}

// TransferReferral moves referral earnings to the spendable balance.
func (s *PaymentService) TransferReferral(ctx context.Context, userID uuid.UUID, amount int64) error {
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return domain.ErrValidation(err.Error())
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ledger.TransferReferral(ctx, tx, userID, amount); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit transfer", err)
	}

	s.logger.Info("referral transfer",
		"user_id", userID, "amount", domain.FormatRubles(amount))
	return nil
}

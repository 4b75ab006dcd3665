package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"time"

	internal "github.com/hoanglv/swapstation-management/internal"
	paymentmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/payment"
	"github.com/hoanglv/swapstation-management/internal/core/events"
	"github.com/hoanglv/swapstation-management/internal/vnpay"
)

// ErrNotFound is returned by RepositoryAPI implementations when no record
// matches the transaction reference.
var ErrNotFound = errors.New("payment not found")

const (
	txnRefPrefix  = "SWP"
	vnpTimeFormat = "20060102150405"
	currencyCode  = "VND"
	commandPay    = "pay"
)

// vnpLocation is the civil time zone every gateway-facing timestamp is
// rendered in, regardless of the host zone.
var vnpLocation = time.FixedZone("UTC+7", 7*60*60)

// RepositoryAPI is the persistence contract for payment records.
type RepositoryAPI interface {
	Create(p *paymentmodel.Payment) error
	GetByTxnRef(txnRef string) (*paymentmodel.Payment, error)
	// MarkOutcome atomically moves a PENDING record to the given terminal
	// status and stores the gateway bundle. It reports false when the record
	// was no longer PENDING, which is the replay/race signal.
	MarkOutcome(txnRef, status string, result paymentmodel.GatewayResult) (bool, error)
	MarkExpiredBefore(cutoff time.Time) (int64, error)
}

// UserDirectory is the external collaborator used to validate payment owners.
type UserDirectory interface {
	Exists(userID int64) (bool, error)
}

type PaymentService struct {
	repo   RepositoryAPI
	users  UserDirectory
	signer *vnpay.Signer
	cfg    internal.VNPayConfig
	bus    *events.EventBus
	logger *slog.Logger
	now    func() time.Time
}

func NewPaymentService(repo RepositoryAPI, users UserDirectory, signer *vnpay.Signer, cfg internal.VNPayConfig, bus *events.EventBus, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:   repo,
		users:  users,
		signer: signer,
		cfg:    cfg,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the service clock, used by tests to pin timestamps.
func (s *PaymentService) WithClock(now func() time.Time) *PaymentService {
	s.now = now
	return s
}

// CreatePayment validates the owner, persists a PENDING record with a fresh
// transaction reference and returns the record together with the signed
// gateway redirect URL.
func (s *PaymentService) CreatePayment(ctx context.Context, params CreatePaymentParams) (*paymentmodel.Payment, string, error) {
	if err := params.Validate(); err != nil {
		return nil, "", err
	}

	exists, err := s.users.Exists(params.UserID)
	if err != nil {
		s.logger.Error("user lookup failed", "error", err, "user_id", params.UserID)
		return nil, "", internal.NewInternalError("failed to look up user", err)
	}
	if !exists {
		return nil, "", internal.ErrUserNotFound
	}

	txnRef, err := s.newTxnRef()
	if err != nil {
		return nil, "", internal.NewInternalError("failed to allocate transaction reference", err)
	}

	createdAt := s.now()
	record := &paymentmodel.Payment{
		TxnRef:    txnRef,
		UserID:    params.UserID,
		PackID:    params.PackID,
		AmountVND: params.AmountVND,
		OrderInfo: params.OrderInfo,
		Status:    paymentmodel.StatusPending,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(s.cfg.PaymentTTL),
	}

	if err := s.repo.Create(record); err != nil {
		s.logger.Error("failed to persist payment record", "error", err, "txn_ref", txnRef)
		return nil, "", internal.NewInternalError("failed to create payment record", err)
	}

	url := s.PaymentURL(record, params.ClientIP)

	s.logger.Info("payment created",
		"txn_ref", txnRef,
		"user_id", params.UserID,
		"amount_vnd", params.AmountVND)

	return record, url, nil
}

// newTxnRef generates a reference of the form SWP<yyyymmddhhmmss><6 random
// digits> and probes the store so a collision is caught before insert; the
// unique index on txn_ref remains the final arbiter.
func (s *PaymentService) newTxnRef() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		ref := fmt.Sprintf("%s%s%06d", txnRefPrefix, s.now().In(vnpLocation).Format(vnpTimeFormat), rand.Intn(1000000))
		_, err := s.repo.GetByTxnRef(ref)
		if errors.Is(err, ErrNotFound) {
			return ref, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not allocate a unique transaction reference")
}

// PaymentURL assembles and signs the outbound redirect URL for a record.
func (s *PaymentService) PaymentURL(p *paymentmodel.Payment, clientIP string) string {
	req := vnpay.NewSignedRequest().
		Add(vnpay.FieldVersion, s.cfg.Version).
		Add(vnpay.FieldCommand, commandPay).
		Add(vnpay.FieldTmnCode, s.cfg.TmnCode).
		Add(vnpay.FieldAmount, fmt.Sprintf("%d", p.AmountVND*100)).
		Add(vnpay.FieldCurrCode, currencyCode).
		Add(vnpay.FieldTxnRef, p.TxnRef).
		Add(vnpay.FieldOrderInfo, p.OrderInfo).
		Add(vnpay.FieldOrderType, s.cfg.OrderType).
		Add(vnpay.FieldLocale, s.cfg.Locale).
		Add(vnpay.FieldReturnURL, s.cfg.ReturnURL).
		Add(vnpay.FieldIPAddr, normalizeClientIP(clientIP)).
		Add(vnpay.FieldCreateDate, p.CreatedAt.In(vnpLocation).Format(vnpTimeFormat)).
		Add(vnpay.FieldExpireDate, p.ExpiresAt.In(vnpLocation).Format(vnpTimeFormat))

	hash, query := s.signer.Sign(req)
	return s.cfg.PayURL + "?" + query + "&" + vnpay.FieldSecureHash + "=" + hash
}

// PaymentURLFor rebuilds the redirect URL for an existing PENDING record,
// used by the QR presentation endpoint.
func (s *PaymentService) PaymentURLFor(txnRef, clientIP string) (string, error) {
	record, err := s.PaymentByTxnRef(txnRef)
	if err != nil {
		return "", err
	}
	if !record.IsPending() {
		return "", internal.ErrAlreadyConfirmed
	}
	return s.PaymentURL(record, clientIP), nil
}

func (s *PaymentService) PaymentByTxnRef(txnRef string) (*paymentmodel.Payment, error) {
	record, err := s.repo.GetByTxnRef(txnRef)
	if errors.Is(err, ErrNotFound) {
		return nil, internal.ErrPaymentNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to load payment record", err)
	}
	return record, nil
}

// HandleCallback applies a verified gateway outcome to the stored record.
// The PENDING -> terminal transition happens through a conditional update,
// so concurrent Return and IPN deliveries for the same txnRef resolve to one
// fresh transition and one replay.
func (s *PaymentService) HandleCallback(ctx context.Context, params CallbackParams) (CallbackOutcome, error) {
	record, err := s.PaymentByTxnRef(params.TxnRef)
	if err != nil {
		return 0, err
	}

	if !record.IsPending() {
		s.logger.Info("callback replay ignored",
			"txn_ref", params.TxnRef,
			"status", record.Status)
		return OutcomeReplay, nil
	}

	if !s.checkAmount(record, params.Amount) {
		return OutcomeAmountMismatch, nil
	}

	success := params.ResponseCode == "00" && params.TransactionStatus == "00"
	status := paymentmodel.StatusFailed
	if success {
		status = paymentmodel.StatusSuccess
	}

	transitioned, err := s.repo.MarkOutcome(params.TxnRef, status, paymentmodel.GatewayResult{
		TransactionNo:     params.TransactionNo,
		ResponseCode:      params.ResponseCode,
		TransactionStatus: params.TransactionStatus,
		PayDate:           params.PayDate,
		BankCode:          params.BankCode,
	})
	if err != nil {
		s.logger.Error("failed to store callback outcome", "error", err, "txn_ref", params.TxnRef)
		return 0, internal.NewInternalError("failed to store callback outcome", err)
	}
	if !transitioned {
		// Lost the race against the other callback path.
		s.logger.Info("callback raced an earlier transition", "txn_ref", params.TxnRef)
		return OutcomeReplay, nil
	}

	s.logger.Info("payment transitioned",
		"txn_ref", params.TxnRef,
		"status", status,
		"response_code", params.ResponseCode,
		"transaction_no", params.TransactionNo)

	if success {
		event := events.NewPaymentSucceededEvent(
			record.ID,
			record.TxnRef,
			record.UserID,
			record.PackID,
			record.AmountVND,
			params.TransactionNo,
			params.BankCode,
		)
		if err := s.bus.PublishSync(ctx, event); err != nil {
			s.logger.Error("post-payment crediting failed",
				"error", err,
				"txn_ref", params.TxnRef)
			return OutcomeConfirmedSuccess, internal.NewInternalError("payment confirmed but crediting failed", err)
		}
		return OutcomeConfirmedSuccess, nil
	}

	event := events.NewPaymentFailedEvent(record.ID, record.TxnRef, record.UserID, record.AmountVND, params.ResponseCode)
	_ = s.bus.Publish(ctx, event)
	return OutcomeConfirmedFailed, nil
}

// checkAmount is a stub: the gateway-reported vnp_Amount is not reconciled
// against the stored amount yet. The gateway contract for how partial
// captures are reported has to be confirmed before enforcing this.
func (s *PaymentService) checkAmount(record *paymentmodel.Payment, gatewayAmount string) bool {
	return true
}

// ExpireStale flips PENDING records past their expiry to EXPIRED and returns
// the number of rows touched. Called from the sweep worker only.
func (s *PaymentService) ExpireStale() (int64, error) {
	count, err := s.repo.MarkExpiredBefore(s.now())
	if err != nil {
		return 0, internal.NewInternalError("failed to expire stale payments", err)
	}
	if count > 0 {
		s.logger.Info("expired stale payments", "count", count)
	}
	return count, nil
}

// normalizeClientIP collapses IPv6 loopback and unparseable addresses to
// 127.0.0.1, the form the gateway accepts.
func normalizeClientIP(addr string) string {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.TrimSpace(host)

	ip := net.ParseIP(host)
	if ip == nil {
		return "127.0.0.1"
	}
	if ip.To4() == nil && ip.IsLoopback() {
		return "127.0.0.1"
	}
	return host
}

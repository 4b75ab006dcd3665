package payment_test

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hoanglv/swapstation-management/internal"
	paymentmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/payment"
	"github.com/hoanglv/swapstation-management/internal/core/events"
	paymentpkg "github.com/hoanglv/swapstation-management/internal/payment"
	"github.com/hoanglv/swapstation-management/internal/vnpay"
)

// Mock repository for testing
type mockPaymentRepo struct {
	records     map[string]*paymentmodel.Payment
	nextID      int64
	createError error
	getError    error
	markError   error
	expireError error
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{
		records: make(map[string]*paymentmodel.Payment),
	}
}

func (m *mockPaymentRepo) Create(p *paymentmodel.Payment) error {
	if m.createError != nil {
		return m.createError
	}
	m.nextID++
	p.ID = m.nextID
	m.records[p.TxnRef] = p
	return nil
}

func (m *mockPaymentRepo) GetByTxnRef(txnRef string) (*paymentmodel.Payment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	p, exists := m.records[txnRef]
	if !exists {
		return nil, paymentpkg.ErrNotFound
	}
	return p, nil
}

func (m *mockPaymentRepo) MarkOutcome(txnRef, status string, result paymentmodel.GatewayResult) (bool, error) {
	if m.markError != nil {
		return false, m.markError
	}
	p, exists := m.records[txnRef]
	if !exists || p.Status != paymentmodel.StatusPending {
		return false, nil
	}
	p.Status = status
	p.TransactionNo = &result.TransactionNo
	p.ResponseCode = &result.ResponseCode
	p.TransactionStatus = &result.TransactionStatus
	p.PayDate = &result.PayDate
	p.BankCode = &result.BankCode
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockPaymentRepo) MarkExpiredBefore(cutoff time.Time) (int64, error) {
	if m.expireError != nil {
		return 0, m.expireError
	}
	var count int64
	for _, p := range m.records {
		if p.Status == paymentmodel.StatusPending && p.ExpiresAt.Before(cutoff) {
			p.Status = paymentmodel.StatusExpired
			count++
		}
	}
	return count, nil
}

type mockUserDirectory struct {
	exists      bool
	existsError error
}

func (m *mockUserDirectory) Exists(userID int64) (bool, error) {
	if m.existsError != nil {
		return false, m.existsError
	}
	return m.exists, nil
}

var _ = Describe("PaymentService", func() {
	var (
		service    *paymentpkg.PaymentService
		mockRepo   *mockPaymentRepo
		mockUsers  *mockUserDirectory
		signer     *vnpay.Signer
		bus        *events.EventBus
		logger     *slog.Logger
		cfg        internal.VNPayConfig
		fixedNow   time.Time
		credits    []*events.PaymentSucceededEvent
		creditFail error
	)

	BeforeEach(func() {
		mockRepo = newMockPaymentRepo()
		mockUsers = &mockUserDirectory{exists: true}
		signer = vnpay.NewSigner("VNPAYSECRETKEYFORTESTING")
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		bus = events.NewEventBus(logger)
		credits = nil
		creditFail = nil

		bus.Subscribe(events.EventTypePaymentSucceeded, func(ctx context.Context, event events.Event) error {
			if creditFail != nil {
				return creditFail
			}
			credits = append(credits, event.(*events.PaymentSucceededEvent))
			return nil
		})

		cfg = internal.VNPayConfig{
			TmnCode:    "TESTTMN",
			HashSecret: "VNPAYSECRETKEYFORTESTING",
			PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "http://localhost:8080/vnpay/return",
			Version:    "2.1.0",
			OrderType:  "other",
			Locale:     "vn",
			PaymentTTL: 15 * time.Minute,
		}

		// 10:30 UTC renders as 17:30 in the gateway's UTC+7 zone.
		fixedNow = time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
		service = paymentpkg.NewPaymentService(mockRepo, mockUsers, signer, cfg, bus, logger).
			WithClock(func() time.Time { return fixedNow })
	})

	queryOf := func(paymentURL string) url.Values {
		parsed, err := url.Parse(paymentURL)
		Expect(err).ToNot(HaveOccurred())
		values, err := url.ParseQuery(parsed.RawQuery)
		Expect(err).ToNot(HaveOccurred())
		return values
	}

	Describe("CreatePayment", func() {
		validParams := func() paymentpkg.CreatePaymentParams {
			return paymentpkg.CreatePaymentParams{
				UserID:    42,
				AmountVND: 21300,
				OrderInfo: "Thanh toan goi pin",
				ClientIP:  "203.0.113.7:51234",
			}
		}

		Context("when all parameters are valid", func() {
			It("should persist a pending record with a fresh reference", func() {
				// When
				record, paymentURL, err := service.CreatePayment(context.Background(), validParams())

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(record).ToNot(BeNil())
				Expect(record.Status).To(Equal(paymentmodel.StatusPending))
				Expect(record.TxnRef).To(HavePrefix("SWP20260829173000"))
				Expect(record.TxnRef).To(HaveLen(23))
				Expect(record.ExpiresAt).To(Equal(fixedNow.Add(15 * time.Minute)))
				Expect(paymentURL).To(HavePrefix(cfg.PayURL + "?"))
				Expect(mockRepo.records).To(HaveKey(record.TxnRef))
			})

			It("should build the gateway URL with the scaled amount and UTC+7 timestamps", func() {
				// When
				record, paymentURL, err := service.CreatePayment(context.Background(), validParams())

				// Then
				Expect(err).ToNot(HaveOccurred())
				values := queryOf(paymentURL)
				Expect(values.Get(vnpay.FieldVersion)).To(Equal("2.1.0"))
				Expect(values.Get(vnpay.FieldCommand)).To(Equal("pay"))
				Expect(values.Get(vnpay.FieldTmnCode)).To(Equal("TESTTMN"))
				Expect(values.Get(vnpay.FieldAmount)).To(Equal("2130000"))
				Expect(values.Get(vnpay.FieldCurrCode)).To(Equal("VND"))
				Expect(values.Get(vnpay.FieldTxnRef)).To(Equal(record.TxnRef))
				Expect(values.Get(vnpay.FieldOrderInfo)).To(Equal("Thanh toan goi pin"))
				Expect(values.Get(vnpay.FieldIPAddr)).To(Equal("203.0.113.7"))
				Expect(values.Get(vnpay.FieldCreateDate)).To(Equal("20260829173000"))
				Expect(values.Get(vnpay.FieldExpireDate)).To(Equal("20260829174500"))
				Expect(values.Get(vnpay.FieldSecureHash)).To(HaveLen(128))
			})

			It("should produce a URL whose signature verifies", func() {
				// When
				_, paymentURL, err := service.CreatePayment(context.Background(), validParams())

				// Then
				Expect(err).ToNot(HaveOccurred())
				values := queryOf(paymentURL)
				params := make(map[string]string, len(values))
				for name := range values {
					params[name] = values.Get(name)
				}
				Expect(signer.VerifyIPN(params)).To(BeTrue())
			})

			It("should normalize loopback and unparseable client addresses", func() {
				// Given
				params := validParams()
				params.ClientIP = "[::1]:43210"

				// When
				_, paymentURL, err := service.CreatePayment(context.Background(), params)

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(queryOf(paymentURL).Get(vnpay.FieldIPAddr)).To(Equal("127.0.0.1"))

				params.ClientIP = "not-an-address"
				_, paymentURL, err = service.CreatePayment(context.Background(), params)
				Expect(err).ToNot(HaveOccurred())
				Expect(queryOf(paymentURL).Get(vnpay.FieldIPAddr)).To(Equal("127.0.0.1"))
			})
		})

		Context("when validation fails", func() {
			It("should reject a non-positive amount", func() {
				// Given
				params := validParams()
				params.AmountVND = 0

				// When
				record, _, err := service.CreatePayment(context.Background(), params)

				// Then
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("must be greater than 0"))
				Expect(record).To(BeNil())
				Expect(mockRepo.records).To(BeEmpty())
			})

			It("should reject missing order info", func() {
				// Given
				params := validParams()
				params.OrderInfo = ""

				// When
				_, _, err := service.CreatePayment(context.Background(), params)

				// Then
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("order_info is required"))
			})
		})

		Context("when the user is unknown", func() {
			It("should return a not found error", func() {
				// Given
				mockUsers.exists = false

				// When
				record, _, err := service.CreatePayment(context.Background(), validParams())

				// Then
				Expect(err).To(MatchError(internal.ErrUserNotFound))
				Expect(record).To(BeNil())
			})
		})

		Context("when the user lookup fails", func() {
			It("should wrap the error as internal", func() {
				// Given
				mockUsers.existsError = errors.New("directory unavailable")

				// When
				_, _, err := service.CreatePayment(context.Background(), validParams())

				// Then
				Expect(err).To(HaveOccurred())
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
			})
		})

		Context("when the repository fails", func() {
			It("should return an error and no URL", func() {
				// Given
				mockRepo.createError = errors.New("database error")

				// When
				record, paymentURL, err := service.CreatePayment(context.Background(), validParams())

				// Then
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to create payment record"))
				Expect(record).To(BeNil())
				Expect(paymentURL).To(BeEmpty())
			})
		})
	})

	Describe("HandleCallback", func() {
		var pending *paymentmodel.Payment

		BeforeEach(func() {
			packID := int64(3)
			pending = &paymentmodel.Payment{
				ID:        1,
				TxnRef:    "SWP20260829173000123456",
				UserID:    42,
				PackID:    &packID,
				AmountVND: 21300,
				OrderInfo: "Thanh toan goi pin",
				Status:    paymentmodel.StatusPending,
				CreatedAt: fixedNow,
				ExpiresAt: fixedNow.Add(15 * time.Minute),
			}
			mockRepo.records[pending.TxnRef] = pending
		})

		successParams := func() paymentpkg.CallbackParams {
			return paymentpkg.CallbackParams{
				TxnRef:            pending.TxnRef,
				ResponseCode:      "00",
				TransactionStatus: "00",
				TransactionNo:     "14226112",
				PayDate:           "20260829173205",
				BankCode:          "NCB",
				Amount:            "2130000",
			}
		}

		Context("when a successful callback arrives first", func() {
			It("should transition to SUCCESS and credit exactly once", func() {
				// When
				outcome, err := service.HandleCallback(context.Background(), successParams())

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(outcome).To(Equal(paymentpkg.OutcomeConfirmedSuccess))
				Expect(pending.Status).To(Equal(paymentmodel.StatusSuccess))
				Expect(pending.TransactionNo).ToNot(BeNil())
				Expect(*pending.TransactionNo).To(Equal("14226112"))
				Expect(*pending.BankCode).To(Equal("NCB"))

				Expect(credits).To(HaveLen(1))
				Expect(credits[0].UserID).To(Equal(int64(42)))
				Expect(credits[0].AmountVND).To(Equal(int64(21300)))
				Expect(credits[0].TxnRef).To(Equal(pending.TxnRef))
			})
		})

		Context("when the same callback is delivered again", func() {
			It("should report a replay and not credit twice", func() {
				// Given
				_, err := service.HandleCallback(context.Background(), successParams())
				Expect(err).ToNot(HaveOccurred())

				// When
				outcome, err := service.HandleCallback(context.Background(), successParams())

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(outcome).To(Equal(paymentpkg.OutcomeReplay))
				Expect(pending.Status).To(Equal(paymentmodel.StatusSuccess))
				Expect(credits).To(HaveLen(1))
			})
		})

		Context("when the gateway reports a failure", func() {
			It("should transition to FAILED without crediting", func() {
				// Given
				params := successParams()
				params.ResponseCode = "24"
				params.TransactionStatus = "02"

				// When
				outcome, err := service.HandleCallback(context.Background(), params)

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(outcome).To(Equal(paymentpkg.OutcomeConfirmedFailed))
				Expect(pending.Status).To(Equal(paymentmodel.StatusFailed))
				Expect(*pending.ResponseCode).To(Equal("24"))
				Expect(credits).To(BeEmpty())
			})
		})

		Context("when only one of the two status codes is 00", func() {
			It("should treat the outcome as failed", func() {
				// Given
				params := successParams()
				params.TransactionStatus = "07"

				// When
				outcome, err := service.HandleCallback(context.Background(), params)

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(outcome).To(Equal(paymentpkg.OutcomeConfirmedFailed))
				Expect(pending.Status).To(Equal(paymentmodel.StatusFailed))
			})
		})

		Context("when the transaction reference is unknown", func() {
			It("should return a payment not found error", func() {
				// Given
				params := successParams()
				params.TxnRef = "SWP00000000000000000000"

				// When
				_, err := service.HandleCallback(context.Background(), params)

				// Then
				Expect(err).To(HaveOccurred())
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodePaymentNotFound))
				Expect(pending.Status).To(Equal(paymentmodel.StatusPending))
			})
		})

		Context("when crediting fails after the transition", func() {
			It("should keep the SUCCESS status and surface an internal error", func() {
				// Given
				creditFail = errors.New("subscription store down")

				// When
				outcome, err := service.HandleCallback(context.Background(), successParams())

				// Then
				Expect(err).To(HaveOccurred())
				Expect(outcome).To(Equal(paymentpkg.OutcomeConfirmedSuccess))
				Expect(pending.Status).To(Equal(paymentmodel.StatusSuccess))
			})
		})
	})

	Describe("PaymentURLFor", func() {
		BeforeEach(func() {
			mockRepo.records["SWP1"] = &paymentmodel.Payment{
				ID:        1,
				TxnRef:    "SWP1",
				UserID:    42,
				AmountVND: 50000,
				OrderInfo: "Goi thang",
				Status:    paymentmodel.StatusPending,
				CreatedAt: fixedNow,
				ExpiresAt: fixedNow.Add(15 * time.Minute),
			}
		})

		It("should rebuild the signed URL for a pending record", func() {
			paymentURL, err := service.PaymentURLFor("SWP1", "203.0.113.7")
			Expect(err).ToNot(HaveOccurred())
			Expect(queryOf(paymentURL).Get(vnpay.FieldTxnRef)).To(Equal("SWP1"))
			Expect(queryOf(paymentURL).Get(vnpay.FieldAmount)).To(Equal("5000000"))
		})

		It("should refuse records that are no longer pending", func() {
			mockRepo.records["SWP1"].Status = paymentmodel.StatusSuccess

			_, err := service.PaymentURLFor("SWP1", "203.0.113.7")
			Expect(err).To(MatchError(internal.ErrAlreadyConfirmed))
		})

		It("should report unknown references as not found", func() {
			_, err := service.PaymentURLFor("SWP404", "203.0.113.7")
			Expect(err).To(MatchError(internal.ErrPaymentNotFound))
		})
	})

	Describe("ExpireStale", func() {
		It("should flip only pending records past their expiry", func() {
			// Given
			mockRepo.records["SWP-old"] = &paymentmodel.Payment{
				TxnRef:    "SWP-old",
				Status:    paymentmodel.StatusPending,
				ExpiresAt: fixedNow.Add(-time.Minute),
			}
			mockRepo.records["SWP-fresh"] = &paymentmodel.Payment{
				TxnRef:    "SWP-fresh",
				Status:    paymentmodel.StatusPending,
				ExpiresAt: fixedNow.Add(10 * time.Minute),
			}
			mockRepo.records["SWP-done"] = &paymentmodel.Payment{
				TxnRef:    "SWP-done",
				Status:    paymentmodel.StatusSuccess,
				ExpiresAt: fixedNow.Add(-time.Hour),
			}

			// When
			count, err := service.ExpireStale()

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
			Expect(mockRepo.records["SWP-old"].Status).To(Equal(paymentmodel.StatusExpired))
			Expect(mockRepo.records["SWP-fresh"].Status).To(Equal(paymentmodel.StatusPending))
			Expect(mockRepo.records["SWP-done"].Status).To(Equal(paymentmodel.StatusSuccess))
		})
	})
})

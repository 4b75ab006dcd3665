package payment_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hoanglv/swapstation-management/internal"
	paymentmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/payment"
	paymentpkg "github.com/hoanglv/swapstation-management/internal/payment"
)

type mockPaymentServiceAPI struct {
	record          *paymentmodel.Payment
	paymentURL      string
	createError     error
	getError        error
	urlForError     error
	callbackOutcome paymentpkg.CallbackOutcome
	callbackError   error

	lastCreateParams paymentpkg.CreatePaymentParams
}

func (m *mockPaymentServiceAPI) CreatePayment(ctx context.Context, params paymentpkg.CreatePaymentParams) (*paymentmodel.Payment, string, error) {
	m.lastCreateParams = params
	if m.createError != nil {
		return nil, "", m.createError
	}
	return m.record, m.paymentURL, nil
}

func (m *mockPaymentServiceAPI) PaymentByTxnRef(txnRef string) (*paymentmodel.Payment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	return m.record, nil
}

func (m *mockPaymentServiceAPI) PaymentURLFor(txnRef, clientIP string) (string, error) {
	if m.urlForError != nil {
		return "", m.urlForError
	}
	return m.paymentURL, nil
}

func (m *mockPaymentServiceAPI) HandleCallback(ctx context.Context, params paymentpkg.CallbackParams) (paymentpkg.CallbackOutcome, error) {
	return m.callbackOutcome, m.callbackError
}

var _ = Describe("Handler", func() {
	var (
		handler     *paymentpkg.Handler
		mockService *mockPaymentServiceAPI
		recorder    *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		mockService = &mockPaymentServiceAPI{
			record: &paymentmodel.Payment{
				ID:        1,
				TxnRef:    "SWP20260829173000123456",
				UserID:    42,
				AmountVND: 21300,
				OrderInfo: "Thanh toan goi pin",
				Status:    paymentmodel.StatusPending,
				CreatedAt: time.Now(),
				ExpiresAt: time.Now().Add(15 * time.Minute),
			},
			paymentURL: "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?vnp_TxnRef=SWP20260829173000123456",
		}
		handler = paymentpkg.NewHandler(mockService, logger)
		recorder = httptest.NewRecorder()
	})

	postForm := func(form url.Values) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/vnpay/create-url", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "203.0.113.7:51234"
		return req
	}

	Describe("CreateURL", func() {
		Context("when the form is valid", func() {
			It("should return the signed payment URL", func() {
				// Given
				form := url.Values{}
				form.Set("userID", "42")
				form.Set("packID", "3")
				form.Set("amount", "21300")
				form.Set("orderInfo", "Thanh toan goi pin")

				// When
				handler.CreateURL(recorder, postForm(form))

				// Then
				Expect(recorder.Code).To(Equal(http.StatusOK))
				var resp paymentpkg.CreateURLResponse
				Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.Status).To(Equal("success"))
				Expect(resp.Data).To(Equal(mockService.paymentURL))

				Expect(mockService.lastCreateParams.UserID).To(Equal(int64(42)))
				Expect(mockService.lastCreateParams.AmountVND).To(Equal(int64(21300)))
				Expect(mockService.lastCreateParams.PackID).ToNot(BeNil())
				Expect(*mockService.lastCreateParams.PackID).To(Equal(int64(3)))
				Expect(mockService.lastCreateParams.ClientIP).To(Equal("203.0.113.7"))
			})

			It("should round a fractional amount to whole dong", func() {
				// Given
				form := url.Values{}
				form.Set("userID", "42")
				form.Set("amount", "21300.6")
				form.Set("orderInfo", "Thanh toan goi pin")

				// When
				handler.CreateURL(recorder, postForm(form))

				// Then
				Expect(recorder.Code).To(Equal(http.StatusOK))
				Expect(mockService.lastCreateParams.AmountVND).To(Equal(int64(21301)))
			})

			It("should prefer the first X-Forwarded-For hop", func() {
				// Given
				form := url.Values{}
				form.Set("userID", "42")
				form.Set("amount", "21300")
				form.Set("orderInfo", "Thanh toan goi pin")
				req := postForm(form)
				req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")

				// When
				handler.CreateURL(recorder, req)

				// Then
				Expect(mockService.lastCreateParams.ClientIP).To(Equal("198.51.100.4"))
			})
		})

		Context("when the form is malformed", func() {
			It("should reject a non-numeric user ID", func() {
				// Given
				form := url.Values{}
				form.Set("userID", "abc")
				form.Set("amount", "21300")
				form.Set("orderInfo", "Thanh toan goi pin")

				// When
				handler.CreateURL(recorder, postForm(form))

				// Then
				Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			})

			It("should reject a non-numeric amount", func() {
				// Given
				form := url.Values{}
				form.Set("userID", "42")
				form.Set("amount", "lots")
				form.Set("orderInfo", "Thanh toan goi pin")

				// When
				handler.CreateURL(recorder, postForm(form))

				// Then
				Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			})

			It("should reject a non-numeric pack ID", func() {
				// Given
				form := url.Values{}
				form.Set("userID", "42")
				form.Set("packID", "x")
				form.Set("amount", "21300")
				form.Set("orderInfo", "Thanh toan goi pin")

				// When
				handler.CreateURL(recorder, postForm(form))

				// Then
				Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			})
		})

		Context("when the service rejects the request", func() {
			It("should map a missing user to 404", func() {
				// Given
				mockService.createError = internal.ErrUserNotFound
				form := url.Values{}
				form.Set("userID", "42")
				form.Set("amount", "21300")
				form.Set("orderInfo", "Thanh toan goi pin")

				// When
				handler.CreateURL(recorder, postForm(form))

				// Then
				Expect(recorder.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("Status", func() {
		statusRequest := func(txnRef string) {
			router := chi.NewRouter()
			router.Get("/vnpay/status/{txnRef}", handler.Status)
			req := httptest.NewRequest(http.MethodGet, "/vnpay/status/"+txnRef, nil)
			router.ServeHTTP(recorder, req)
		}

		Context("when the record exists", func() {
			It("should return the public projection", func() {
				// When
				statusRequest(mockService.record.TxnRef)

				// Then
				Expect(recorder.Code).To(Equal(http.StatusOK))
				var resp paymentpkg.StatusResponse
				Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.TxnRef).To(Equal(mockService.record.TxnRef))
				Expect(resp.Status).To(Equal(paymentmodel.StatusPending))
				Expect(resp.AmountVND).To(Equal(int64(21300)))
			})
		})

		Context("when the record does not exist", func() {
			It("should return 404", func() {
				// Given
				mockService.getError = internal.ErrPaymentNotFound

				// When
				statusRequest("SWP00000000000000000000")

				// Then
				Expect(recorder.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("CreateQR", func() {
		Context("when the payment is pending", func() {
			It("should render a PNG of the payment URL", func() {
				// When
				req := httptest.NewRequest(http.MethodGet, "/vnpay/create-qr?txnRef="+mockService.record.TxnRef, nil)
				handler.CreateQR(recorder, req)

				// Then
				Expect(recorder.Code).To(Equal(http.StatusOK))
				Expect(recorder.Header().Get("Content-Type")).To(Equal("image/png"))
				Expect(recorder.Body.String()).To(HavePrefix("\x89PNG"))
			})
		})

		Context("when the payment is no longer pending", func() {
			It("should return 409", func() {
				// Given
				mockService.urlForError = internal.ErrAlreadyConfirmed

				// When
				req := httptest.NewRequest(http.MethodGet, "/vnpay/create-qr?txnRef="+mockService.record.TxnRef, nil)
				handler.CreateQR(recorder, req)

				// Then
				Expect(recorder.Code).To(Equal(http.StatusConflict))
			})
		})

		Context("when the reference is missing", func() {
			It("should return 400", func() {
				// When
				req := httptest.NewRequest(http.MethodGet, "/vnpay/create-qr", nil)
				handler.CreateQR(recorder, req)

				// Then
				Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})
})

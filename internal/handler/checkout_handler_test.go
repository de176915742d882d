package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"storefront/internal/model"
	"storefront/internal/workflow"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const checkoutBody = `{
	"checkoutItems": [{"productId":"P1","name":"Shirt","price":"19.99","quantity":2}],
	"shippingAddress": {"firstName":"Ada","lastName":"Lovelace","address":"1 Main St","city":"London","postalCode":"N1","country":"UK"},
	"paymentMethod": "card",
	"totalPrice": "39.98"
}`

func TestCheckoutHandler_Create(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		mockService := new(MockCheckoutService)
		h := NewCheckoutHandler(mockService, zerolog.Nop())
		id := uuid.New()
		mockService.On("Create", mock.Anything, "u1", mock.MatchedBy(func(req *model.CheckoutRequest) bool {
			return len(req.Items) == 1 && req.PaymentMethod == "card" && req.TotalPrice != nil
		})).Return(&model.CheckoutSession{ID: id, UserID: "u1", PaymentStatus: model.PaymentPending}, nil)

		w := serve(http.MethodPost, "/api/checkout", "/api/checkout", checkoutBody, asUser("u1"), h.Create)

		assert.Equal(t, http.StatusCreated, w.Code)
		var session model.CheckoutSession
		require.NoError(t, json.NewDecoder(w.Body).Decode(&session))
		assert.Equal(t, id, session.ID)
		mockService.AssertExpectations(t)
	})

	t.Run("Guest is rejected", func(t *testing.T) {
		mockService := new(MockCheckoutService)
		h := NewCheckoutHandler(mockService, zerolog.Nop())

		w := serve(http.MethodPost, "/api/checkout", "/api/checkout", checkoutBody, asGuest("g1"), h.Create)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Total mismatch", func(t *testing.T) {
		mockService := new(MockCheckoutService)
		h := NewCheckoutHandler(mockService, zerolog.Nop())
		mockService.On("Create", mock.Anything, "u1", mock.Anything).Return(nil, model.ErrTotalMismatch)

		w := serve(http.MethodPost, "/api/checkout", "/api/checkout", checkoutBody, asUser("u1"), h.Create)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), model.ErrCodeInvalidTotal)
	})
}

func TestCheckoutHandler_Get(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name           string
		target         string
		mockError      error
		expectService  bool
		expectedStatus int
	}{
		{name: "Found", target: "/api/checkout/" + id.String(), expectService: true, expectedStatus: http.StatusOK},
		{name: "Other user's session", target: "/api/checkout/" + id.String(), expectService: true, mockError: model.ErrSessionNotFound, expectedStatus: http.StatusNotFound},
		{name: "Malformed id", target: "/api/checkout/not-a-uuid", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCheckoutService)
			h := NewCheckoutHandler(mockService, zerolog.Nop())
			if tt.expectService {
				if tt.mockError != nil {
					mockService.On("GetByID", mock.Anything, id, "u1").Return(nil, tt.mockError)
				} else {
					mockService.On("GetByID", mock.Anything, id, "u1").Return(&model.CheckoutSession{ID: id, UserID: "u1"}, nil)
				}
			}

			w := serve(http.MethodGet, "/api/checkout/{id}", tt.target, "", asUser("u1"), h.Get)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				mockService.AssertExpectations(t)
			} else {
				mockService.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCheckoutHandler_Pay(t *testing.T) {
	id := uuid.New()
	mockService := new(MockCheckoutService)
	h := NewCheckoutHandler(mockService, zerolog.Nop())
	mockService.On("RecordPayment", mock.Anything, id, "u1", mock.MatchedBy(func(req *model.PaymentRequest) bool {
		return req.PaymentStatus == "paid" && string(req.PaymentDetails) == `{"txn":"abc"}`
	})).Return(&model.CheckoutSession{ID: id, IsPaid: true, PaymentStatus: model.PaymentPaid}, nil)

	w := serve(http.MethodPut, "/api/checkout/{id}/pay", "/api/checkout/"+id.String()+"/pay",
		`{"paymentStatus":"paid","paymentDetails":{"txn":"abc"}}`, asUser("u1"), h.Pay)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isPaid":true`)
	mockService.AssertExpectations(t)
}

func TestCheckoutHandler_Finalize(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name           string
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Order created",
			mockReturn:     &model.Order{ID: uuid.New(), CheckoutID: id, InvoiceNumber: "INV-000001"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Not paid",
			mockError:      model.ErrPaymentNotCompleted,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodePaymentNotCompleted,
		},
		{
			name:           "Lost the claim race",
			mockError:      &workflow.StepError{Step: "claim", Err: model.ErrAlreadyFinalized},
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeAlreadyFinalized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCheckoutService)
			h := NewCheckoutHandler(mockService, zerolog.Nop())
			if tt.mockReturn != nil {
				mockService.On("Finalize", mock.Anything, id, "u1").Return(tt.mockReturn, nil)
			} else {
				mockService.On("Finalize", mock.Anything, id, "u1").Return(nil, tt.mockError)
			}

			w := serve(http.MethodPost, "/api/checkout/{id}/finalize", "/api/checkout/"+id.String()+"/finalize", "", asUser("u1"), h.Finalize)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var body model.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, tt.expectedCode, body.Code)
			}
			mockService.AssertExpectations(t)
		})
	}
}

package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SergeyBogomolovv/checkout-service/internal/backend"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return backend.New(logger, backend.Config{BaseURL: srv.URL, Timeout: time.Second})
}

func TestClient_Mutate(t *testing.T) {
	t.Run("operation envelope and data decoding", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/query", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)

			var envelope struct {
				Operation string         `json:"operation"`
				Variables map[string]any `json:"variables"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
			assert.Equal(t, "placeOrder", envelope.Operation)
			assert.Equal(t, "cart-1", envelope.Variables["cart_id"])

			w.Write([]byte(`{"data": {"order": {"order_number": "100000042"}}}`))
		})

		orderNumber, err := client.PlaceOrder(context.Background(), entities.CartSession{CartID: "cart-1"})
		require.NoError(t, err)
		assert.Equal(t, "100000042", orderNumber)
	})

	t.Run("customer token becomes a bearer header", func(t *testing.T) {
		token := gofakeit.UUID()
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
			w.Write([]byte(`{"data": {"order": {"order_number": "100000042"}}}`))
		})

		_, err := client.PlaceOrder(context.Background(), entities.CartSession{
			CartID:        "cart-1",
			Authenticated: true,
			CustomerToken: token,
		})
		require.NoError(t, err)
	})

	t.Run("protocol-level errors become backend errors", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"errors": [{"message": "Could not find a cart with ID \"cart-1\""}]}`))
		})

		err := client.SetGuestEmail(context.Background(), "cart-1", gofakeit.Email())
		require.Error(t, err)

		msg, ok := backend.RemoteMessage(err)
		require.True(t, ok)
		assert.Equal(t, `Could not find a cart with ID "cart-1"`, msg)
	})

	t.Run("http-level rejection carries status and message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "The consumer isn't authorized"}`))
		})

		err := client.SetGuestEmail(context.Background(), "cart-1", gofakeit.Email())
		var be *backend.Error
		require.ErrorAs(t, err, &be)
		assert.Equal(t, http.StatusUnauthorized, be.StatusCode)
		assert.Equal(t, "The consumer isn't authorized", be.Message)
	})

	t.Run("non-json error body falls back to status text", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>upstream down</html>"))
		})

		err := client.SetGuestEmail(context.Background(), "cart-1", gofakeit.Email())
		var be *backend.Error
		require.ErrorAs(t, err, &be)
		assert.Equal(t, http.StatusBadGateway, be.StatusCode)
		assert.Equal(t, http.StatusText(http.StatusBadGateway), be.Message)
	})
}

func TestClient_CreateCart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Operation string `json:"operation"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		assert.Equal(t, "createEmptyCart", envelope.Operation)
		w.Write([]byte(`{"data": {"cart_id": "new-cart"}}`))
	})

	cartID, err := client.CreateCart(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "new-cart", cartID)
}

func TestClient_SubmitPaymentInformation(t *testing.T) {
	info := backend.PaymentInformation{
		PaymentMethod: backend.PaymentMethod{Code: entities.ExtendedProcessorCode},
	}

	t.Run("guest resource is cart scoped and unauthenticated", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/V1/guest-carts/cart-1/payment-information", r.URL.Path)
			assert.Empty(t, r.Header.Get("Authorization"))
			w.Write([]byte(`8831`))
		})

		entityID, err := client.SubmitPaymentInformation(context.Background(),
			entities.CartSession{CartID: "cart-1"}, info)
		require.NoError(t, err)
		assert.Equal(t, "8831", entityID)
	})

	t.Run("authenticated resource is mine scoped", func(t *testing.T) {
		token := gofakeit.UUID()
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/V1/carts/mine/payment-information", r.URL.Path)
			assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
			w.Write([]byte(`8831`))
		})

		_, err := client.SubmitPaymentInformation(context.Background(),
			entities.CartSession{CartID: "cart-1", Authenticated: true, CustomerToken: token}, info)
		require.NoError(t, err)
	})
}

func TestClient_OrderNumberByEntityID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/V1/orders/8831", r.URL.Path)
		w.Write([]byte(`{"entity_id": 8831, "increment_id": "100000042"}`))
	})

	orderNumber, err := client.OrderNumberByEntityID(context.Background(), "8831")
	require.NoError(t, err)
	assert.Equal(t, "100000042", orderNumber)
}

func TestClient_CarrierAccountsRoundTrip(t *testing.T) {
	records := []entities.CarrierAccountRecord{
		{
			ID:            gofakeit.UUID(),
			Nickname:      "Work",
			Carrier:       entities.CarrierKindUPS,
			AccountNumber: "12345678",
		},
	}

	var storedValue string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/V1/customers/me", r.URL.Path)

		switch r.Method {
		case http.MethodPut:
			var body struct {
				Customer struct {
					CustomAttributes []struct {
						Code  string `json:"attribute_code"`
						Value string `json:"value"`
					} `json:"custom_attributes"`
				} `json:"customer"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Customer.CustomAttributes, 1)
			assert.Equal(t, "carrier_accounts", body.Customer.CustomAttributes[0].Code)
			storedValue = body.Customer.CustomAttributes[0].Value
			w.Write([]byte(`{}`))
		case http.MethodGet:
			payload := map[string]any{
				"custom_attributes": []map[string]string{
					{"attribute_code": "carrier_accounts", "value": storedValue},
				},
			}
			json.NewEncoder(w).Encode(payload)
		}
	})

	token := gofakeit.UUID()
	require.NoError(t, client.SaveCustomerCarrierAccounts(context.Background(), token, records))

	got, err := client.CustomerCarrierAccounts(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference signature computation, mirroring the documented scheme
func computeSignature(method, path, salt, timestamp, accessKey, secretKey, body string) string {
	if body == "{}" {
		body = ""
	}
	toSign := strings.ToLower(method) + path + salt + timestamp + accessKey + secretKey + body
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(mac.Sum(nil))))
}

func testClient(t *testing.T, handler http.Handler) (*RapydService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service := NewRapydService("test_access", "test_secret", true)
	service.baseURL = server.URL
	service.client = server.Client()
	return service, server
}

func writeEnvelope(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	status := RapydStatus{Status: "SUCCESS"}
	if code >= 400 {
		status = RapydStatus{Status: "ERROR", ErrorCode: "UNAUTHENTICATED_API_CALL", Message: "Signature mismatch"}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status, "data": data})
}

func TestSignRequestDeterministic(t *testing.T) {
	service := NewRapydService("access", "secret", false)

	first := service.signRequest("GET", "/v1/data/currencies", "aabbccdd", "1700000000", nil)
	second := service.signRequest("GET", "/v1/data/currencies", "aabbccdd", "1700000000", nil)
	assert.Equal(t, first, second, "same inputs must produce the same signature")

	expected := computeSignature("GET", "/v1/data/currencies", "aabbccdd", "1700000000", "access", "secret", "")
	assert.Equal(t, expected, first)

	// the signature is the base64 of the hex digest, so it must decode to 64 hex chars
	decoded, err := base64.StdEncoding.DecodeString(first)
	require.NoError(t, err)
	assert.Len(t, decoded, 64)
	_, err = hex.DecodeString(string(decoded))
	assert.NoError(t, err)
}

func TestSignRequestEmptyBodyNormalization(t *testing.T) {
	service := NewRapydService("access", "secret", false)

	empty := service.signRequest("POST", "/v1/checkout", "salt", "1700000000", nil)
	braces := service.signRequest("POST", "/v1/checkout", "salt", "1700000000", []byte("{}"))
	assert.Equal(t, empty, braces, "a body serializing to {} must sign like an empty body")

	nonEmpty := service.signRequest("POST", "/v1/checkout", "salt", "1700000000", []byte(`{"country":"US"}`))
	assert.NotEqual(t, empty, nonEmpty)
}

func TestRequestSigning(t *testing.T) {
	var seen *http.Request
	var seenBody []byte
	service, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		seenBody, _ = io.ReadAll(r.Body)
		writeEnvelope(w, http.StatusOK, Checkout{ID: "checkout_1"})
	}))

	_, err := service.CreateCheckout(context.Background(), &CheckoutRequest{Country: "US", Currency: "USD"})
	require.NoError(t, err)
	require.NotNil(t, seen)

	salt := seen.Header.Get("salt")
	timestamp := seen.Header.Get("timestamp")
	assert.Equal(t, "test_access", seen.Header.Get("access_key"))
	assert.Len(t, salt, 16, "salt is 8 random bytes hex-encoded")
	_, err = strconv.ParseInt(timestamp, 10, 64)
	assert.NoError(t, err, "timestamp is unix seconds")

	expected := computeSignature("POST", "/v1/checkout", salt, timestamp, "test_access", "test_secret", string(seenBody))
	assert.Equal(t, expected, seen.Header.Get("signature"))
}

func TestRequestSignsQueryString(t *testing.T) {
	var seen *http.Request
	service, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		writeEnvelope(w, http.StatusOK, []PaymentMethod{})
	}))

	_, err := service.GetPaymentMethods(context.Background(), "FR", "EUR")
	require.NoError(t, err)
	require.NotNil(t, seen)

	assert.Equal(t, "/v1/payment_methods/country", seen.URL.Path)
	assert.Equal(t, "FR", seen.URL.Query().Get("country"))
	assert.Equal(t, "EUR", seen.URL.Query().Get("currency"))

	signedPath := seen.URL.Path + "?" + seen.URL.RawQuery
	expected := computeSignature("GET", signedPath, seen.Header.Get("salt"), seen.Header.Get("timestamp"), "test_access", "test_secret", "")
	assert.Equal(t, expected, seen.Header.Get("signature"), "the query string is part of the signed path")
}

func TestRequestGatewayError(t *testing.T) {
	service, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, nil)
	}))

	_, err := service.GetCurrencies(context.Background())
	require.Error(t, err)

	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, http.StatusUnauthorized, gatewayErr.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED_API_CALL", gatewayErr.Status.ErrorCode)
}

func TestListProductsPagination(t *testing.T) {
	catalog := make([]Product, 250)
	for i := range catalog {
		catalog[i] = Product{ID: fmt.Sprintf("product_%03d", i)}
	}

	requests := 0
	service, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, "/v1/products", r.URL.Path)

		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		require.NoError(t, err)

		start := 0
		if cursor := r.URL.Query().Get("ending_before"); cursor != "" {
			for i, product := range catalog {
				if product.ID == cursor {
					start = i + 1
					break
				}
			}
		}
		end := start + limit
		if end > len(catalog) {
			end = len(catalog)
		}
		writeEnvelope(w, http.StatusOK, catalog[start:end])
	}))

	products, err := service.ListProducts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, requests, "250 products at page size 100 takes 3 pages")
	require.Len(t, products, 250)

	unique := make(map[string]bool, len(products))
	for _, product := range products {
		unique[product.ID] = true
	}
	assert.Len(t, unique, 250, "pages must concatenate without duplicates")
}

package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const rapydPageSize = 100

// Gateway is the subset of gateway operations the payment flows depend on.
// RapydService is the production implementation.
type Gateway interface {
	GetPaymentMethods(ctx context.Context, country, currency string) ([]PaymentMethod, error)
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error)
	GetCheckout(ctx context.Context, id string) (*Checkout, error)
}

// ProductGateway is the subset of gateway operations the product catalog depends on.
type ProductGateway interface {
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, req *ProductRequest) (*Product, error)
	UpdateProduct(ctx context.Context, id string, req *ProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error
	CreateSKU(ctx context.Context, req *SKURequest) (*SKU, error)
	UpdateSKU(ctx context.Context, id string, req *SKURequest) (*SKU, error)
}

// RapydService issues signed requests to the Rapyd API on behalf of one
// account. Every request carries a per-request salt, a Unix timestamp and an
// HMAC-SHA256 signature computed over the method, path, credentials and body.
type RapydService struct {
	accessKey string
	secretKey string
	sandbox   bool
	baseURL   string
	client    *http.Client
}

// NewRapydService creates a gateway client for the given key pair. The
// sandbox flag selects the sandbox API host.
func NewRapydService(accessKey, secretKey string, sandbox bool) *RapydService {
	baseURL := "https://api.rapyd.net"
	if sandbox {
		baseURL = "https://sandboxapi.rapyd.net"
	}
	return &RapydService{
		accessKey: accessKey,
		secretKey: secretKey,
		sandbox:   sandbox,
		baseURL:   baseURL,
		client:    &http.Client{},
	}
}

// Sandbox reports whether the client targets the sandbox host. The browser
// widget needs the flag to pick the matching checkout toolkit host.
func (s *RapydService) Sandbox() bool {
	return s.sandbox
}

// RapydStatus is the vendor status block present on every Rapyd response.
type RapydStatus struct {
	Status      string `json:"status"`
	ErrorCode   string `json:"error_code"`
	Message     string `json:"message"`
	OperationID string `json:"operation_id"`
}

// GatewayError is returned for any non-2xx gateway response. It is never
// retried automatically; callers decide how to surface it.
type GatewayError struct {
	StatusCode int
	Status     RapydStatus
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway request failed with status %d: %s %s", e.StatusCode, e.Status.ErrorCode, e.Status.Message)
}

type rapydEnvelope struct {
	Status RapydStatus     `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (s *RapydService) request(ctx context.Context, method, path string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	salt, err := randomSalt()
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("access_key", s.accessKey)
	req.Header.Set("salt", salt)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("signature", s.signRequest(method, path, salt, timestamp, body))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope rapydEnvelope
	// Tolerate unparseable error bodies; the status code alone is enough to fail.
	_ = json.Unmarshal(respBody, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{StatusCode: resp.StatusCode, Status: envelope.Status}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// signRequest computes base64(hex(HMAC-SHA256(secret, lower(method) + path +
// salt + timestamp + access_key + secret_key + body))). A body serializing to
// "{}" signs identically to an empty body.
func (s *RapydService) signRequest(method, path, salt, timestamp string, body []byte) string {
	bodyString := string(body)
	if bodyString == "{}" {
		bodyString = ""
	}
	toSign := strings.ToLower(method) + path + salt + timestamp + s.accessKey + s.secretKey + bodyString

	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(mac.Sum(nil))))
}

func randomSalt() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Currency is a currency supported by the gateway.
type Currency struct {
	Code                        string `json:"code"`
	Name                        string `json:"name"`
	Symbol                      string `json:"symbol"`
	DigitsAfterDecimalSeparator int    `json:"digits_after_decimal_separator"`
}

// Country is a country supported by the gateway.
type Country struct {
	Name         string `json:"name"`
	ISOAlpha2    string `json:"iso_alpha2"`
	CurrencyCode string `json:"currency_code"`
	PhoneCode    string `json:"phone_code"`
}

// PaymentMethod is a payment method offered by the gateway in some country.
type PaymentMethod struct {
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Country    string   `json:"country"`
	Currencies []string `json:"currencies"`
	Image      string   `json:"image"`
}

// CheckoutRequest describes a checkout session to create at the gateway.
type CheckoutRequest struct {
	Country                     string                 `json:"country"`
	Currency                    string                 `json:"currency"`
	Amount                      float64                `json:"amount,omitempty"`
	Description                 string                 `json:"description,omitempty"`
	FixedSide                   string                 `json:"fixed_side,omitempty"`
	RequestedCurrency           string                 `json:"requested_currency,omitempty"`
	PaymentMethodTypeCategories []string               `json:"payment_method_type_categories,omitempty"`
	Metadata                    map[string]interface{} `json:"metadata,omitempty"`
	CompleteCheckoutURL         string                 `json:"complete_checkout_url,omitempty"`
	CancelCheckoutURL           string                 `json:"cancel_checkout_url,omitempty"`
}

// CheckoutPaymentInfo is the payment object nested in a checkout session.
type CheckoutPaymentInfo struct {
	Status                    string                 `json:"status"`
	Amount                    float64                `json:"amount"`
	CurrencyCode              string                 `json:"currency_code"`
	Metadata                  map[string]interface{} `json:"metadata"`
	PaymentMethodTypeCategory string                 `json:"payment_method_type_category"`
	CompletePaymentURL        string                 `json:"complete_payment_url"`
}

// Checkout is a gateway checkout session.
type Checkout struct {
	ID      string              `json:"id"`
	Country string              `json:"country"`
	Payment CheckoutPaymentInfo `json:"payment"`
}

// SKUInventory describes the stock tracking mode of a SKU.
type SKUInventory struct {
	Type string `json:"type"`
}

// SKU is a purchasable variant of a gateway product.
type SKU struct {
	ID        string       `json:"id"`
	Product   string       `json:"product"`
	Currency  string       `json:"currency"`
	Price     float64      `json:"price"`
	Inventory SKUInventory `json:"inventory"`
}

// Product is a catalog entry stored at the gateway. The metadata service tag
// scopes the shared vendor namespace down to entries owned by this app.
type Product struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Type     string                 `json:"type"`
	Images   []string               `json:"images"`
	Metadata map[string]interface{} `json:"metadata"`
	SKUs     []SKU                  `json:"skus"`
}

// ProductRequest describes a product to create or update.
type ProductRequest struct {
	Name     string                 `json:"name,omitempty"`
	Type     string                 `json:"type,omitempty"`
	Images   []string               `json:"images,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SKURequest describes a SKU to create or update.
type SKURequest struct {
	Product   string        `json:"product,omitempty"`
	Currency  string        `json:"currency,omitempty"`
	Price     float64       `json:"price,omitempty"`
	Inventory *SKUInventory `json:"inventory,omitempty"`
}

// GetCurrencies lists the currencies supported by the gateway.
func (s *RapydService) GetCurrencies(ctx context.Context) ([]Currency, error) {
	var currencies []Currency
	if err := s.request(ctx, http.MethodGet, "/v1/data/currencies", nil, &currencies); err != nil {
		return nil, err
	}
	return currencies, nil
}

// GetCountries lists the countries supported by the gateway.
func (s *RapydService) GetCountries(ctx context.Context) ([]Country, error) {
	var countries []Country
	if err := s.request(ctx, http.MethodGet, "/v1/data/countries", nil, &countries); err != nil {
		return nil, err
	}
	return countries, nil
}

// GetPaymentMethods lists the payment methods available in a country,
// optionally narrowed to one currency.
func (s *RapydService) GetPaymentMethods(ctx context.Context, country, currency string) ([]PaymentMethod, error) {
	query := url.Values{"country": {country}}
	if currency != "" {
		query.Set("currency", currency)
	}
	var methods []PaymentMethod
	if err := s.request(ctx, http.MethodGet, "/v1/payment_methods/country?"+query.Encode(), nil, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// CreateCheckout creates a checkout session at the gateway.
func (s *RapydService) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error) {
	var checkout Checkout
	if err := s.request(ctx, http.MethodPost, "/v1/checkout", req, &checkout); err != nil {
		return nil, err
	}
	return &checkout, nil
}

// GetCheckout fetches a checkout session by id.
func (s *RapydService) GetCheckout(ctx context.Context, id string) (*Checkout, error) {
	var checkout Checkout
	if err := s.request(ctx, http.MethodGet, "/v1/checkout/"+id, nil, &checkout); err != nil {
		return nil, err
	}
	return &checkout, nil
}

// GetProducts fetches a single page of products. The cursor is the id of the
// last product on the previous page.
func (s *RapydService) GetProducts(ctx context.Context, limit int, endingBefore string) ([]Product, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if endingBefore != "" {
		query.Set("ending_before", endingBefore)
	}
	var products []Product
	if err := s.request(ctx, http.MethodGet, "/v1/products?"+query.Encode(), nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListProducts fetches every product by paging through the catalog until a
// short or empty page comes back.
func (s *RapydService) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	for {
		cursor := ""
		if len(products) > 0 {
			cursor = products[len(products)-1].ID
		}
		page, err := s.GetProducts(ctx, rapydPageSize, cursor)
		if err != nil {
			return nil, err
		}
		products = append(products, page...)
		if len(page) < rapydPageSize {
			return products, nil
		}
	}
}

// CreateProduct creates a product at the gateway.
func (s *RapydService) CreateProduct(ctx context.Context, req *ProductRequest) (*Product, error) {
	var product Product
	if err := s.request(ctx, http.MethodPost, "/v1/products", req, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct updates a product at the gateway.
func (s *RapydService) UpdateProduct(ctx context.Context, id string, req *ProductRequest) (*Product, error) {
	var product Product
	if err := s.request(ctx, http.MethodPost, "/v1/products/"+id, req, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct deletes a product at the gateway.
func (s *RapydService) DeleteProduct(ctx context.Context, id string) error {
	return s.request(ctx, http.MethodDelete, "/v1/products/"+id, nil, nil)
}

// CreateSKU creates a SKU at the gateway.
func (s *RapydService) CreateSKU(ctx context.Context, req *SKURequest) (*SKU, error) {
	var sku SKU
	if err := s.request(ctx, http.MethodPost, "/v1/skus", req, &sku); err != nil {
		return nil, err
	}
	return &sku, nil
}

// UpdateSKU updates a SKU at the gateway.
func (s *RapydService) UpdateSKU(ctx context.Context, id string, req *SKURequest) (*SKU, error) {
	var sku SKU
	if err := s.request(ctx, http.MethodPost, "/v1/skus/"+id, req, &sku); err != nil {
		return nil, err
	}
	return &sku, nil
}

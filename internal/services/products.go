package services

import (
	"context"
	"errors"
	"log"

	"github.com/elbourki/paymentkit/internal/models"
)

// ServiceTag marks gateway products created by this application, scoping the
// vendor's shared product namespace down to ours.
const ServiceTag = "paymentkit"

// ErrProductHasNoSKU is returned when an update targets a product that was
// created without a SKU (e.g. by another tool against the same account).
var ErrProductHasNoSKU = errors.New("product has no sku")

// ProductService proxies the merchant's catalog to the gateway's product
// store. Nothing is persisted locally except the service metadata tag.
type ProductService struct {
	accounts *AccountService
	gateway  func(account *models.Account) ProductGateway
}

// NewProductService creates a ProductService
func NewProductService(accounts *AccountService) *ProductService {
	return &ProductService{
		accounts: accounts,
		gateway: func(account *models.Account) ProductGateway {
			return ClientForAccount(account)
		},
	}
}

func (s *ProductService) clientFor(ctx context.Context, accountID uint) (ProductGateway, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.gateway(account), nil
}

// List returns the account's own products, filtering the shared vendor
// catalog by the service metadata tag.
func (s *ProductService) List(ctx context.Context, accountID uint) ([]Product, error) {
	client, err := s.clientFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	all, err := client.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(all))
	for _, product := range all {
		if tag, _ := product.Metadata["service"].(string); tag == ServiceTag {
			products = append(products, product)
		}
	}
	return products, nil
}

// Create stores a product and its SKU at the gateway as a two-step saga.
// When the SKU step fails the just-created product is deleted best-effort;
// a failed rollback is only logged, leaving an orphan without our tag's SKU.
func (s *ProductService) Create(ctx context.Context, accountID uint, name string, price float64, currency, image string) error {
	client, err := s.clientFor(ctx, accountID)
	if err != nil {
		return err
	}

	product, err := client.CreateProduct(ctx, &ProductRequest{
		Name:   name,
		Type:   "goods",
		Images: []string{image},
		Metadata: map[string]interface{}{
			"service": ServiceTag,
		},
	})
	if err != nil {
		return err
	}

	_, err = client.CreateSKU(ctx, &SKURequest{
		Product:   product.ID,
		Currency:  currency,
		Price:     price,
		Inventory: &SKUInventory{Type: "infinite"},
	})
	if err != nil {
		if delErr := client.DeleteProduct(ctx, product.ID); delErr != nil {
			log.Printf("failed to roll back product %s after sku creation error: %v", product.ID, delErr)
		}
		return err
	}
	return nil
}

// Update renames a product and repoints its first SKU's price and currency.
func (s *ProductService) Update(ctx context.Context, accountID uint, id, name string, price float64, currency string) error {
	client, err := s.clientFor(ctx, accountID)
	if err != nil {
		return err
	}

	product, err := client.UpdateProduct(ctx, id, &ProductRequest{Name: name})
	if err != nil {
		return err
	}
	if len(product.SKUs) == 0 {
		return ErrProductHasNoSKU
	}

	_, err = client.UpdateSKU(ctx, product.SKUs[0].ID, &SKURequest{
		Currency: currency,
		Price:    price,
	})
	return err
}

// Delete removes a product from the gateway catalog.
func (s *ProductService) Delete(ctx context.Context, accountID uint, id string) error {
	client, err := s.clientFor(ctx, accountID)
	if err != nil {
		return err
	}
	return client.DeleteProduct(ctx, id)
}

package services

import (
	"context"
	"sort"
)

// CategoryCard is the payment method category used for manual card entry.
const CategoryCard = "card"

// PaymentOptions maps a currency code to the sorted set of payment method
// categories usable in that currency.
type PaymentOptions map[string][]string

// ResolvePaymentOptions computes which (currency, category) combinations are
// valid for a transaction in a country. When cardOnly is set the effective
// allowed set is exactly {card}; otherwise it is the merchant's configured
// category list. Methods outside the allowed set are discarded, every
// currency of a surviving method is associated with its category, and no
// matching methods yields an empty mapping rather than an error.
func ResolvePaymentOptions(ctx context.Context, gateway Gateway, country string, cardOnly bool, allowed []string) (PaymentOptions, error) {
	if cardOnly {
		allowed = []string{CategoryCard}
	}

	methods, err := gateway.GetPaymentMethods(ctx, country, "")
	if err != nil {
		return nil, err
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, category := range allowed {
		allowedSet[category] = true
	}

	categories := make(map[string]map[string]bool)
	for _, method := range methods {
		if !allowedSet[method.Category] {
			continue
		}
		for _, currency := range method.Currencies {
			if categories[currency] == nil {
				categories[currency] = make(map[string]bool)
			}
			categories[currency][method.Category] = true
		}
	}

	options := make(PaymentOptions, len(categories))
	for currency, set := range categories {
		list := make([]string, 0, len(set))
		for category := range set {
			list = append(list, category)
		}
		sort.Strings(list)
		options[currency] = list
	}
	return options, nil
}

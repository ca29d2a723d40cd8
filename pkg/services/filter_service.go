package services

import (
	"strings"

	"bulkedit-admin/pkg/models"
)

// フィルター対象フィールド
const (
	FilterFieldAll   = "all"
	FilterFieldTitle = "title"
	FilterFieldSKU   = "sku"
)

// フィルター演算子
const (
	FilterOpContains    = "contains"
	FilterOpNotContains = "not_contains"
	FilterOpStartsWith  = "starts_with"
	FilterOpIs          = "is"
	FilterOpEquals      = "equals"
)

// FilterProducts は選択したフィールドが条件を満たす商品を入力順のまま返します。
// 比較は大文字小文字を区別しません。field が "all" の場合は演算子と値に関係なく全件を返し、
// 未知の演算子やフィールドは空の結果になります。
func FilterProducts(products []models.Product, field, operator, value string) []models.Product {
	if field == FilterFieldAll {
		return products
	}

	var pick func(models.Product) string
	switch field {
	case FilterFieldTitle:
		pick = func(p models.Product) string { return p.Name }
	case FilterFieldSKU:
		pick = func(p models.Product) string { return p.SKU }
	default:
		return []models.Product{}
	}

	match := matcher(operator, strings.ToLower(value))
	if match == nil {
		return []models.Product{}
	}

	result := make([]models.Product, 0, len(products))
	for _, p := range products {
		if match(strings.ToLower(pick(p))) {
			result = append(result, p)
		}
	}
	return result
}

func matcher(operator, needle string) func(string) bool {
	switch operator {
	case FilterOpContains:
		return func(s string) bool { return strings.Contains(s, needle) }
	case FilterOpNotContains:
		return func(s string) bool { return !strings.Contains(s, needle) }
	case FilterOpStartsWith:
		return func(s string) bool { return strings.HasPrefix(s, needle) }
	case FilterOpIs, FilterOpEquals:
		return func(s string) bool { return s == needle }
	}
	return nil
}

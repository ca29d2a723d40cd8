package services

import (
	"testing"

	"bulkedit-admin/pkg/models"

	"github.com/stretchr/testify/assert"
)

func sampleProducts() []models.Product {
	return []models.Product{
		{ID: "1", Name: "Red Shoe", SKU: "A1"},
		{ID: "2", Name: "Blue Hat", SKU: "B2"},
		{ID: "3", Name: "Red Shirt", SKU: "A3"},
		{ID: "4", Name: "shirt", SKU: "C4"},
	}
}

func ids(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, string(p.ID))
	}
	return out
}

func TestFilterProductsScenario(t *testing.T) {
	products := []models.Product{
		{ID: "1", Name: "Red Shoe", SKU: "A1"},
		{ID: "2", Name: "Blue Hat", SKU: "B2"},
	}

	result := FilterProducts(products, "title", "contains", "red")

	assert.Equal(t, []models.Product{products[0]}, result)
}

func TestFilterProductsAllReturnsInput(t *testing.T) {
	products := sampleProducts()

	for _, op := range []string{"contains", "not_contains", "bogus", ""} {
		result := FilterProducts(products, "all", op, "zzz")
		assert.Equal(t, products, result, "operator %q", op)
	}
}

func TestFilterProductsCaseInsensitive(t *testing.T) {
	products := sampleProducts()

	upper := FilterProducts(products, "title", "contains", "SHIRT")
	lower := FilterProducts(products, "title", "contains", "shirt")

	assert.Equal(t, ids(lower), ids(upper))
	assert.Equal(t, []string{"3", "4"}, ids(upper))
}

func TestFilterProductsComplementary(t *testing.T) {
	products := sampleProducts()

	for _, field := range []string{"title", "sku"} {
		in := FilterProducts(products, field, "contains", "a")
		out := FilterProducts(products, field, "not_contains", "a")

		assert.Len(t, append(in, out...), len(products), "field %s", field)

		seen := map[models.FlexID]bool{}
		for _, p := range in {
			seen[p.ID] = true
		}
		for _, p := range out {
			assert.False(t, seen[p.ID], "field %s: %s in both sets", field, p.ID)
		}
	}
}

func TestFilterProductsUnknownOperatorFailsClosed(t *testing.T) {
	products := sampleProducts()

	assert.NotPanics(t, func() {
		assert.Empty(t, FilterProducts(products, "title", "regex", "red"))
		assert.Empty(t, FilterProducts(products, "title", "", "red"))
		assert.Empty(t, FilterProducts(products, "price", "contains", "red"))
	})
}

func TestFilterProductsOperators(t *testing.T) {
	products := sampleProducts()

	assert.Equal(t, []string{"1", "3"}, ids(FilterProducts(products, "title", "starts_with", "red")))
	assert.Equal(t, []string{"4"}, ids(FilterProducts(products, "title", "is", "SHIRT")))
	assert.Equal(t, []string{"2"}, ids(FilterProducts(products, "sku", "equals", "b2")))
	assert.Equal(t, []string{"1", "3"}, ids(FilterProducts(products, "sku", "starts_with", "a")))
}

func TestFilterProductsSubsetInOrder(t *testing.T) {
	products := sampleProducts()

	cases := []models.FilterState{
		{Field: "title", Operator: "contains", Value: "e"},
		{Field: "sku", Operator: "not_contains", Value: "1"},
		{Field: "title", Operator: "starts_with", Value: ""},
		{Field: "all", Operator: "equals", Value: "x"},
	}
	for _, c := range cases {
		result := FilterProducts(products, c.Field, c.Operator, c.Value)
		// 入力の部分列であること
		j := 0
		for _, p := range result {
			for j < len(products) && products[j].ID != p.ID {
				j++
			}
			if !assert.Less(t, j, len(products), "%+v: %s not in input order", c, p.ID) {
				break
			}
			j++
		}
	}
}

func TestFilterProductsEmptyInput(t *testing.T) {
	assert.Empty(t, FilterProducts(nil, "title", "contains", "x"))
	assert.Empty(t, FilterProducts(nil, "all", "contains", "x"))
}

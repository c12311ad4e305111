package services

import (
	"errors"
	"strings"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/repositories"
)

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func cloneCartItems(items []domain.CartLineItem) []domain.CartLineItem {
	if len(items) == 0 {
		return []domain.CartLineItem{}
	}
	dup := make([]domain.CartLineItem, len(items))
	copy(dup, items)
	for i := range dup {
		dup[i].Customizations = dup[i].Customizations.Clone()
		if dup[i].UpdatedAt != nil {
			ts := dup[i].UpdatedAt.UTC()
			dup[i].UpdatedAt = &ts
		}
	}
	return dup
}

func cloneAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func cloneAddress(addr *domain.Address) *domain.Address {
	if addr == nil {
		return nil
	}
	dup := *addr
	return &dup
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	dup := *value
	return &dup
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	ts := value.UTC()
	return &ts
}

func indexOfCartItem(items []domain.CartLineItem, itemID string) int {
	target := strings.TrimSpace(itemID)
	if target == "" {
		return -1
	}
	for i, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.ID), target) {
			return i
		}
	}
	return -1
}

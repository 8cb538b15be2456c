package service

import (
	"strings"

	"golang.org/x/text/cases"

	"washdesk/internal/model"
)

// FilterServices returns the services whose name contains text, ignoring case.
// The result keeps catalog order; empty text returns the whole catalog.
func FilterServices(services []model.Service, text string) []model.Service {
	return filter(services, text, func(s model.Service) string { return s.Name })
}

// FilterUsers matches text against the users' full names.
func FilterUsers(users []model.User, text string) []model.User {
	return filter(users, text, model.User.FullName)
}

func filter[T any](items []T, text string, key func(T) string) []T {
	out := make([]T, 0, len(items))
	if strings.TrimSpace(text) == "" {
		return append(out, items...)
	}

	fold := cases.Fold()
	needle := fold.String(text)
	for _, item := range items {
		if strings.Contains(fold.String(key(item)), needle) {
			out = append(out, item)
		}
	}
	return out
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// notFound maps a repository miss to the given NotFoundError, wrapping anything else
func notFound(err error, sentinel *NotFoundError, id uint, op string) error {
	if repositories.IsNotFoundError(err) {
		return NewNotFoundError(sentinel.Resource, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// publish sends an event after commit. Failures are logged, never returned.
func publish(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType events.EventType, payload interface{}) {
	if publisher == nil {
		return
	}
	event, err := events.NewEvent(eventType, payload)
	if err != nil {
		logger.Error("Failed to build event", "type", eventType, "error", err)
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Error("Failed to publish event", "type", eventType, "event_id", event.ID, "error", err)
	}
}

func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// percentage returns earned/total*100, or 0 when total is 0
func percentage(earned, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return earned / total * 100
}

func ptr[T any](v T) *T {
	return &v
}

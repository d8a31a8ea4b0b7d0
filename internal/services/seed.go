package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Development fixture credentials.
const (
	SeedEmail    = "test@example.com"
	SeedPassword = "Test123!"
)

// SeedDevelopmentData creates a fixture user with two sample todos when the
// user table is empty. It is a no-op otherwise. The password goes through
// the auth service's hasher so the fixture can log in normally.
func SeedDevelopmentData(ctx context.Context, authSvc *AuthService, todoSvc *TodoService) error {
	n, err := authSvc.Repo.CountUsers(ctx, authSvc.DB)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := authSvc.HashPassword(SeedPassword)
	if err != nil {
		return err
	}
	u, err := authSvc.Repo.CreateUser(ctx, authSvc.DB, SeedEmail, hash)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	notes1, loc1 := "This is a sample todo item", "Office"
	notes2 := "Another sample todo"
	samples := []TodoInput{
		{Name: "Sample Todo 1", DueDate: now.AddDate(0, 0, 7), Notes: &notes1, Location: &loc1, Tags: []string{"work", "urgent"}},
		{Name: "Sample Todo 2", DueDate: now.AddDate(0, 0, 14), Notes: &notes2, Tags: []string{"personal"}},
	}
	for _, in := range samples {
		if _, err := todoSvc.Create(ctx, u.ID, in); err != nil {
			return err
		}
	}
	log.Info().Str("email", SeedEmail).Int("todos", len(samples)).Msg("seeded development data")
	return nil
}

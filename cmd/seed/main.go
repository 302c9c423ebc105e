// Command seed creates the demo accounts and default forum categories.
// Existing rows are left untouched, so it is safe to run repeatedly.
package main

import (
	"errors"
	"log"
	"log/slog"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/config"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/pkg"
)

const defaultSeedPassword = "ChangeMe123!"

type demoUser struct {
	email     string
	firstName string
	lastName  string
	role      models.UserRole
}

var demoUsers = []demoUser{
	{email: "admin@learning.local", firstName: "Admin", lastName: "Platform", role: models.RoleAdmin},
	{email: "tutor@learning.local", firstName: "Demo", lastName: "Tutor", role: models.RoleTutor},
	{email: "student@learning.local", firstName: "Demo", lastName: "Student", role: models.RoleStudent},
}

var demoCategories = []models.ForumCategory{
	{Name: "General", Description: "Anything about the platform", OrderIndex: 0},
	{Name: "Course Help", Description: "Questions about course material", OrderIndex: 1},
	{Name: "Announcements", Description: "News from the team", OrderIndex: 2},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = defaultSeedPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, u := range demoUsers {
			created, err := seedUser(tx, u, string(hash))
			if err != nil {
				return err
			}
			logger.Info("User seeded", "email", u.email, "role", u.role, "created", created)
		}
		for _, c := range demoCategories {
			category := c
			result := tx.Where("name = ?", category.Name).FirstOrCreate(&category)
			if result.Error != nil {
				return result.Error
			}
			logger.Info("Forum category seeded", "name", category.Name, "created", result.RowsAffected > 0)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	logger.Info("Seed completed", "password_from_env", os.Getenv("SEED_PASSWORD") != "")
}

func seedUser(tx *gorm.DB, u demoUser, hash string) (bool, error) {
	var existing models.User
	err := tx.Where("email = ?", u.email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	user := models.User{
		Email:         u.email,
		PasswordHash:  hash,
		FirstName:     u.firstName,
		LastName:      u.lastName,
		Role:          u.role,
		IsActive:      true,
		EmailVerified: true,
	}
	return true, tx.Create(&user).Error
}

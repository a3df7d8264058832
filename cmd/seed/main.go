// Command seed creates the initial facilities and the super admin account.
// Running it again leaves existing rows untouched.
package main

import (
	"context"
	"errors"
	"os"

	"hokenhub/internal/config"
	"hokenhub/internal/database"
	"hokenhub/internal/logger"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

var facilities = []model.Facility{
	{Name: "Saint Agnes Medical Center", Description: "Fresno, CA", PrimaryColor: "#8A1538"},
	{Name: "Saint Alphonsus Health System", Description: "Boise, ID", PrimaryColor: "#00558C"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Configuration invalid: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.Release())

	db, err := database.NewConnection(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	ctx := context.Background()
	facilityRepo := repository.NewFacilityRepository(db)
	userRepo := repository.NewUserRepository(db)

	names := make([]string, 0, len(facilities))
	for i := range facilities {
		f := facilities[i]
		names = append(names, f.Name)
		if _, err := facilityRepo.GetByName(ctx, f.Name); err == nil {
			log.WithField("facility", f.Name).Info("facility exists, skipping")
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			log.Fatalf("Lookup facility %q: %v", f.Name, err)
		}
		if err := facilityRepo.Create(ctx, &f); err != nil {
			log.Fatalf("Create facility %q: %v", f.Name, err)
		}
		log.WithField("facility", f.Name).Info("facility created")
	}

	if _, err := userRepo.GetByEmail(ctx, cfg.SuperAdminEmail); err == nil {
		log.WithField("email", cfg.SuperAdminEmail).Info("super admin exists, skipping")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Fatalf("Lookup super admin: %v", err)
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if len(password) < 6 {
		log.Fatal("SEED_ADMIN_PASSWORD must be set to at least 6 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Hash password: %v", err)
	}

	admin := &model.User{
		FirstName:         "Super",
		LastName:          "Admin",
		Email:             cfg.SuperAdminEmail,
		Password:          string(hashed),
		PhoneNumber:       "0000000000",
		NPI:               "0000000000",
		Role:              model.RoleAdmin,
		RequestedFacility: names[0],
		FacilityAccess:    datatypes.JSONSlice[string](names),
	}
	admin.SetApproved(true)
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Fatalf("Create super admin: %v", err)
	}
	log.WithField("email", admin.Email).Info("super admin created")
}

package database

import (
	"errors"
	"log"

	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations() error {
	log.Println("Running database migrations...")

	if err := DB.AutoMigrate(
		&User{},
		&Admin{},
		&Product{},
		&Consultation{},
		&Message{},
		&Reclamation{},
		&Statistic{},
		&Audit{},
	); err != nil {
		log.Printf("Migration failed: %v", err)
		return err
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// SeedDefaultAdmin creates the bootstrap admin account and its Admin row if no
// admin exists yet. passwordHash must already be hashed.
func SeedDefaultAdmin(username, email, passwordHash string) (*User, bool, error) {
	var existing User
	err := DB.Where("role = ?", RoleAdmin).First(&existing).Error
	if err == nil {
		log.Println("ℹ️ Admin user already exists.")
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("❌ Failed to check existing admin: %v", err)
		return nil, false, err
	}

	admin := User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         "Administrator",
		Role:         RoleAdmin,
		Status:       UserStatusAccepted,
	}
	err = DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		return tx.Create(&Admin{UserID: admin.ID, Title: "Platform administrator"}).Error
	})
	if err != nil {
		log.Printf("❌ Failed to create admin: %v", err)
		return nil, false, err
	}

	log.Println("✅ Default admin user created successfully.")
	return &admin, true, nil
}

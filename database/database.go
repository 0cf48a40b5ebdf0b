package database

import (
	"fmt"
	"log"
	"os"

	"persona-app/internal/domain/catalog"
	"persona-app/internal/domain/generations"
	"persona-app/internal/domain/personas"
	"persona-app/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	DB = db

	if err := DB.AutoMigrate(
		&users.User{},
		&personas.Persona{},
		&generations.Generation{},
		&catalog.Template{},
		&catalog.Tag{},
	); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}

	fmt.Println("Connected and migrated successfully")
}

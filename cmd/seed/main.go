package main

// Provision the admin account and optional users from a YAML file:
//   go run ./cmd/seed -file seed.yaml

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/config"
	"filetrack-backend/internal/shared/storage/db"
	"filetrack-backend/internal/shared/telemetry"
	"filetrack-backend/internal/users"
)

type seedFile struct {
	AdminPassword string     `yaml:"adminPassword"`
	Users         []seedUser `yaml:"users"`
}

type seedUser struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	FullName   string `yaml:"fullName"`
	Role       string `yaml:"role"`
	Permission string `yaml:"permission"`
}

func parseSeed(r io.Reader) (seedFile, error) {
	var out seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return seedFile{}, fmt.Errorf("decode seed file: %w", err)
	}
	return out, nil
}

// apply provisions the admin and creates any user not already present.
func apply(ctx context.Context, svc *users.Service, seed seedFile, defaultAdminPassword string) (int, error) {
	password := seed.AdminPassword
	if password == "" {
		password = defaultAdminPassword
	}
	if _, _, err := svc.EnsureAdmin(ctx, password); err != nil {
		return 0, err
	}

	created := 0
	for _, u := range seed.Users {
		_, err := svc.Repo.GetByUsername(ctx, u.Username)
		if err == nil {
			telemetry.Info("seed.user_exists", map[string]any{"username": u.Username})
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return created, err
		}
		if _, err := svc.Create(ctx, users.CreateInput{
			Username:   u.Username,
			Password:   u.Password,
			FullName:   u.FullName,
			Role:       u.Role,
			Permission: u.Permission,
		}); err != nil {
			return created, fmt.Errorf("create %s: %w", u.Username, err)
		}
		created++
	}
	return created, nil
}

func main() {
	path := flag.String("file", "", "YAML seed file")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	var seed seedFile
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			log.Fatalf("open seed file: %v", err)
		}
		seed, err = parseSeed(f)
		f.Close()
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer sqlDB.Close()
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	created, err := apply(ctx, users.NewService(&users.PGRepo{DB: sqlDB}), seed, cfg.BootstrapAdminPassword)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	telemetry.Info("seed.done", map[string]any{"created": created})
}

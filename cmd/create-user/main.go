// CLI tool to create a user with a bcrypt-hashed password and a home timezone.
// Usage: go run ./cmd/create-user
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// newUser is what the prompts collect.
type newUser struct {
	Username string
	Email    string
	Password string
	Timezone string
}

func main() {
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file, using process environment", zap.Error(err))
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, os.Getenv("DB_URL"))
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer conn.Close(ctx)

	u, err := prompt(bufio.NewReader(os.Stdin))
	if err != nil {
		log.Fatal("invalid input", zap.Error(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("hash password", zap.Error(err))
	}
	authToken := uuid.NewString()

	var userID int
	err = conn.QueryRow(ctx,
		`INSERT INTO users (username, email, password, auth_token, timezone)
		 VALUES (@username, @email, @password, @auth_token, @timezone) RETURNING id`,
		pgx.NamedArgs{
			"username":   u.Username,
			"email":      u.Email,
			"password":   string(hash),
			"auth_token": authToken,
			"timezone":   u.Timezone,
		},
	).Scan(&userID)
	if err != nil {
		log.Fatal("create user", zap.Error(err))
	}

	fmt.Printf("\nUser created successfully!\n")
	fmt.Printf("  ID:         %d\n", userID)
	fmt.Printf("  Username:   %s\n", u.Username)
	fmt.Printf("  Timezone:   %s\n", u.Timezone)
	fmt.Printf("  Auth Token: %s\n", authToken)
}

// prompt reads the user's fields line by line. A blank timezone means UTC.
func prompt(r *bufio.Reader) (newUser, error) {
	ask := func(label string) string {
		fmt.Print(label + ": ")
		s, _ := r.ReadString('\n')
		return strings.TrimSpace(s)
	}

	u := newUser{
		Username: ask("Username"),
		Email:    ask("Email"),
		Password: ask("Password"),
		Timezone: ask("Timezone (IANA, blank for UTC)"),
	}
	if u.Username == "" || u.Password == "" {
		return newUser{}, fmt.Errorf("username and password are required")
	}
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(u.Timezone); err != nil {
		return newUser{}, fmt.Errorf("unknown timezone %q", u.Timezone)
	}
	return u, nil
}

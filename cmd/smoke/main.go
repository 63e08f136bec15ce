package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"tessera.dev/internal/auth"
	"tessera.dev/internal/auth/remote"
)

func main() {
	addr := os.Getenv("TESSERA_API_ADDR")
	if addr == "" {
		addr = "http://localhost:8080"
	}

	client := remote.New(addr)
	ctx, cancel := remote.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email := fmt.Sprintf("smoke-%d@tessera.local", rand.Int())
	const password = "Sm0keSecret!"

	acct, err := client.Register(ctx, remote.RegisterParams{
		Email:       email,
		Password:    password,
		DisplayName: "Smoke Probe",
		OrgID:       "smoke",
	})
	if err != nil {
		log.Fatalf("register at %s: %v", addr, err)
	}

	session, err := client.Login(ctx, email, password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	me, err := client.Me(ctx, session.AccessToken)
	if err != nil {
		log.Fatalf("me: %v", err)
	}
	if me.ID != acct.ID {
		log.Fatalf("identity mismatch: got %s, registered %s", me.ID, acct.ID)
	}

	rotated, err := client.Refresh(ctx, session.RefreshToken)
	if err != nil {
		log.Fatalf("refresh: %v", err)
	}

	// Rotation must kill the old pair and make the old refresh single-use.
	if _, err := client.Me(ctx, session.AccessToken); !errors.Is(err, auth.ErrUnknownToken) {
		log.Fatalf("stale access token still accepted: %v", err)
	}
	if _, err := client.Refresh(ctx, session.RefreshToken); !errors.Is(err, auth.ErrUnknownToken) {
		log.Fatalf("refresh replay not rejected: %v", err)
	}

	if err := client.Logout(ctx, rotated.AccessToken, rotated.RefreshToken); err != nil {
		log.Fatalf("logout: %v", err)
	}
	if _, err := client.Me(ctx, rotated.AccessToken); !errors.Is(err, auth.ErrUnknownToken) {
		log.Fatalf("access token survived logout: %v", err)
	}

	fmt.Printf("✅ tessera smoke test passed: account=%s\n", acct.ID)
}

// Command issuetoken mints a signed credential for one of the demo accounts,
// for local testing of the WebSocket and REST endpoints.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/adapter/identity"
	"github.com/pscheid92/plantpulse/internal/adapter/memstore"
	"github.com/pscheid92/plantpulse/internal/domain"
)

func main() {
	_ = godotenv.Load()

	var (
		actorID = flag.String("actor", "operator", "Demo actor id (admin, supervisor, operator, viewer)")
		secret  = flag.String("secret", os.Getenv("JWT_SECRET"), "Signing secret (or set JWT_SECRET env)")
		issuer  = flag.String("issuer", envOr("JWT_ISSUER", "plantpulse"), "Token issuer (or set JWT_ISSUER env)")
		ttl     = flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *secret == "" {
		log.Fatal("Signing secret required (--secret or JWT_SECRET env)")
	}

	actor, ok := findActor(*actorID)
	if !ok {
		log.Fatalf("Unknown demo actor %q", *actorID)
	}

	token, err := identity.NewJWTVerifier(*secret, *issuer, clockwork.NewRealClock()).Issue(actor, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func findActor(id string) (domain.Actor, bool) {
	for _, a := range memstore.DemoActors() {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Actor{}, false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

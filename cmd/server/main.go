package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ctxguard/ctxguard/internal/di"
	"github.com/ctxguard/ctxguard/internal/engine"
	"github.com/ctxguard/ctxguard/internal/securestore"
	"github.com/ctxguard/ctxguard/internal/server"
)

func main() {
	eng := engine.New(engine.Options{
		Sinks:      di.ProvideSinks(),
		Authorizer: di.ProvideAuthorizer(),
		Store:      mustSecureStore(),
	})
	if err := eng.Restore(context.Background()); err != nil {
		log.Fatal(err)
	}

	h := server.BuildRouter(server.Deps{Engine: eng}, server.Options{EnableCORS: true})

	addr := ":8086"
	if v := os.Getenv("CTXGUARD_ADDR"); v != "" {
		addr = v
	}
	log.Print("listening on " + addr)
	log.Fatal(http.ListenAndServe(addr, h))
}

func mustSecureStore() securestore.SecureStore {
	s, err := securestore.NewFS(defaultDataDir())
	if err != nil {
		panic(err)
	}
	return s
}

func defaultDataDir() string {
	// Respect explicit override first
	if v := os.Getenv("CTXGUARD_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", ".ctxguard", "data")
	}
	return filepath.Join(home, ".ctxguard", "data")
}

package di

import (
	"os"

	"github.com/ctxguard/ctxguard/internal/audit"
	"github.com/ctxguard/ctxguard/internal/authz"
	"github.com/ctxguard/ctxguard/internal/securestore"
)

func ProvideAuthorizer() authz.Authorizer {
	switch os.Getenv("CTXGUARD_AUTHZ") {
	case "fga":
		cfg := authz.OpenFGAConfig{
			APIURL:   getenv("FGA_API_URL", "http://localhost:8080"),
			StoreID:  os.Getenv("FGA_STORE_ID"),
			APIToken: os.Getenv("FGA_API_TOKEN"),
			ModelID:  os.Getenv("FGA_MODEL_ID"),
		}
		a, err := authz.NewOpenFGA(cfg)
		if err != nil {
			panic(err)
		}
		return a
	case "allow":
		return &authz.Mock{AlwaysAllow: true}
	case "mock":
		return &authz.Mock{}
	default:
		// no external policy; local grants are the only authority
		return nil
	}
}

// ProvideSinks builds the extra audit sinks from the environment: a slog
// sink always, an HTTP sink when CTXGUARD_AUDIT_URL is set.
func ProvideSinks() []audit.Sink {
	sinks := []audit.Sink{&audit.SlogSink{}}
	if url := os.Getenv("CTXGUARD_AUDIT_URL"); url != "" {
		sinks = append(sinks, audit.NewHTTPSink(url))
	}
	return sinks
}

func ProvideSecureStore() securestore.SecureStore {
	if dir := os.Getenv("CTXGUARD_DATA_DIR"); dir != "" {
		s, err := securestore.NewFS(dir)
		if err != nil {
			panic(err)
		}
		return s
	}
	return securestore.NewMemory()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

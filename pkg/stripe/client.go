package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/etherloops/ether-backend/pkg/config"
	"github.com/etherloops/ether-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

// Stripe API key kinds. Only secret and restricted keys can manage PaymentIntents.
const (
	secretKind     = "sk"
	restrictedKind = "rk"
	publishable    = "pk"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errPublishableKey   = errors.New("stripe publishable keys cannot create payment intents; use a secret or restricted key")
)

// Client carries the validated key mode used for manual-capture PaymentIntents.
type Client struct {
	environment string
	restricted  bool
}

// NewClient validates the configured key against the environment and installs
// it for the PaymentIntent calls.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	kind, err := keyKind(env, apiKey)
	if err != nil {
		return nil, err
	}
	stripe.Key = apiKey

	client := &Client{environment: env, restricted: kind == restrictedKind}
	if logg != nil {
		fields := map[string]any{"env": env, "capture_method": string(stripe.PaymentIntentCaptureMethodManual)}
		if client.restricted {
			// needs PaymentIntents write access
			fields["restricted_key"] = true
		}
		logg.Info(logg.WithFields(ctx, fields), "stripe payment intents configured")
	}
	return client, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Restricted reports whether the key is a restricted (rk_) key.
func (c *Client) Restricted() bool {
	return c != nil && c.restricted
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

// keyKind parses "<kind>_<mode>_..." and checks the mode matches env.
func keyKind(env, key string) (string, error) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) < 3 {
		return "", errors.New("stripe api key has an unrecognized format")
	}
	kind, mode := parts[0], parts[1]
	switch kind {
	case secretKind, restrictedKind:
	case publishable:
		return "", errPublishableKey
	default:
		return "", fmt.Errorf("stripe api key kind %q is not supported", kind)
	}
	if mode != env {
		return "", fmt.Errorf("stripe environment %q requires a %s key (sk_%s/rk_%s)", env, env, env, env)
	}
	return kind, nil
}

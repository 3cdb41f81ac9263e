package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	pkgcheckout "github.com/etherloops/ether-backend/pkg/checkout"
)

// PaymentProcessor places, captures and releases payment holds.
type PaymentProcessor interface {
	Authorize(ctx context.Context, req pkgcheckout.AuthorizationRequest) (string, error)
	Capture(ctx context.Context, paymentRef string) error
	Void(ctx context.Context, paymentRef string) error
}

// DefaultSimulatedDelay matches the processing pause shoppers see in dev.
const DefaultSimulatedDelay = 3 * time.Second

// SimulatedProcessor approves every payment after a delay. It is used when no
// payment provider is configured.
type SimulatedProcessor struct {
	Delay time.Duration
}

func NewSimulatedProcessor(delay time.Duration) *SimulatedProcessor {
	if delay < 0 {
		delay = 0
	}
	return &SimulatedProcessor{Delay: delay}
}

func (p *SimulatedProcessor) Authorize(ctx context.Context, _ pkgcheckout.AuthorizationRequest) (string, error) {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "sim_" + uuid.NewString(), nil
}

func (p *SimulatedProcessor) Capture(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (p *SimulatedProcessor) Void(context.Context, string) error {
	return nil
}

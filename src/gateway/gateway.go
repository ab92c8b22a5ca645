package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/guardline/promptguard/src/config"
	"github.com/guardline/promptguard/src/safety"
	"github.com/guardline/promptguard/src/transport"
)

// Gateway is the top-level orchestrator. It wires config, transports,
// the safety layer, tool registry, and the response pipeline together.
type Gateway struct {
	cfg    config.Config
	logger *slog.Logger

	// transportFactory is injected for testing; nil uses the default.
	transportFactory transport.TransportFactory
}

// New creates a Gateway from the given config and logger.
func New(cfg config.Config, logger *slog.Logger) *Gateway {
	return &Gateway{cfg: cfg, logger: logger}
}

// NewWithTransportFactory creates a Gateway with a custom transport
// factory (primarily for testing).
func NewWithTransportFactory(cfg config.Config, logger *slog.Logger, factory transport.TransportFactory) *Gateway {
	return &Gateway{cfg: cfg, logger: logger, transportFactory: factory}
}

// Run starts the gateway: connects downstream, discovers tools,
// registers proxied handlers, and starts the upstream server. Blocks
// until SIGINT/SIGTERM or ctx cancellation.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g.logger.Info("starting gateway")

	layer := safety.New(layerConfig(g.cfg.Safety), g.logger)

	dm, err := transport.NewDownstreamManager(ctx, g.cfg.Downstream, g.logger, g.transportFactory)
	if err != nil {
		return fmt.Errorf("downstream: %w", err)
	}
	defer dm.Close()

	upstream := transport.NewUpstream(g.cfg.Upstream, g.logger)

	reg := NewRegistry(upstream, dm, g.cfg.Sanitization, layer, g.logger)
	count, err := reg.DiscoverAndRegister(ctx)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	g.logger.Info("tool discovery complete", "total", count)

	g.logger.Info("upstream ready", "transport", g.cfg.Upstream.Transport)
	return upstream.Run(ctx)
}

// layerConfig maps the JSON safety section onto the layer's config,
// falling back to the layer defaults for unset fields.
func layerConfig(sc config.SafetyConfig) safety.Config {
	cfg := safety.DefaultConfig()

	if sc.InputPolicy != "" {
		cfg.InputValidationPolicy = safety.ParsePolicyAction(sc.InputPolicy)
	}
	if sc.PromptPolicy != "" {
		cfg.PromptInjectionPolicy = safety.ParsePolicyAction(sc.PromptPolicy)
	}
	if sc.SSRFPolicy != "" {
		cfg.SSRFPolicy = safety.ParsePolicyAction(sc.SSRFPolicy)
	}
	if sc.LeakPolicy != "" {
		cfg.LeakDetectionPolicy = safety.ParsePolicyAction(sc.LeakPolicy)
	}
	if sc.PromptSensitivity != nil {
		cfg.PromptSensitivity = *sc.PromptSensitivity
	}
	if sc.MaxInputLength != nil {
		cfg.MaxInputLength = *sc.MaxInputLength
	}
	if sc.AllowPrivateIPs != nil {
		cfg.AllowPrivateIPs = *sc.AllowPrivateIPs
	}
	cfg.BlockedCIDRRanges = sc.BlockedCIDRRanges

	return cfg
}

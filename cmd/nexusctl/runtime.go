package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/bimakw/nexus-orchestrator/internal/application/services"
	"github.com/bimakw/nexus-orchestrator/internal/config"
	"github.com/bimakw/nexus-orchestrator/internal/domain/amount"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	"github.com/bimakw/nexus-orchestrator/internal/infrastructure/simulated"
)

// runtime holds the in-process orchestrator a command runs against
type runtime struct {
	out      io.Writer
	output   string
	address  string
	noDelay  bool
	seed     int64
	verbose  bool
	logger   *zap.Logger
	engine   *services.IntentEngine
	pipeline *services.OperationPipeline
	manager  *services.SessionManager
	session  *services.Session
}

// connect builds the simulated backend and opens a session for the address
func (rt *runtime) connect(ctx context.Context) error {
	switch rt.output {
	case "json", "yaml":
	default:
		return fmt.Errorf("invalid --output %q: want json or yaml", rt.output)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt.logger = zap.NewNop()
	if rt.verbose {
		if rt.logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	}

	gasFee, ok := new(big.Int).SetString(cfg.Nexus.GasFeeWei, 10)
	if !ok {
		return fmt.Errorf("invalid NEXUS_GAS_FEE_WEI %q", cfg.Nexus.GasFeeWei)
	}

	delays := cfg.Nexus.Delays
	if rt.noDelay {
		delays = config.DelayConfig{}
	}
	var opts []simulated.Option
	if rt.seed != 0 {
		opts = append(opts, simulated.WithSeed(rt.seed))
	}
	network := simulated.NewNetwork(delays, rt.logger, opts...)

	aggregator := services.NewBalanceAggregator(network, nil, rt.logger,
		services.WithChains(cfg.Nexus.SupportedChains),
		services.WithBridgeTokens(cfg.Nexus.BridgeTokens),
		services.WithWorkers(cfg.Nexus.WorkerCount),
	)
	rt.engine = services.NewIntentEngine(network, nil, cfg.Nexus.BridgeFeeBps, gasFee, cfg.Nexus.SupportedChains, rt.logger)
	rt.pipeline = services.NewOperationPipeline(rt.engine, network, rt.logger)
	rt.manager = services.NewSessionManager(aggregator, network, network, rt.engine, cfg.Nexus.SpenderAddress, delays.Init, rt.logger)

	rt.session, err = rt.manager.Connect(ctx, rt.address)
	if err != nil {
		return fmt.Errorf("failed to connect %s: %w", rt.address, err)
	}
	return nil
}

func (rt *runtime) close() {
	if rt.manager != nil {
		rt.manager.CloseAll(context.Background())
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

// render writes v in the selected output format. YAML keys follow the JSON tags.
func (rt *runtime) render(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if rt.output == "json" {
		_, err = fmt.Fprintln(rt.out, string(data))
		return err
	}

	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	enc := yaml.NewEncoder(rt.out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}

// parseTokenAmount converts a decimal amount of symbol into base units
func parseTokenAmount(symbol, value string) (*big.Int, error) {
	token, ok := entities.LookupToken(symbol)
	if !ok {
		return nil, fmt.Errorf("unknown token %q", symbol)
	}
	n, err := amount.Parse(value, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount for %s: %w", token.Symbol, err)
	}
	return n, nil
}

// parseAllowance accepts "max" or a decimal amount of symbol
func parseAllowance(symbol, value string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(value), services.AllowanceMax) {
		return services.AllowanceMax, nil
	}
	n, err := parseTokenAmount(symbol, value)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// parseLeg parses TOKEN:CHAIN, e.g. USDC:42161
func parseLeg(value string) (entities.SwapLeg, error) {
	symbol, chain, ok := strings.Cut(value, ":")
	if !ok || symbol == "" {
		return entities.SwapLeg{}, fmt.Errorf("invalid swap leg %q: want TOKEN:CHAIN", value)
	}
	chainID, err := strconv.ParseInt(chain, 10, 64)
	if err != nil || chainID <= 0 {
		return entities.SwapLeg{}, fmt.Errorf("invalid chain in swap leg %q", value)
	}
	return entities.SwapLeg{Token: strings.ToUpper(symbol), ChainID: chainID}, nil
}

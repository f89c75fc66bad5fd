package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bimakw/nexus-orchestrator/internal/application/services"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

func newRootCommand(out io.Writer) *cobra.Command {
	rt := &runtime{out: out}

	root := &cobra.Command{
		Use:           "nexusctl",
		Short:         "Inspect balances and run bridge and swap operations against an in-process session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.connect(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			rt.close()
		},
	}
	root.PersistentFlags().StringVar(&rt.address, "address", "", "Wallet address to connect")
	root.PersistentFlags().StringVarP(&rt.output, "output", "o", "json", "Output format (json|yaml)")
	root.PersistentFlags().BoolVar(&rt.noDelay, "no-delay", false, "Skip simulated network latency")
	root.PersistentFlags().Int64Var(&rt.seed, "seed", 0, "Seed for simulated data (0 = random)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Log to stderr")
	_ = root.MarkPersistentFlagRequired("address")

	root.AddCommand(
		newBalancesCommand(rt),
		newAllowancesCommand(rt),
		newIntentCommand(rt),
		newBridgeCommand(rt),
		newSwapCommand(rt),
	)
	return root
}

func newBalancesCommand(rt *runtime) *cobra.Command {
	var view string
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show unified, bridgeable or swappable balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			balances := services.NewBalancesDTO(rt.session.Balances())
			switch view {
			case "all":
				return rt.render(balances)
			case "unified":
				return rt.render(balances.Unified)
			case "bridge":
				return rt.render(balances.Bridge)
			case "swap":
				return rt.render(balances.Swap)
			default:
				return fmt.Errorf("invalid --view %q: want all, unified, bridge or swap", view)
			}
		},
	}
	cmd.Flags().StringVar(&view, "view", "all", "Balance view (all|unified|bridge|swap)")
	return cmd
}

func newAllowancesCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{Use: "allowances", Short: "Query and change token approvals"}

	var getChain int64
	var getTokens []string
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch current allowances on a chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			allowances, err := rt.session.GetAllowances(cmd.Context(), getChain, getTokens)
			if err != nil {
				return err
			}
			out := make([]services.AllowanceDTO, len(allowances))
			for i, a := range allowances {
				out[i] = services.NewAllowanceDTO(getChain, a)
			}
			return rt.render(out)
		},
	}
	getCmd.Flags().Int64Var(&getChain, "chain", 0, "Chain ID")
	getCmd.Flags().StringSliceVar(&getTokens, "token", nil, "Token symbols")
	_ = getCmd.MarkFlagRequired("chain")
	_ = getCmd.MarkFlagRequired("token")

	var setChain int64
	var setToken, setAmount string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Approve a decimal amount or max",
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := parseAllowance(setToken, setAmount)
			if err != nil {
				return err
			}
			allowance, err := rt.session.SetAllowance(cmd.Context(), setChain, setToken, value)
			if err != nil {
				return err
			}
			return rt.render(services.NewAllowanceDTO(setChain, allowance))
		},
	}
	setCmd.Flags().Int64Var(&setChain, "chain", 0, "Chain ID")
	setCmd.Flags().StringVar(&setToken, "token", "", "Token symbol")
	setCmd.Flags().StringVar(&setAmount, "amount", "", "Amount in decimal units, or max")
	_ = setCmd.MarkFlagRequired("chain")
	_ = setCmd.MarkFlagRequired("token")
	_ = setCmd.MarkFlagRequired("amount")

	var revokeChain int64
	var revokeToken string
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Reset an allowance to zero",
		RunE: func(cmd *cobra.Command, _ []string) error {
			allowance, err := rt.session.RevokeAllowance(cmd.Context(), revokeChain, revokeToken)
			if err != nil {
				return err
			}
			return rt.render(services.NewAllowanceDTO(revokeChain, allowance))
		},
	}
	revokeCmd.Flags().Int64Var(&revokeChain, "chain", 0, "Chain ID")
	revokeCmd.Flags().StringVar(&revokeToken, "token", "", "Token symbol")
	_ = revokeCmd.MarkFlagRequired("chain")
	_ = revokeCmd.MarkFlagRequired("token")

	root.AddCommand(getCmd, setCmd, revokeCmd)
	return root
}

type transferFlags struct {
	token   string
	amount  string
	to      int64
	sources []int64
}

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.token, "token", "", "Token symbol")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in decimal units")
	cmd.Flags().Int64Var(&f.to, "to-chain", 0, "Destination chain ID")
	cmd.Flags().Int64SliceVar(&f.sources, "source-chains", nil, "Restrict funding to these chains")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("to-chain")
}

func (f *transferFlags) request() (services.BridgeRequest, error) {
	n, err := parseTokenAmount(f.token, f.amount)
	if err != nil {
		return services.BridgeRequest{}, err
	}
	return services.BridgeRequest{
		Token:              f.token,
		Amount:             n,
		DestinationChainID: f.to,
		SourceChains:       f.sources,
	}, nil
}

func newIntentCommand(rt *runtime) *cobra.Command {
	var flags transferFlags
	var approve, deny bool
	cmd := &cobra.Command{
		Use:   "intent",
		Short: "Quote a funding intent, optionally approving or denying it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if approve && deny {
				return fmt.Errorf("--approve and --deny are mutually exclusive")
			}
			req, err := flags.request()
			if err != nil {
				return err
			}
			intent, err := rt.session.CreateIntent(cmd.Context(), services.CreateIntentRequest(req))
			if err != nil {
				return err
			}

			switch {
			case approve:
				if intent, err = rt.session.ApproveIntent(cmd.Context(), intent.ID); err != nil && intent == nil {
					return err
				}
			case deny:
				if intent, err = rt.session.DenyIntent(cmd.Context(), intent.ID); err != nil {
					return err
				}
			}
			return rt.render(services.NewIntentDTO(intent))
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve and settle the intent")
	cmd.Flags().BoolVar(&deny, "deny", false, "Deny the intent")
	return cmd
}

func newBridgeCommand(rt *runtime) *cobra.Command {
	var flags transferFlags
	var recipient string
	var stream bool
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Bridge funds to a chain, optionally delivering to a recipient",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}

			log := &services.EventLog{}
			onEvent := rt.eventHandler(log, stream)

			var result services.OperationResult
			if recipient != "" {
				result = rt.pipeline.BridgeAndTransfer(cmd.Context(), rt.session, services.TransferRequest{
					BridgeRequest: req,
					Recipient:     recipient,
				}, onEvent)
			} else {
				result = rt.pipeline.Bridge(cmd.Context(), rt.session, req, onEvent)
			}
			return rt.finish(result, log)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&recipient, "recipient", "", "Deliver to this address after bridging")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print each event as it happens")
	return cmd
}

func newSwapCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{Use: "swap", Short: "Swap between tokens and chains"}

	var inFrom, inTo, inAmount string
	exactInCmd := &cobra.Command{
		Use:   "exact-in",
		Short: "Swap a fixed input amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseLegs(inFrom, inTo)
			if err != nil {
				return err
			}
			n, err := parseTokenAmount(from.Token, inAmount)
			if err != nil {
				return err
			}
			log := &services.EventLog{}
			result := rt.pipeline.SwapExactIn(cmd.Context(), rt.session, services.SwapExactInRequest{
				From:   from,
				To:     to,
				Amount: n,
			}, log.Handler())
			return rt.finish(result, log)
		},
	}
	exactInCmd.Flags().StringVar(&inFrom, "from", "", "Input TOKEN:CHAIN")
	exactInCmd.Flags().StringVar(&inTo, "to", "", "Output TOKEN:CHAIN")
	exactInCmd.Flags().StringVar(&inAmount, "amount", "", "Input amount in decimal units")
	for _, name := range []string{"from", "to", "amount"} {
		_ = exactInCmd.MarkFlagRequired(name)
	}

	var outFrom, outTo, outAmount, outMax string
	exactOutCmd := &cobra.Command{
		Use:   "exact-out",
		Short: "Swap for a fixed output amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseLegs(outFrom, outTo)
			if err != nil {
				return err
			}
			want, err := parseTokenAmount(to.Token, outAmount)
			if err != nil {
				return err
			}
			limit, err := parseTokenAmount(from.Token, outMax)
			if err != nil {
				return err
			}
			log := &services.EventLog{}
			result := rt.pipeline.SwapExactOut(cmd.Context(), rt.session, services.SwapExactOutRequest{
				From:      from,
				To:        to,
				MaxAmount: limit,
				ToAmount:  want,
			}, log.Handler())
			return rt.finish(result, log)
		},
	}
	exactOutCmd.Flags().StringVar(&outFrom, "from", "", "Input TOKEN:CHAIN")
	exactOutCmd.Flags().StringVar(&outTo, "to", "", "Output TOKEN:CHAIN")
	exactOutCmd.Flags().StringVar(&outAmount, "amount", "", "Output amount in decimal units")
	exactOutCmd.Flags().StringVar(&outMax, "max", "", "Maximum input in decimal units")
	for _, name := range []string{"from", "to", "amount", "max"} {
		_ = exactOutCmd.MarkFlagRequired(name)
	}

	root.AddCommand(exactInCmd, exactOutCmd)
	return root
}

func parseLegs(from, to string) (entities.SwapLeg, entities.SwapLeg, error) {
	fromLeg, err := parseLeg(from)
	if err != nil {
		return entities.SwapLeg{}, entities.SwapLeg{}, err
	}
	toLeg, err := parseLeg(to)
	if err != nil {
		return entities.SwapLeg{}, entities.SwapLeg{}, err
	}
	return fromLeg, toLeg, nil
}

// eventHandler records into log and, when streaming, prints each event as it arrives
func (rt *runtime) eventHandler(log *services.EventLog, stream bool) services.EventHandler {
	record := log.Handler()
	if !stream {
		return record
	}
	return func(event entities.NexusEvent) {
		record(event)
		_ = rt.render(event)
	}
}

// finish renders the operation result and turns a failed operation into a non-zero exit
func (rt *runtime) finish(result services.OperationResult, log *services.EventLog) error {
	if err := rt.render(services.NewOperationResultDTO(result, log.Events())); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("operation failed: %s", result.Error)
	}
	return nil
}

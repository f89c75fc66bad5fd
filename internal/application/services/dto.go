package services

import (
	"math/big"
	"sort"
	"time"

	"github.com/bimakw/nexus-orchestrator/internal/domain/amount"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

const (
	gasFeeDisplaySuffix = " ETH"
	unlimitedDisplay    = "Unlimited"
)

// ChainBalanceDTO is the API representation of one chain's balance
type ChainBalanceDTO struct {
	ChainID          int64  `json:"chainId"`
	ChainName        string `json:"chainName"`
	Balance          string `json:"balance"`
	FormattedBalance string `json:"formattedBalance"`
}

// TokenBalanceDTO is the API representation of a unified token balance
type TokenBalanceDTO struct {
	Symbol         string            `json:"symbol"`
	Name           string            `json:"name"`
	Decimals       int               `json:"decimals"`
	Total          string            `json:"total"`
	FormattedTotal string            `json:"formattedTotal"`
	Chains         []ChainBalanceDTO `json:"chains"`
}

// BalancesDTO is the API representation of a balance snapshot
type BalancesDTO struct {
	Unified   map[string]TokenBalanceDTO `json:"unified"`
	Bridge    map[string]TokenBalanceDTO `json:"bridge"`
	Swap      map[string]TokenBalanceDTO `json:"swap"`
	UpdatedAt string                     `json:"updatedAt"`
}

// AllowanceDTO is the API representation of an allowance
type AllowanceDTO struct {
	ChainID            int64  `json:"chainId"`
	Token              string `json:"token"`
	Spender            string `json:"spender"`
	Allowance          string `json:"allowance"`
	FormattedAllowance string `json:"formattedAllowance"`
	IsUnlimited        bool   `json:"isUnlimited"`
}

// IntentSourceDTO is one funding leg
type IntentSourceDTO struct {
	ChainID         int64  `json:"chainId"`
	ChainName       string `json:"chainName"`
	Amount          string `json:"amount"`
	FormattedAmount string `json:"formattedAmount"`
}

// IntentFeesDTO is the fee breakdown with raw and formatted forms
type IntentFeesDTO struct {
	BridgeFee          string `json:"bridgeFee"`
	GasFee             string `json:"gasFee"`
	TotalFee           string `json:"totalFee"`
	FormattedBridgeFee string `json:"formattedBridgeFee"`
	FormattedGasFee    string `json:"formattedGasFee"`
	FormattedTotalFee  string `json:"formattedTotalFee"`
}

// IntentDTO is the API representation of an intent
type IntentDTO struct {
	ID            string            `json:"id"`
	Token         string            `json:"token"`
	Amount        string            `json:"amount"`
	Sources       []IntentSourceDTO `json:"sources"`
	Destination   IntentSourceDTO   `json:"destination"`
	Fees          IntentFeesDTO     `json:"fees"`
	EstimatedTime int               `json:"estimatedTime"`
	Status        string            `json:"status"`
	Shortfall     string            `json:"shortfall,omitempty"`
	TxHash        string            `json:"txHash,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     string            `json:"createdAt"`
	UpdatedAt     string            `json:"updatedAt"`
}

// SessionStatusDTO is the API representation of session flags
type SessionStatusDTO struct {
	Identity            string `json:"identity"`
	IsInitialized       bool   `json:"isInitialized"`
	IsInitializing      bool   `json:"isInitializing"`
	IsLoadingBalances   bool   `json:"isLoadingBalances"`
	IsLoadingAllowances bool   `json:"isLoadingAllowances"`
	Error               string `json:"error,omitempty"`
}

// OperationResultDTO is the API representation of a pipeline result
type OperationResultDTO struct {
	Success      bool                  `json:"success"`
	TxHash       string                `json:"txHash,omitempty"`
	IntentID     string                `json:"intentId,omitempty"`
	InputAmount  string                `json:"inputAmount,omitempty"`
	OutputAmount string                `json:"outputAmount,omitempty"`
	Error        string                `json:"error,omitempty"`
	Events       []entities.NexusEvent `json:"events"`
}

// PaginationResponse contains pagination metadata
type PaginationResponse struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// IntentArchiveResponse is a page of journaled intents
type IntentArchiveResponse struct {
	Data       []IntentDTO        `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewBalancesDTO converts a snapshot; nil yields empty maps
func NewBalancesDTO(snapshot *entities.BalanceSnapshot) BalancesDTO {
	if snapshot == nil {
		return BalancesDTO{
			Unified: map[string]TokenBalanceDTO{},
			Bridge:  map[string]TokenBalanceDTO{},
			Swap:    map[string]TokenBalanceDTO{},
		}
	}
	return BalancesDTO{
		Unified:   newTokenBalanceMap(snapshot.Unified),
		Bridge:    newTokenBalanceMap(snapshot.Bridge),
		Swap:      newTokenBalanceMap(snapshot.Swap),
		UpdatedAt: snapshot.UpdatedAt.Format(time.RFC3339),
	}
}

func newTokenBalanceMap(balances entities.UnifiedBalances) map[string]TokenBalanceDTO {
	out := make(map[string]TokenBalanceDTO, len(balances))
	for symbol, tb := range balances {
		chains := make([]ChainBalanceDTO, len(tb.Chains))
		for i, c := range tb.Chains {
			chains[i] = ChainBalanceDTO{
				ChainID:          c.ChainID,
				ChainName:        c.ChainName,
				Balance:          c.Balance.String(),
				FormattedBalance: amount.Format(c.Balance, tb.Decimals),
			}
		}
		out[symbol] = TokenBalanceDTO{
			Symbol:         tb.Symbol,
			Name:           tb.Name,
			Decimals:       tb.Decimals,
			Total:          tb.Total.String(),
			FormattedTotal: amount.Format(tb.Total, tb.Decimals),
			Chains:         chains,
		}
	}
	return out
}

// NewAllowanceDTO converts an allowance on chainID
func NewAllowanceDTO(chainID int64, a entities.Allowance) AllowanceDTO {
	formatted := unlimitedDisplay
	if !a.IsUnlimited {
		formatted = amount.Format(a.Amount, entities.TokenDecimals(a.Token, defaultDecimals))
	}
	return AllowanceDTO{
		ChainID:            chainID,
		Token:              a.Token,
		Spender:            a.Spender,
		Allowance:          a.Amount.String(),
		FormattedAllowance: formatted,
		IsUnlimited:        a.IsUnlimited,
	}
}

// NewAllowanceDTOs flattens a registry map ordered by chain
func NewAllowanceDTOs(entries map[int64][]entities.Allowance) []AllowanceDTO {
	chains := make([]int64, 0, len(entries))
	for chainID := range entries {
		chains = append(chains, chainID)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	out := make([]AllowanceDTO, 0)
	for _, chainID := range chains {
		for _, a := range entries[chainID] {
			out = append(out, NewAllowanceDTO(chainID, a))
		}
	}
	return out
}

// NewIntentDTO converts an intent
func NewIntentDTO(intent *entities.Intent) IntentDTO {
	sources := make([]IntentSourceDTO, len(intent.Sources))
	for i, s := range intent.Sources {
		sources[i] = IntentSourceDTO{
			ChainID:         s.ChainID,
			ChainName:       s.ChainName,
			Amount:          s.Amount.String(),
			FormattedAmount: amount.Format(s.Amount, intent.Decimals),
		}
	}

	formattedBridgeFee := amount.Format(intent.Fees.BridgeFee, intent.Decimals)
	formattedGasFee := amount.Format(intent.Fees.GasFee, nativeDecimals) + gasFeeDisplaySuffix

	dto := IntentDTO{
		ID:      intent.ID,
		Token:   intent.Token,
		Amount:  bigString(intent.Requested),
		Sources: sources,
		Destination: IntentSourceDTO{
			ChainID:         intent.Destination.ChainID,
			ChainName:       intent.Destination.ChainName,
			Amount:          bigString(intent.Destination.Amount),
			FormattedAmount: amount.Format(intent.Destination.Amount, intent.Decimals),
		},
		Fees: IntentFeesDTO{
			BridgeFee:          bigString(intent.Fees.BridgeFee),
			GasFee:             bigString(intent.Fees.GasFee),
			TotalFee:           bigString(intent.Fees.TotalFee),
			FormattedBridgeFee: formattedBridgeFee,
			FormattedGasFee:    formattedGasFee,
			FormattedTotalFee:  formattedBridgeFee + " + " + formattedGasFee,
		},
		EstimatedTime: intent.EstimatedTime,
		Status:        string(intent.Status),
		TxHash:        intent.TxHash,
		Error:         intent.Error,
		CreatedAt:     intent.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     intent.UpdatedAt.Format(time.RFC3339),
	}
	if !intent.Covered() {
		dto.Shortfall = intent.Shortfall.String()
	}
	return dto
}

// NewIntentDTOs converts a list of intents
func NewIntentDTOs(intents []*entities.Intent) []IntentDTO {
	out := make([]IntentDTO, len(intents))
	for i, intent := range intents {
		out[i] = NewIntentDTO(intent)
	}
	return out
}

// NewSessionStatusDTO converts session flags
func NewSessionStatusDTO(status SessionStatus) SessionStatusDTO {
	dto := SessionStatusDTO{
		Identity:            status.Identity,
		IsInitialized:       status.Initialized,
		IsInitializing:      status.Initializing,
		IsLoadingBalances:   status.LoadingBalances,
		IsLoadingAllowances: status.LoadingAllowances,
	}
	if status.Error != nil {
		dto.Error = status.Error.Error()
	}
	return dto
}

// NewOperationResultDTO converts a pipeline result and its events
func NewOperationResultDTO(result OperationResult, events []entities.NexusEvent) OperationResultDTO {
	if events == nil {
		events = []entities.NexusEvent{}
	}
	return OperationResultDTO{
		Success:      result.Success,
		TxHash:       result.TxHash,
		IntentID:     result.IntentID,
		InputAmount:  bigString(result.InputAmount),
		OutputAmount: bigString(result.OutputAmount),
		Error:        result.Error,
		Events:       events,
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

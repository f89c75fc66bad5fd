/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

// TokenMetadata holds on-chain ERC-20 metadata
type TokenMetadata struct {
	Symbol   string
	Decimals uint8
}

// RegistryMismatch reports a registry token whose contract disagrees with the catalogue
type RegistryMismatch struct {
	ChainID  int64
	Symbol   string
	Contract common.Address
	Reason   string
}

// MetadataFetcher reads ERC-20 metadata via eth_call
type MetadataFetcher struct {
	caller ChainCaller
	logger *zap.Logger
}

// NewMetadataFetcher creates a new metadata fetcher
func NewMetadataFetcher(caller ChainCaller, logger *zap.Logger) *MetadataFetcher {
	return &MetadataFetcher{
		caller: caller,
		logger: logger,
	}
}

// ERC-20 function selectors (first 4 bytes of keccak256 hash)
var (
	// symbol() -> 0x95d89b41
	symbolSig = common.FromHex("0x95d89b41")
	// decimals() -> 0x313ce567
	decimalsSig = common.FromHex("0x313ce567")
)

// FetchMetadata reads symbol and decimals of the contract on chainID
func (f *MetadataFetcher) FetchMetadata(ctx context.Context, chainID int64, contract common.Address) (*TokenMetadata, error) {
	symbolData, err := f.caller.CallContract(ctx, chainID, contract, symbolSig)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch symbol: %w", err)
	}
	symbol, err := decodeStringOrBytes32(symbolData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode symbol: %w", err)
	}

	decimalsData, err := f.caller.CallContract(ctx, chainID, contract, decimalsSig)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch decimals: %w", err)
	}
	decimals, err := decodeUint8(decimalsData)
	if err != nil {
		return nil, err
	}

	return &TokenMetadata{Symbol: symbol, Decimals: decimals}, nil
}

// VerifyRegistry checks every registered contract on chains against the token
// catalogue decimals. Unreachable contracts are reported, not fatal.
func (f *MetadataFetcher) VerifyRegistry(ctx context.Context, chains []int64) []RegistryMismatch {
	var mismatches []RegistryMismatch

	for _, chainID := range chains {
		symbols := make([]string, 0, len(tokenAddresses[chainID]))
		for symbol := range tokenAddresses[chainID] {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)

		for _, symbol := range symbols {
			contract := tokenAddresses[chainID][symbol]
			token, ok := entities.LookupToken(symbol)
			if !ok {
				continue
			}

			meta, err := f.FetchMetadata(ctx, chainID, contract)
			if err != nil {
				mismatches = append(mismatches, RegistryMismatch{
					ChainID:  chainID,
					Symbol:   symbol,
					Contract: contract,
					Reason:   err.Error(),
				})
				continue
			}
			if int(meta.Decimals) != token.Decimals {
				mismatches = append(mismatches, RegistryMismatch{
					ChainID:  chainID,
					Symbol:   symbol,
					Contract: contract,
					Reason:   fmt.Sprintf("decimals %d, expected %d", meta.Decimals, token.Decimals),
				})
			}
		}
	}

	for _, m := range mismatches {
		f.logger.Warn("Token registry mismatch",
			zap.Int64("chain_id", m.ChainID),
			zap.String("token", m.Symbol),
			zap.String("contract", m.Contract.Hex()),
			zap.String("reason", m.Reason),
		)
	}
	return mismatches
}

// decodeUint8 reads a uint8 return value padded to 32 bytes
func decodeUint8(data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty result for decimals")
	}
	if len(data) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(data))
	}
	return data[31], nil
}

// decodeStringOrBytes32 decodes a response that could be either:
// 1. ABI-encoded string: offset (32 bytes) + length (32 bytes) + data (padded to 32 bytes)
// 2. bytes32: raw 32 bytes (e.g., MKR token)
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty data")
	}

	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	if len(data) >= 64 {
		offset := new(big.Int).SetBytes(data[:32])
		if offset.Uint64() == 32 {
			length := new(big.Int).SetBytes(data[32:64])
			strLen := int(length.Uint64())

			if strLen == 0 {
				return "", nil
			}

			if len(data) >= 64+strLen {
				return strings.TrimRight(string(data[64:64+strLen]), "\x00"), nil
			}
		}
	}

	result := bytes.TrimRight(data[:32], "\x00")
	if isPrintableASCII(result) {
		return string(result), nil
	}

	return "0x" + hex.EncodeToString(data[:32]), nil
}

// isPrintableASCII checks if all bytes are printable ASCII characters
func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}

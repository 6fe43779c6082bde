// Package model defines the core domain types shared across the vault engine.
// All monetary values are money.Money integers in smallest units, never float64.
package model

import (
	"fmt"
	"time"

	"github.com/atmx/vault-engine/internal/money"
)

// Status is the lifecycle state of a vault.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusClosed Status = "closed"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusPaused, StatusClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown vault status %q", s)
}

// Vault is the root accounting entity for one pool of capital.
type Vault struct {
	ID                uint64      `json:"id" db:"id"`
	Manager           string      `json:"manager" db:"manager"`
	Name              string      `json:"name" db:"name"`
	Description       string      `json:"description" db:"description"`
	TotalValue        money.Money `json:"total_value" db:"total_value"`   // NAV
	TotalShares       money.Money `json:"total_shares" db:"total_shares"` // outstanding shares
	ManagementFee     money.Rate  `json:"management_fee_bps" db:"management_fee_bps"`
	PerformanceFee    money.Rate  `json:"performance_fee_bps" db:"performance_fee_bps"`
	MinDeposit        money.Money `json:"min_deposit" db:"min_deposit"`
	Status            Status      `json:"status" db:"status"`
	HighWaterMark     money.Money `json:"high_water_mark" db:"high_water_mark"` // NAV-per-share, 10^8 = 1.0
	FeesCollected     money.Money `json:"fees_collected" db:"fees_collected"`   // cumulative
	LastFeeCollection time.Time   `json:"last_fee_collection" db:"last_fee_collection"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

// VaultInfo is the public view of a vault.
type VaultInfo struct {
	Vault
	NAVPerShare money.Money `json:"nav_per_share"`
	Investors   int         `json:"investors"`
}

// InvestorPosition is one investor's share balance in one vault.
type InvestorPosition struct {
	VaultID  uint64      `json:"vault_id" db:"vault_id"`
	Investor string      `json:"investor" db:"investor"`
	Shares   money.Money `json:"shares" db:"shares"`
	Value    money.Money `json:"value"` // floored redemption value at current NAV
}

// EventKind names a committed ledger mutation.
type EventKind string

const (
	EventCreated       EventKind = "created"
	EventDeposit       EventKind = "deposit"
	EventWithdraw      EventKind = "withdraw"
	EventTradeResult   EventKind = "trade_result"
	EventFeesCollected EventKind = "fees_collected"
	EventStatusChanged EventKind = "status_changed"
)

// Event is an immutable journal record of a committed mutation.
// Once created, these are never modified or deleted.
type Event struct {
	ID             string      `json:"id" db:"id"`
	VaultID        uint64      `json:"vault_id" db:"vault_id"`
	Kind           EventKind   `json:"kind" db:"kind"`
	Caller         string      `json:"caller" db:"caller"`
	Amount         money.Money `json:"amount" db:"amount"` // deposit/withdraw amount or signed P&L
	Shares         money.Money `json:"shares" db:"shares"` // minted or burned
	ManagementFee  money.Money `json:"management_fee" db:"management_fee"`
	PerformanceFee money.Money `json:"performance_fee" db:"performance_fee"`
	TotalValue     money.Money `json:"total_value" db:"total_value"`   // after the mutation
	TotalShares    money.Money `json:"total_shares" db:"total_shares"` // after the mutation
	Status         Status      `json:"status" db:"status"`
	Timestamp      time.Time   `json:"timestamp" db:"timestamp"`
}

// NavSample is one NAV-per-share observation.
type NavSample struct {
	At          time.Time   `json:"at" db:"at"`
	NAVPerShare money.Money `json:"nav_per_share" db:"nav_per_share"`
}

// Performance reports NAV-per-share returns in signed basis points.
type Performance struct {
	VaultID     uint64      `json:"vault_id"`
	NAVPerShare money.Money `json:"nav_per_share"`
	AllTime     int64       `json:"all_time_bps"`
	Month       int64       `json:"month_bps"`
	Week        int64       `json:"week_bps"`
	Samples     int         `json:"samples"`
	AsOf        time.Time   `json:"as_of"`
}

// TotalValueLocked aggregates NAV across all vaults.
type TotalValueLocked struct {
	TotalValue money.Money `json:"total_value"`
	Vaults     int         `json:"vaults"`
}

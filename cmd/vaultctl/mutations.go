package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/atmx/vault-engine/internal/api"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/money"
)

// createCmd holds the flags for the 'create' subcommand.
type createCmd struct {
	description    string
	managementBps  uint
	performanceBps uint
	minDeposit     string
}

func (*createCmd) Name() string     { return "create" }
func (*createCmd) Synopsis() string { return "create a vault managed by the caller" }
func (*createCmd) Usage() string {
	return `vaultctl -caller <manager> create [-m <bps>] [-p <bps>] [-min <tokens>] [-desc <text>] <name>

  Creates a vault in the active state. Fees are in basis points per year
  (management) and on profit above the high-water mark (performance).
`
}

func (c *createCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "desc", "", "vault description")
	f.UintVar(&c.managementBps, "m", 200, "annual management fee in basis points")
	f.UintVar(&c.performanceBps, "p", 2000, "performance fee in basis points")
	f.StringVar(&c.minDeposit, "min", "100", "minimum deposit in tokens")
}

func (c *createCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || !requireCaller() {
		fmt.Fprint(f.Output(), c.Usage())
		return subcommands.ExitUsageError
	}
	mgmt, err := rateFlag("m", c.managementBps)
	if err != nil {
		fmt.Fprintf(f.Output(), "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	perf, err := rateFlag("p", c.performanceBps)
	if err != nil {
		fmt.Fprintf(f.Output(), "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	minDeposit, err := money.ParseMoney(c.minDeposit)
	if err != nil {
		return fail("parsing minimum deposit", err)
	}

	var info model.VaultInfo
	err = newClient().post(ctx, "/vaults", api.CreateVaultRequest{
		Caller:         *caller,
		Name:           f.Arg(0),
		Description:    c.description,
		ManagementFee:  mgmt,
		PerformanceFee: perf,
		MinDeposit:     minDeposit,
	}, &info)
	if err != nil {
		return fail("creating vault", err)
	}
	fmt.Printf("vault %d created (%s)\n", info.ID, info.Name)
	return subcommands.ExitSuccess
}

type depositCmd struct{}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "deposit tokens into a vault" }
func (*depositCmd) Usage() string {
	return `vaultctl -caller <investor> deposit <vault> <tokens>

  Deposits an amount and mints shares at the current NAV per share.
`
}
func (*depositCmd) SetFlags(*flag.FlagSet) {}

func (*depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireCaller() {
		return subcommands.ExitUsageError
	}
	id, ok := vaultArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	amount, ok := amountArg(f, 1, "amount")
	if !ok {
		return subcommands.ExitUsageError
	}

	var resp api.DepositResponse
	path := fmt.Sprintf("/vaults/%d/deposit", id)
	if err := newClient().post(ctx, path, api.DepositRequest{Caller: *caller, Amount: amount}, &resp); err != nil {
		return fail("depositing", err)
	}
	fmt.Printf("deposited %s, minted %s shares\n", resp.Amount, resp.SharesMinted)
	return subcommands.ExitSuccess
}

type withdrawCmd struct{}

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "redeem shares for tokens" }
func (*withdrawCmd) Usage() string {
	return `vaultctl -caller <investor> withdraw <vault> <shares>

  Burns shares and returns their value at the current NAV per share.
`
}
func (*withdrawCmd) SetFlags(*flag.FlagSet) {}

func (*withdrawCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireCaller() {
		return subcommands.ExitUsageError
	}
	id, ok := vaultArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	shares, ok := amountArg(f, 1, "shares")
	if !ok {
		return subcommands.ExitUsageError
	}

	var resp api.WithdrawResponse
	path := fmt.Sprintf("/vaults/%d/withdraw", id)
	if err := newClient().post(ctx, path, api.WithdrawRequest{Caller: *caller, Shares: shares}, &resp); err != nil {
		return fail("withdrawing", err)
	}
	fmt.Printf("burned %s shares, returned %s\n", resp.SharesBurned, resp.AmountReturned)
	return subcommands.ExitSuccess
}

type tradeCmd struct{}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "record a realized trading profit or loss" }
func (*tradeCmd) Usage() string {
	return `vaultctl -caller <manager> trade <vault> <pnl>

  Applies a signed P&L in tokens to the vault NAV. Losses use a leading
  minus sign, e.g. "trade 1 -- -12.5".
`
}
func (*tradeCmd) SetFlags(*flag.FlagSet) {}

func (*tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireCaller() {
		return subcommands.ExitUsageError
	}
	id, ok := vaultArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	pnl, ok := amountArg(f, 1, "pnl")
	if !ok {
		return subcommands.ExitUsageError
	}

	var resp api.TradeResultResponse
	path := fmt.Sprintf("/vaults/%d/trade-results", id)
	if err := newClient().post(ctx, path, api.TradeResultRequest{Caller: *caller, PnL: pnl}, &resp); err != nil {
		return fail("recording trade result", err)
	}
	fmt.Printf("total value now %s\n", resp.TotalValue)
	if resp.NavFloored {
		fmt.Println("warning: loss exceeded NAV, total value floored at zero")
	}
	return subcommands.ExitSuccess
}

// collectCmd holds the flags for the 'collect' subcommand.
type collectCmd struct {
	force bool
}

func (*collectCmd) Name() string     { return "collect" }
func (*collectCmd) Synopsis() string { return "collect management and performance fees" }
func (*collectCmd) Usage() string {
	return `vaultctl -caller <manager> collect [-force] <vault>

  Charges the accrued management fee and any performance fee above the
  high-water mark.
`
}

func (c *collectCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "advance the collection time even when no fee is due")
}

func (c *collectCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireCaller() {
		return subcommands.ExitUsageError
	}
	id, ok := vaultArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}

	var resp api.CollectFeesResponse
	path := fmt.Sprintf("/vaults/%d/fees/collect", id)
	if err := newClient().post(ctx, path, api.CollectFeesRequest{Caller: *caller, Force: c.force}, &resp); err != nil {
		return fail("collecting fees", err)
	}
	fmt.Printf("management fee:  %s\n", resp.ManagementFee)
	fmt.Printf("performance fee: %s\n", resp.PerformanceFee)
	fmt.Printf("high-water mark: %s\n", resp.HighWaterMark)
	return subcommands.ExitSuccess
}

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "pause, resume or close a vault" }
func (*statusCmd) Usage() string {
	return `vaultctl -caller <manager> status <vault> active|paused|closed

  Changes the vault status. Closing is permanent.
`
}
func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (*statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireCaller() {
		return subcommands.ExitUsageError
	}
	id, ok := vaultArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	if f.NArg() < 2 {
		fmt.Fprintln(f.Output(), "Error: missing status")
		return subcommands.ExitUsageError
	}
	st, err := model.ParseStatus(f.Arg(1))
	if err != nil {
		fmt.Fprintf(f.Output(), "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	var info model.VaultInfo
	path := fmt.Sprintf("/vaults/%d/status", id)
	if err := newClient().post(ctx, path, api.StatusRequest{Caller: *caller, Status: st}, &info); err != nil {
		return fail("setting status", err)
	}
	fmt.Printf("vault %d is %s\n", info.ID, info.Status)
	return subcommands.ExitSuccess
}

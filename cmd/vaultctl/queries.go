package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/atmx/vault-engine/internal/api"
	"github.com/atmx/vault-engine/internal/model"
)

type infoCmd struct {
	json bool
}

func (*infoCmd) Name() string     { return "info" }
func (*infoCmd) Synopsis() string { return "show a vault and its investors" }
func (*infoCmd) Usage() string {
	return `vaultctl info [-json] <vault>
`
}

func (c *infoCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print the raw JSON view")
}

func (c *infoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, ok := vaultArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	cl := newClient()

	var info model.VaultInfo
	if err := cl.get(ctx, fmt.Sprintf("/vaults/%d", id), &info); err != nil {
		return fail("loading vault", err)
	}
	var investors []model.InvestorPosition
	if err := cl.get(ctx, fmt.Sprintf("/vaults/%d/investors", id), &investors); err != nil {
		return fail("loading investors", err)
	}
	if c.json {
		return printJSON(struct {
			model.VaultInfo
			Positions []model.InvestorPosition `json:"positions"`
		}{info, investors})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Vault\t%d %s\n", info.ID, info.Name)
	fmt.Fprintf(w, "Manager\t%s\n", info.Manager)
	fmt.Fprintf(w, "Status\t%s\n", info.Status)
	fmt.Fprintf(w, "Total value\t%s\n", info.TotalValue)
	fmt.Fprintf(w, "Total shares\t%s\n", info.TotalShares)
	fmt.Fprintf(w, "NAV per share\t%s\n", info.NAVPerShare)
	fmt.Fprintf(w, "High-water mark\t%s\n", info.HighWaterMark)
	fmt.Fprintf(w, "Fees\t%s mgmt, %s perf\n", info.ManagementFee, info.PerformanceFee)
	fmt.Fprintf(w, "Fees collected\t%s\n", info.FeesCollected)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Investor\tShares\tValue")
	for _, p := range investors {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Investor, p.Shares, p.Value)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type performanceCmd struct{}

func (*performanceCmd) Name() string     { return "performance" }
func (*performanceCmd) Synopsis() string { return "show NAV-per-share returns" }
func (*performanceCmd) Usage() string {
	return `vaultctl performance <vault>

  Reports all-time, 30-day and 7-day returns in basis points.
`
}
func (*performanceCmd) SetFlags(*flag.FlagSet) {}

func (*performanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, ok := vaultArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	var perf model.Performance
	if err := newClient().get(ctx, fmt.Sprintf("/vaults/%d/performance", id), &perf); err != nil {
		return fail("loading performance", err)
	}
	return printJSON(perf)
}

// eventsCmd holds the flags for the 'events' subcommand.
type eventsCmd struct {
	limit int
}

func (*eventsCmd) Name() string     { return "events" }
func (*eventsCmd) Synopsis() string { return "list the committed events of a vault" }
func (*eventsCmd) Usage() string {
	return `vaultctl events [-n <limit>] <vault>
`
}

func (c *eventsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of most recent events to show")
}

func (c *eventsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, ok := vaultArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	var events []model.Event
	if err := newClient().get(ctx, fmt.Sprintf("/vaults/%d/events?limit=%d", id, c.limit), &events); err != nil {
		return fail("loading events", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Time\tKind\tCaller\tAmount\tShares\tTotal value")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Caller, e.Amount, e.Shares, e.TotalValue)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type tvlCmd struct{}

func (*tvlCmd) Name() string     { return "tvl" }
func (*tvlCmd) Synopsis() string { return "show the total value locked across vaults" }
func (*tvlCmd) Usage() string    { return "vaultctl tvl\n" }

func (*tvlCmd) SetFlags(*flag.FlagSet) {}

func (*tvlCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var tvl api.TVLResponse
	if err := newClient().get(ctx, "/tvl", &tvl); err != nil {
		return fail("loading TVL", err)
	}
	fmt.Printf("%s tokens across %d vaults\n", tvl.TotalValueTokens, tvl.Vaults)
	return subcommands.ExitSuccess
}

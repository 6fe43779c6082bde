package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"

	"github.com/atmx/vault-engine/internal/money"
)

func register(c *subcommands.Commander) {
	c.Register(&createCmd{}, "vaults")
	c.Register(&statusCmd{}, "vaults")
	c.Register(&depositCmd{}, "capital")
	c.Register(&withdrawCmd{}, "capital")
	c.Register(&tradeCmd{}, "manager")
	c.Register(&collectCmd{}, "manager")
	c.Register(&infoCmd{}, "reports")
	c.Register(&performanceCmd{}, "reports")
	c.Register(&eventsCmd{}, "reports")
	c.Register(&tvlCmd{}, "reports")
}

// vaultArg parses the positional vault id shared by most commands.
func vaultArg(f *flag.FlagSet) (uint64, bool) {
	if f.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: missing vault id")
		return 0, false
	}
	id, err := strconv.ParseUint(f.Arg(0), 10, 64)
	if err != nil || id == 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid vault id %q\n", f.Arg(0))
		return 0, false
	}
	return id, true
}

// amountArg parses a decimal token amount at position i.
func amountArg(f *flag.FlagSet, i int, what string) (money.Money, bool) {
	if f.NArg() <= i {
		fmt.Fprintf(os.Stderr, "Error: missing %s\n", what)
		return 0, false
	}
	m, err := money.ParseMoney(f.Arg(i))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", what, err)
		return 0, false
	}
	return m, true
}

// rateFlag converts a basis-point flag value, rejecting anything above 100%.
func rateFlag(name string, bps uint) (money.Rate, error) {
	if bps > uint(money.MaxRate) {
		return 0, fmt.Errorf("-%s %d exceeds %d basis points", name, bps, uint(money.MaxRate))
	}
	return money.Rate(bps), nil
}

func requireCaller() bool {
	if *caller == "" {
		fmt.Fprintln(os.Stderr, "Error: -caller is required")
		return false
	}
	return true
}

func printJSON(v any) subcommands.ExitStatus {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func fail(what string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
	return subcommands.ExitFailure
}

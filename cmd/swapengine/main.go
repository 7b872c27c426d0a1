package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/config"
	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/swapengine"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "quote", "quote | route | execute | venues")
	inTok := flag.String("in", "SOL", "input asset symbol or mint")
	outTok := flag.String("out", "USDC", "output asset symbol or mint")
	amt := flag.String("amt", "", "amount in base units (e.g. 1000000000 for 1 SOL)")
	exactOut := flag.Bool("exact-out", false, "quote: treat -amt as the desired output")
	origin := flag.String("origin", "", "execute: paying account (must have approved custody)")
	recipient := flag.String("recipient", "", "execute: receiving account (default origin)")
	slippageBps := flag.Uint("slippage-bps", 100, "execute: slippage in bps (e.g. 100 = 1%)")
	minOut := flag.String("min-out", "", "execute: explicit minimum output, overrides slippage")
	nativeIn := flag.Bool("native-in", false, "execute: pay with native SOL")
	nativeOut := flag.Bool("native-out", false, "execute: receive native SOL")
	ttl := flag.Duration("ttl", time.Minute, "execute: deadline from now")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	engine, err := swapengine.NewEngineFromEnv(ctx, logger)
	if err != nil {
		fmt.Println("failed to init swapengine:", err)
		os.Exit(1)
	}
	defer engine.Close()

	if *mode == "venues" {
		for _, v := range engine.Venues() {
			fmt.Printf("%-20s kind=%-22s active=%-5v tiers=%v trades=%d volume=%s\n",
				v.ID, v.Kind, v.Active, v.Tiers(), v.Stats.SuccessCount, v.Stats.Volume)
		}
		return
	}

	in, err := config.ParseAsset(*inTok)
	if err != nil {
		fail(2, "invalid -in:", err)
	}
	out, err := config.ParseAsset(*outTok)
	if err != nil {
		fail(2, "invalid -out:", err)
	}
	amount, ok := new(big.Int).SetString(*amt, 10)
	if !ok || amount.Sign() <= 0 {
		fail(2, "missing -amt (base units, must be > 0)")
	}

	switch *mode {
	case "quote":
		var best interface {
			Found() bool
		}
		if *exactOut {
			b := engine.QuoteExactOutput(ctx, in, out, amount)
			best = b
			if b.Found() {
				fmt.Printf("venue=%s tier=%d amount_in=%s for amount_out=%s\n", b.VenueID, b.FeeTier, b.Amount, amount)
			}
		} else {
			for _, o := range engine.Quotes(ctx, in, out, amount) {
				if o.Err != nil {
					fmt.Printf("  %-20s tier=%-5d error=%v\n", o.VenueID, o.FeeTier, o.Err)
					continue
				}
				fmt.Printf("  %-20s tier=%-5d amount_out=%s\n", o.VenueID, o.FeeTier, o.Amount)
			}
			b := engine.Quote(ctx, in, out, amount)
			best = b
			if b.Found() {
				fmt.Printf("best venue=%s tier=%d amount_out=%s\n", b.VenueID, b.FeeTier, b.Amount)
			}
		}
		if !best.Found() {
			fail(1, "no quote:", router.ErrRouteNotFound)
		}
	case "route":
		r, err := engine.Route(ctx, in, out, amount)
		if err != nil {
			fail(1, "route failed:", err)
		}
		printRoute(r)
	case "execute":
		req := swapengine.SwapRequest{
			TokenIn:     in,
			TokenOut:    out,
			AmountIn:    amount,
			SlippageBps: uint32(*slippageBps),
			Deadline:    time.Now().Add(*ttl),
			NativeIn:    *nativeIn,
			NativeOut:   *nativeOut,
		}
		if req.Origin, err = config.ParseAccount(*origin); err != nil {
			fail(2, "invalid -origin:", err)
		}
		if *recipient != "" {
			if req.Recipient, err = config.ParseAccount(*recipient); err != nil {
				fail(2, "invalid -recipient:", err)
			}
		}
		if *minOut != "" {
			if req.MinAmountOut, ok = new(big.Int).SetString(*minOut, 10); !ok {
				fail(2, "invalid -min-out")
			}
		}
		res, err := engine.Swap(ctx, req)
		if err != nil {
			fail(1, "execute failed:", err)
		}
		fmt.Printf("execution=%s block=%d fee=%s amount_out=%s min_out=%s duration=%s\n",
			res.ExecutionID, res.Block, res.Fee, res.AmountOut, res.MinAmountOut, res.Duration)
		printRoute(res.Route)
	default:
		fail(2, "invalid -mode (use quote|route|execute|venues)")
	}
}

func printRoute(r *router.Route) {
	path := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		path[i] = symbol(t)
	}
	fmt.Printf("route %s expected_out=%s gas=%d gas_cost=%s score=%s\n",
		strings.Join(path, " -> "), r.ExpectedOutput, r.GasEstimate, r.GasCost, r.Score)
	for i, h := range r.Hops {
		fmt.Printf("  hop %d: %s tier=%d %s -> %s expected_out=%s\n",
			i, h.VenueID, h.FeeTier, symbol(h.TokenIn), symbol(h.TokenOut), h.ExpectedOut)
	}
}

func symbol(pk solana.PublicKey) string {
	return constants.Symbol(pk.String())
}

func fail(code int, args ...any) {
	fmt.Println(args...)
	os.Exit(code)
}

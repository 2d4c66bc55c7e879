// Command stackswap runs the conversion and settlement flow controller for STX ↔ NGN.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stackswap/internal/bankverify"
	"github.com/seenimoa/stackswap/internal/config"
	"github.com/seenimoa/stackswap/internal/liquidity"
	"github.com/seenimoa/stackswap/internal/quote"
	"github.com/seenimoa/stackswap/pkg/models"
	"github.com/seenimoa/stackswap/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var (
	cfg      *config.Config
	logLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stackswap",
	Short: "stackswap — STX ↔ NGN conversion flow controller",
	Long: `stackswap drives a single user's conversion attempt between STX and
Nigerian Naira: quoting, liquidity checks, bank verification, order
creation, wallet signing and payment, exposed over HTTP and WebSocket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(banksCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(liquidityCmd)
	rootCmd.AddCommand(statusCmd)
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func assetArg(args []string) models.Asset {
	if len(args) > 0 {
		return models.NormalizeAsset(args[0])
	}
	return models.NormalizeAsset(cfg.Asset.Symbol)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stackswap %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the flow controller and its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		a := newApp()
		defer a.close()

		if a.redis != nil {
			if err := pingRedis(ctx, a.redis); err != nil {
				a.logger.WithError(err).Warn("session store unreachable, sessions will not persist")
			}
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		a.logger.WithFields(logrus.Fields{
			"addr":    addr,
			"backend": cfg.Backend.URL,
			"network": cfg.Network.Name,
		}).Info("starting stackswap")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.ctrl.Run(gctx) })
		g.Go(func() error { return a.server.ListenAndServe(gctx, addr) })
		if err := g.Wait(); err != nil && ctx.Err() == nil {
			return err
		}
		a.logger.Info("stackswap stopped")
		return nil
	},
}

// --- Rate Command ---

var rateCmd = &cobra.Command{
	Use:   "rate [asset]",
	Short: "Fetch the current market rate and fee",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		asset := assetArg(args)
		r, err := newClient(newLogger(), nil).GetRate(ctx, asset)
		if err != nil {
			return err
		}
		fmt.Printf("%s/NGN\n", asset)
		fmt.Printf("  Market rate: %s\n", utils.FormatNGN(r.MarketRate))
		fmt.Printf("  Flat fee:    %s\n", utils.FormatNGN(r.FlatFee))
		fmt.Printf("  Price (USD): $%s\n", r.PriceUSD.StringFixed(4))
		fmt.Printf("  24h change:  %s\n", utils.FormatPct(r.Change24h))
		return nil
	},
}

// --- Banks Command ---

var banksCmd = &cobra.Command{
	Use:   "banks",
	Short: "List the payout banks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		banks, err := newClient(newLogger(), nil).ListBanks(ctx)
		if err != nil {
			return err
		}
		for _, b := range banks {
			fmt.Printf("  %-8s %s\n", b.Code, b.Name)
		}
		fmt.Printf("%d banks\n", len(banks))
		return nil
	},
}

// --- Verify Command ---

var verifyCmd = &cobra.Command{
	Use:   "verify [bank-code] [account-number]",
	Short: "Resolve the holder of a bank account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		logger := newLogger()
		out := bankverify.NewVerifier(newClient(logger, nil), logger, nil).Verify(ctx, args[0], args[1])
		if !out.Verified {
			return fmt.Errorf("not verified: %s", out.Message)
		}
		fmt.Printf("✅ %s\n", out.AccountName)
		return nil
	},
}

// --- Quote Command ---

var quoteCmd = &cobra.Command{
	Use:   "quote [amount]",
	Short: "Quote a sell or buy at the current rate",
	Long: `Quote a conversion at the current rate.

Examples:
  stackswap quote 100              # sell 100 STX
  stackswap quote 50000 --fiat     # sell for a ₦50,000 payout
  stackswap quote 5000 --buy --fiat`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		buy, _ := cmd.Flags().GetBool("buy")
		fiat, _ := cmd.Flags().GetBool("fiat")

		asset := models.NormalizeAsset(cfg.Asset.Symbol)
		r, err := newClient(newLogger(), nil).GetRate(ctx, asset)
		if err != nil {
			return err
		}

		mode := models.Sell
		if buy {
			mode = models.Buy
		}
		precision := quote.Precision{Asset: cfg.Asset.AssetPlaces, Fiat: cfg.Asset.FiatPlaces}
		ed := quote.NewEditor(mode, cfg.Asset.DefaultAmount, precision)
		field := quote.FieldAsset
		if fiat {
			field = quote.FieldFiat
		}
		ed.Edit(field, args[0])
		q := ed.Quote(r)

		fmt.Printf("%s %s @ %s\n", mode, asset, utils.FormatNGN(r.MarketRate))
		fmt.Printf("  %-14s %s\n", asset+":", utils.FormatAsset(q.Asset, string(asset), precision.Asset))
		if mode == models.Sell {
			fmt.Printf("  %-14s %s\n", "Gross:", utils.FormatNGN(q.Gross))
			fmt.Printf("  %-14s %s\n", "Fee:", utils.FormatNGN(q.Fee))
			fmt.Printf("  %-14s %s\n", "You receive:", utils.FormatNGN(q.Fiat))
		} else {
			fmt.Printf("  %-14s %s\n", "Amount:", utils.FormatNGN(q.Fiat))
			fmt.Printf("  %-14s %s\n", "Fee:", utils.FormatNGN(q.Fee))
			fmt.Printf("  %-14s %s\n", "Total payable:", utils.FormatNGN(q.TotalPayable))
		}
		return nil
	},
}

func init() {
	quoteCmd.Flags().Bool("buy", false, "quote a buy instead of a sell")
	quoteCmd.Flags().Bool("fiat", false, "amount is in NGN rather than the asset")
}

// --- Liquidity Command ---

var liquidityCmd = &cobra.Command{
	Use:   "liquidity [amount]",
	Short: "Check whether the platform can pay out a sell",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		logger := newLogger()
		client := newClient(logger, nil)
		r, err := client.GetRate(ctx, models.NormalizeAsset(cfg.Asset.Symbol))
		if err != nil {
			return err
		}
		res := liquidity.NewGate(client, gateConfig(), logger, nil).Check(ctx, args[0], *r)
		switch {
		case res.FailedOpen:
			fmt.Println("⚠️  Liquidity unavailable, proceeding (fail open)")
		case res.Blocked():
			fmt.Printf("❌ %s\n", res.Message)
		case res.Checked:
			fmt.Printf("✅ Sufficient: payout %s\n", utils.FormatNGN(res.Payout))
		default:
			fmt.Printf("❌ %s\n", res.Message)
		}
		if res.Balance != nil {
			fmt.Printf("   Balance: %s\n", utils.FormatNGN(*res.Balance))
		}
		return nil
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and dependency status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  stackswap — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):    %s\n", time.Now().UTC().Format(time.RFC3339))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Backend:       %s\n", cfg.Backend.URL)
		fmt.Printf("    Network:       %s (%s)\n", cfg.Network.Name, cfg.Network.ExplorerURL)
		fmt.Printf("    Asset:         %s\n", cfg.Asset.Symbol)
		fmt.Printf("    Liquidity:     fail open = %t\n", cfg.Liquidity.FailOpen)
		fmt.Printf("    Buy launch:    %s (%s)\n", cfg.Buy.LaunchAt.Format(time.RFC3339), utils.FormatCountdown(time.Until(cfg.Buy.LaunchAt)))
		fmt.Printf("    Session store: %s\n", cfg.Session.Store)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  Dependencies:")
		if _, err := newClient(newLogger(), nil).GetRate(ctx, models.NormalizeAsset(cfg.Asset.Symbol)); err != nil {
			fmt.Printf("    %-16s ❌ %v\n", "Backend:", err)
		} else {
			fmt.Printf("    %-16s ✅ reachable\n", "Backend:")
		}
		if rdb := newRedis(); rdb != nil {
			if err := pingRedis(ctx, rdb); err != nil {
				fmt.Printf("    %-16s ❌ %v\n", "Redis:", err)
			} else {
				fmt.Printf("    %-16s ✅ reachable\n", "Redis:")
			}
			rdb.Close() //nolint:errcheck
		}
		fmt.Println()

		fmt.Println("  Secrets:")
		for _, k := range config.CheckSecrets(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

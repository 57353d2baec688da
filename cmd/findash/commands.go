package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/subcommands"

	"FinDash/internal/model"
	"FinDash/internal/notifier"
	"FinDash/internal/prediction"
)

var commands = []subcommands.Command{
	&turnCmd{},
	&reconcileCmd{},
	&predictCmd{},
	&summaryCmd{},
	&buyCmd{},
	&sellCmd{},
	&statusCmd{},
	&serveCmd{},
}

var plain = strings.NewReplacer("<b>", "", "</b>", "")

// run bootstraps the app and hands it to fn. Errors go to stderr.
func run(ctx context.Context, fn func(ctx context.Context, a *app) error) subcommands.ExitStatus {
	a, err := bootstrap(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (a *app) report(ctx context.Context, text string, notify bool) {
	fmt.Println(plain.Replace(text))
	if notify {
		if err := a.notifier.Send(ctx, text); err != nil {
			a.log.Warn().Err(err).Msg("notify failed")
		}
	}
}

type turnCmd struct {
	notify bool
}

func (*turnCmd) Name() string     { return "turn" }
func (*turnCmd) Synopsis() string { return "run one decision turn: exits, then at most one entry" }
func (*turnCmd) Usage() string {
	return `findash turn [-notify]

  Evaluates every open position against its trailing stop and take-profit,
  then scans the candidates for a single new entry. Running twice on the
  same data makes no second entry.
`
}

func (c *turnCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.notify, "notify", false, "Also send the report to Telegram.")
}

func (c *turnCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		text, err := a.scheduler.RunTurn(ctx)
		if err != nil {
			return err
		}
		if text == "" {
			fmt.Println("Aucune action.")
			return nil
		}
		a.report(ctx, text, c.notify)
		return nil
	})
}

type reconcileCmd struct {
	notify bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "evaluate predictions whose target time has passed" }
func (*reconcileCmd) Usage() string {
	return `findash reconcile [-notify]

  Fetches realized prices for due PENDING predictions and rewrites the
  prediction log with their accuracy metrics.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.notify, "notify", false, "Also send the report to Telegram.")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		text, err := a.scheduler.RunReconcile(ctx)
		if err != nil {
			return err
		}
		if text == "" {
			fmt.Println("Aucune prédiction à évaluer.")
			return nil
		}
		a.report(ctx, text, c.notify)
		return nil
	})
}

type predictCmd struct {
	tickers string
	notify  bool
}

func (*predictCmd) Name() string     { return "predict" }
func (*predictCmd) Synopsis() string { return "issue price forecasts for the standard horizons" }
func (*predictCmd) Usage() string {
	return `findash predict [-tickers NVDA,AAPL] [-notify]

  Regresses the next closes on hourly indicator features (the linear trend
  when history is short) and logs one PENDING prediction per ticker and
  horizon.
`
}

func (c *predictCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tickers, "tickers", "", "Comma-separated tickers. Defaults to predictions.tickers.")
	f.BoolVar(&c.notify, "notify", false, "Also send the report to Telegram.")
}

func (c *predictCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		tickers := a.cfg.Predictions.Tickers
		if c.tickers != "" {
			tickers = splitTickers(c.tickers)
		}
		if len(tickers) == 0 {
			return errors.New("no tickers to forecast")
		}
		forecasts, _, err := a.forecaster.Issue(ctx, a.tracker, tickers)
		if err != nil {
			return err
		}
		a.report(ctx, notifier.FormatForecasts(forecasts), c.notify)
		return nil
	})
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type summaryCmd struct{}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show prediction accuracy per horizon" }
func (*summaryCmd) Usage() string {
	return `findash summary
`
}
func (*summaryCmd) SetFlags(*flag.FlagSet) {}

func (*summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		recs, err := a.tracker.Records()
		if err != nil {
			return err
		}
		a.report(ctx, notifier.FormatReconcile(prediction.ReconcileResult{}, prediction.Summarize(recs)), false)
		return nil
	})
}

type buyCmd struct {
	ticker   string
	amount   float64
	currency string
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "open a position at the latest close" }
func (*buyCmd) Usage() string {
	return `findash buy -ticker NVDA -amount 1000 [-currency EUR]
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "Ticker to buy.")
	f.Float64Var(&c.amount, "amount", 0, "Amount to invest.")
	f.StringVar(&c.currency, "currency", "", "Currency of the amount. Defaults to the account currency.")
}

func (c *buyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" || c.amount <= 0 {
		fmt.Fprintln(os.Stderr, "buy requires -ticker and a positive -amount")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, a *app) error {
		currency := c.currency
		if currency == "" {
			currency = a.cfg.Portfolio.AccountCurrency
		}
		pos, err := a.ledger.OpenPosition(ctx, strings.ToUpper(c.ticker), c.amount, strings.ToUpper(currency))
		if err != nil {
			return err
		}
		acct := a.cfg.Portfolio.AccountCurrency
		fmt.Printf("ACHAT %s : %s investis à %.2f (quantité %.4f)\n",
			pos.Ticker, notifier.FormatMoney(pos.InvestedAmount, acct), pos.EntryPrice, pos.Quantity)
		return nil
	})
}

type sellCmd struct {
	ticker string
	reason string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "close a position at the latest close" }
func (*sellCmd) Usage() string {
	return `findash sell -ticker NVDA [-reason "prise de bénéfices"]
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "Ticker to sell.")
	f.StringVar(&c.reason, "reason", "vente manuelle", "Reason stored with the transaction.")
}

func (c *sellCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" {
		fmt.Fprintln(os.Stderr, "sell requires -ticker")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, a *app) error {
		tx, err := a.ledger.ClosePosition(ctx, strings.ToUpper(c.ticker), model.TxSell, c.reason)
		if err != nil {
			return err
		}
		fmt.Printf("VENTE %s : %s (cours %.2f, quantité %.4f)\n",
			tx.Ticker, notifier.FormatMoney(tx.Amount, a.cfg.Portfolio.AccountCurrency), tx.Price, tx.Quantity)
		return nil
	})
}

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show cash, positions and their valuation" }
func (*statusCmd) Usage() string {
	return `findash status
`
}
func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (*statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		text, err := a.scheduler.Status(ctx)
		if err != nil {
			return err
		}
		a.report(ctx, text, false)
		return nil
	})
}

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the scheduled cycle and the Telegram command loop" }
func (*serveCmd) Usage() string {
	return `findash serve

  Runs the hourly cycle (decision turn, then prediction reconciliation) and
  the optional predict job until SIGINT or SIGTERM.
`
}
func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return run(ctx, func(ctx context.Context, a *app) error {
		sched := a.scheduler
		if err := sched.RegisterAll(a.cfg.Schedule.CycleCron, a.cfg.Schedule.PredictCron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		if a.telegram != nil {
			go a.telegram.StartPolling(ctx, sched.HandleCommand)
			a.log.Info().Msg("telegram polling started")
		}
		if a.cfg.Schedule.RunOnStart {
			a.log.Info().Msg("run_on_start enabled, executing cycle now")
			go sched.RunCycleNow()
		}

		a.log.Info().Str("cycle", a.cfg.Schedule.CycleCron).Msg("findash is running")
		<-ctx.Done()
		a.log.Info().Msg("shutdown signal received, stopping")
		return nil
	})
}

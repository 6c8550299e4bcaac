// Command ledgerctl runs operator tasks against the ledger store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"atmledger/internal/config"
	"atmledger/internal/infrastructure/database"
	"atmledger/internal/infrastructure/logging"
	"atmledger/internal/repository"
	"atmledger/internal/service"
	"atmledger/pkg/money"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gorm.io/gorm"
)

const usage = `Usage: ledgerctl [-config path] <command> [flags]

Commands:
  migrate                                  create or update the schema
  create-account -number N -owner NAME     provision an account (PIN is prompted)
                 [-pin PIN] [-balance 0.00]
  show-account -number N                   print an account and its movement count
  ping                                     check the store is reachable
  requeue-failed                           move FAILED outbox rows back to PENDING
`

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	keyColor  = color.New(color.FgCyan)
	warnColor = color.New(color.FgYellow)
)

func main() {
	global := flag.NewFlagSet("ledgerctl", flag.ExitOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := global.String("config", envOr("ATMLEDGER_CONFIG", "config/config.yaml"), "path to the YAML config file")
	_ = global.Parse(os.Args[1:])

	if global.NArg() < 1 {
		global.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, global.Arg(0), global.Args()[1:]); err != nil {
		errColor.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, cmd string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(config.LogConfig{Level: "warn", Format: "text"}, os.Stderr)

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cmd {
	case "migrate":
		if err := database.Migrate(db); err != nil {
			return err
		}
		okColor.Println("schema is up to date")
		return nil
	case "ping":
		if err := database.Ping(ctx, db); err != nil {
			return err
		}
		okColor.Printf("%s store is reachable\n", cfg.Database.Driver)
		return nil
	case "create-account":
		return createAccount(ctx, cfg, db, args)
	case "show-account":
		return showAccount(ctx, cfg, db, args)
	case "requeue-failed":
		n, err := repository.NewOutboxRepository(db).RequeueFailed(ctx)
		if err != nil {
			return err
		}
		okColor.Printf("requeued %d outbox message(s)\n", n)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func createAccount(ctx context.Context, cfg *config.Config, db *gorm.DB, args []string) error {
	fs := flag.NewFlagSet("create-account", flag.ExitOnError)
	number := fs.String("number", "", "account number")
	owner := fs.String("owner", "", "owner name")
	pin := fs.String("pin", "", "PIN; prompted when empty and stdin is a terminal")
	balance := fs.String("balance", "0", "opening balance in major units, e.g. 1500.00")
	_ = fs.Parse(args)

	opening, err := money.Parse(*balance)
	if err != nil {
		return fmt.Errorf("opening balance: %w", err)
	}
	if *pin == "" {
		if *pin, err = readPin(); err != nil {
			return err
		}
	}

	ledger, err := newLedger(cfg, db)
	if err != nil {
		return err
	}
	acc, err := ledger.CreateAccount(ctx, service.CreateAccountRequest{
		AccountNumber:  *number,
		OwnerName:      *owner,
		Pin:            *pin,
		OpeningBalance: opening.Minor(),
	})
	if err != nil {
		return err
	}
	okColor.Printf("account %s created\n", acc.AccountNumber)
	printField("owner", acc.OwnerName)
	printField("balance", money.Amount(acc.Balance).String())
	return nil
}

func showAccount(ctx context.Context, cfg *config.Config, db *gorm.DB, args []string) error {
	fs := flag.NewFlagSet("show-account", flag.ExitOnError)
	number := fs.String("number", "", "account number")
	_ = fs.Parse(args)

	ledger, err := newLedger(cfg, db)
	if err != nil {
		return err
	}
	acc, err := ledger.GetAccount(ctx, *number)
	if err != nil {
		return err
	}
	count, err := repository.NewMovementRepository(db).CountByAccount(ctx, acc.AccountNumber)
	if err != nil {
		return err
	}

	printField("account", acc.AccountNumber)
	printField("owner", acc.OwnerName)
	printField("balance", money.Amount(acc.Balance).String())
	if acc.IsBlocked() {
		keyColor.Printf("%-10s", "status")
		warnColor.Printf("%s (%s)\n", acc.Status, acc.BlockReason)
	} else {
		printField("status", acc.Status)
	}
	printField("movements", fmt.Sprint(count))
	printField("opened", acc.CreatedAt.Format(time.RFC3339))
	return nil
}

// newLedger builds a service that never writes outbox rows; operator
// actions are not customer movements worth streaming.
func newLedger(cfg *config.Config, db *gorm.DB) (*service.LedgerService, error) {
	opts := service.OptionsFromConfig(cfg)
	opts.PublishEvents = false
	return service.NewLedgerService(db, opts, logging.Discard())
}

func readPin() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("-pin is required when stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "PIN: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read pin: %w", err)
	}
	fmt.Fprint(os.Stderr, "Repeat PIN: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read pin: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("PINs do not match")
	}
	return string(first), nil
}

func printField(name, value string) {
	keyColor.Printf("%-10s", name)
	fmt.Println(value)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

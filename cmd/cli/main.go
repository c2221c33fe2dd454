package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/iho/badbank/internal/adapter/http/dto"
	postgresRepo "github.com/iho/badbank/internal/adapter/repository/postgres"
	"github.com/iho/badbank/internal/infrastructure/config"
	"github.com/iho/badbank/internal/infrastructure/postgres"
	"github.com/iho/badbank/internal/usecase"
)

var bcryptGenerate = bcrypt.GenerateFromPassword

// allChecker runs a consistency pass over every account.
type allChecker interface {
	CheckAll(ctx context.Context) (*usecase.ConsistencyReport, error)
}

// openAllChecker connects straight to the database. Replaced in tests.
var openAllChecker = func(ctx context.Context, databaseURL string) (allChecker, func(), error) {
	pool, err := postgres.NewPool(ctx, databaseURL, 2, 1)
	if err != nil {
		return nil, nil, err
	}
	uc := usecase.NewConsistencyUseCase(
		postgresRepo.NewAccountRepository(pool),
		postgresRepo.NewTransactionRepository(pool),
		nil,
	)
	return uc, pool.Close, nil
}

var (
	runMigrations     = postgres.RunMigrations
	runMigrationsDown = postgres.RunMigrationsDown
)

type options struct {
	baseURL string
	token   string
	timeout time.Duration
}

func (o *options) client() *apiClient {
	return newAPIClient(o.baseURL, o.token, o.timeout)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "badbank-cli",
		Short:         "badbank CLI tool",
		Long:          `A command line interface for interacting with the badbank API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("BADBANK_URL", "http://localhost:5001"), "Base URL of the badbank API")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("BADBANK_TOKEN"), "Bearer token (defaults to $BADBANK_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		signupCmd(opts),
		loginCmd(opts),
		meCmd(opts),
		balanceCmd(opts),
		depositCmd(opts),
		withdrawCmd(opts),
		transferCmd(opts),
		transactionsCmd(opts),
		ledgerCmd(opts),
		migrateCmd(),
		hashPasswordCmd(),
	)

	return rootCmd
}

func signupCmd(opts *options) *cobra.Command {
	var req dto.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a user with empty checking and savings accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Signup(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd(opts *options) *cobra.Command {
	var req dto.LoginRequest
	var tokenOnly bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Login(cmd.Context(), req)
			if err != nil {
				return err
			}
			if tokenOnly {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password")
	cmd.Flags().BoolVar(&tokenOnly, "token-only", false, "Print only the token")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func meCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Me(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show checking and savings balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Balance(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func depositCmd(opts *options) *cobra.Command {
	var amount, account, key string
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit into checking or savings",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.DepositRequest{Amount: dto.Amount(amount), AccountType: account}
			resp, err := opts.client().Deposit(cmd.Context(), req, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 12.50")
	cmd.Flags().StringVar(&account, "account", "checking", "Account type: checking or savings")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key for safe retries")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func withdrawCmd(opts *options) *cobra.Command {
	var amount, account, key string
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw from checking or savings",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.WithdrawRequest{Amount: dto.Amount(amount), AccountType: account}
			resp, err := opts.client().Withdraw(cmd.Context(), req, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 12.50")
	cmd.Flags().StringVar(&account, "account", "checking", "Account type: checking or savings")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key for safe retries")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func transferCmd(opts *options) *cobra.Command {
	var amount, from, to, key string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move money between your own checking and savings",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.TransferRequest{Amount: dto.Amount(amount), FromAccount: from, ToAccount: to}
			resp, err := opts.client().Transfer(cmd.Context(), req, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 12.50")
	cmd.Flags().StringVar(&from, "from", "checking", "Source account type")
	cmd.Flags().StringVar(&to, "to", "savings", "Destination account type")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key for safe retries")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func transactionsCmd(opts *options) *cobra.Command {
	var limit, offset int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := opts.client().Transactions(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), records)
			}
			return printTransactions(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of records to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	ledger := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	var all bool
	var databaseURL string
	consistency := &cobra.Command{
		Use:   "consistency",
		Short: "Check stored balances against the transaction log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return checkAllAccounts(cmd, databaseURL)
			}

			resp, err := opts.client().Consistency(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Consistent {
				return errors.New("consistency check FAILED")
			}
			return nil
		},
	}
	consistency.Flags().BoolVar(&all, "all", false, "Check every account directly in the database")
	consistency.Flags().StringVar(&databaseURL, "database-url", "", "Database URL for --all (defaults to $DATABASE_URL)")

	ledger.AddCommand(consistency)
	return ledger
}

func checkAllAccounts(cmd *cobra.Command, databaseURL string) error {
	if databaseURL == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		databaseURL = cfg.DatabaseURL
	}

	checker, closeFn, err := openAllChecker(cmd.Context(), databaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer closeFn()

	report, err := checker.CheckAll(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Accounts checked: %d\n", report.TotalAccounts)
	fmt.Fprintf(out, "Consistent: %d\n", report.ConsistentAccounts)
	if report.Skipped > 0 {
		fmt.Fprintf(out, "Skipped (busy): %d\n", report.Skipped)
	}
	for _, d := range report.Discrepancies {
		fmt.Fprintf(out, "DRIFT %s checking=%s savings=%s\n", d.UserID, d.CheckingDiff, d.SavingsDiff)
	}

	if !report.Consistent() {
		return fmt.Errorf("consistency check FAILED: %d account(s) drifted", len(report.Discrepancies))
	}
	fmt.Fprintln(out, "Consistency check PASSED")
	return nil
}

func migrateCmd() *cobra.Command {
	var databaseURL, path string

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	migrate.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Database URL (defaults to $DATABASE_URL)")
	migrate.PersistentFlags().StringVar(&path, "path", "", "Migrations directory (defaults to the embedded set)")

	resolve := func() (string, error) {
		if databaseURL != "" {
			return databaseURL, nil
		}
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.DatabaseURL, nil
	}

	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := resolve()
				if err != nil {
					return err
				}
				return runMigrations(url, path)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := resolve()
				if err != nil {
					return err
				}
				return runMigrationsDown(url, path)
			},
		},
	)
	return migrate
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for seeding users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcryptGenerate([]byte(args[0]), cost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return err
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTransactions(w io.Writer, records []dto.TransactionResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tAMOUNT\tACCOUNT\tDATE")
	for _, r := range records {
		account := r.AccountType
		if r.FromAccount != "" {
			account = r.FromAccount + "->" + r.ToAccount
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			truncate(r.ID, 12), r.Type, r.Amount.StringFixed(2), account, r.Date.Format(time.RFC3339))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/shopledger/internal/infrastructure/config"
	"github.com/iho/shopledger/internal/infrastructure/postgres"
)

type cliOptions struct {
	baseURL string
	token   string
	timeout time.Duration
}

func (o *cliOptions) client() *apiClient {
	return newAPIClient(o.baseURL, o.token, o.timeout)
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "shopledger-cli",
		Short:         "Shopledger CLI tool",
		Long:          `A command line interface for the shop and customer balance ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the shopledger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("SHOPLEDGER_TOKEN"), "Bearer token (defaults to $SHOPLEDGER_TOKEN)")

	rootCmd.AddCommand(
		partyCmd("shops", "shop", opts),
		partyCmd("customers", "customer", opts),
		entryCmd("loans", "loan", opts),
		entryCmd("payments", "payment", opts),
		reconcileCmd(opts),
		auditCmd(opts),
		migrateCmd(),
	)

	return rootCmd
}

func partyCmd(resource, noun string, opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   resource,
		Short: fmt.Sprintf("Manage %s accounts", noun),
	}
	base := "/api/v1/" + resource

	var search, category string
	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss", noun),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setIfNotEmpty(q, "search", search)
			setIfNotEmpty(q, "category", category)
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			raw, err := opts.client().do(cmd.Context(), http.MethodGet, base, q, nil)
			if err != nil {
				return err
			}
			return printParties(cmd.OutOrStdout(), raw)
		},
	}
	listCmd.Flags().StringVar(&search, "search", "", "Match against name, code or phone")
	listCmd.Flags().StringVar(&category, "category", "", "Filter by category")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: fmt.Sprintf("Show a %s", noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().do(cmd.Context(), http.MethodGet, base+"/"+args[0], nil, nil)
			return printResult(cmd, raw, err)
		},
	}

	entriesCmd := &cobra.Command{
		Use:   "entries <id>",
		Short: fmt.Sprintf("List loans and payments booked against a %s", noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().do(cmd.Context(), http.MethodGet, base+"/"+args[0]+"/entries", nil, nil)
			return printResult(cmd, raw, err)
		},
	}

	var create struct {
		Name      string `json:"name"`
		OwnerName string `json:"owner_name,omitempty"`
		Phone     string `json:"phone"`
		Village   string `json:"village"`
		Category  string `json:"category"`
	}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Register a new %s", noun),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().do(cmd.Context(), http.MethodPost, base, nil, create)
			return printResult(cmd, raw, err)
		},
	}
	createCmd.Flags().StringVar(&create.Name, "name", "", "Display name")
	createCmd.Flags().StringVar(&create.OwnerName, "owner", "", "Owner name (shops only)")
	createCmd.Flags().StringVar(&create.Phone, "phone", "", "Phone number")
	createCmd.Flags().StringVar(&create.Village, "village", "", "Village")
	createCmd.Flags().StringVar(&create.Category, "category", "", "Category")
	_ = createCmd.MarkFlagRequired("name")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Soft-delete a %s", noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().do(cmd.Context(), http.MethodDelete, base+"/"+args[0], nil, nil)
			return printResult(cmd, raw, err)
		},
	}

	cmd.AddCommand(listCmd, getCmd, entriesCmd, createCmd, deleteCmd)
	return cmd
}

func entryCmd(resource, noun string, opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   resource,
		Short: fmt.Sprintf("Manage %ss", noun),
	}
	base := "/api/v1/" + resource

	var direction, partyID, month string
	var year, limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss", noun),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setIfNotEmpty(q, "direction", direction)
			setIfNotEmpty(q, "party_id", partyID)
			setIfNotEmpty(q, "month", month)
			if year > 0 {
				q.Set("year", strconv.Itoa(year))
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			raw, err := opts.client().do(cmd.Context(), http.MethodGet, base, q, nil)
			return printResult(cmd, raw, err)
		},
	}
	listCmd.Flags().StringVar(&direction, "direction", "", "FROM_SHOP or TO_CUSTOMER")
	listCmd.Flags().StringVar(&partyID, "party", "", "Filter by party ID")
	listCmd.Flags().StringVar(&month, "month", "", "Filter by period month")
	listCmd.Flags().IntVar(&year, "year", 0, "Filter by period year")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	var create struct {
		Direction     string `json:"direction"`
		PartyID       string `json:"party_id"`
		Amount        string `json:"amount"`
		OrderLetter   string `json:"order_letter,omitempty"`
		Month         string `json:"month,omitempty"`
		Year          int    `json:"year,omitempty"`
		PaymentNumber string `json:"payment_number,omitempty"`
		LoanID        string `json:"loan_id,omitempty"`
	}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Book a new %s", noun),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().do(cmd.Context(), http.MethodPost, base, nil, create)
			return printResult(cmd, raw, err)
		},
	}
	createCmd.Flags().StringVar(&create.Direction, "direction", "", "FROM_SHOP or TO_CUSTOMER")
	createCmd.Flags().StringVar(&create.PartyID, "party", "", "Shop or customer ID")
	createCmd.Flags().StringVar(&create.Amount, "amount", "", "Positive decimal amount")
	createCmd.Flags().StringVar(&create.Month, "month", "", "Period month")
	createCmd.Flags().IntVar(&create.Year, "year", 0, "Period year")
	if noun == "loan" {
		createCmd.Flags().StringVar(&create.OrderLetter, "order-letter", "", "Order letter reference")
	} else {
		createCmd.Flags().StringVar(&create.PaymentNumber, "payment-number", "", "Payment number reference")
		createCmd.Flags().StringVar(&create.LoanID, "loan", "", "Loan this payment settles")
	}
	_ = createCmd.MarkFlagRequired("direction")
	_ = createCmd.MarkFlagRequired("party")
	_ = createCmd.MarkFlagRequired("amount")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete a %s and reverse its balance effect", noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().do(cmd.Context(), http.MethodDelete, base+"/"+args[0], nil, nil)
			return printResult(cmd, raw, err)
		},
	}

	cmd.AddCommand(listCmd, createCmd, deleteCmd)
	return cmd
}

func reconcileCmd(opts *cliOptions) *cobra.Command {
	var partyID string
	cmd := &cobra.Command{
		Use:       "reconcile <shops|customers>",
		Short:     "Compare stored balances against the entry history",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"shops", "customers"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/" + args[0] + "/reconciliation"
			if partyID != "" {
				path = "/api/v1/" + args[0] + "/" + partyID + "/reconciliation"
			}

			raw, err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, nil)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), raw); err != nil {
				return err
			}

			var report struct {
				Discrepancies []json.RawMessage `json:"discrepancies"`
				IsReconciled  *bool             `json:"is_reconciled"`
			}
			if err := json.Unmarshal(raw, &report); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if len(report.Discrepancies) > 0 || (report.IsReconciled != nil && !*report.IsReconciled) {
				return errors.New("reconciliation FAILED")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reconciliation PASSED")
			return nil
		},
	}
	cmd.Flags().StringVar(&partyID, "id", "", "Reconcile a single party")
	return cmd
}

func auditCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}

	var actorID, action, targetKind, targetID, since, until string
	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			setIfNotEmpty(q, "actor_id", actorID)
			setIfNotEmpty(q, "action", action)
			setIfNotEmpty(q, "target_kind", targetKind)
			setIfNotEmpty(q, "target_id", targetID)
			setIfNotEmpty(q, "start_date", since)
			setIfNotEmpty(q, "end_date", until)
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			raw, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/audits", q, nil)
			return printResult(cmd, raw, err)
		},
	}
	listCmd.Flags().StringVar(&actorID, "actor", "", "Filter by actor ID")
	listCmd.Flags().StringVar(&action, "action", "", "Filter by action")
	listCmd.Flags().StringVar(&targetKind, "target-kind", "", "Filter by target kind")
	listCmd.Flags().StringVar(&targetID, "target", "", "Filter by target ID")
	listCmd.Flags().StringVar(&since, "since", "", "RFC3339 lower bound")
	listCmd.Flags().StringVar(&until, "until", "", "RFC3339 upper bound")
	listCmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	cmd.AddCommand(listCmd)
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations using the server configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				return postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				return postgres.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath)
			},
		},
	)
	return cmd
}

// printResult prints a successful body. An unaudited mutation still prints
// the body but is reported as a warning.
func printResult(cmd *cobra.Command, raw json.RawMessage, err error) error {
	if err != nil && !errors.Is(err, errUnaudited) {
		return err
	}
	if perr := printJSON(cmd.OutOrStdout(), raw); perr != nil {
		return perr
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printParties(w io.Writer, raw json.RawMessage) error {
	var parties []struct {
		ID               string           `json:"id"`
		Code             string           `json:"code"`
		Name             string           `json:"name"`
		Village          string           `json:"village"`
		TotalOutstanding *json.RawMessage `json:"total_outstanding"`
		TotalOwed        *json.RawMessage `json:"total_owed"`
	}
	if err := json.Unmarshal(raw, &parties); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tVILLAGE\tBALANCE")
	for _, p := range parties {
		balance := "0"
		switch {
		case p.TotalOutstanding != nil:
			balance = unquote(*p.TotalOutstanding)
		case p.TotalOwed != nil:
			balance = unquote(*p.TotalOwed)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Code, truncate(p.Name, 24), truncate(p.Village, 16), balance)
	}
	return tw.Flush()
}

func unquote(raw json.RawMessage) string {
	if s, err := strconv.Unquote(string(raw)); err == nil {
		return s
	}
	return string(raw)
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

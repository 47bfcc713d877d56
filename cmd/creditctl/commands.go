package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ravelon/internal/admin"
	"ravelon/internal/domain"
)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "creditctl",
		Short:         "Operate on principals and credits as the system administrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		listCmd(open),
		planCmd(open),
		grantCmd(open),
		banCmd(open),
		geminiKeyCmd(open),
	)
	return root
}

// withEnv opens the environment for the lifetime of one command.
func withEnv(open opener, fn func(cmd *cobra.Command, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		e, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return fn(cmd, e)
	}
}

func listCmd(open opener) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List principals, optionally filtered by email or name",
		RunE: withEnv(open, func(cmd *cobra.Command, e *env) error {
			items, err := e.services.Admin.ListPrincipals(cmd.Context(), admin.SystemActor(), filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tPLAN\tCREDITS\tROLE")
			for _, a := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", a.ID, a.Email, a.Plan, a.Credits, a.Role)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&filter, "filter", "", "case-insensitive substring of email or name")
	return cmd
}

func planCmd(open opener) *cobra.Command {
	var id, email, plan string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Move a principal to another plan",
		RunE: withEnv(open, func(cmd *cobra.Command, e *env) error {
			if strings.TrimSpace(plan) == "" {
				return errors.New("--plan is required")
			}
			a, err := resolve(cmd.Context(), e, id, email)
			if err != nil {
				return err
			}
			p, err := e.services.Accounts.Subscribe(cmd.Context(), a.ID, domain.NormalizePlanID(plan))
			if err != nil {
				return err
			}
			e.logger.Info().Str("principal_id", p.Account.ID).Str("plan", string(p.Account.Plan)).Msg("plan changed")
			fmt.Fprintf(cmd.OutOrStdout(), "%s now on %s with %d credits\n", p.Account.Email, p.Account.Plan, p.Balance)
			return nil
		}),
	}
	identityFlags(cmd, &id, &email)
	cmd.Flags().StringVar(&plan, "plan", "", "target plan (FREE, PREMIUM_MONTHLY, PREMIUM_YEARLY)")
	return cmd
}

func grantCmd(open opener) *cobra.Command {
	var id, email string
	var amount int
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Add credits to a principal's balance",
		RunE: withEnv(open, func(cmd *cobra.Command, e *env) error {
			a, err := resolve(cmd.Context(), e, id, email)
			if err != nil {
				return err
			}
			updated, err := e.services.Admin.GrantCredits(cmd.Context(), admin.SystemActor(), a.ID, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s balance %d\n", updated.Email, updated.Credits)
			return nil
		}),
	}
	identityFlags(cmd, &id, &email)
	cmd.Flags().IntVar(&amount, "amount", 0, "credits to add (must be positive)")
	return cmd
}

func banCmd(open opener) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "ban",
		Short: "Remove a principal; its records are detached",
		RunE: withEnv(open, func(cmd *cobra.Command, e *env) error {
			if strings.TrimSpace(id) == "" {
				return errors.New("--id is required")
			}
			removed, err := e.services.Admin.RemovePrincipal(cmd.Context(), admin.SystemActor(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("principal %s was not removed", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "principal id")
	return cmd
}

func geminiKeyCmd(open opener) *cobra.Command {
	parent := &cobra.Command{
		Use:   "gemini-key",
		Short: "Manage the stored Gemini API key",
	}
	var key string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store or rotate the Gemini API key (postgres only)",
		RunE: withEnv(open, func(cmd *cobra.Command, e *env) error {
			if e.stores.Credentials == nil {
				return fmt.Errorf("gemini-key requires the postgres store driver, got %q", e.stores.Driver)
			}
			if err := e.stores.Credentials.SetGeminiAPIKey(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "gemini api key updated")
			return nil
		}),
	}
	set.Flags().StringVar(&key, "key", "", "Gemini API key")
	parent.AddCommand(set)
	return parent
}

func identityFlags(cmd *cobra.Command, id, email *string) {
	cmd.Flags().StringVar(id, "id", "", "principal id")
	cmd.Flags().StringVar(email, "email", "", "principal email")
	cmd.MarkFlagsMutuallyExclusive("id", "email")
	cmd.MarkFlagsOneRequired("id", "email")
}

func resolve(ctx context.Context, e *env, id, email string) (*domain.Account, error) {
	var (
		a   *domain.Account
		err error
		key = strings.TrimSpace(id)
	)
	if key != "" {
		a, err = e.stores.Principals.Get(ctx, key)
	} else {
		key = strings.ToLower(strings.TrimSpace(email))
		a, err = e.stores.Principals.GetByEmail(ctx, key)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPrincipal, key)
	}
	return a, err
}

package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"lethex-backend/internal/auth"
	"lethex-backend/internal/commissions"
	"lethex-backend/internal/holders"
	"lethex-backend/internal/prices"
	"lethex-backend/internal/tokens"

	"github.com/spf13/cobra"
)

func newMigrateCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every application table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := migrated(env); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "schema up to date\n")
			return nil
		},
	}
}

func newAdminCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var name, email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("missing --email or --password")
			}
			db, err := migrated(env)
			if err != nil {
				return err
			}
			a, err := auth.CreateAdmin(cmd.Context(), db, name, email, password)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "admin %s created (%s)\n", a.Email, a.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "Administrator", "display name")
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&password, "password", "", "login password")

	cmd.AddCommand(create)
	return cmd
}

func newTokenCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Maintain the token whitelist",
	}

	var name, feed string
	add := &cobra.Command{
		Use:   "add SYMBOL",
		Short: "Whitelist a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := migrated(env)
			if err != nil {
				return err
			}
			svc := &tokens.Service{DB: db}
			t, err := svc.Create(cmd.Context(), tokens.CreateInput{Symbol: args[0], Name: name, PriceFeedID: feed})
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "token %s whitelisted (feed %s)\n", t.Symbol, t.PriceFeedID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&feed, "feed", "", "price feed id, e.g. bitcoin")

	list := &cobra.Command{
		Use:   "list",
		Short: "List whitelisted tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := migrated(env)
			if err != nil {
				return err
			}
			svc := &tokens.Service{DB: db}
			all, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tNAME\tFEED")
			for _, t := range all {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Symbol, t.Name, t.PriceFeedID)
			}
			return w.Flush()
		},
	}

	remove := &cobra.Command{
		Use:   "remove SYMBOL",
		Short: "Remove a token from the whitelist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := migrated(env)
			if err != nil {
				return err
			}
			svc := &tokens.Service{DB: db}
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "token %s removed\n", tokens.NormalizeSymbol(args[0]))
			return nil
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

func newHolderCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holder",
		Short: "Onboard fund holders",
	}

	var email string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a holder and print its access code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := migrated(env)
			if err != nil {
				return err
			}
			svc := &holders.Service{DB: db}
			in := holders.CreateInput{Name: strings.Join(args, " ")}
			if email != "" {
				in.Email = &email
			}
			h, err := svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "holder %s created, access code %s\n", h.ID, h.AccessCode)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "contact email")

	cmd.AddCommand(create)
	return cmd
}

func newCommissionsCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commissions",
		Short: "Commission records",
	}

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Backfill commission rows for approved swaps that lack one",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := migrated(env)
			if err != nil {
				return err
			}
			svc := &commissions.Service{DB: db}
			n, err := svc.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%d commission rows created\n", n)
			return nil
		},
	}

	cmd.AddCommand(reconcile)
	return cmd
}

func newPricesCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Price cache tools",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch quotes for every whitelisted token once and cache them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			db, err := migrated(env)
			if err != nil {
				return err
			}
			rdb, err := env.OpenRedis()
			if err != nil {
				return err
			}
			defer rdb.Close()
			p := &prices.Poller{
				DB:     db,
				Source: prices.NewCoinGecko(cfg.PriceFeedURL),
				Cache:  &prices.Cache{RDB: rdb, TTL: cfg.PriceCacheTTL},
			}
			n, err := p.Poll(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%d prices cached\n", n)
			return nil
		},
	}

	cmd.AddCommand(refresh)
	return cmd
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sleepplanet/sleepplanet/internal/model"
	"github.com/sleepplanet/sleepplanet/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrators",
		Long:  "Bootstrap the first administrator and inspect the administrator population.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminRolesCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		username string
		email    string
		phone    string
		pw       string
		roles    []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the first administrator",
		Long: `Create the first administrator directly in the account database.

This only works while no administrator exists. Further administrators are
created through the API by a super_admin.`,
		Example: `  sleepplanet admin create --username alice --email alice@example.com
  sleepplanet admin create --username alice --email alice@example.com --role super_admin --role editor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pw == "" {
				var err error
				pw, err = promptPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}
			in := service.CreateAdminInput{
				Username: username,
				Password: pw,
				Email:    email,
				Roles:    roles,
			}
			if phone != "" {
				in.PhoneNumber = &phone
			}
			return runAdminCreate(cmd.Context(), cmd.OutOrStdout(), in)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Login name, 4-20 letters, digits or underscores (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "11-digit phone number")
	cmd.Flags().StringVar(&pw, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{model.RoleSuperAdmin}, "Role to assign (repeatable)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")

	return cmd
}

func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(w)

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}

func runAdminCreate(ctx context.Context, out io.Writer, in service.CreateAdminInput) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger := newLogger(cfg.Logging, os.Stderr)

	svcs, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svcs.Close()

	id, err := svcs.admins.Bootstrap(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created administrator %q (id %d, roles: %s)\n", in.Username, id, strings.Join(in.Roles, ", "))
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active administrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(cmd.Context(), cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(ctx context.Context, out io.Writer, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	svcs, err := openServices(ctx, cfg, newLogger(cfg.Logging, os.Stderr))
	if err != nil {
		return err
	}
	defer svcs.Close()

	admins, err := svcs.store.ListActiveWithRoles(ctx)
	if err != nil {
		return fmt.Errorf("list administrators: %w", err)
	}
	return printAdmins(out, admins, jsonOutput)
}

func printAdmins(out io.Writer, admins []model.AdminSummary, jsonOutput bool) error {
	if jsonOutput {
		if admins == nil {
			admins = []model.AdminSummary{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(admins)
	}

	if len(admins) == 0 {
		fmt.Fprintln(out, "No administrators configured. Use 'sleepplanet admin create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-20s %-30s %s\n", "ID", "USERNAME", "EMAIL", "ROLES")
	fmt.Fprintf(out, "%-6s %-20s %-30s %s\n", "--", "--------", "-----", "-----")
	for _, a := range admins {
		fmt.Fprintf(out, "%-6d %-20s %-30s %s\n", a.ID, a.Username, a.Email, strings.Join(a.Roles, ","))
	}
	return nil
}

// ---------- admin roles ----------

func newAdminRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the roles that can be assigned",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminRoles(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runAdminRoles(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	svcs, err := openServices(ctx, cfg, newLogger(cfg.Logging, os.Stderr))
	if err != nil {
		return err
	}
	defer svcs.Close()

	roles, err := svcs.store.ListRoles(ctx)
	if err != nil {
		return err
	}
	for _, r := range roles {
		fmt.Fprintf(out, "%-6d %s\n", r.ID, r.Name)
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/JonMunkholm/ispcrm/internal/store"
	"github.com/JonMunkholm/ispcrm/internal/web/middleware"
	"github.com/spf13/cobra"
)

func (a *app) importCmd() *cobra.Command {
	var (
		scope  string
		dryRun bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "import <entity> <file>",
		Short: "Upsert the rows of an .xlsx or .xls workbook",
		Long: `Upsert the rows of the first worksheet of a workbook.

With --dry-run the rows are reconciled against an empty in-memory store,
which reports skipped rows and unmapped headers without touching the
database.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := core.Lookup(args[0])
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			var st core.Store
			if dryRun {
				mem := store.NewMemory()
				if schema.Scope != nil && scope != "" {
					mem.AddParent(schema.Scope.Parent, scope)
				}
				st = mem
			} else {
				pg, closeDB, err := a.openPostgres(ctx)
				if err != nil {
					return err
				}
				defer closeDB()
				st = pg
			}

			out, err := a.service(st).Import(ctx, schema.Entity, scope, filepath.Base(args[1]), f)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printOutcome(cmd.OutOrStdout(), out, dryRun)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Cluster or client group ID of scoped entities")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Reconcile against an empty in-memory store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	return cmd
}

func printOutcome(w io.Writer, out *core.ImportOutcome, dryRun bool) {
	suffix := ""
	if dryRun {
		suffix = " (dry run)"
	}
	fmt.Fprintf(w, "%s: %d created, %d updated, %d skipped%s\n",
		out.Entity, out.Created, out.Updated, out.Skipped, suffix)
	for _, s := range out.Skips {
		fmt.Fprintf(w, "  row %d: %s: %s\n", s.Row, s.Reason, s.Message)
	}
	for _, h := range out.UnmappedHeaders {
		if h.Suggestion != "" {
			fmt.Fprintf(w, "  unmapped header %q (did you mean %q?)\n", h.Header, h.Suggestion)
		} else {
			fmt.Fprintf(w, "  unmapped header %q\n", h.Header)
		}
	}
}

func (a *app) exportCmd() *cobra.Command {
	var (
		scope  string
		month  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <entity>",
		Short: "Write an entity as a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := core.ExportRequest{Entity: args[0], Scope: scope}
			if cmd.Flags().Changed("month") {
				if month < 0 || month > 11 {
					return fmt.Errorf("--month must be 0-11, got %d", month)
				}
				m := time.Month(month + 1)
				req.Month = &m
			}

			pg, closeDB, err := a.openPostgres(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			file, err := a.service(pg).Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeOutput(cmd, file, output)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Cluster or client group ID of scoped entities")
	cmd.Flags().IntVar(&month, "month", 0, "Only records whose month field is in this month (0 = January)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, - for stdout (default: the export file name)")
	return cmd
}

func (a *app) templateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "template <entity>",
		Short: "Write an empty workbook with the import headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := a.service(store.NewMemory()).Template(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, file, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, - for stdout (default: the template file name)")
	return cmd
}

// writeOutput writes file to path, to stdout for "-", or to its own name.
func writeOutput(cmd *cobra.Command, file *core.ExportFile, path string) error {
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(file.Data)
		return err
	}
	if path == "" {
		path = file.Name
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d rows)\n", path, file.Rows)
	return nil
}

func (a *app) schemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List importable entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tSCOPE\tIDENTITY\tCOLUMNS")
			for _, s := range core.All() {
				scope := "-"
				if s.Scope != nil {
					scope = s.Scope.Param
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Entity, scope, s.Identity, len(s.Export))
			}
			return tw.Flush()
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pg, closeDB, err := a.openPostgres(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			if err := pg.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func (a *app) expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Run the expiry sweep once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pg, closeDB, err := a.openPostgres(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			n, err := a.service(pg).ExpireDue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records expired\n", n)
			return nil
		},
	}
}

// scopeTables lists the parent tables of the registered schemas.
func scopeTables() []string {
	var tables []string
	for _, s := range core.All() {
		if s.Scope != nil && !slices.Contains(tables, s.Scope.Parent) {
			tables = append(tables, s.Scope.Parent)
		}
	}
	slices.Sort(tables)
	return tables
}

func (a *app) scopeCmd() *cobra.Command {
	scope := &cobra.Command{
		Use:   "scope",
		Short: "Manage clusters and client groups",
	}
	scope.AddCommand(&cobra.Command{
		Use:   "add <table> <name>",
		Short: "Create a cluster or client group and print its ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := scopeTables()
			if !slices.Contains(tables, args[0]) {
				return fmt.Errorf("unknown scope table %q (one of: %s)", args[0], strings.Join(tables, ", "))
			}
			pg, closeDB, err := a.openPostgres(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			id, err := pg.AddParent(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})
	return scope
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		actor core.Actor
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Security.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			roles := []string{middleware.RoleAdmin, middleware.RoleOperator, middleware.RoleTechnician}
			if !slices.Contains(roles, actor.Role) {
				return fmt.Errorf("--role must be one of: %s", strings.Join(roles, ", "))
			}
			tok, err := middleware.NewToken([]byte(a.cfg.Security.JWTSecret), actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor.ID, "sub", "", "User ID (required)")
	cmd.Flags().StringVar(&actor.Email, "email", "", "User email")
	cmd.Flags().StringVar(&actor.Role, "role", middleware.RoleOperator, "Role: admin, operator or technician")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("sub")
	return cmd
}

package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"formflow-backend/pkg/database"

	"github.com/spf13/cobra"
)

// NewMigrateCommand applies the PostgreSQL schema and verifies the tables exist
func NewMigrateCommand() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:     "migrate",
		Args:    cobra.NoArgs,
		Aliases: []string{"m"},
		Short:   "Create the PostgreSQL tables",
		Long:    `Apply the PostgreSQL schema (idempotent) and verify every table exists. The DSN comes from --dsn or POSTGRES_DSN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
			}
			if dsn == "" {
				return fmt.Errorf("no DSN: pass --dsn or set POSTGRES_DSN")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "connecting to %s\n", maskPassword(dsn))

			db, err := database.NewPostgresDatabase(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := db.ApplySchema(ctx); err != nil {
				return err
			}

			missing, err := db.MissingTables(ctx)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("schema applied but tables are missing: %s", strings.Join(missing, ", "))
			}
			fmt.Fprintf(out, "schema ready: %s\n", strings.Join(database.PostgresTables, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string")
	return cmd
}

// maskPassword hides the password of a URL-style DSN; key=value DSNs are cut short
func maskPassword(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	if i := strings.Index(dsn, "password="); i >= 0 {
		return dsn[:i] + "password=xxxxx"
	}
	return dsn
}

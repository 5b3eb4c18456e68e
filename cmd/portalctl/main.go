package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

var portalAddr string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "portalctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Restore portal operator CLI",
		Long: `portalctl drives a running portal: it reviews applications, lists them and
checks machine-client credentials. It can also launch the binaries directly.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&portalAddr, "addr", envOr("PORTALCTL_ADDR", "http://localhost:8080"), "Base URL of the running portal")
	cmd.AddCommand(
		newStatusCmd(),
		newApplicationsCmd(),
		newAPILoginCmd(),
		newRunCmd(),
	)
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Change the review status of applications",
	}
	var (
		id     int64
		status string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Set an application to pending, accepted or declined",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.Status(status).Valid() {
				return fmt.Errorf("status must be pending, accepted or declined, got %q", status)
			}
			res, err := newClient(portalAddr).SetStatus(cmd.Context(), id, model.Status(status))
			if err != nil {
				return err
			}
			if !res.Updated {
				return fmt.Errorf("application %d not found", id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	set.Flags().Int64Var(&id, "id", 0, "Application id")
	set.Flags().StringVar(&status, "status", "", "New status")
	_ = set.MarkFlagRequired("id")
	_ = set.MarkFlagRequired("status")
	cmd.AddCommand(set)
	return cmd
}

func newApplicationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "applications",
		Short: "Inspect submitted applications",
	}
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List applications, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !model.Status(status).Valid() {
				return fmt.Errorf("status must be pending, accepted or declined, got %q", status)
			}
			apps, err := newClient(portalAddr).Applications(cmd.Context())
			if err != nil {
				return err
			}
			return printApplications(cmd.OutOrStdout(), apps, model.Status(status))
		},
	}
	list.Flags().StringVar(&status, "status", "", "Only show applications with this status")
	cmd.AddCommand(list)
	return cmd
}

func printApplications(out io.Writer, apps []*model.Application, status model.Status) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tORGANIZATION\tTYPE\tPROJECT\tSTATUS\tPROFESSIONAL ID")
	for _, app := range apps {
		if status != "" && app.Status != status {
			continue
		}
		pid := "-"
		if app.ProfessionalID != nil {
			pid = *app.ProfessionalID
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", app.ID, app.OrgName, app.OrgType, app.ProjectTitle, app.Status, pid)
	}
	return tw.Flush()
}

func newAPILoginCmd() *cobra.Command {
	var professionalID, sessionToken string
	cmd := &cobra.Command{
		Use:   "api-login",
		Short: "Authenticate as the mobile client and print the returned projection",
		RunE: func(cmd *cobra.Command, args []string) error {
			projection, err := newClient(portalAddr).APILogin(cmd.Context(), professionalID, sessionToken)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(projection)
		},
	}
	cmd.Flags().StringVar(&professionalID, "professional-id", "", "Issued professional ID")
	cmd.Flags().StringVar(&sessionToken, "session-token", "", "Current session token")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run individual Go binaries directly",
	}
	cmd.AddCommand(
		newServiceRunner("server", "./cmd/server"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := append([]string{"run", path}, args...)
			return runCommand(cmd.Context(), "go", goArgs...)
		},
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

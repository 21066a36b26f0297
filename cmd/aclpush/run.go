package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/events"
	"github.com/netops-tools/aclpush/internal/service"
	"github.com/netops-tools/aclpush/internal/storage"
	"github.com/netops-tools/aclpush/internal/storage/sql"
	"github.com/netops-tools/aclpush/internal/transport"
)

var runFlags struct {
	devicesFile   string
	rulesFile     string
	perDeviceFile string
	apply         bool
	user          string
	role          string
	fanout        int
	opTimeout     time.Duration
	dbDSN         string
	shimDir       string
	sshPort       int
	verbose       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Roll out a ruleset across a device fleet",
	Long: `Run validates the ruleset, then walks every device through the
rollout workflow. Without --apply this is a dry run: commands are rendered
and reported but no device is contacted. With --apply each device is backed
up, changed, verified, and rolled back on failure.

The exit status is 0 only if every device ended in applied (or dry_run).`,
	RunE: doRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.devicesFile, "devices", "", "JSON file listing the target devices (required)")
	runCmd.Flags().StringVar(&runFlags.rulesFile, "rules", "", "JSON file holding the shared ruleset (required)")
	runCmd.Flags().StringVar(&runFlags.perDeviceFile, "rules-by-device", "", "JSON file mapping host to a per-device ruleset override")
	runCmd.Flags().BoolVar(&runFlags.apply, "apply", false, "apply changes to devices (default is a dry run)")
	runCmd.Flags().StringVar(&runFlags.user, "user", "", "actor name recorded on the run (required)")
	runCmd.Flags().StringVar(&runFlags.role, "role", "user", "actor role: admin or user")
	runCmd.Flags().IntVar(&runFlags.fanout, "fanout", 4, "devices processed concurrently")
	runCmd.Flags().DurationVar(&runFlags.opTimeout, "op-timeout", 30*time.Second, "timeout for each device operation")
	runCmd.Flags().StringVar(&runFlags.dbDSN, "db", "data/aclpush.db", "SQLite database holding runs and backups")
	runCmd.Flags().StringVar(&runFlags.shimDir, "shim", "", "directory of per-device config files used instead of SSH")
	runCmd.Flags().IntVar(&runFlags.sshPort, "ssh-port", 22, "SSH port for device sessions")
	runCmd.Flags().BoolVar(&runFlags.verbose, "verbose", false, "log per-device workflow transitions")
	_ = runCmd.MarkFlagRequired("devices")
	_ = runCmd.MarkFlagRequired("rules")
	_ = runCmd.MarkFlagRequired("user")
}

func doRun(cmd *cobra.Command, args []string) error {
	role := domain.Role(runFlags.role)
	if !domain.ValidRole(role) {
		return fmt.Errorf("unknown role %q (want admin or user)", runFlags.role)
	}

	var devices []domain.Device
	if err := loadJSONFile(runFlags.devicesFile, &devices); err != nil {
		return err
	}
	if len(devices) == 0 {
		return fmt.Errorf("%s lists no devices", runFlags.devicesFile)
	}

	rules, err := loadRules(runFlags.rulesFile)
	if err != nil {
		return err
	}

	var rulesByDevice map[string][]domain.RawRule
	if runFlags.perDeviceFile != "" {
		if err := loadJSONFile(runFlags.perDeviceFile, &rulesByDevice); err != nil {
			return err
		}
	}

	store, err := openStore(runFlags.dbDSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	var dialer transport.Dialer
	if runFlags.shimDir != "" {
		dialer = transport.NewFileDialer(runFlags.shimDir)
	} else {
		dialer = transport.NewSSHDialer(runFlags.sshPort)
	}

	var sink events.Sink = events.NopSink{}
	if runFlags.verbose {
		sink = events.LogSink{}
	}

	rollout := service.NewRollout(store, dialer, sink, service.Options{
		Fanout:    runFlags.fanout,
		OpTimeout: runFlags.opTimeout,
	})

	mode := domain.ModeDryRun
	if runFlags.apply {
		mode = domain.ModeApply
	}

	report, err := rollout.Run(cmd.Context(), service.RunRequest{
		Devices:       devices,
		Rules:         rules,
		RulesByDevice: rulesByDevice,
		Mode:          mode,
		Actor:         domain.Actor{Name: runFlags.user, Role: role},
	})
	if err != nil {
		return err
	}

	printReport(report)
	if !report.Succeeded() {
		os.Exit(1)
	}
	return nil
}

func openStore(dsn string) (storage.Storage, error) {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return sql.New("sqlite3", dsn)
}

func printReport(report *domain.RunReport) {
	bold := color.New(color.Bold)
	bold.Printf("Run %s (%s) by %s [%s]\n", report.RunID, report.Mode, report.Actor.Name, report.Actor.Role)

	for _, out := range report.Outcomes {
		fmt.Printf("  %-24s %s", out.DeviceID, statusText(out))
		if out.Error != "" {
			fmt.Printf("  %s", out.Error)
		}
		fmt.Println()
		for _, f := range out.Findings {
			fmt.Printf("      %s: %s\n", f.Severity, f.Message)
		}
		if out.Status == domain.StatusDryRun {
			for _, c := range out.Commands {
				fmt.Printf("      %s\n", c)
			}
		}
	}

	counts := report.Counts()
	fmt.Printf("\n%d device(s):", len(report.Outcomes))
	for _, status := range []domain.OutcomeStatus{
		domain.StatusApplied, domain.StatusDryRun, domain.StatusRolledBack,
		domain.StatusRejected, domain.StatusSkipped,
	} {
		if counts[status] > 0 {
			fmt.Printf(" %d %s", counts[status], status)
		}
	}
	fmt.Println()
}

func statusText(out domain.DeviceOutcome) string {
	switch out.Status {
	case domain.StatusApplied, domain.StatusDryRun:
		return color.GreenString(string(out.Status))
	case domain.StatusSkipped:
		return color.YellowString(string(out.Status))
	case domain.StatusRolledBack:
		if out.RollbackFailed {
			return color.New(color.FgRed, color.Bold).Sprint("rollback FAILED")
		}
		return color.RedString(string(out.Status))
	default:
		return color.RedString(string(out.Status))
	}
}

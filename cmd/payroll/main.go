package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"example.com/nannytracker/internal/app"
	"example.com/nannytracker/internal/config"
	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/location"
	"example.com/nannytracker/internal/payroll"
	"example.com/nannytracker/internal/summary"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps is what every subcommand needs once configuration is loaded.
type deps struct {
	cfg     config.Config
	loc     *time.Location
	service *domain.Service
}

func newRootCmd() *cobra.Command {
	var household string

	root := &cobra.Command{
		Use:           "payroll",
		Short:         "Operate a household's nanny time sheet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&household, "household", "", "household sync key (required)")
	_ = root.MarkPersistentFlagRequired("household")

	root.AddCommand(newStatusCmd(&household))
	root.AddCommand(newClockInCmd(&household))
	root.AddCommand(newClockOutCmd(&household))
	root.AddCommand(newSettingsCmd(&household))
	root.AddCommand(newReportCmd(&household))
	root.AddCommand(newExportCmd(&household))
	root.AddCommand(newSummaryCmd(&household))
	root.AddCommand(newResetCmd(&household))
	return root
}

func withDeps(ctx context.Context, fn func(rt deps) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	infra, err := app.SetupInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer infra.Close()

	return fn(deps{cfg: cfg, loc: loc, service: app.NewService(cfg, infra)})
}

func newStatusCmd(household *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a shift is active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(rt deps) error {
				view, err := rt.service.Status(cmd.Context(), *household)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if view.Active == nil {
					_, _ = fmt.Fprintln(out, view.Status)
					return nil
				}
				_, _ = fmt.Fprintf(out, "%s since %s\n", view.Status, view.Active.StartTime.In(rt.loc).Format("2006-01-02 15:04"))
				return nil
			})
		},
	}
}

func newClockInCmd(household *string) *cobra.Command {
	var lat, lng float64

	cmd := &cobra.Command{
		Use:   "clock-in",
		Short: "Start a shift at the given position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(rt deps) error {
				session, err := rt.service.ClockIn(cmd.Context(), *household, location.Fixed{Lat: lat, Lng: lng})
				if err != nil {
					if msg := domain.UserMessage(err); msg != err.Error() {
						return errors.New(msg)
					}
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "clocked in at %s (%s)\n", session.StartTime.In(rt.loc).Format("15:04"), session.ID)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the device")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of the device")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func newClockOutCmd(household *string) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "clock-out",
		Short: "Close the active shift",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(rt deps) error {
				session, err := rt.service.ClockOut(cmd.Context(), *household, note)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if session == nil {
					_, _ = fmt.Fprintln(out, "no active shift")
					return nil
				}
				_, _ = fmt.Fprintf(out, "clocked out after %d minutes\n", session.Minutes())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note attached to the shift")
	return cmd
}

func newSettingsCmd(household *string) *cobra.Command {
	var (
		lat, lng, radius, rate float64
		clearHome              bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the home location and hourly rate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(rt deps) error {
				flags := cmd.Flags()
				update := domain.SettingsUpdate{ClearHome: clearHome}
				if flags.Changed("lat") || flags.Changed("lng") {
					if !flags.Changed("lat") || !flags.Changed("lng") {
						return errors.New("--lat and --lng must be set together")
					}
					update.Home = &domain.HomeUpdate{Lat: lat, Lng: lng}
					if flags.Changed("radius") {
						update.Home.RadiusMeters = &radius
					}
				}
				if flags.Changed("rate") {
					update.HourlyRate = &rate
				}

				var (
					settings domain.Settings
					err      error
				)
				if update.Home == nil && update.HourlyRate == nil && !update.ClearHome {
					settings, err = rt.service.Settings(cmd.Context(), *household)
				} else {
					settings, err = rt.service.UpdateSettings(cmd.Context(), *household, update)
				}
				if err != nil {
					return err
				}
				printSettings(cmd.OutOrStdout(), settings)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "home latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "home longitude")
	cmd.Flags().Float64Var(&radius, "radius", 0, "geofence radius in meters")
	cmd.Flags().Float64Var(&rate, "rate", 0, "hourly rate")
	cmd.Flags().BoolVar(&clearHome, "clear-home", false, "remove the home location")
	return cmd
}

func printSettings(out io.Writer, s domain.Settings) {
	if s.Home.Configured() {
		_, _ = fmt.Fprintf(out, "home: %.6f,%.6f radius %.0fm\n", s.Home.Lat, s.Home.Lng, s.Home.RadiusMeters)
	} else {
		_, _ = fmt.Fprintln(out, "home: not set")
	}
	_, _ = fmt.Fprintf(out, "rate: %.2f/h\n", s.Rate())
}

func loadReport(ctx context.Context, rt deps, household string, offset int) (payroll.Report, error) {
	snapshot, err := rt.service.Snapshot(ctx, household)
	if err != nil {
		return payroll.Report{}, err
	}
	return payroll.ForSnapshot(snapshot, offset, rt.service.Now(), rt.loc)
}

func newReportCmd(household *string) *cobra.Command {
	var offset int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print totals for a pay period (0 = current)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(rt deps) error {
				report, err := loadReport(cmd.Context(), rt, *household, offset)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "period %s to %s\n",
					report.Window.Start.In(rt.loc).Format("2006-01-02"), report.Window.End.In(rt.loc).Format("2006-01-02"))
				_, _ = fmt.Fprintf(out, "shifts: %d\nhours: %.2f\npay: %.2f\n", len(report.Sessions), report.TotalHours, report.TotalPay)
				for _, day := range report.Chart {
					_, _ = fmt.Fprintf(out, "  %-9s %.2fh\n", day.Name, day.Hours)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "pay periods back from the current one")
	return cmd
}

func newExportCmd(household *string) *cobra.Command {
	var (
		offset int
		path   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a pay period as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(rt deps) error {
				report, err := loadReport(cmd.Context(), rt, *household, offset)
				if err != nil {
					return err
				}
				if path == "-" {
					return payroll.WriteCSV(cmd.OutOrStdout(), report.Sessions, rt.loc)
				}
				if path == "" {
					path = payroll.ExportFilename(rt.service.Now().In(rt.loc))
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := payroll.WriteCSV(f, report.Sessions, rt.loc); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d shifts to %s\n", len(report.Sessions), path)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "pay periods back from the current one")
	cmd.Flags().StringVar(&path, "out", "", "output file, - for stdout (default nanny_payroll_<date>.csv)")
	return cmd
}

func newSummaryCmd(household *string) *cobra.Command {
	var offset int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Request a prose summary of a pay period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(rt deps) error {
				report, err := loadReport(cmd.Context(), rt, *household, offset)
				if err != nil {
					return err
				}
				client := app.NewSummarizer(rt.cfg, summary.WithLocation(rt.loc))
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), client.Summarize(cmd.Context(), report.Sessions))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "pay periods back from the current one")
	return cmd
}

func newResetCmd(household *string) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every shift and setting for the household",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("refusing to reset without --yes")
			}
			return withDeps(cmd.Context(), func(rt deps) error {
				if err := rt.service.Reset(cmd.Context(), *household); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "household %s reset\n", *household)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm deletion")
	return cmd
}

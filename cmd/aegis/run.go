package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/aayushadhikari7/aegis/internal/capability"
	"github.com/aayushadhikari7/aegis/internal/config"
	"github.com/aayushadhikari7/aegis/internal/engine/wazerox"
	"github.com/aayushadhikari7/aegis/internal/host"
	"github.com/aayushadhikari7/aegis/internal/observe"
	"github.com/aayushadhikari7/aegis/internal/resource"
	"github.com/aayushadhikari7/aegis/internal/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run <module.wasm> [args...]",
	Short: "Execute a WebAssembly module in a sandbox",
	Long: `Run loads a module and executes an exported function under the
capability grants and resource limits of a profile. Without a profile the
sandbox denies every capability and applies default limits. Extra arguments
are passed to the function as unsigned integers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runModule,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("profile", "p", "", "sandbox profile (YAML)")
	runCmd.Flags().String("fn", "", "exported function to call (default: _start, then main)")
	runCmd.Flags().StringP("format", "f", "text", "report format: text or json")
	runCmd.Flags().BoolP("interactive", "i", false, "confirm each capability grant before running")
}

func runModule(cmd *cobra.Command, args []string) error {
	profilePath, _ := cmd.Flags().GetString("profile")
	fn, _ := cmd.Flags().GetString("fn")
	format, _ := cmd.Flags().GetString("format")
	interactive, _ := cmd.Flags().GetBool("interactive")
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q (want text or json)", format)
	}

	callArgs, err := parseCallArgs(args[1:])
	if err != nil {
		return err
	}

	caps, limits, err := loadProfileOrDefaults(profilePath)
	if err != nil {
		return err
	}
	if interactive {
		caps, err = confirmGrants(caps)
		if err != nil {
			return err
		}
	}

	wasm, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading module: %w", err)
	}

	ctx := cmd.Context()
	registry := host.NewRegistry()
	if err := host.RegisterBuiltins(registry); err != nil {
		return err
	}
	registry.Freeze()

	engine, err := wazerox.New(ctx, registry, wazerox.Config{MemoryLimitPages: wazerox.PagesFor(limits)})
	if err != nil {
		return err
	}
	defer func() {
		_ = engine.Close(ctx)
	}()

	ticker := resource.NewTicker(0)
	ticker.Start()
	defer ticker.Stop()

	events := observe.NewDispatcher()
	events.Subscribe(&observe.LogSubscriber{})
	collector := &observe.CollectingSubscriber{}
	events.Subscribe(collector)

	sb, err := sandbox.NewBuilder(engine).
		WithCapabilities(caps).
		WithLimits(limits).
		WithRegistry(registry).
		WithEvents(events).
		WithTicker(ticker).
		Build()
	if err != nil {
		return err
	}
	defer func() {
		_ = sb.Close(ctx)
	}()

	if err := sb.Load(ctx, wasm); err != nil {
		return err
	}

	results, callErr := sb.Call(ctx, fn, callArgs)
	return printReport(cmd, format, sb, results, callErr, collector.Events())
}

func parseCallArgs(raw []string) ([]uint64, error) {
	out := make([]uint64, 0, len(raw))
	for _, arg := range raw {
		v, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", arg, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func loadProfileOrDefaults(path string) (*capability.Set, resource.Limits, error) {
	if path == "" {
		return capability.EmptySet(), resource.DefaultLimits(), nil
	}
	profile, err := config.LoadProfile(path)
	if err != nil {
		return nil, resource.Limits{}, err
	}
	caps, err := profile.BuildCapabilities()
	if err != nil {
		return nil, resource.Limits{}, err
	}
	limits, err := profile.BuildLimits()
	if err != nil {
		return nil, resource.Limits{}, err
	}
	return caps, limits, nil
}

// confirmGrants asks the user about every grant in the set and rebuilds it
// from the approved ones. Denying a grant narrows the sandbox, never widens
// it.
func confirmGrants(caps *capability.Set) (*capability.Set, error) {
	builder := capability.NewBuilder()
	for _, kind := range []capability.Kind{
		capability.KindFilesystem, capability.KindNetwork,
		capability.KindLogging, capability.KindClock,
	} {
		for _, grant := range caps.Grants(kind) {
			approved := false
			err := huh.NewConfirm().
				Title("Grant capability?").
				Description(grant.Describe()).
				Value(&approved).
				Run()
			if err != nil {
				return nil, err
			}
			if approved {
				builder.Grant(grant)
			}
		}
	}
	return builder.Build(), nil
}

// report is the JSON report document.
type report struct {
	Outcome         string         `json:"outcome"`
	Error           string         `json:"error,omitempty"`
	Results         []uint64       `json:"results,omitempty"`
	FuelConsumed    uint64         `json:"fuel_consumed"`
	PeakMemoryBytes uint64         `json:"peak_memory_bytes"`
	DeniedGrows     uint64         `json:"denied_grows"`
	HostCalls       uint64         `json:"host_calls"`
	Duration        time.Duration  `json:"duration_ns"`
	Denials         []reportDenial `json:"denials,omitempty"`
}

type reportDenial struct {
	Function   string `json:"function"`
	Capability string `json:"capability"`
	Detail     string `json:"detail"`
}

func printReport(cmd *cobra.Command, format string, sb *sandbox.Sandbox, results []uint64, callErr error, events []observe.Event) error {
	metrics := sb.Metrics()
	rep := report{
		Outcome:         "completed",
		Results:         results,
		FuelConsumed:    metrics.FuelConsumed,
		PeakMemoryBytes: metrics.PeakMemoryBytes,
		DeniedGrows:     metrics.DeniedGrows,
		HostCalls:       metrics.HostCalls,
		Duration:        metrics.LastDuration,
	}
	if callErr != nil {
		rep.Outcome = "faulted"
		rep.Error = callErr.Error()
	}
	for _, ev := range events {
		if ev.Type == observe.PermissionDenied {
			rep.Denials = append(rep.Denials, reportDenial{
				Function:   ev.Function,
				Capability: ev.Capability,
				Detail:     ev.Detail,
			})
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "outcome:       %s\n", rep.Outcome)
		if rep.Error != "" {
			fmt.Fprintf(out, "error:         %s\n", rep.Error)
		}
		if len(rep.Results) > 0 {
			fmt.Fprintf(out, "results:       %v\n", rep.Results)
		}
		fmt.Fprintf(out, "fuel consumed: %d\n", rep.FuelConsumed)
		fmt.Fprintf(out, "peak memory:   %d bytes\n", rep.PeakMemoryBytes)
		fmt.Fprintf(out, "host calls:    %d\n", rep.HostCalls)
		fmt.Fprintf(out, "duration:      %s\n", rep.Duration)
		for _, d := range rep.Denials {
			fmt.Fprintf(out, "denied:        %s (%s): %s\n", d.Function, d.Capability, d.Detail)
		}
	}

	if callErr != nil {
		return fmt.Errorf("execution failed: %w", callErr)
	}
	return nil
}

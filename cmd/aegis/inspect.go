package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aayushadhikari7/aegis/internal/engine/wazerox"
	"github.com/aayushadhikari7/aegis/internal/host"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <module.wasm>",
	Short: "List a module's host imports and what they require",
	Long: `Inspect compiles a module without running it and reports which host
functions it imports, whether each resolves against the registry, and what
capability each one requires.`,
	Args: cobra.ExactArgs(1),
	RunE: inspectModule,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspectModule(cmd *cobra.Command, args []string) error {
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

	engine, err := wazerox.New(ctx, registry, wazerox.Config{})
	if err != nil {
		return err
	}
	defer func() {
		_ = engine.Close(ctx)
	}()

	mod, err := engine.Load(ctx, wasm)
	if err != nil {
		return err
	}
	defer func() {
		_ = mod.Close(ctx)
	}()

	out := cmd.OutOrStdout()
	imports := mod.Imports()
	fmt.Fprintf(out, "module: %s (%d imports)\n", args[0], len(imports))
	for _, imp := range imports {
		if imp.Namespace != host.Namespace {
			fmt.Fprintf(out, "  %s.%s (external)\n", imp.Namespace, imp.Name)
			continue
		}
		entry, err := registry.Lookup(imp.Name)
		if err != nil {
			fmt.Fprintf(out, "  %s.%s  UNRESOLVED\n", imp.Namespace, imp.Name)
			continue
		}
		fmt.Fprintf(out, "  %s.%s  %s\n", imp.Namespace, imp.Name, entry.Description)
	}

	fmt.Fprintf(out, "\nregistered host functions:\n")
	for _, entry := range registry.Entries() {
		fmt.Fprintf(out, "  %s.%s  %s\n", host.Namespace, entry.Name, entry.Description)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/speechflow/speechflow/internal/controlplane"
	"github.com/speechflow/speechflow/internal/graph"
	"github.com/speechflow/speechflow/internal/logger"
	"github.com/speechflow/speechflow/internal/registry"
	"github.com/speechflow/speechflow/internal/stage"
	"github.com/speechflow/speechflow/internal/stages"
)

const controlPlaneShutdownTimeout = 5 * time.Second

func run(cmd *cobra.Command, args []string) error {
	if flags.version {
		fmt.Printf("speechflow@%s\n", Version)
		return nil
	}

	reg := registry.New(func(name string, duplicate bool) {
		if duplicate {
			logger.Stage("registry").Warn().Str("type", name).Msg("duplicate stage type rejected")
			return
		}
		logger.Stage("registry").Debug().Str("type", name).Msg("stage type registered")
	})
	stages.RegisterBuiltins(reg)

	if flags.status {
		printStatusTable(reg)
		return nil
	}

	logger.SetLevel(logger.Level(flags.verbose))

	src, err := resolveConfigSource(args)
	if err != nil {
		return err
	}

	rt := graph.NewRuntime(reg)

	var cp *controlplane.Server
	if flags.port != 0 {
		blocks, err := controlplane.ParseDashboardBlocks(flags.dash)
		if err != nil {
			return err
		}
		cp = controlplane.NewServer(rt, controlplane.WithDashboardBlocks(blocks))
		rt.SetBroadcaster(cp)

		addr := fmt.Sprintf("%s:%d", flags.addr, flags.port)
		go func() {
			if err := cp.ListenAndServe(addr); err != nil {
				logger.Stage("controlplane").Error().Err(err).Msg("listen failed")
			}
		}()
	}

	ctx := context.Background()
	if err := rt.Construct(ctx, src); err != nil {
		return err
	}
	rt.InstallSignalHandlers()

	<-rt.Done()

	if cp != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, controlPlaneShutdownTimeout)
		defer cancel()
		_ = cp.Shutdown(shutdownCtx)
	}

	os.Exit(rt.ExitCode())
	return nil
}

// resolveConfigSource enforces "exactly one of -e/-f/-c" and builds the
// ConfigSource it selects. "-e" and "-f" are accepted at this layer (spec
// §6 names both) but the expression grammar itself is an external
// collaborator this module does not implement, so both resolve to
// graph.ErrDSLUnavailable, a Configuration-category error (spec §7).
func resolveConfigSource(argv []string) (graph.ConfigSource, error) {
	set := 0
	if flags.expr != "" {
		set++
	}
	if flags.file != "" {
		set++
	}
	if flags.config != "" {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of -e, -f, or -c is required")
	}

	switch {
	case flags.expr != "", flags.file != "":
		return nil, graph.ErrDSLUnavailable
	default:
		return loadYAMLConfig(flags.config, argv)
	}
}

// printStatusTable builds every registered stage type with no arguments
// and prints its declared IO and parameter names, without ever calling
// Open (spec §6 "-S"; this spec's definition of that table is in
// SPEC_FULL.md §13). Secret-shaped parameter names are not themselves
// redacted, only their values would be, so the table still prints them.
func printStatusTable(reg *registry.Registry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "TYPE\tINPUT\tOUTPUT\tPARAMS")
	for _, name := range reg.List() {
		s, err := reg.Build(name, name+":status", nil, nil)
		if err != nil {
			fmt.Fprintf(w, "%s\t?\t?\t(build failed: %v)\n", name, err)
			continue
		}
		status := s.Status()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", status.Type, status.Input, status.Output, paramNames(status.Params))
	}
}

func paramNames(schema stage.Schema) string {
	if len(schema) == 0 {
		return "-"
	}
	names := make([]string, len(schema))
	for i, def := range schema {
		names[i] = def.Name
	}
	return strings.Join(names, ",")
}

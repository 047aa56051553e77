package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/jpsmodel/internal/project"
	"github.com/dshills/jpsmodel/internal/project/graph"
)

// openLoaded opens and loads the configured project. Per-file failures
// are reported on stderr and do not fail the command.
func openLoaded(ctx context.Context, e *env) (*project.Project, project.LoadReport, error) {
	p, err := project.Open(ctx, e.opts)
	if err != nil {
		return nil, project.LoadReport{}, err
	}
	report, err := p.Load(ctx)
	if err != nil {
		p.Close()
		return nil, project.LoadReport{}, err
	}
	if report.Err != nil {
		fmt.Fprintf(e.stderr, "Warning: %v\n", report.Err)
	}
	return p, report, nil
}

func runLoad(ctx context.Context, e *env, _ []string) error {
	p, report, err := openLoaded(ctx, e)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(e.stdout, "project:   %s\n", p.Layout().ProjectDir.Path())
	fmt.Fprintf(e.stdout, "modules:   %d\n", report.Modules)
	if report.Unloaded > 0 {
		fmt.Fprintf(e.stdout, "unloaded:  %d\n", report.Unloaded)
	}
	fmt.Fprintf(e.stdout, "libraries: %d\n", report.Libraries)
	fmt.Fprintf(e.stdout, "artifacts: %d\n", report.Artifacts)
	fmt.Fprintf(e.stdout, "facets:    %d\n", report.Facets)
	fmt.Fprintf(e.stdout, "sdks:      %d\n", report.Sdks)
	if report.Stale > 0 {
		fmt.Fprintf(e.stdout, "stale:     %d (rewritten by save)\n", report.Stale)
	}
	return nil
}

func runDump(ctx context.Context, e *env, _ []string) error {
	p, _, err := openLoaded(ctx, e)
	if err != nil {
		return err
	}
	defer p.Close()

	snap, err := p.Snapshot()
	if err != nil {
		return err
	}
	unloaded, err := p.UnloadedSnapshot()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(e.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(newDump(snap, unloaded)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return enc.Close()
}

func runSave(ctx context.Context, e *env, _ []string) error {
	p, _, err := openLoaded(ctx, e)
	if err != nil {
		return err
	}
	defer p.Close()

	touched, err := p.Save(ctx)
	for _, u := range touched {
		fmt.Fprintf(e.stdout, "wrote %s\n", u.Path())
	}
	if err != nil {
		return err
	}
	if len(touched) == 0 {
		fmt.Fprintln(e.stdout, "nothing to write")
	}
	return nil
}

// runDeps prints the build order of all modules, or the transitive
// dependencies of the modules named in args. The deps options select the
// other views of the graph.
func runDeps(ctx context.Context, e *env, args []string) error {
	p, _, err := openLoaded(ctx, e)
	if err != nil {
		return err
	}
	defer p.Close()

	g, err := p.Graph()
	if err != nil {
		return err
	}

	switch o := e.cmd; {
	case o.json:
		return g.Save(e.stdout)
	case o.unused:
		return printUnusedLibraries(e, g)
	case o.path:
		return printPath(e, g, args)
	case o.reverse:
		return printModules(e, g, args, g.Dependents)
	case len(args) > 0:
		return printModules(e, g, args, g.TransitiveDependencies)
	}

	order, err := g.TopologicalOrder()
	if err != nil && !errors.Is(err, graph.ErrCycleDetected) {
		return err
	}
	for _, cycle := range g.FindCycles() {
		fmt.Fprintf(e.stdout, "cycle: %s\n", joinNames(cycle))
	}
	if err != nil {
		return err
	}
	for i, n := range order {
		fmt.Fprintf(e.stdout, "%3d. %s\n", i+1, describeNode(n))
	}
	return nil
}

func moduleNode(g *graph.MemGraph, name string) (graph.NodeID, error) {
	id := graph.ModuleNodeID(name)
	if _, ok := g.GetNode(id); !ok {
		return "", fmt.Errorf("module %q not found", name)
	}
	return id, nil
}

// printModules prints the nodes related to each named module.
func printModules(e *env, g *graph.MemGraph, names []string, related func(graph.NodeID) []graph.Node) error {
	if len(names) == 0 {
		return errors.New("no module named")
	}
	for _, name := range names {
		id, err := moduleNode(g, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s:\n", name)
		for _, n := range related(id) {
			fmt.Fprintf(e.stdout, "  %s\n", describeNode(n))
		}
	}
	return nil
}

func printPath(e *env, g *graph.MemGraph, args []string) error {
	if len(args) != 2 {
		return errors.New("-path needs two module names")
	}
	from, err := moduleNode(g, args[0])
	if err != nil {
		return err
	}
	to, err := moduleNode(g, args[1])
	if err != nil {
		return err
	}
	path := g.FindPath(from, to)
	if path == nil {
		return fmt.Errorf("%s does not depend on %s", args[0], args[1])
	}
	fmt.Fprintln(e.stdout, joinNames(path))
	return nil
}

func printUnusedLibraries(e *env, g *graph.MemGraph) error {
	for _, n := range g.FindNodesByType(graph.NodeTypeLibrary) {
		if len(g.Dependents(n.ID)) == 0 {
			fmt.Fprintf(e.stdout, "%s\n", describeNode(n))
		}
	}
	return nil
}

func joinNames(nodes []graph.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return strings.Join(names, " -> ")
}

func describeNode(n graph.Node) string {
	var b strings.Builder
	b.WriteString(n.Type.String())
	b.WriteString(" ")
	b.WriteString(n.Name)
	if n.Level != "" {
		b.WriteString(" (" + n.Level + ")")
	}
	if n.Missing {
		b.WriteString(" [missing]")
	}
	return b.String()
}

func runWatch(ctx context.Context, e *env, _ []string) error {
	p, _, err := openLoaded(ctx, e)
	if err != nil {
		return err
	}
	defer p.Close()

	p.OnReload(func(ev project.ReloadEvent) {
		fmt.Fprintf(e.stdout, "%s reloaded %d source(s): %d added, %d changed, %d removed\n",
			ev.Timestamp.Format("15:04:05"), len(ev.ChangedSources),
			len(ev.Change.Added), len(ev.Change.Changed), len(ev.Change.Removed))
		if ev.Err != nil {
			fmt.Fprintf(e.stderr, "Warning: %v\n", ev.Err)
		}
	})
	return p.Watch(ctx)
}

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
)

// RunREPL starts an interactive session against the demo store: dispatch
// actions by name, inspect the tree, watch effects fire.
func RunREPL(opts RunOptions) error {
	tui.PrintBanner(strings.TrimSpace(canopy.Version))

	store, err := BuildStore(opts)
	if err != nil {
		return fmt.Errorf("error initializing store: %w", err)
	}
	defer store.Close()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	printSystemMessage("Store '%s' ready. Type 'help' for commands.", store.Name())

	if opts.Burst > 0 {
		runBurst(sigCtx, store, opts.Burst)
	}

	scanner := bufio.NewScanner(NewInterruptibleReader(os.Stdin, sigCtx.Done()))
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && execLine(sigCtx, store, line) {
			printSystemMessage("Bye.")
			return nil
		}
		if sigCtx.Err() != nil {
			break
		}
		fmt.Print("> ")
	}

	if sigCtx.Err() != nil || isInterrupted(scanner.Err()) {
		fmt.Println()
		printSystemMessage("Interrupted.")
		return nil
	}
	if err := scanner.Err(); err != nil {
		return handleExecutionError(fmt.Errorf("input error: %w", err))
	}
	// EOF (ctrl-d)
	printSystemMessage("Bye.")
	return nil
}

// execLine handles one REPL command. It reports whether the session
// should end.
func execLine(ctx context.Context, store *canopy.Store, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case "q", "quit", "exit":
		return true
	case "help", "h":
		printHelp()
	case "state", "s":
		printJSON(store.State())
	case "get":
		if rest == "" {
			printSystemMessage("usage: get <path>")
			return false
		}
		v, ok := store.Snapshot().At(rest)
		if !ok {
			printSystemMessage("no value at '%s'", rest)
			return false
		}
		printJSON(v)
	case "actions", "a":
		for _, info := range store.Actions() {
			fmt.Printf("  %-12s -> %s\n", info.Name, strings.Join(info.Types, ", "))
		}
	case "tree":
		fmt.Print(graph.GenerateMermaid(store.Layout()))
	case "queued":
		fmt.Println(store.Queued())
	default:
		dispatchLine(ctx, store, cmd, rest)
	}
	return false
}

func dispatchLine(ctx context.Context, store *canopy.Store, name, rawPayload string) {
	tree, err := store.Do(ctx, name, parsePayload(rawPayload))
	switch {
	case errors.Is(err, domain.ErrUnknownAction):
		printSystemMessage("unknown action '%s' (try 'actions')", name)
	case errors.Is(err, domain.ErrInvalidActionType):
		printSystemMessage("'%s' needs an explicit type tag: %v", name, err)
	case err != nil:
		printSystemMessage("dispatch failed: %v", err)
	default:
		printJSON(tree)
	}
}

// parsePayload reads the remainder of a command line as JSON; anything
// that does not parse is passed through as a plain string.
func parsePayload(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printSystemMessage("render failed: %v", err)
		return
	}
	fmt.Println(string(data))
}

func printHelp() {
	fmt.Println(`Commands:
  state, s              print the full state tree
  get <path>            print the value at a dotted path
  actions, a            list registered actions and their type tags
  <name> [payload]      dispatch an action by name (payload parsed as JSON)
  tree                  print the reducer layout as a Mermaid diagram
  queued                print the dispatch queue depth
  help, h               this text
  quit, q, exit         leave`)
}

// runBurst fires n increments without waiting in between, demonstrating
// that concurrent dispatches serialize instead of racing.
func runBurst(ctx context.Context, store *canopy.Store, n int) {
	printSystemMessage("Dispatching %d concurrent increments...", n)
	pendings := make([]*canopy.Pending, 0, n)
	for i := 0; i < n; i++ {
		pendings = append(pendings, store.DispatchNamed(ctx, "increment", "", 1))
	}
	for _, p := range pendings {
		if _, err := p.Wait(ctx); err != nil {
			printSystemMessage("burst dispatch failed: %v", err)
			return
		}
	}
	v, _ := store.Snapshot().At("counter")
	printSystemMessage("Burst done; counter = %v", v)
}

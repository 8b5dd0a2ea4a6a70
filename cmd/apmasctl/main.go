// Command apmasctl is a small operations utility for poking at a running
// (or stopped) supervisor's state store directly, grounded on the
// teacher's cmd/dbctl: a single flag-driven action dispatcher rather than
// a full command tree, since this tool exists for one-off inspection and
// scripting, not daily driving.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/store"
)

func main() {
	dataDir := flag.String("data-dir", "data", "apmas data directory")
	action := flag.String("action", "", "Action to perform: get-agent, list-agents, list-messages, show-checkpoint")
	role := flag.String("role", "", "Agent role (required for get-agent, list-messages, show-checkpoint)")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if *action == "" {
		fmt.Fprintln(os.Stderr, "Usage: apmasctl -data-dir <dir> -action <action> [-role <role>] [-json]")
		fmt.Fprintln(os.Stderr, "Actions: get-agent, list-agents, list-messages, show-checkpoint")
		os.Exit(1)
	}

	st, err := store.Open(filepath.Join(*dataDir, "apmas.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	var result interface{}
	switch *action {
	case "get-agent":
		if *role == "" {
			fmt.Fprintln(os.Stderr, "get-agent requires -role")
			os.Exit(1)
		}
		result, err = st.GetAgentState(*role)
	case "list-agents":
		result, err = st.ListAgentStates()
	case "list-messages":
		result, err = st.ListMessagesForRole(*role, nil, 0, false)
	case "show-checkpoint":
		if *role == "" {
			fmt.Fprintln(os.Stderr, "show-checkpoint requires -role")
			os.Exit(1)
		}
		result, err = st.LatestCheckpoint(*role)
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		os.Exit(1)
	}

	if err != nil {
		if apmaserr.Is(err, apmaserr.KindNotFound) {
			fmt.Fprintf(os.Stderr, "not found: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(result)
		return
	}
	fmt.Printf("%+v\n", result)
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// printResult writes result to stdout: raw JSON when --json is set,
// otherwise a pretty-printed form for a human at a terminal.
func printResult(result json.RawMessage) error {
	if flagJSON {
		fmt.Println(string(result))
		return nil
	}

	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		// Not JSON-shaped (shouldn't happen for a conformant server); fall
		// back to printing the raw bytes rather than failing the command.
		fmt.Println(string(result))
		return nil
	}
	encoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// runREPL serves the console command set as a plain line-based loop on
// standard input, for use without the UI or as its fallback.
func runREPL(ctx context.Context, app *App) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print(app.Prompt())
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		output, quit := app.Execute(line)
		if output != "" {
			fmt.Println(output)
		}
		if quit {
			return
		}
	}
}

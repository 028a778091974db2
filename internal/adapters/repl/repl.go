package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fulfillment-engine/internal/adapters/cli"
	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/core"
)

var errExit = errors.New("exit")

// Run starts the interactive REPL loop. Slash commands map onto the one-shot CLI
// commands; /new-slip and /pick open guided sessions.
func Run(ctx context.Context, svc app.ApplicationService, runner *cli.Runner, companyID int, reader *bufio.Reader) {
	fmt.Println("Fulfillment Console")
	fmt.Printf("Company: %d\n", companyID)
	fmt.Println("Use /help for commands.")
	fmt.Println(strings.Repeat("-", 70))

	dispatchSlash := func(input string) error {
		tokens := strings.Fields(strings.TrimPrefix(input, "/"))
		if len(tokens) == 0 {
			return nil
		}
		cmd := strings.ToLower(tokens[0])
		args := tokens[1:]
		actor := core.Audit{Memo: "repl"}

		switch cmd {
		case "new-slip":
			if len(args) < 2 {
				fmt.Println("Usage: /new-slip <order-id> <warehouse-id>")
				return nil
			}
			orderID, err1 := strconv.Atoi(args[0])
			warehouseID, err2 := strconv.Atoi(args[1])
			if err1 != nil || err2 != nil {
				fmt.Println("order-id and warehouse-id must be numbers")
				return nil
			}
			handleNewSlip(ctx, reader, svc, companyID, orderID, warehouseID, actor)

		case "pick":
			if len(args) < 1 {
				fmt.Println("Usage: /pick <picking-slip-id>")
				return nil
			}
			slipID, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Println("picking-slip-id must be a number")
				return nil
			}
			handlePick(ctx, reader, svc, slipID, actor)

		case "help", "h":
			printHelp()

		case "exit", "quit", "e", "q":
			return errExit

		default:
			return runner.Run(ctx, append([]string{cmd}, args...))
		}
		return nil
	}

	for {
		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if err != nil {
				return
			}
			continue
		}

		if !strings.HasPrefix(input, "/") {
			fmt.Println("Commands start with '/'. Type /help.")
			continue
		}
		if err := dispatchSlash(input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Printf("Error: %v\n", err)
		}
	}
}

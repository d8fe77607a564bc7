// ABOUTME: Terminal client for chatting with a lightspace gateway
// ABOUTME: Provides readline-style input and live streaming of assistant drafts

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/astronomox/lightspace/internal/client"
)

// getToken returns the bearer token from LIGHTSPACE_TOKEN env var or the
// ~/.config/lightspace/token file.
func getToken() string {
	if token := os.Getenv("LIGHTSPACE_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	tokenPath := filepath.Join(configDir, "lightspace", "token")
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Gateway server URL")
	flag.Parse()

	token := getToken()
	if token == "" {
		fmt.Fprintln(os.Stderr, "No token found. Run `lightspace-gateway token --owner you` or set LIGHTSPACE_TOKEN.")
		os.Exit(1)
	}

	fmt.Printf("lightspace-tui connected to %s\n", *server)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(*server, token)
	if err := run(ctx, c); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, c *client.Client) error {
	// Show existing history (bootstraps the session server-side)
	if err := showHistory(ctx, c); err != nil {
		fmt.Printf("[error] %v\n", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if handled, err := handleCommand(ctx, c, input); handled {
			if err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		events, err := c.Send(ctx, input)
		if err != nil {
			fmt.Printf("[error] %v\n", err)
			fmt.Println()
			continue
		}
		streamTurn(events)
		fmt.Println()
	}
}

// handleCommand processes slash commands. Returns false for plain input.
func handleCommand(ctx context.Context, c *client.Client, input string) (bool, error) {
	switch {
	case input == "/help":
		printHelp()
		return true, nil

	case input == "/history":
		return true, showHistory(ctx, c)

	case input == "/modes":
		modes, err := c.ListModes(ctx)
		if err != nil {
			return true, err
		}
		fmt.Println("Available modes:")
		for _, m := range modes {
			fmt.Printf("  %s: %s\n", m.ID, m.Label)
		}
		return true, nil

	case strings.HasPrefix(input, "/mode"):
		mode := strings.TrimSpace(strings.TrimPrefix(input, "/mode"))
		if mode == "" {
			return true, fmt.Errorf("usage: /mode <id> (see /modes)")
		}
		result, err := c.SetMode(ctx, mode)
		if err != nil {
			return true, err
		}
		if result.Notice != "" {
			color.Green("%s", result.Notice)
		} else {
			fmt.Printf("Already in %s mode.\n", result.Mode)
		}
		return true, nil

	case strings.HasPrefix(input, "/edit"):
		args := strings.TrimSpace(strings.TrimPrefix(input, "/edit"))
		id, content, found := strings.Cut(args, " ")
		if !found || id == "" || strings.TrimSpace(content) == "" {
			return true, fmt.Errorf("usage: /edit <message-id> <new content>")
		}
		events, err := c.Edit(ctx, id, strings.TrimSpace(content))
		if err != nil {
			return true, err
		}
		streamTurn(events)
		return true, nil

	case input == "/signout":
		if err := c.SignOut(ctx); err != nil {
			return true, err
		}
		fmt.Println("Signed out. History stays on the server.")
		return true, nil

	case strings.HasPrefix(input, "/"):
		return true, fmt.Errorf("unknown command %q, try /help", input)
	}

	return false, nil
}

// streamTurn consumes a turn stream and renders it: the assistant draft
// grows in place, fragment by fragment.
func streamTurn(events <-chan client.TurnEvent) {
	var printed int

	for evt := range events {
		switch evt.Type {
		case client.TurnUserMessage:
			// Local echo already on screen; show the id so it can be edited.
			color.New(color.FgHiBlack).Printf("[sent %s]\n", evt.Message.ID)

		case client.TurnTruncated:
			color.Yellow("Edited %s, everything after it was discarded.", evt.Message.ID)
			fmt.Printf("> %s\n", evt.Message.Content)

		case client.TurnDraft:
			// Drafts are cumulative: print only the unseen tail.
			if len(evt.DraftText) > printed {
				fmt.Print(evt.DraftText[printed:])
				printed = len(evt.DraftText)
			}

		case client.TurnAssistantMessage:
			// Catch up if the last draft was dropped or never arrived.
			if len(evt.Message.Content) > printed {
				fmt.Print(evt.Message.Content[printed:])
				printed = len(evt.Message.Content)
			}
			fmt.Println()

		case client.TurnModeNotice:
			color.Green("%s", evt.Message.Content)

		case client.TurnBusy:
			color.Yellow("[busy] %s", evt.Err)

		case client.TurnError:
			color.Red("[error] %s", evt.Err)

		case client.TurnDone:
		}
	}
}

// showHistory fetches and renders the conversation so far.
func showHistory(ctx context.Context, c *client.Client) error {
	h, err := c.History(ctx)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	fmt.Printf("Conversation (%s mode):\n", h.Mode)
	fmt.Println(strings.Repeat("-", 60))
	for _, msg := range h.Messages {
		if msg.Role == "user" {
			fmt.Printf("> %s ", msg.Content)
			gray.Printf("[%s]\n", msg.ID)
		} else {
			fmt.Printf("%s\n", msg.Content)
		}
	}
	fmt.Println(strings.Repeat("-", 60))
	return nil
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /history             Show the conversation so far")
	fmt.Println("  /modes               List conversation modes")
	fmt.Println("  /mode <id>           Switch conversation mode")
	fmt.Println("  /edit <id> <text>    Rewrite a past message and regenerate")
	fmt.Println("  /signout             Drop the server-side session")
	fmt.Println("  /help                Show this help")
	fmt.Println("  /quit                Exit")
}

// Command diffsync is an interactive collaborative editing client: it
// connects to a diffsync server, keeps a local SyncEngine in step with
// it in the background, and reads local edits from a REPL shared with
// that same background task under one lock.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/beesaferoot/diff-sync/internal/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "diffsync",
		Short: "Interactive differential synchronization client",
	}
	root.AddCommand(newConnectCmd())
	return root
}

func newConnectCmd() *cobra.Command {
	var (
		serverAddr string
		clientID   string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a diffsync server and edit the shared document interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" {
				clientID = uuid.NewString()
			}
			return runConnect(cmd.Context(), serverAddr, clientID)
		},
	}

	cmd.Flags().StringVar(&serverAddr, "server", "127.0.0.1:8080", "Server address (host:port)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client ID (defaults to a random UUID)")

	return cmd
}

func runConnect(ctx context.Context, serverAddr, clientID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	c, err := client.Connect(ctx, client.DefaultConfig(serverAddr, clientID), nil)
	if err != nil {
		return fmt.Errorf("diffsync: %w", err)
	}
	defer c.Close()

	fmt.Printf("connected as %s, current document:\n%s\n", clientID, c.Text())
	fmt.Println("type a new version of the document and press enter to send it; ctrl-d to quit")

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- c.Run(ctx) }()

	go repl(ctx, c)

	select {
	case <-ctx.Done():
		return nil
	case err := <-runErrCh:
		return err
	}
}

// repl reads whole-document replacements from stdin. Each line the
// non-blank line the user types becomes the new document content,
// exercising Client.Edit under the same lock the background sync tick
// uses; a blank line prints the current document instead.
func repl(ctx context.Context, c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			fmt.Println(c.Text())
			continue
		}
		c.Edit(line)
	}
}

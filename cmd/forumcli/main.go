// forumcli drives the forum client layer from the terminal: browse and
// search questions, manage the wallet-backed session, and probe backend
// health.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msu-forum/client_layer/internal/config"
	"github.com/msu-forum/client_layer/internal/gateway"
	"github.com/msu-forum/client_layer/internal/session"
	"github.com/msu-forum/client_layer/internal/wallet"
	"github.com/msu-forum/client_layer/pkg/forum"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "forumcli",
		Short:         "Forum client: questions, search, tags, and wallet login",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	client, err := wireClient()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newQuestionsCmd(client),
		newSearchCmd(client),
		newTagsCmd(client),
		newLoginCmd(client),
		newLogoutCmd(client),
		newWhoamiCmd(client),
		newHealthCmd(client),
	)

	return rootCmd
}

func wireClient() (*forum.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var provider wallet.Provider
	if cfg.ChainRPCURL != "" {
		provider, err = wallet.NewRPCProvider(wallet.RPCProviderConfig{
			URL:   cfg.ChainRPCURL,
			WSURL: cfg.ChainWSURL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect wallet provider: %w", err)
		}
	}

	return forum.New(cfg, forum.Options{Provider: provider}), nil
}

func newQuestionsCmd(client *forum.Client) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items := client.Questions.Load(cmd.Context())
			snap := client.Questions.Snapshot()
			if snap.Err != nil {
				return fmt.Errorf("load questions: %s", snap.Err.Message())
			}
			return writeQuestions(cmd, items, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")

	return cmd
}

func newSearchCmd(client *forum.Client) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Short queries filter the loaded collection, so make sure
			// it is populated first.
			client.Questions.Load(cmd.Context())
			results := client.Search.Input(cmd.Context(), args[0])
			return writeQuestions(cmd, results, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")

	return cmd
}

func newTagsCmd(client *forum.Client) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tags := client.Tags.Load(cmd.Context())
			snap := client.Tags.Snapshot()
			if snap.Err != nil {
				return fmt.Errorf("load tags: %s", snap.Err.Message())
			}
			if asJSON {
				return writeJSON(cmd, tags)
			}
			for _, t := range tags {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d uses)\n", t.Name, t.UsageCount)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")

	return cmd
}

func newLoginCmd(client *forum.Client) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "login [wallet]",
		Short: "Authenticate with a wallet address",
		Long:  "Connects the configured wallet provider, or uses the given address directly, then registers or logs in the account bound to that wallet.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				address = args[0]
			}
			if address == "" {
				if err := client.Wallet.Connect(cmd.Context()); err != nil {
					return fmt.Errorf("%s", wallet.HumanMessage(err))
				}
				conn := client.Wallet.Connection()
				address = conn.Account
				fmt.Fprintf(cmd.OutOrStdout(), "Connected %s on %s (balance %s)\n",
					wallet.ShortAddress(conn.Account), wallet.NetworkName(conn.ChainID), conn.Balance)
			}

			client.Session.LinkWallet(cmd.Context(), address)
			id := client.Session.Identity()
			if id.State != session.StateAuthenticated {
				if id.AuthError != "" {
					return fmt.Errorf("login failed: %s", id.AuthError)
				}
				return fmt.Errorf("login failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", id.Session.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Wallet address to authenticate with")

	return cmd
}

func newLogoutCmd(client *forum.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client.Session.Start(cmd.Context())
			client.Session.Logout(cmd.Context())
			client.Wallet.Disconnect()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(client *forum.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := client.Session.Start(cmd.Context())
			if id.State != session.StateAuthenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			user := id.Session.User
			fmt.Fprintf(cmd.OutOrStdout(), "user: %s\n", user.Username)
			if user.Wallet != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "wallet: %s\n", user.Wallet)
			}
			for _, ch := range id.Session.Characters {
				fmt.Fprintf(cmd.OutOrStdout(), "character: %s (level %d)\n", ch.Name, ch.Data.Level)
			}
			return nil
		},
	}
}

func newHealthCmd(client *forum.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe backend health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client.Gateway.CheckHealth(cmd.Context()); err != nil {
				return fmt.Errorf("backend unhealthy: %s", gateway.KindOf(err).Message())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Backend healthy")
			return nil
		},
	}
}

func writeQuestions(cmd *cobra.Command, qs []gateway.Question, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, qs)
	}
	if len(qs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No questions")
		return nil
	}
	for _, q := range qs {
		solved := " "
		if q.IsSolved {
			solved = "✓"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] #%d %s (%d votes, %d answers)\n",
			solved, q.ID, q.Title, q.Votes, q.AnswerCount)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ankesh2004/p2p-chat/internal/config"
	"github.com/Ankesh2004/p2p-chat/internal/console"
	"github.com/Ankesh2004/p2p-chat/internal/observability"
	"github.com/Ankesh2004/p2p-chat/internal/server"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "p2pchat [port]",
	Short: "Peer-to-peer TCP chat node",
	Long: `p2pchat listens for other chat nodes on a TCP port, connects out to
peers on request and relays raw text messages over each link.

Type 'help' at the prompt for the command list.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runNode,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "p2pchat", version)
	},
}

func init() {
	rootCmd.Flags().String("config", "", "Config file (default: p2pchat.yaml in ., ./configs, ~/.p2pchat)")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().Int("buffer-size", 1024, "Max bytes taken from a peer in one read")
	rootCmd.Flags().String("prompt", "> ", "Input prompt")
	rootCmd.Flags().Bool("no-color", false, "Disable colour in list output")

	rootCmd.AddCommand(versionCmd)
}

func runNode(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return err
	}
	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		cfg.Port = port
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cfg.Color = false
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	con := console.New(console.Options{
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
		Prompt: cfg.Prompt,
		Color:  cfg.Color,
	})

	srv := server.NewChatServer(server.ChatServerOptions{
		ListenPort:    cfg.Port,
		MaxBufferSize: cfg.MaxBufferSize,
		ReuseAddr:     cfg.ReuseAddr,
		Console:       con,
		Logger:        logger,
	})
	if err := srv.StartListening(); err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	logger.Info("node started", zap.Int("port", srv.MyPort()), zap.String("version", version))

	newCLI(srv, con, logger).commandLoop(cmd.InOrStdin())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command mpc-driver runs local multi-party signing simulations against the
// in-memory network, exercising the round driver end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	parties   int
	sessionID string
	verbose   bool

	logger *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "mpc-driver",
		Short: "Round driver simulations for threshold signing protocols",
		Long: `Simulate multi-party signing sessions locally. Every party runs its own
driver over an in-memory network, so the full message flow of a session can
be observed without any external transport.`,
		PersistentPreRunE: setupLogger,
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Simulate a distributed key generation",
		Long:  `Run an n-party Schnorr key generation and print the group public key`,
		RunE:  runKeygen,
	}

	signCmd = &cobra.Command{
		Use:   "sign",
		Short: "Simulate a threshold signing session",
		Long:  `Run a key generation followed by an n-party signing of the given message`,
		RunE:  runSign,
	}
)

func init() {
	rootCmd.PersistentFlags().IntVarP(&parties, "parties", "N", 3, "Number of parties")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session-id", "", "Session identifier mixed into the SSID")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	signCmd.Flags().String("message", "hello round driver", "Message to sign")

	rootCmd.AddCommand(keygenCmd, signCmd)
}

func setupLogger(cmd *cobra.Command, args []string) error {
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

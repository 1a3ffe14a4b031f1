// vgate-devverifier is a development stand-in for the zkVM verifier. It
// computes the same report in-process, without a proof, and prints it in
// the host's format so the whole workflow can run locally.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/internal/devverifier"
	"github.com/teranos/vgate/verifier"
)

// errFailed signals a FAILURE report, which is already on stdout
var errFailed = errors.New("checks failed")

var rootCmd = &cobra.Command{
	Use:   "vgate-devverifier",
	Short: "Development stand-in for the zkVM dataset verifier",
	Long: `Development stand-in for the zkVM dataset verifier.

Reads the dataset and threshold from flags, falling back to the
VGATE_VERIFIER_INPUT and VGATE_VERIFIER_THRESHOLD environment variables set
by vgate. Exits 1 when the business invariant fails, like the host.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().String("input", "", "CSV file to verify")
	rootCmd.Flags().Int64("threshold", 0, "Business invariant: column A sum <= threshold")
}

func run(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		input = os.Getenv(verifier.EnvInput)
	}
	if input == "" {
		return errors.WithHint(errors.New("no input file"), "pass --input or set "+verifier.EnvInput)
	}

	threshold, _ := cmd.Flags().GetInt64("threshold")
	if !cmd.Flags().Changed("threshold") {
		env := os.Getenv(verifier.EnvThreshold)
		if env == "" {
			return errors.WithHint(errors.New("no threshold"), "pass --threshold or set "+verifier.EnvThreshold)
		}
		t, err := strconv.ParseInt(env, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", verifier.EnvThreshold)
		}
		threshold = t
	}

	ds, err := dataset.Load(input)
	if err != nil {
		return err
	}
	res, err := devverifier.Emit(cmd.OutOrStdout(), ds, threshold)
	if err != nil {
		return err
	}
	if !res.Satisfied {
		return errFailed
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

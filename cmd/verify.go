package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackshadow-software/face-auth/internal/config"
	"github.com/blackshadow-software/face-auth/internal/extract"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Authenticate a face image against all enrolled identities",
	Long: `Verify scores the face in the image against every enrolled identity and
prints the decision. The process exits with status 0 when the face is
accepted and status 1 when it is rejected, so the command composes with
shell conditionals.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Float64("tolerance", -1, "Accept threshold override (lower is stricter)")
	verifyCmd.Flags().Bool("verbose", false, "Print the score breakdown for every identity")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	tolerance := mustGetFloat64(cmd, "tolerance")
	verbose := mustGetBool(cmd, "verbose")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	prepared, err := extract.PrepareImage(data, extract.DefaultMaxImageSize)
	if err != nil {
		return fmt.Errorf("preparing %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	reg, closer, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	faces, err := newExtractor(cfg).ExtractFaces(ctx, prepared)
	if err != nil {
		if errors.Is(err, extract.ErrNoFace) {
			fmt.Println("No face found in image")
			os.Exit(1)
		}
		return fmt.Errorf("extracting face: %w", err)
	}

	result, err := newMatcher(cfg).Authenticate(ctx, reg, faces[0].Encoding, tolerance)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	if verbose {
		fmt.Printf("Scored %d identities in %s (threshold %.3f)\n\n", len(result.Candidates), result.Elapsed, result.Threshold)
		for _, c := range result.Candidates {
			fmt.Printf("  %-24s score=%.4f min=%.4f mean=%.4f\n", c.UserID, c.Score, c.MinDistance, c.MeanDistance)
		}
		fmt.Println()
	}

	if !result.Accepted {
		fmt.Println("REJECTED: no enrolled identity within tolerance")
		os.Exit(1)
	}

	if err := reg.RecordSuccessfulMatch(ctx, result.MatchedUserID, time.Now()); err != nil {
		fmt.Printf("Warning: failed to record authentication: %v\n", err)
	}

	fmt.Printf("ACCEPTED: %s (score %.4f, confidence %.1f%%)\n",
		result.MatchedUserID, result.Score, result.Confidence*100)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/blackshadow-software/face-auth/internal/config"
	"github.com/blackshadow-software/face-auth/internal/extract"
	"github.com/blackshadow-software/face-auth/internal/identity"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <user-id> <image-or-dir> [image-or-dir...]",
	Short: "Enroll an identity from face images",
	Long: `Enroll an identity by extracting face encodings from one or more images.
Directories are expanded to the images they contain. Each image contributes
one sample; images without a detectable face are skipped.

Examples:
  face-auth enroll alice selfie1.jpg selfie2.jpg
  face-auth enroll alice ./captures/ --overwrite
  face-auth enroll alice new_angle.jpg --append`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("overwrite", false, "Replace an existing enrollment")
	enrollCmd.Flags().Bool("append", false, "Add samples to an existing enrollment")
	enrollCmd.Flags().Int("min-samples", 1, "Minimum accepted samples required to enroll")
}

// imageExtensions lists the formats the encoding pipeline accepts.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// collectImagePaths expands the argument list, walking directories one level
// deep and keeping only recognized image files.
func collectImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files found")
	}
	return paths, nil
}

// extractSamples runs the encoding pipeline over the images, one candidate
// sample per image. Images without a face are reported and skipped.
func extractSamples(ctx context.Context, extractor extract.Extractor, paths []string) ([]identity.Sample, error) {
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var candidates []identity.Sample
	var skipped []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		prepared, err := extract.PrepareImage(data, extract.DefaultMaxImageSize)
		if err != nil {
			return nil, fmt.Errorf("preparing %s: %w", path, err)
		}

		faces, err := extractor.ExtractFaces(ctx, prepared)
		if err != nil {
			if err == extract.ErrNoFace {
				skipped = append(skipped, path)
				_ = bar.Add(1)
				continue
			}
			return nil, fmt.Errorf("extracting faces from %s: %w", path, err)
		}

		candidates = append(candidates, identity.Sample{
			Encoding:  faces[0].Encoding,
			ImagePath: path,
			SampleID:  uuid.NewString(),
		})
		_ = bar.Add(1)
	}
	fmt.Println()

	for _, path := range skipped {
		fmt.Printf("Warning: no face found in %s, skipped\n", path)
	}

	return candidates, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	userID := args[0]
	overwrite := mustGetBool(cmd, "overwrite")
	appendMode := mustGetBool(cmd, "append")
	minSamples := mustGetInt(cmd, "min-samples")

	paths, err := collectImagePaths(args[1:])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reg, closer, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	candidates, err := extractSamples(ctx, newExtractor(cfg), paths)
	if err != nil {
		return err
	}

	enroller := identity.NewEnroller(cfg.Encoding.Dim, identity.EnrollPolicy{MinSamples: minSamples})

	if appendMode {
		accepted, dropped, total, err := enroller.Append(ctx, reg, userID, candidates)
		if err != nil {
			return fmt.Errorf("appending samples for %s: %w", userID, err)
		}
		fmt.Printf("Added %d samples to %s (%d total, %d dropped)\n", accepted, userID, total, dropped)
		return nil
	}

	rec, dropped, err := enroller.Enroll(ctx, reg, userID, candidates, overwrite)
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", userID, err)
	}

	fmt.Printf("Enrolled %s with %d samples (%d dropped)\n", rec.UserID, rec.SampleCount, dropped)
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackshadow-software/face-auth/internal/config"
	"github.com/blackshadow-software/face-auth/internal/extract"
	"github.com/blackshadow-software/face-auth/internal/identity"
)

// exportDir receives default-named export documents.
const exportDir = "exported_credentials"

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage enrolled identities",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all enrolled identities",
	RunE:  runUsersList,
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove <user-id>",
	Short: "Remove an enrolled identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersRemove,
}

var usersExportCmd = &cobra.Command{
	Use:   "export <user-id> [file]",
	Short: "Export an identity to a portable JSON document",
	Long: `Export an identity to a portable JSON document. Without an explicit
file argument the document is written to exported_credentials/
<user>_credentials_<timestamp>.json.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUsersExport,
}

var usersImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an identity from an exported JSON document",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersImport,
}

var usersSimilarCmd = &cobra.Command{
	Use:   "similar <image>",
	Short: "Find enrolled samples closest to a face image",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersSimilar,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersRemoveCmd)
	usersCmd.AddCommand(usersExportCmd)
	usersCmd.AddCommand(usersImportCmd)
	usersCmd.AddCommand(usersSimilarCmd)

	usersImportCmd.Flags().Bool("overwrite", false, "Replace an existing enrollment with the imported one")
	usersSimilarCmd.Flags().Int("limit", 5, "Number of nearest samples to show")
}

func runUsersList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	reg, closer, err := openRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closer()

	summaries := reg.List()
	if len(summaries) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	fmt.Printf("%d enrolled identities:\n", len(summaries))
	for _, s := range summaries {
		fmt.Printf("  %-24s %d samples, enrolled %s\n",
			s.UserID, s.SampleCount, s.EnrolledAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()
	reg, closer, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	userID := args[0]
	if resolved, ok := reg.Resolve(userID); ok {
		userID = resolved
	}

	if err := reg.Remove(ctx, userID); err != nil {
		return fmt.Errorf("removing %s: %w", userID, err)
	}

	fmt.Printf("Removed %s\n", userID)
	return nil
}

func runUsersExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	reg, closer, err := openRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closer()

	userID := args[0]
	if resolved, ok := reg.Resolve(userID); ok {
		userID = resolved
	}

	exp, err := reg.Export(userID)
	if err != nil {
		return fmt.Errorf("exporting %s: %w", userID, err)
	}

	path := ""
	if len(args) > 1 {
		path = args[1]
	} else {
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", exportDir, err)
		}
		slug := strings.ReplaceAll(identity.NormalizeUserID(userID), " ", "_")
		name := fmt.Sprintf("%s_credentials_%s.json", slug, exp.ExportedAt.Format("20060102_150405"))
		path = filepath.Join(exportDir, name)
	}

	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("Exported %s (%d samples) to %s\n", userID, exp.UserData.SampleCount, path)
	return nil
}

func runUsersImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	overwrite := mustGetBool(cmd, "overwrite")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	var exp identity.ExportRecord
	if err := json.Unmarshal(data, &exp); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	reg, closer, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	rec, err := reg.Import(ctx, &exp, overwrite)
	if err != nil {
		return fmt.Errorf("importing %s: %w", exp.UserID, err)
	}

	fmt.Printf("Imported %s with %d samples\n", rec.UserID, rec.SampleCount)
	return nil
}

func runUsersSimilar(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	limit := mustGetInt(cmd, "limit")

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
		return fmt.Errorf("extracting face: %w", err)
	}

	index := identity.NewSampleIndex()
	index.Rebuild(reg.Snapshot())

	matches, err := index.Search(faces[0].Encoding, limit)
	if err != nil {
		return fmt.Errorf("searching index: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("No enrolled samples to compare against")
		return nil
	}

	fmt.Printf("Nearest %d samples:\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  %-24s distance=%.4f sample=%s\n", m.UserID, m.Distance, m.SampleID)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"hoard/internal/app"
	"hoard/internal/config"
	"hoard/internal/hoard"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a HoardApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Ingest", "Repair").
func newApp(operation string) (*app.HoardApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewHoardApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// parseFileID converts a CLI file id argument.
func parseFileID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file id %q", arg)
	}
	return id, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(data), nil
}

var rootCmd = &cobra.Command{
	Use:   "hoard",
	Short: "Media ingestion and organization engine",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new install ID
		installID := uuid.New().String()

		// Create config with defaults
		cfg := config.NewConfig(installID, defaults["root_dir"])

		// Initialize config file
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Install ID: %s\n", installID)
		fmt.Printf("Root Dir:   %s\n", defaults["root_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Read config
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		// Display config
		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Install ID: %s\n", cfg.InstallID)
		fmt.Printf("Root Dir:   %s\n", cfg.RootDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Views:      by-source=%v by-tag=%v by-date=%v\n",
			cfg.Organize.BySource, cfg.Organize.ByTag, cfg.Organize.ByDate)
		return nil
	},
}

// ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest PATH",
	Short: "Ingest a fetched file (or a directory of files)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		platform, _ := cmd.Flags().GetString("platform")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		name, _ := cmd.Flags().GetString("name")
		metadata, _ := cmd.Flags().GetString("metadata")
		recursive, _ := cmd.Flags().GetBool("recursive")

		a, err := newApp("Ingest")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Ingest(cmd.Context(), args[0], app.IngestOptions{
			URL:       url,
			Platform:  platform,
			Tags:      tags,
			Name:      name,
			Metadata:  metadata,
			Recursive: recursive,
		})
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		for _, res := range results {
			switch res.Status {
			case hoard.StatusDuplicate:
				fmt.Printf("duplicate  #%-5d %s\n", res.FileID, res.StoredPath)
			default:
				fmt.Printf("ingested   #%-5d %s (%d links)\n", res.FileID, res.StoredPath, len(res.CreatedLinks))
			}
		}
		return nil
	},
}

// tag command
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage file tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add FILE_ID TAG [TAG...]",
	Short: "Add tags to a stored file",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseFileID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("AddTags")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddTags(cmd.Context(), id, args[1:]); err != nil {
			return fmt.Errorf("tagging: %w", err)
		}

		fmt.Printf("Tagged #%d with %s\n", id, strings.Join(args[1:], ", "))
		return nil
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm FILE_ID TAG",
	Short: "Remove a tag from a stored file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseFileID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("RemoveTag")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveTag(cmd.Context(), id, args[1]); err != nil {
			return fmt.Errorf("untagging: %w", err)
		}

		fmt.Printf("Removed tag %q from #%d\n", args[1], id)
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm FILE_ID",
	Short: "Remove a stored file, its metadata and all its links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseFileID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("Remove")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Remove(cmd.Context(), id); err != nil {
			return fmt.Errorf("removing: %w", err)
		}

		fmt.Printf("Removed #%d\n", id)
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.List(cmd.Context())
		if err != nil {
			return err
		}

		if len(files) == 0 {
			fmt.Println("No files stored.")
			return nil
		}

		for _, f := range files {
			tags := ""
			if len(f.Tags) > 0 {
				tags = "  [" + strings.Join(f.Tags, ",") + "]"
			}
			fmt.Printf("#%-5d %s  %-10s  %s%s\n",
				f.ID,
				f.CreatedAt.Format("2006-01-02 15:04:05"),
				f.Source,
				f.Filename,
				tags,
			)
		}
		return nil
	},
}

// repair command
var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Rebuild missing index links and prune dangling ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Repair")
		if err != nil {
			return err
		}
		defer a.Close()

		placed, pruned, err := a.Repair(cmd.Context())
		if err != nil {
			return fmt.Errorf("repair failed: %w", err)
		}

		fmt.Printf("Re-placed links for %d file(s), pruned %d broken link(s)\n", placed, pruned)
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show link counts per organization bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Stats")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats()
		if err != nil {
			return err
		}

		printBuckets := func(title string, buckets map[string]int) {
			if len(buckets) == 0 {
				return
			}
			fmt.Printf("%s:\n", title)
			for _, name := range hoard.SortedBucketNames(buckets) {
				fmt.Printf("  %-30s %d\n", name, buckets[name])
			}
		}
		printBuckets("by-source", stats.BySource)
		printBuckets("by-tag", stats.ByTag)
		printBuckets("by-date", stats.ByDate)
		return nil
	},
}

// rule command
var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage auto-tag rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add PATTERN TAG",
	Short: "Tag future ingestions whose URL contains PATTERN",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AddRule")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddRule(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("adding rule: %w", err)
		}

		fmt.Printf("URLs containing %q will be tagged %q\n", args[0], args[1])
		return nil
	},
}

var ruleLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List auto-tag rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListRules")
		if err != nil {
			return err
		}
		defer a.Close()

		rules, err := a.ListRules(cmd.Context())
		if err != nil {
			return err
		}

		if len(rules) == 0 {
			fmt.Println("No rules defined.")
			return nil
		}

		for _, r := range rules {
			state := ""
			if !r.Enabled {
				state = "  (disabled)"
			}
			fmt.Printf("#%-4d %-30s -> %s%s\n", r.ID, r.Pattern, r.Tag, state)
		}
		return nil
	},
}

// mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Manage the off-site mirror",
}

var mirrorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate encryption keys for mirror uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MirrorInit")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase for private key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.MirrorInit(passphrase); err != nil {
			return fmt.Errorf("initializing mirror encryption: %w", err)
		}

		fmt.Println("Encryption keys generated.")
		return nil
	},
}

var mirrorPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload missing content and a catalog snapshot to the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MirrorPush")
		if err != nil {
			return err
		}
		defer a.Close()

		pushed, err := a.MirrorPush(cmd.Context())
		if err != nil {
			return fmt.Errorf("mirror push failed: %w", err)
		}

		fmt.Printf("Uploaded %d content object(s)\n", pushed)
		return nil
	},
}

var mirrorFetchCmd = &cobra.Command{
	Use:   "fetch HASH DEST",
	Short: "Fetch mirrored content by hash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MirrorFetch")
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.MirrorEncrypted() {
			passphrase, err = readPassphrase("Passphrase for private key: ")
			if err != nil {
				return err
			}
		}

		if err := a.MirrorFetch(cmd.Context(), args[0], args[1], passphrase); err != nil {
			return fmt.Errorf("mirror fetch failed: %w", err)
		}

		fmt.Printf("Fetched %s to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// ingest flags
	ingestCmd.Flags().String("url", "", "Source URL the file was fetched from")
	ingestCmd.Flags().String("platform", "", "Platform label (defaults to detection from the URL)")
	ingestCmd.Flags().StringSlice("tag", nil, "Tag to associate (repeatable)")
	ingestCmd.Flags().String("name", "", "Display name override")
	ingestCmd.Flags().String("metadata", "", "JSON metadata blob from the fetcher")
	ingestCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")

	// tag subcommands
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRmCmd)

	// rule subcommands
	ruleCmd.AddCommand(ruleAddCmd)
	ruleCmd.AddCommand(ruleLsCmd)

	// mirror subcommands
	mirrorCmd.AddCommand(mirrorInitCmd)
	mirrorCmd.AddCommand(mirrorPushCmd)
	mirrorCmd.AddCommand(mirrorFetchCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(mirrorCmd)
}

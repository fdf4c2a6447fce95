package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediapipe/internal/app"
	"mediapipe/internal/config"
	"mediapipe/internal/encryption"
	"mediapipe/internal/media"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, promptPassphrase)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// promptPassphrase reads the key passphrase without echo.
func promptPassphrase() (string, error) {
	if p := os.Getenv("MEDIAPIPE_PASSPHRASE"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set MEDIAPIPE_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// readEventInput returns the event JSON from path, or from stdin when no
// path is given and stdin is piped.
func readEventInput(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("no event given: pass --event FILE or pipe the event on stdin")
	}
	return io.ReadAll(os.Stdin)
}

func printRecord(rec *media.ContentRecord) {
	vis := "private"
	if rec.IsPublic {
		vis = "public"
	}
	fmt.Printf("%s  %-7s  %s", rec.Uploaded.Timestamp(), vis, rec.ObjectKey)
	if rec.Title != "" {
		fmt.Printf("  %q", rec.Title)
	}
	fmt.Println()
}

var rootCmd = &cobra.Command{
	Use:          "mediapipe",
	Short:        "Content lifecycle pipeline: thumbnails, records and indexes",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration with local backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Run 'mediapipe migrate' to create the record store.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Log Level:     %s\n", cfg.LogLevel)
		fmt.Printf("Object Store:  %s\n", cfg.ObjectStore.Type)
		fmt.Printf("Record Store:  %s\n", cfg.RecordStore.Type)
		fmt.Printf("Thumbnail Box: %dx%d\n", cfg.Thumbnail.MaxWidth, cfg.Thumbnail.MaxHeight)
		fmt.Printf("Public Limit:  %d\n", cfg.Index.PublicLimit)
		fmt.Printf("Encryption:    %s\n", cfg.Encryption.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		keyring := encryption.NewAgeKeyring(cfg.Encryption)
		if keyring.IsConfigured() {
			return fmt.Errorf("keys already exist at %s", cfg.Encryption.PublicKeyPath)
		}

		passphrase, err := promptPassphrase()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if passphrase == "" {
			return fmt.Errorf("passphrase must not be empty")
		}

		if err := keyring.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		if cfg.Encryption.Type != "age" {
			fmt.Println("Set [encryption] type = \"age\" to seal stored objects.")
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply record store schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cmd.Context(), cfg); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		fmt.Println("Record store is up to date.")
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a file as content and derive its thumbnail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		private, _ := cmd.Flags().GetBool("private")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		key, outcome, err := a.Upload(cmd.Context(), args[0], app.UploadRequest{
			OwnerID:     owner,
			Private:     private,
			Title:       title,
			Description: description,
		})
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		fmt.Printf("%s  %s\n", outcome, key)
		return nil
	},
}

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Replay an S3 notification through the thumbnail deriver",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventPath, _ := cmd.Flags().GetString("event")

		data, err := readEventInput(eventPath)
		if err != nil {
			return err
		}
		var payload app.DeriverPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parsing S3 event: %w", err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		outcomes, err := a.HandleS3Event(cmd.Context(), payload)
		for i, o := range outcomes {
			fmt.Printf("record %d: %s\n", i, o)
		}
		if err != nil {
			return fmt.Errorf("derive failed: %w", err)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove KEY",
	Short: "Delete a content object and its derived state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, err := a.Remove(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		fmt.Printf("%s  %s\n", outcome, args[0])
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Replay a DynamoDB Streams event through the index materializer",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventPath, _ := cmd.Flags().GetString("event")

		data, err := readEventInput(eventPath)
		if err != nil {
			return err
		}
		var ev events.DynamoDBEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("parsing stream event: %w", err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.HandleStreamEvent(cmd.Context(), ev); err != nil {
			return fmt.Errorf("index failed: %w", err)
		}
		fmt.Printf("Reindexed %d change(s)\n", len(ev.Records))
		return nil
	},
}

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Feed the local change log to the index materializer",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.FollowChanges(ctx, interval)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild every index document from the record store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Reindex(cmd.Context()); err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}
		fmt.Println("All indexes rebuilt.")
		return nil
	},
}

// record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect content records",
}

var recordGetCmd = &cobra.Command{
	Use:   "get OWNER KEY",
	Short: "Show one content record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.GetRecord(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no record for %s", args[1])
		}

		out, err := json.MarshalIndent(rec.Summarize(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var recordListCmd = &cobra.Command{
	Use:   "list OWNER",
	Short: "List an owner's content records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		public, _ := cmd.Flags().GetBool("public")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.ListRecords(cmd.Context(), args[0], public)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No records.")
			return nil
		}
		for _, rec := range recs {
			printRecord(rec)
		}
		return nil
	},
}

// lambda command
var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function, configured from the environment",
}

func newLambdaApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return app.NewApp(ctx, cfg, func() (string, error) {
		return os.Getenv("MEDIAPIPE_PASSPHRASE"), nil
	})
}

var lambdaDeriverCmd = &cobra.Command{
	Use:   "deriver",
	Short: "Handle object-store notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newLambdaApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		lambda.Start(a.DeriverHandler())
		return nil
	},
}

var lambdaIndexerCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Handle record-store stream batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newLambdaApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		lambda.Start(a.IndexerHandler())
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	// record subcommands
	recordCmd.AddCommand(recordGetCmd)
	recordCmd.AddCommand(recordListCmd)
	recordListCmd.Flags().Bool("public", false, "List public records instead of private ones")

	lambdaCmd.AddCommand(lambdaDeriverCmd)
	lambdaCmd.AddCommand(lambdaIndexerCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().String("owner", "", "Owner identity ID")
	uploadCmd.Flags().Bool("private", false, "Store under the private scope")
	uploadCmd.Flags().String("title", "", "Content title")
	uploadCmd.Flags().String("description", "", "Content description")
	_ = uploadCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(deriveCmd)
	deriveCmd.Flags().String("event", "", "S3 event JSON file (default: stdin)")
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().String("event", "", "DynamoDB Streams event JSON file (default: stdin)")
	rootCmd.AddCommand(followCmd)
	followCmd.Flags().Duration("interval", 2*time.Second, "Polling interval")
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(lambdaCmd)
}

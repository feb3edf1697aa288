package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmerrifield20/ConfidenceLedger/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL   string
	actorToken  string
	cfgFile     string
	outputJSON  bool
	callTimeout time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Confidence ledger CLI",
	Long: `ledgerctl is the command-line interface for a ledgerd instance.

It appends entries, declares confidence before content is written, links
and flags declarations, and audits the hash chain.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.ledgerctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("ledgerctl")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if actorToken == "" {
			actorToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.ledgerctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "ledgerd base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&actorToken, "token", "", "actor token (env LEDGERCTL_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print raw JSON responses")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 30*time.Second, "per-request timeout")

	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(declareCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(flagCmd)
	rootCmd.AddCommand(declarationsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds a client from the persistent flags.
func newClient() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(callTimeout)}
	if actorToken != "" {
		opts = append(opts, client.WithBearerToken(actorToken))
	}
	return client.New(serverURL, opts...)
}

// ── append ───────────────────────────────────────────────────────────────────

var (
	entryActor      string
	entryEventType  string
	entryText       string
	entryAnnotation string
	entryStatus     string
	entryCitations  client.Citations
)

// addEntryFlags registers the flags shared by append and link.
func addEntryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&entryActor, "actor", "User", "Actor class: User, Admin or System")
	cmd.Flags().StringVar(&entryEventType, "event-type", "", "Event type (required)")
	cmd.Flags().StringVar(&entryText, "text", "", "Entry text")
	cmd.Flags().StringVar(&entryAnnotation, "annotation", "", "Annotation")
	cmd.Flags().StringVar(&entryStatus, "status", "", "Entry status")
	cmd.Flags().StringVar(&entryCitations.IDs, "citation-ids", "", "Citation ids")
	cmd.Flags().StringVar(&entryCitations.Titles, "citation-titles", "", "Citation titles")
	cmd.Flags().StringVar(&entryCitations.Snippets, "citation-snippets", "", "Citation snippets")
	cmd.Flags().StringVar(&entryCitations.URLs, "citation-urls", "", "Citation URLs")
	cmd.Flags().StringVar(&entryCitations.Digest, "citation-digest", "", "Digest over the citation bundle")
	_ = cmd.MarkFlagRequired("event-type")
}

func entryRequest() client.EntryRequest {
	return client.EntryRequest{
		Actor:      entryActor,
		EventType:  entryEventType,
		Text:       entryText,
		Annotation: entryAnnotation,
		Status:     entryStatus,
		Citations:  entryCitations,
	}
}

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append an entry to the ledger",
	Example: `  ledgerctl append --event-type NOTE --text "quarterly review filed"
  ledgerctl append --event-type REPORT --text "..." --citation-ids doc-1 --citation-digest 3f2a...`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		receipt, err := c.Append(cmd.Context(), entryRequest())
		if err != nil {
			return fmt.Errorf("append: %w", err)
		}
		return printReceipt(receipt)
	},
}

func init() { addEntryFlags(appendCmd) }

// ── audit ────────────────────────────────────────────────────────────────────

var auditRecord bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Verify every entry of the hash chain",
	Long: `audit recomputes every record hash and checks every back-link.

With --record the server also appends the outcome to the ledger as a
CHAIN_AUDIT entry; this needs an admin token. The command exits non-zero
when the chain fails verification.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		var res *client.AuditResult
		if auditRecord {
			res, err = c.RecordAudit(cmd.Context())
		} else {
			res, err = c.Audit(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		if err := printAudit(res); err != nil {
			return err
		}
		if !res.Passed {
			return errors.New("ledger integrity check failed")
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().BoolVar(&auditRecord, "record", false, "Record the outcome as a CHAIN_AUDIT entry (admin)")
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify <entry-id>",
	Short: "Spot-check a single entry's record hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		check, err := c.VerifyEntry(cmd.Context(), args[0])
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("entry %q is not in the ledger", args[0])
		}
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if outputJSON {
			return printJSON(check)
		}
		fmt.Printf("Row:      %d\n", check.Row)
		fmt.Printf("Valid:    %t\n", check.Valid)
		fmt.Printf("Stored:   %s\n", check.StoredHash)
		fmt.Printf("Expected: %s\n", check.ExpectedHash)
		if !check.Valid {
			return errors.New("entry failed verification")
		}
		return nil
	},
}

// ── declare ──────────────────────────────────────────────────────────────────

var (
	declareLevel         string
	declareJustification string
	declareActor         string
	declareNumeric       int
)

var declareCmd = &cobra.Command{
	Use:   "declare",
	Short: "Declare confidence before writing content",
	Example: `  ledgerctl declare --level KNOWN_KNOWN --justification "audited figures from the 10-K"
  ledgerctl declare --level KNOWN_UNKNOWN --numeric 60`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		req := client.DeclareRequest{
			Level:         declareLevel,
			Justification: declareJustification,
			Actor:         declareActor,
		}
		if cmd.Flags().Changed("numeric") {
			req.NumericConfidence = &declareNumeric
		}
		decl, err := c.Declare(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("declare: %w", err)
		}
		if outputJSON {
			return printJSON(decl)
		}
		fmt.Printf("Confidence ID: %s\n", decl.ConfidenceID)
		fmt.Printf("Level:         %s\n", decl.Level)
		fmt.Printf("Status:        %s\n", decl.Status)
		if decl.NumericMismatch {
			fmt.Fprintf(os.Stderr, "warning: numeric confidence %d implies a different level than %s\n",
				*decl.NumericConfidence, decl.Level)
		}
		return nil
	},
}

func init() {
	declareCmd.Flags().StringVar(&declareLevel, "level", "", "KNOWN_KNOWN, KNOWN_UNKNOWN or UNKNOWN_UNKNOWN (required)")
	declareCmd.Flags().StringVar(&declareJustification, "justification", "", "Justification (required for KNOWN_KNOWN)")
	declareCmd.Flags().StringVar(&declareActor, "actor", "User", "Actor class")
	declareCmd.Flags().IntVar(&declareNumeric, "numeric", 0, "Optional numeric confidence 0-100")
	_ = declareCmd.MarkFlagRequired("level")
}

// ── link ─────────────────────────────────────────────────────────────────────

var linkCmd = &cobra.Command{
	Use:   "link <confidence-id>",
	Short: "Write content under a declared confidence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, pending, err := c.Link(cmd.Context(), args[0], entryRequest())
		if err != nil {
			return fmt.Errorf("link: %w", err)
		}
		if outputJSON {
			return printJSON(map[string]any{"result": res, "pending": pending})
		}
		fmt.Printf("Level:   %s\n", res.ConfidenceLevel)
		if err := printReceipt(res.Receipt); err != nil {
			return err
		}
		if pending {
			fmt.Fprintln(os.Stderr, "warning: content recorded but the declaration is not yet marked LINKED; the server will reconcile it")
		}
		return nil
	},
}

func init() { addEntryFlags(linkCmd) }

// ── flag ─────────────────────────────────────────────────────────────────────

var (
	flagReason string
	flagActor  string
)

var flagCmd = &cobra.Command{
	Use:   "flag <confidence-id>",
	Short: "Flag a declaration as violated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.FlagViolation(cmd.Context(), args[0], client.ViolationRequest{
			Reason: flagReason,
			Actor:  flagActor,
		})
		if err != nil {
			return fmt.Errorf("flag: %w", err)
		}
		if outputJSON {
			return printJSON(res)
		}
		fmt.Printf("Original level: %s\n", res.OriginalLevel)
		fmt.Printf("Prior status:   %s\n", res.PriorStatus)
		return printReceipt(res.Receipt)
	},
}

func init() {
	flagCmd.Flags().StringVar(&flagReason, "reason", "", "Why the declared confidence was wrong (required)")
	flagCmd.Flags().StringVar(&flagActor, "actor", "User", "Actor class")
	_ = flagCmd.MarkFlagRequired("reason")
}

// ── declarations ─────────────────────────────────────────────────────────────

var declarationsCmd = &cobra.Command{
	Use:   "declarations",
	Short: "Summarise declarations by level and status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		audit, err := c.AuditDeclarations(cmd.Context())
		if err != nil {
			return fmt.Errorf("declarations: %w", err)
		}
		return printDeclarationAudit(audit)
	},
}

// ── migrate / reconcile ──────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade a base-width ledger to carry confidence columns (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Migrate(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if outputJSON {
			return printJSON(res)
		}
		if res.AlreadyExtended {
			fmt.Println("Ledger already carries confidence columns; nothing to do.")
			return nil
		}
		fmt.Printf("Backfilled %d row(s) as LEGACY.\n", res.BackfilledRows)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Mark declarations LINKED whose content is already in the chain (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		n, err := c.Reconcile(cmd.Context())
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if outputJSON {
			return printJSON(map[string]int{"reconciled": n})
		}
		fmt.Printf("Reconciled %d declaration(s).\n", n)
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ledgerctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ledgerctl %s\n", version)
	},
}

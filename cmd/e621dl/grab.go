package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"e621dl/internal/downloader"
	"e621dl/pkg/auth"
	"e621dl/pkg/catalog"
	"e621dl/pkg/config"
	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/grabber"
	"e621dl/pkg/logger"
	"e621dl/pkg/pipeline"
	"e621dl/pkg/ratelimit"
	"e621dl/pkg/retry"
	"e621dl/pkg/storage"
	"e621dl/pkg/tagfile"
	"e621dl/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Grab command flags
	tagFile            string
	outputDir          string
	concurrent         int
	networkConcurrency int
	safeMode           bool
	naming             string
	accountName        string
	favorites          bool
	maxRetries         int
	username           string
	apiKey             string
)

// grabCmd represents the grab command
var grabCmd = &cobra.Command{
	Use:   "grab",
	Short: "Download everything listed in the tag file",
	Long: `Download every entry of the tag file.

The tag file is split into [artists], [general], [pools], [sets] and
[single-post] sections. Lines before the first section and lines under
[artists] or [general] are tag searches such as "wolf -comic". Lines under
[pools], [sets] and [single-post] are bare numeric ids. Lines starting with #
are comments. Tags are checked against the catalog and aliases are replaced by the tag they
point to. Files land in <output>/<category>/<entry>/ and files that already
exist are skipped.

Credentials are optional. They are taken, in order, from:
  - the --account flag (a stored account)
  - --username/--api-key, the config file or E621DL_USERNAME/E621DL_API_KEY
  - the most recently stored account ('e621dl auth login')`,
	Example: `  # Use tags.txt in the current directory
  e621dl grab

  # Different tag file and output directory, safe mirror only
  e621dl grab --tags my_tags.txt --output ./e926 --safe

  # Use a stored account and also download its favorites
  e621dl grab --account myaccount --favorites`,
	Args: cobra.NoArgs,
	RunE: runGrab,
}

func init() {
	rootCmd.AddCommand(grabCmd)

	// grab is also the default command
	for _, c := range []*cobra.Command{grabCmd, rootCmd} {
		f := c.Flags()
		f.StringVarP(&tagFile, "tags", "t", "", "tag file to read (default tags.txt)")
		f.StringVarP(&outputDir, "output", "o", "", "output directory (default ./downloads)")
		f.IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
		f.IntVar(&networkConcurrency, "network-concurrency", 0, "number of entries resolved and paged concurrently")
		f.BoolVar(&safeMode, "safe", false, "use the safe-only mirror")
		f.StringVar(&naming, "naming", "", "file naming convention (id or md5)")
		f.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
		f.BoolVar(&favorites, "favorites", false, "also download the account's favorites")
		f.IntVar(&maxRetries, "max-retries", 0, "maximum attempts per page and per file")
		f.StringVar(&username, "username", "", "account name for this run")
		f.StringVar(&apiKey, "api-key", "", "API key for this run")
	}
}

// grabFlags collects the flags that were set explicitly
func grabFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags()
	f := cmd.Flags()
	if tagFile != "" {
		flags["tags"] = tagFile
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if networkConcurrency > 0 {
		flags["network-concurrency"] = networkConcurrency
	}
	if f.Changed("safe") {
		flags["safe"] = safeMode
	}
	if naming != "" {
		flags["naming"] = naming
	}
	if f.Changed("favorites") {
		flags["favorites"] = favorites
	}
	if maxRetries > 0 {
		flags["max-retries"] = maxRetries
	}
	if username != "" {
		flags["username"] = username
	}
	if apiKey != "" {
		flags["api-key"] = apiKey
	}
	return flags
}

func runGrab(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unknown command %q for e621dl", args[0])
	}

	cfg, err := config.Load(configFile, grabFlags(cmd))
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger().WithField("version", version)

	ui.PrintLogo()

	session, err := resolveSession(cfg, log)
	if err != nil {
		return err
	}

	entries, err := readTagFile(cfg.Output.TagFile)
	if err != nil {
		return err
	}

	favoritesOf := ""
	if cfg.E621.DownloadFavorites {
		if session.Authenticated() {
			favoritesOf = session.Username()
		} else {
			ui.PrintWarning("Favorites need an account, skipping them")
		}
	}
	if len(entries) == 0 && favoritesOf == "" {
		ui.PrintWarning("Nothing to download", cfg.Output.TagFile+" has no entries")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := e621.NewClient(e621.Options{
		BaseURL:   cfg.EffectiveBaseURL(),
		UserAgent: cfg.E621.UserAgent,
		Timeout:   cfg.Network.Timeout,
		Session:   session,
		Limiter:   ratelimit.New(cfg.RateLimit.MinInterval, cfg.RateLimit.RequestsPerMinute),
		Logger:    log,
	})
	// files are fetched without credentials
	files := e621.NewClient(e621.Options{
		BaseURL:   cfg.EffectiveBaseURL(),
		UserAgent: cfg.E621.UserAgent,
		Timeout:   cfg.Download.DownloadTimeout,
		Logger:    log,
	})

	rules, err := pipeline.LoadBlacklist(ctx, client, session.Username(), cfg.E621.Blacklist, log)
	if err != nil {
		return reportFatal(err)
	}

	store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.NamingConvention)
	if err != nil {
		return err
	}

	pageRetry := retry.FromSettings(cfg.Retry, log)
	fileSettings := cfg.Retry
	fileSettings.MaxAttempts = cfg.Download.RetryAttempts
	fileRetry := retry.FromSettings(fileSettings, log)

	total := len(entries)
	if favoritesOf != "" {
		total++
	}
	display := ui.NewProgressDisplay(nil, total, ui.IsTerminal() && !ui.IsQuietMode(), verbose)

	ui.PrintInfo("Catalog", client.BaseURL())
	ui.PrintInfo("Tag file", fmt.Sprintf("%s (%d entries)", cfg.Output.TagFile, len(entries)))
	ui.PrintInfo("Output", store.BaseDir())

	p := pipeline.New(
		catalog.NewCategorizer(client, pageRetry, log),
		grabber.NewRetriever(client, rules, pageRetry, log),
		store,
		files,
		pipeline.Options{
			NetworkConcurrency: cfg.Network.Concurrency,
			DownloadWorkers:    cfg.Download.ConcurrentDownloads,
			Favorites:          favoritesOf,
			DownloadRetry:      fileRetry,
			Observer:           display,
			Logger:             log,
		},
	)

	rep, runErr := p.Run(ctx, entries)
	display.Finish()
	if rep != nil {
		ui.PrintSummary(nil, rep)
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, context.Canceled):
		ui.PrintWarning("Interrupted")
		return runErr
	default:
		return reportFatal(runErr)
	}
}

// resolveSession picks the account for the run. Without any credentials the
// run continues anonymously.
func resolveSession(cfg *config.Config, log logger.Logger) (e621.Session, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return e621.Session{}, fmt.Errorf("initialize credential manager: %w", err)
	}

	switch {
	case accountName != "":
		account, err := manager.Retrieve(accountName)
		if err != nil {
			ui.PrintInfo("Available accounts", "Use 'e621dl auth list' to see stored accounts")
			return e621.Session{}, fmt.Errorf("account %q: %w", accountName, err)
		}
		ui.PrintInfo("Using account", account.Username)
		return account.Session(), nil

	case cfg.E621.Username != "" && cfg.E621.APIKey != "":
		log.Info("Using credentials from configuration")
		ui.PrintInfo("Using account", cfg.E621.Username)
		return e621.NewSession(cfg.E621.Username, cfg.E621.APIKey), nil
	}

	account, err := manager.RetrieveDefault()
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		log.Info("No credentials found, continuing anonymously")
		return e621.Session{}, nil
	}
	if err != nil {
		return e621.Session{}, fmt.Errorf("load stored credentials: %w", err)
	}
	log.WithField("account", account.Username).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Username)
	return account.Session(), nil
}

func readTagFile(path string) ([]tagfile.QueryEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		ui.PrintError("Tag file not found", path)
		ui.PrintInfo("Hint", "Run 'e621dl init' to create an example tag file")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := tagfile.Parse(f)
	var parseErr *errs.ParseError
	if errors.As(err, &parseErr) {
		ui.PrintError(fmt.Sprintf("%s:%d:%d", path, parseErr.Line, parseErr.Column), parseErr.Msg)
		return nil, fmt.Errorf("invalid tag file %s: %w", path, err)
	}
	return entries, err
}

// reportFatal prints what the user can do about a run-ending error
func reportFatal(err error) error {
	var authErr *errs.AuthError
	var challengeErr *errs.ChallengeError
	switch {
	case errors.As(err, &authErr):
		ui.PrintError("The catalog rejected the credentials")
		ui.PrintInfo("Hint", "Check the username and API key with 'e621dl auth status'")
	case errors.As(err, &challengeErr):
		ui.PrintError("The catalog answered with a bot check page instead of data")
		ui.PrintInfo("Hint", "Wait a while and retry, or lower the request rate in the config file")
	}
	return err
}

var (
	_ catalog.TagSource  = (*e621.Client)(nil)
	_ grabber.PostSource = (*e621.Client)(nil)
	_ downloader.Fetcher = (*e621.Client)(nil)
	_ pipeline.Observer  = (*ui.ProgressDisplay)(nil)
)

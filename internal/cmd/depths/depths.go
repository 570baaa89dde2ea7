// Package depths parses client configuration and dispatches the depths
// subcommands against the identity, feed, and ledger services.
package depths

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/depths.social/internal/platform/cmd"
	"github.com/louisbranch/depths.social/internal/platform/config"
	"github.com/louisbranch/depths.social/internal/platform/discovery"
	"github.com/louisbranch/depths.social/internal/platform/rpc"

	"github.com/louisbranch/depths.social/internal/feed"
	"github.com/louisbranch/depths.social/internal/identity"
	"github.com/louisbranch/depths.social/internal/ledger"
	"github.com/louisbranch/depths.social/internal/orchestrator"
	"github.com/louisbranch/depths.social/internal/session"
	"github.com/louisbranch/depths.social/internal/viewcache"
)

// Config holds depths client configuration. Values resolve in order:
// env, then the optional config file, then flags.
type Config struct {
	IdentityEndpoint  string  `env:"DEPTHS_SOCIAL_IDENTITY_ENDPOINT" yaml:"identity_endpoint"`
	FeedEndpoint      string  `env:"DEPTHS_SOCIAL_FEED_ENDPOINT" yaml:"feed_endpoint"`
	LedgerEndpoint    string  `env:"DEPTHS_SOCIAL_LEDGER_ENDPOINT" yaml:"ledger_endpoint"`
	Token             string  `env:"DEPTHS_SOCIAL_TOKEN" yaml:"token"`
	ConfigFile        string  `env:"DEPTHS_SOCIAL_CONFIG" yaml:"-"`
	RequestsPerSecond float64 `env:"DEPTHS_SOCIAL_RPS" yaml:"requests_per_second"`
}

// ParseConfig parses environment, config file, and flags into Config.
// The returned args are the subcommand and its arguments.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, []string, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, nil, err
	}
	if cfg.ConfigFile != "" {
		if err := config.LoadFile(cfg.ConfigFile, &cfg); err != nil {
			return Config{}, nil, err
		}
	}
	fs.StringVar(&cfg.IdentityEndpoint, "identity", cfg.IdentityEndpoint, "The identity service RPC endpoint")
	fs.StringVar(&cfg.FeedEndpoint, "feed", cfg.FeedEndpoint, "The feed service RPC endpoint")
	fs.StringVar(&cfg.LedgerEndpoint, "ledger", cfg.LedgerEndpoint, "The ledger service RPC endpoint")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "The session bearer token")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, nil, err
	}
	cfg.IdentityEndpoint = discovery.OrDefaultEndpoint(cfg.IdentityEndpoint, discovery.ServiceIdentity)
	cfg.FeedEndpoint = discovery.OrDefaultEndpoint(cfg.FeedEndpoint, discovery.ServiceFeed)
	cfg.LedgerEndpoint = discovery.OrDefaultEndpoint(cfg.LedgerEndpoint, discovery.ServiceLedger)
	return cfg, fs.Args(), nil
}

// Run signs in and executes one subcommand.
func Run(ctx context.Context, cfg Config, args []string) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ClientName, func(ctx context.Context) error {
		core, err := buildCore(cfg)
		if err != nil {
			return err
		}
		return dispatch(ctx, core, args)
	})
}

// buildCore wires the RPC clients, the session manager, and the
// orchestrator. The RPC token source reads from the manager so a token
// refresh after re-login reaches every client.
func buildCore(cfg Config) (*orchestrator.Orchestrator, error) {
	var mgr *session.Manager
	token := rpc.TokenSource(func() string {
		if mgr == nil {
			return ""
		}
		return mgr.Token()
	})

	endpoints := []struct {
		name     string
		endpoint string
	}{
		{discovery.ServiceIdentity, cfg.IdentityEndpoint},
		{discovery.ServiceFeed, cfg.FeedEndpoint},
		{discovery.ServiceLedger, cfg.LedgerEndpoint},
	}
	clients := make(map[string]*rpc.Client, len(endpoints))
	for _, e := range endpoints {
		client, err := rpc.NewClient(e.name, e.endpoint, rpc.Options{
			Token:             token,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("%s client: %w", e.name, err)
		}
		clients[e.name] = client
	}

	identities := identity.NewClient(clients[discovery.ServiceIdentity])
	feeds := feed.NewClient(clients[discovery.ServiceFeed])
	ledgers := ledger.NewClient(clients[discovery.ServiceLedger])

	creds := session.NewStaticTokenSource(cfg.Token)
	mgr = session.NewManager(creds, identities, session.Options{})

	return orchestrator.New(mgr, identities, feeds, ledgers, viewcache.New(), orchestrator.Options{}), nil
}

func dispatch(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	if len(args) == 0 {
		return usageError()
	}
	name, rest := args[0], args[1:]
	run, ok := subcommands[name]
	if !ok {
		return fmt.Errorf("unknown command %q\n\n%v", name, usageError())
	}

	if err := core.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return run(ctx, core, rest)
}

var subcommands = map[string]func(context.Context, *orchestrator.Orchestrator, []string) error{
	"whoami":  runWhoami,
	"feed":    runFeed,
	"posts":   runPosts,
	"post":    runPost,
	"like":    runLike,
	"comment": runComment,
	"balance": runBalance,
	"send":    runSend,
	"history": runHistory,
	"profile": runProfile,
	"search":  runSearch,
}

func usageError() error {
	names := make([]string, 0, len(subcommands))
	for name := range subcommands {
		names = append(names, name)
	}
	return fmt.Errorf("usage: depths <command> [flags]\ncommands: %s", strings.Join(names, ", "))
}

func pageFlags(fs *flag.FlagSet) (*int, *int) {
	offset := fs.Int("offset", 0, "Pagination offset")
	count := fs.Int("count", 20, "Page size")
	return offset, count
}

func runWhoami(_ context.Context, core *orchestrator.Orchestrator, _ []string) error {
	sess := core.Session()
	if sess.Profile == nil {
		return fmt.Errorf("no session")
	}
	fmt.Printf("%s (%s)\n", sess.Profile.Name, sess.Principal)
	if sess.Profile.Email != "" {
		fmt.Printf("email: %s\n", sess.Profile.Email)
	}
	return nil
}

func runFeed(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	offset, count := pageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	core.EnterView(orchestrator.ViewFeed)
	page, err := core.Feed(ctx, *offset, *count)
	if err != nil {
		return err
	}
	printPosts(page)
	return nil
}

func runPosts(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("posts", flag.ContinueOnError)
	offset, count := pageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	core.EnterView(orchestrator.ViewMyPosts)
	page, err := core.MyPosts(ctx, *offset, *count)
	if err != nil {
		return err
	}
	printPosts(page)
	return nil
}

func runPost(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	image := fs.String("image", "", "Storage key of an attached image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	core.EnterView(orchestrator.ViewCompose)
	post, err := core.CreatePost(ctx, strings.Join(fs.Args(), " "), *image)
	if err != nil {
		return err
	}
	fmt.Printf("post %d published\n", post.ID)
	return nil
}

func runLike(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	id, err := postIDArg(args)
	if err != nil {
		return err
	}
	res, err := core.LikePost(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("post %d: %d likes\n", id, res.LikeCount)
	return nil
}

func runComment(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	id, err := postIDArg(args)
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")
	comments, err := core.CommentPost(ctx, id, text)
	if err != nil {
		return err
	}
	fmt.Printf("post %d: %d comments\n", id, len(comments))
	return nil
}

func runBalance(ctx context.Context, core *orchestrator.Orchestrator, _ []string) error {
	core.EnterView(orchestrator.ViewTransfer)
	balance, err := core.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d DTX (as of %s)\n", balance.Amount, balance.AsOf.Format(time.RFC3339))
	return nil
}

func runSend(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	to := fs.String("to", "", "Recipient principal")
	amount := fs.Uint64("amount", 0, "Amount of DTX to send")
	if err := fs.Parse(args); err != nil {
		return err
	}
	core.EnterView(orchestrator.ViewTransfer)
	if core.InsufficientFundsHint(*amount) {
		fmt.Println("warning: cached balance looks too low for this transfer")
	}
	tx, err := core.Transfer(ctx, *to, *amount)
	if err != nil {
		return err
	}
	fmt.Printf("sent %d DTX to %s (tx %d)\n", tx.Amount, tx.To, tx.ID)
	return nil
}

func runHistory(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	offset, count := pageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	core.EnterView(orchestrator.ViewHistory)
	history, err := core.History(ctx, *offset, *count)
	if err != nil {
		return err
	}
	for _, tx := range history {
		when := time.Unix(0, tx.Timestamp).Format(time.RFC3339)
		counterparty := tx.From
		if tx.Direction == ledger.DirectionSent {
			counterparty = tx.To
		} else if tx.From == "" {
			counterparty = "mint"
		}
		fmt.Printf("%s  %-8s  %6d DTX  %s\n", when, tx.Direction, tx.Amount, counterparty)
	}
	return nil
}

func runProfile(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Contact email")
	avatar := fs.String("avatar", "", "Storage key of the avatar image")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only flags the caller set become part of the update.
	var update identity.ProfileUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			update.Name = name
		case "email":
			update.Email = email
		case "avatar":
			update.AvatarKey = avatar
		}
	})

	core.EnterView(orchestrator.ViewProfile)
	profile, err := core.UpdateProfile(ctx, update)
	if err != nil {
		return err
	}
	fmt.Printf("profile updated: %s\n", profile.Name)
	return nil
}

func runSearch(ctx context.Context, core *orchestrator.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	offset, count := pageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	core.EnterView(orchestrator.ViewTransfer)
	profiles, err := core.SearchProfiles(ctx, strings.Join(fs.Args(), " "), *offset, *count)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		fmt.Printf("%s  %s\n", p.Principal, p.Name)
	}
	return nil
}

func postIDArg(args []string) (uint64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("post id is required")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid post id %q", args[0])
	}
	return id, nil
}

func printPosts(page []feed.PostDetail) {
	for _, d := range page {
		liked := ""
		if d.LikedByCaller {
			liked = ", liked"
		}
		when := time.Unix(0, d.Post.CreatedAt).Format(time.RFC3339)
		fmt.Printf("#%d %s %s  %s (%d likes%s)\n", d.Post.ID, when, d.Post.AuthorDisplay, d.Post.Content, d.Post.LikeCount, liked)
		for _, c := range d.Comments {
			fmt.Printf("    %s: %s\n", c.AuthorDisplay, c.Text)
		}
	}
}

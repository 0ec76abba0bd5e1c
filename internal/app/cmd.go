package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hitoshi/movieshelf/internal/model"
)

// appName はコマンド名。
const appName = "movieshelf"

// サブコマンド名
const (
	// CommandServe はAPIサーバーモードで起動することを示す。引数なしの場合もこのモードで起動する。
	CommandServe = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck = "healthcheck"
)

// NewCommand はコマンドツリーを構築する。
func NewCommand(out, errOut io.Writer) *cli.Command {
	c := &clientCommands{out: out, errOut: errOut}

	return &cli.Command{
		Name:      appName,
		Usage:     "Browse movies and series, keep favorites, and share reviews",
		Writer:    out,
		ErrWriter: errOut,
		// 引数なしで起動した場合はサーバーモード
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Present() {
				return fmt.Errorf("unknown command: %s", cmd.Args().First())
			}
			return serveAction(out)(ctx, cmd)
		},
		Commands: []*cli.Command{
			{
				Name:   CommandServe,
				Usage:  "Start the review and session API server",
				Action: serveAction(out),
			},
			{
				Name:  CommandMigrate,
				Usage: "Apply pending database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := initServer(out)
					if err != nil {
						return fmt.Errorf("initialization failed: %w", err)
					}
					return runMigrate(cfg)
				},
			},
			{
				Name:  CommandHealthcheck,
				Usage: "Check that the local server answers /health",
				// 軽量サブコマンドのため、フル初期化をスキップする
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runHealthcheck(ctx, healthcheckURL())
				},
			},
			c.registerCommand(),
			c.loginCommand(),
			{
				Name:   "logout",
				Usage:  "Destroy the current session",
				Action: c.Logout,
			},
			{
				Name:   "whoami",
				Usage:  "Show the logged-in user",
				Action: c.WhoAmI,
			},
			{
				Name:      "search",
				Usage:     "Search movies by title",
				ArgsUsage: "<query>",
				Action:    c.Search,
			},
			{
				Name:   "browse",
				Usage:  "Show trending, popular and top rated titles",
				Action: c.Browse,
			},
			{
				Name:      "show",
				Usage:     "Show details, trailer and cast of a title",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{kindFlag()},
				Action:    c.Show,
			},
			{
				Name:  "favorites",
				Usage: "Manage local favorites",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "Show favorite movies",
						Action: c.FavoritesList,
					},
					{
						Name:      "toggle",
						Usage:     "Add or remove a movie from favorites",
						ArgsUsage: "<id>",
						Action:    c.FavoritesToggle,
					},
				},
			},
			{
				Name:  "reviews",
				Usage: "Read and write reviews",
				Commands: []*cli.Command{
					{
						Name:      "list",
						Usage:     "List reviews of a movie",
						ArgsUsage: "<movie-id>",
						Action:    c.ReviewsList,
					},
					{
						Name:      "add",
						Usage:     "Post a review as the logged-in user",
						ArgsUsage: "<movie-id> <review...>",
						Action:    c.ReviewsAdd,
					},
					{
						Name:      "delete",
						Usage:     "Delete one of your reviews",
						ArgsUsage: "<movie-id> <review-id>",
						Action:    c.ReviewsDelete,
					},
				},
			},
		},
	}
}

func serveAction(out io.Writer) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := initServer(out)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		return runServe(ctx, cfg)
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "username",
			Aliases:  []string{"u"},
			Usage:    "Account name",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "password",
			Aliases:  []string{"p"},
			Usage:    "Account password",
			Sources:  cli.EnvVars("MOVIESHELF_PASSWORD"),
			Required: true,
		},
	}
}

func kindFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kind",
		Aliases: []string{"k"},
		Usage:   "movie or tv",
		Value:   "movie",
	}
}

func (c *clientCommands) registerCommand() *cli.Command {
	return &cli.Command{
		Name:   "register",
		Usage:  "Create an account on the review server",
		Flags:  credentialFlags(),
		Action: c.Register,
	}
}

func (c *clientCommands) loginCommand() *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Log in and store the session locally",
		Flags:  credentialFlags(),
		Action: c.Login,
	}
}

// argAt はi番目の位置引数を返す。存在しない場合はINVALID_REQUESTを返す。
func argAt(cmd *cli.Command, i int, name string) (string, error) {
	v := strings.TrimSpace(cmd.Args().Get(i))
	if v == "" {
		return "", model.NewInvalidRequestError("missing argument: " + name)
	}
	return v, nil
}

// restFrom はi番目以降の位置引数を空白で連結して返す。
func restFrom(cmd *cli.Command, i int) string {
	args := cmd.Args().Slice()
	if i >= len(args) {
		return ""
	}
	return strings.Join(args[i:], " ")
}

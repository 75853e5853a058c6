package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/nando-os/ghost-marks/eth"
	"github.com/nando-os/ghost-marks/marks"
)

// dialFn opens the node connection; replaced in tests.
type dialFn func(ctx context.Context, rawURL string) (eth.EthClient, error)

func dialNode(ctx context.Context, rawURL string) (eth.EthClient, error) {
	client, err := eth.Dial(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args, dialNode); err != nil {
		logrus.WithError(err).Error("Application failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, ew io.Writer, args []string, dial dialFn) error {
	logrus.SetOutput(ew)

	app := cli.NewApp()
	app.Name = "marks"
	app.Usage = "Writes the combining-marks table to its contract"
	app.Writer = w
	app.ErrWriter = ew
	app.Flags = globalFlags
	app.Before = func(c *cli.Context) error {
		if err := setupLogging(c.String(LogLevelFlagName), ew); err != nil {
			return err
		}
		loadEnvFile(c.String(EnvFileFlagName))
		return nil
	}
	app.DefaultCommand = "submit"
	app.Commands = []*cli.Command{
		{
			Name:   "submit",
			Usage:  "Send initializeCombiningMarks then initializeCombiningMarksSalt",
			Flags:  submitFlags,
			Action: submitAction(dial),
		},
		{
			Name:      "strip",
			Usage:     "Call stripDiacritics on the contract",
			ArgsUsage: "<text>",
			Action:    stripAction(dial),
		},
		{
			Name:   "balance",
			Usage:  "Print the signing account balance",
			Action: balanceAction(dial),
		},
	}
	return app.RunContext(ctx, args)
}

func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		entry := logrus.WithField("file", path)
		if errors.Is(err, fs.ErrNotExist) {
			entry.Debug("No env file, using process environment")
			return
		}
		entry.WithError(err).Warn("Failed to load env file")
	}
}

func setupLogging(level string, ew io.Writer) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	color := false
	if f, ok := ew.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(ew, lvl, color)))

	logrusLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrusLevel = logrus.FatalLevel // crit
	}
	logrus.SetLevel(logrusLevel)
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: color, FullTimestamp: true})
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

// session is everything a command needs to talk to the contract
type session struct {
	cfg      eth.Config
	client   eth.GhostClient
	contract *eth.Contract
}

// openSession dials the node and binds the contract. With readOnly, a first
// account holding only a public key is accepted for queries.
func openSession(ctx context.Context, dial dialFn, readOnly bool) (*session, error) {
	cfg, err := eth.NewConfiguration()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	conn, err := dial(ctx, cfg.RPCURL())
	if err != nil {
		return nil, err
	}

	signer := cfg.Accounts()[0]
	newClient := eth.NewGhostClient
	if readOnly && !signer.CanSign() {
		newClient = eth.NewReadOnlyClient
	}
	client, err := newClient(conn, signer, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if cfg.VerifyChainID() {
		if err := client.VerifyChainID(ctx); err != nil {
			client.Close()
			return nil, err
		}
	}

	abiJSON := cfg.ContractABI()
	if abiJSON == "" {
		abiJSON = marks.DefaultABI
	}
	contractABI, err := eth.ParseABI(abiJSON)
	if err != nil {
		client.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"chain_id": cfg.ChainID(),
		"account":  signer.Address.Hex(),
		"contract": cfg.ContractAddress().Hex(),
	}).Info("Session ready")

	return &session{
		cfg:      cfg,
		client:   client,
		contract: eth.NewContract(cfg.ContractAddress(), contractABI, client, cfg),
	}, nil
}

func submitAction(dial dialFn) cli.ActionFunc {
	return func(c *cli.Context) error {
		data, err := readCombiningMarks(c)
		if err != nil {
			return err
		}
		// reject a malformed table before touching the network
		if err := data.Validate(); err != nil {
			return err
		}

		s, err := openSession(c.Context, dial, false)
		if err != nil {
			return err
		}
		defer s.client.Close()

		var opts []marks.Option
		if path := c.String(JournalFlagName); path != "" {
			journal, err := marks.OpenJournal(path, s.cfg.ChainID(), s.cfg.ContractAddress())
			if err != nil {
				return err
			}
			opts = append(opts, marks.WithJournal(journal))
		}
		if c.Bool(WaitFlagName) {
			opts = append(opts, marks.WithConfirmation(s.client))
		}

		seq := marks.NewSequencer(s.contract, marks.NewReporter(c.App.Writer), opts...)
		return seq.Run(c.Context, data)
	}
}

func readCombiningMarks(c *cli.Context) (marks.CombiningMarks, error) {
	keys, err := marks.ParseUint16List(c.StringSlice(KeysFlagName))
	if err != nil {
		return marks.CombiningMarks{}, fmt.Errorf("--%s: %w", KeysFlagName, err)
	}
	values, err := marks.ParseUint16List(c.StringSlice(ValuesFlagName))
	if err != nil {
		return marks.CombiningMarks{}, fmt.Errorf("--%s: %w", ValuesFlagName, err)
	}
	salts, err := marks.ParseUint256List(c.StringSlice(SaltsFlagName))
	if err != nil {
		return marks.CombiningMarks{}, fmt.Errorf("--%s: %w", SaltsFlagName, err)
	}
	return marks.CombiningMarks{Keys: keys, Values: values, Salts: salts}, nil
}

func stripAction(dial dialFn) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("strip takes exactly one argument, got %d", c.NArg())
		}
		s, err := openSession(c.Context, dial, true)
		if err != nil {
			return err
		}
		defer s.client.Close()

		out, err := s.contract.Call(c.Context, marks.MethodStripDiacritics, c.Args().First())
		if err != nil {
			return err
		}
		if len(out) != 1 {
			return fmt.Errorf("%s returned %d values, want 1", marks.MethodStripDiacritics, len(out))
		}
		stripped, ok := out[0].(string)
		if !ok {
			return fmt.Errorf("%s returned %T, want string", marks.MethodStripDiacritics, out[0])
		}
		_, err = fmt.Fprintln(c.App.Writer, stripped)
		return err
	}
}

func balanceAction(dial dialFn) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openSession(c.Context, dial, true)
		if err != nil {
			return err
		}
		defer s.client.Close()

		address := s.client.Account().Address
		balance, err := s.client.GetBalance(c.Context, address)
		if err != nil {
			return err
		}
		ether := new(big.Float).Quo(new(big.Float).SetInt(balance), big.NewFloat(1e18)).Text('f', 6)
		_, err = fmt.Fprintf(c.App.Writer, "%s: %s wei (%s ETH)\n", address.Hex(), balance.String(), ether)
		return err
	}
}

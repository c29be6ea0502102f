// Command votectl signs and submits vote program transactions to a node.
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"vote-program/client"
	"vote-program/signing"
)

const usage = `usage: votectl <command> [flags]

commands:
  keygen   create a key file (or print an existing one)
  init     initialize a vote account
  vote     add a vote to an account
  fetch    print an account
  demo     initialize an account and cast votes from fresh voter keys
`

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error().Err(err).Msg("votectl failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, logger zerolog.Logger) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	node := fs.String("node", envOr("VOTE_NODE_URL", "http://localhost:8080"), "Node base URL")
	timeout := fs.Duration("timeout", 30*time.Second, "Request timeout")

	switch args[0] {
	case "keygen":
		keyPath := fs.String("out", "keys/key.json", "Key file path")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		key, created, err := signing.LoadOrGenerateKey(*keyPath)
		if err != nil {
			return err
		}
		logger.Info().Str("path", *keyPath).Bool("created", created).Msg("key ready")
		return printJSON(out, map[string]string{"address": signing.Address(key).Hex()})

	case "init":
		payerPath := fs.String("payer", "keys/payer.json", "Payer key file")
		accountPath := fs.String("account", "keys/account.json", "Account key file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		payer, err := loadKey(*payerPath, logger)
		if err != nil {
			return err
		}
		accountKey, err := loadKey(*accountPath, logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		receipt, err := client.New(*node).Initialize(ctx, payer, accountKey)
		if err != nil {
			return err
		}
		return printJSON(out, receipt)

	case "vote":
		account := fs.String("account", "", "Account address")
		voterPath := fs.String("voter", "keys/voter.json", "Voter key file")
		selection := fs.Uint("selection", 0, "Selection (0-255)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		addr, err := parseAddress(*account)
		if err != nil {
			return err
		}
		if *selection > 255 {
			return errors.Newf("selection %d out of range", *selection)
		}
		voter, err := loadKey(*voterPath, logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		receipt, err := client.New(*node).AddVote(ctx, addr, voter, uint8(*selection))
		if err != nil {
			return err
		}
		return printJSON(out, receipt)

	case "fetch":
		account := fs.String("account", "", "Account address")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		addr, err := parseAddress(*account)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		acc, err := client.New(*node).Fetch(ctx, addr)
		if err != nil {
			return err
		}
		return printJSON(out, acc)

	case "demo":
		votes := fs.Int("votes", 2, "Number of votes to cast")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		acc, err := demo(ctx, client.New(*node), *votes, logger)
		if err != nil {
			return err
		}
		return printJSON(out, acc)

	default:
		fmt.Fprint(out, usage)
		return errors.Newf("unknown command %q", args[0])
	}
}

// demo initializes a fresh account and casts votes with selection i from
// voter i.
func demo(ctx context.Context, c *client.Client, votes int, logger zerolog.Logger) (*client.Account, error) {
	payer, err := signing.GenerateKey()
	if err != nil {
		return nil, err
	}
	accountKey, err := signing.GenerateKey()
	if err != nil {
		return nil, err
	}
	if _, err := c.Initialize(ctx, payer, accountKey); err != nil {
		return nil, errors.Wrap(err, "initialize")
	}
	addr := signing.Address(accountKey)
	logger.Info().Str("account", addr.Hex()).Msg("account initialized")

	for i := 0; i < votes; i++ {
		voter, err := signing.GenerateKey()
		if err != nil {
			return nil, err
		}
		receipt, err := c.AddVote(ctx, addr, voter, uint8(i))
		if err != nil {
			return nil, errors.Wrapf(err, "vote %d", i)
		}
		logger.Info().Uint64("total_votes", receipt.TotalVotes).Str("voter", receipt.Signer.Hex()).Msg("vote added")
	}
	return c.Fetch(ctx, addr)
}

func loadKey(path string, logger zerolog.Logger) (*ecdsa.PrivateKey, error) {
	key, created, err := signing.LoadOrGenerateKey(path)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info().Str("path", path).Str("address", signing.Address(key).Hex()).Msg("generated new key")
	}
	return key, nil
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Newf("invalid account address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

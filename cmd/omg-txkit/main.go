// omg-txkit CLI - childchain transaction builder
//
// This CLI builds, signs, decodes and proves childchain payment
// transactions without talking to any service: UTXO lists and blocks are
// read from files, results are printed as hex or JSON.
//
// Example usage:
//
//	# Pay 0.6 ETH from a Watcher UTXO dump
//	omg-txkit -c config.yaml create --from 0x.. --utxos utxos.json --uri "omg:0x..?amount=0.6"
//
//	# Sign the unsigned bytes, one key per input
//	omg-txkit -c config.yaml sign --tx 0x.. --key 0x.. --key 0x..
//
//	# Exit data for an output of a block
//	omg-txkit proof --block block.txt --utxo-pos 1000000000000
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/suffix-labs/omg-txkit/pkg/config"
)

type metadata struct {
	config  *config.Config
	log     *zap.Logger
	verbose bool
	e       io.Writer
	w       io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "omg-txkit"
	app.Usage = "build, sign and prove childchain transactions"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "",
			Usage: " YAML configuration `FILE`",
		},
		cli.StringFlag{
			Name:  "contract",
			Value: "",
			Usage: " plasma framework `ADDRESS`, overrides the configuration",
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " debug logging",
		},
	}

	utxoSourceFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "utxos, u",
			Value: "",
			Usage: "+Watcher account.get_utxos response `FILE`",
		},
		cli.BoolFlag{
			Name:  "store, s",
			Usage: "+read UTXOs from the local store",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "create",
			Usage:     "create an unsigned payment transaction",
			ArgsUsage: "\n   (* = required, + = select one)",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "from, f",
					Value: "",
					Usage: "*sender `ADDRESS`, receives the change",
				},
				cli.StringFlag{
					Name:  "uri",
					Value: "",
					Usage: "+payment request `URI`",
				},
				cli.StringFlag{
					Name:  "to, t",
					Value: "",
					Usage: "+recipient `ADDRESS`",
				},
				cli.StringFlag{
					Name:  "amount, a",
					Value: "",
					Usage: " amount paid to --to in whole units `DECIMAL`",
				},
				cli.StringFlag{
					Name:  "currency",
					Value: "",
					Usage: " token `ADDRESS` of --amount (default native)",
				},
				cli.StringFlag{
					Name:  "fee",
					Value: "0",
					Usage: " fee in whole units `DECIMAL`",
				},
				cli.StringFlag{
					Name:  "fee-currency",
					Value: "",
					Usage: " fee token `ADDRESS` (default native)",
				},
				cli.IntFlag{
					Name:  "decimals, d",
					Value: 18,
					Usage: " decimals of every currency `COUNT`",
				},
				cli.StringFlag{
					Name:  "metadata, m",
					Value: "",
					Usage: " transaction metadata, text or 0x hex `META`",
				},
			}, utxoSourceFlags...),
			Action: runCreate,
		},
		{
			Name:      "typed-data",
			Usage:     "print the EIP-712 typed data and signing hash of a transaction",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "tx",
					Value: "",
					Usage: "*transaction `HEX`",
				},
			},
			Action: runTypedData,
		},
		{
			Name:      "sign",
			Usage:     "sign a transaction, one key per input",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "tx",
					Value: "",
					Usage: "*unsigned transaction `HEX`",
				},
				cli.StringSliceFlag{
					Name:  "key, k",
					Usage: "*private `KEY` (hex or WIF), repeat in input order",
				},
			},
			Action: runSign,
		},
		{
			Name:      "decode",
			Usage:     "decode a transaction",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "tx",
					Value: "",
					Usage: "*transaction `HEX`",
				},
			},
			Action: runDecode,
		},
		{
			Name:      "merge",
			Usage:     "merge 2 to 4 UTXOs of one owner and currency",
			ArgsUsage: "\n   (* = required, + = select one)",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "owner, o",
					Value: "",
					Usage: "*owner `ADDRESS`",
				},
				cli.StringFlag{
					Name:  "currency",
					Value: "",
					Usage: " token `ADDRESS` to merge (default native)",
				},
				cli.StringFlag{
					Name:  "metadata, m",
					Value: "",
					Usage: " transaction metadata `META`",
				},
			}, utxoSourceFlags...),
			Action: runMerge,
		},
		{
			Name:      "proof",
			Usage:     "build standard exit data for an output",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "block, b",
					Value: "",
					Usage: "*block `FILE`, one transaction hex per line",
				},
				cli.StringFlag{
					Name:  "utxo-pos, p",
					Value: "",
					Usage: "*utxo position `NUMBER`",
				},
				cli.IntFlag{
					Name:  "height",
					Value: -1,
					Usage: " merkle tree `HEIGHT` (default from configuration, 0 = minimum)",
				},
			},
			Action: runProof,
		},
		{
			Name:      "deposit",
			Usage:     "encode a deposit transaction",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "owner, o",
					Value: "",
					Usage: "*depositor `ADDRESS`",
				},
				cli.StringFlag{
					Name:  "amount, a",
					Value: "",
					Usage: "*amount in whole units `DECIMAL`",
				},
				cli.StringFlag{
					Name:  "currency",
					Value: "",
					Usage: " token `ADDRESS` (default native)",
				},
				cli.IntFlag{
					Name:  "decimals, d",
					Value: 18,
					Usage: " currency decimals `COUNT`",
				},
			},
			Action: runDeposit,
		},
		{
			Name:  "utxos",
			Usage: "manage the local UTXO snapshot",
			Subcommands: []cli.Command{
				{
					Name:      "import",
					Usage:     "replace owners' snapshots with a Watcher response",
					ArgsUsage: "\n   (* = required)",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "file, f",
							Value: "",
							Usage: "*Watcher account.get_utxos response `FILE`",
						},
					},
					Action: runUtxosImport,
				},
				{
					Name:      "list",
					Usage:     "list the stored UTXOs of an owner",
					ArgsUsage: "\n   (* = required)",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "owner, o",
							Value: "",
							Usage: "*owner `ADDRESS`",
						},
					},
					Action: runUtxosList,
				},
			},
		},
		{
			Name:      "parse-uri",
			Usage:     "parse a payment request URI",
			ArgsUsage: "URI",
			Action:    runParseURI,
		},
		{
			Name: "version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}

	// read the configuration
	app.Before = func(c *cli.Context) error {
		if "version" == c.Args().Get(0) {
			return nil
		}

		cfg, err := config.Load(c.GlobalString("config"))
		if err != nil {
			return err
		}
		if contract := c.GlobalString("contract"); contract != "" {
			cfg.Network.VerifyingContract = contract
		}

		verbose := c.GlobalBool("verbose")
		if verbose {
			cfg.Debug = true
		}
		log, err := cfg.CreateLogger()
		if err != nil {
			return err
		}

		c.App.Metadata["config"] = &metadata{
			config:  cfg,
			log:     log,
			verbose: verbose,
			e:       c.App.ErrWriter,
			w:       c.App.Writer,
		}
		return nil
	}

	app.After = func(c *cli.Context) error {
		if m, ok := c.App.Metadata["config"].(*metadata); ok {
			_ = m.log.Sync()
		}
		return nil
	}

	return app
}

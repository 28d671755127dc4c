// Package main provides walletcli, a command-line client for the wallet
// node's REST API. It covers the day-to-day operator tasks: checking sync
// status and the local peak, listing coins (JSON or CSV), registering new
// puzzle hashes or coin IDs to watch, inspecting gossip peers and bans, and
// forcing a full resync.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
	"github.com/verdant-network/walletnode/settings"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	defaultURL := settings.NewSettings().API.HTTPAddress

	app := &cli.App{
		Name:  "walletcli",
		Usage: "A CLI tool to operate a Verdant wallet node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Base URL of the wallet node API",
				Value: defaultURL,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "HTTP request timeout",
				Value: 30 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the sync service status",
				Action: statusAction,
			},
			{
				Name:   "peak",
				Usage:  "Show the local best peak",
				Action: peakAction,
			},
			{
				Name:   "coins",
				Usage:  "List stored coins",
				Action: coinsAction,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "puzzle-hash",
						Usage: "Restrict to these puzzle hashes (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "unspent",
						Usage: "Only coins without a spent height",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV instead of JSON",
					},
				},
			},
			{
				Name:      "coin",
				Usage:     "Show one coin by its ID",
				ArgsUsage: "<coin-id>",
				Action:    coinAction,
			},
			{
				Name:   "interests",
				Usage:  "List the watched puzzle hashes and coin IDs",
				Action: interestsAction,
			},
			{
				Name:   "watch",
				Usage:  "Register puzzle hashes or coin IDs to watch",
				Action: watchAction,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "puzzle-hash",
						Usage: "Puzzle hash to watch (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "coin-id",
						Usage: "Coin ID to watch (repeatable)",
					},
				},
			},
			{
				Name:   "peers",
				Usage:  "List known gossip peers",
				Action: peersAction,
			},
			{
				Name:   "banned",
				Usage:  "List banned peers and their ban expiries",
				Action: bannedAction,
			},
			{
				Name:   "resync",
				Usage:  "Schedule a full resync on the next peak announcement",
				Action: resyncAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func statusAction(c *cli.Context) error {
	return getAndPrint(c, "/sync/status")
}

func peakAction(c *cli.Context) error {
	return getAndPrint(c, "/peak")
}

func coinsAction(c *cli.Context) error {
	path := "/coins"
	if c.Bool("csv") {
		path = "/coins/csv"
	}

	query := url.Values{}

	for _, ph := range c.StringSlice("puzzle-hash") {
		query.Add("puzzle_hash", ph)
	}

	if c.Bool("unspent") {
		query.Set("unspent", "true")
	}

	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	body, err := get(c, path)
	if err != nil {
		return err
	}

	if c.Bool("csv") {
		fmt.Print(string(body))
		return nil
	}

	return printJSON(body)
}

func coinAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: walletcli coin <coin-id>", 1)
	}

	return getAndPrint(c, "/coin/"+c.Args().First())
}

func interestsAction(c *cli.Context) error {
	return getAndPrint(c, "/interests")
}

func watchAction(c *cli.Context) error {
	puzzleHashes := c.StringSlice("puzzle-hash")
	coinIDs := c.StringSlice("coin-id")

	if len(puzzleHashes) == 0 && len(coinIDs) == 0 {
		return cli.Exit("nothing to watch: pass --puzzle-hash or --coin-id", 1)
	}

	payload, err := json.Marshal(map[string][]string{
		"puzzle_hashes": puzzleHashes,
		"coin_ids":      coinIDs,
	})
	if err != nil {
		return err
	}

	body, err := post(c, "/interests", payload)
	if err != nil {
		return err
	}

	return printJSON(body)
}

func peersAction(c *cli.Context) error {
	return getAndPrint(c, "/peers")
}

func bannedAction(c *cli.Context) error {
	return getAndPrint(c, "/peers/banned")
}

func resyncAction(c *cli.Context) error {
	body, err := post(c, "/resync", nil)
	if err != nil {
		return err
	}

	return printJSON(body)
}

func getAndPrint(c *cli.Context, path string) error {
	body, err := get(c, path)
	if err != nil {
		return err
	}

	return printJSON(body)
}

func get(c *cli.Context, path string) ([]byte, error) {
	return do(c, http.MethodGet, path, nil)
}

func post(c *cli.Context, path string, payload []byte) ([]byte, error) {
	return do(c, http.MethodPost, path, payload)
}

func do(c *cli.Context, method, path string, payload []byte) ([]byte, error) {
	base := strings.TrimRight(c.String("api-url"), "/")

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(c.Context, method, base+path, reqBody)
	if err != nil {
		return nil, err
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: c.Duration("timeout")}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func printJSON(body []byte) error {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Println(string(body))
		return nil
	}

	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return nil
	}

	fmt.Println(string(pretty))

	return nil
}

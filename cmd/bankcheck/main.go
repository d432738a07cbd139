// Command bankcheck validates soundbank manifest files before they are
// dropped into the server's soundbank directory. It checks structure,
// instrument name uniqueness, non-empty sound pools, and color format,
// and exits non-zero if any manifest fails.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/bandloop/bandloop/soundbank"
)

func main() {
	cmd := &cli.Command{
		Name:      "bankcheck",
		Usage:     "validate soundbank manifest files",
		ArgsUsage: "<manifest.json> [<manifest.json> ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only print failing manifests",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return cli.Exit("no manifest files given", 2)
			}

			failed := 0
			for _, path := range paths {
				if err := checkManifest(path); err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
					continue
				}
				if !cmd.Bool("quiet") {
					fmt.Printf("OK   %s\n", path)
				}
			}

			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d manifests failed", failed, len(paths)), 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func checkManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var bank soundbank.Bank
	if err := json.Unmarshal(data, &bank); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return soundbank.ValidateBank(&bank)
}

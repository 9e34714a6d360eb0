package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eosnow-bet/dice/internal/config"
	"github.com/eosnow-bet/dice/internal/engine"
	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/kvstore"
)

// dumpCmd inspects the persisted game state without touching NATS.
func dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [status|bets|high|rare|jackpots|day|month]",
		Short: "Print persisted game state as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			kv, err := kvstore.New(kvstore.Options{
				Type:      kvstore.StoreType(cfg.Store.Type),
				Directory: cfg.Store.Directory,
				Prefix:    cfg.Store.Prefix,
			})
			if err != nil {
				return err
			}
			store := gamestore.New(kv)
			defer store.Close()

			eng := engine.New(engine.Deps{Store: store, Game: cfg.Game})

			what := "status"
			if len(args) == 1 {
				what = args[0]
			}

			var out any
			switch what {
			case "status":
				out, err = eng.Status()
			case "bets":
				out, err = eng.History(gamestore.LedgerAll)
			case "high":
				out, err = eng.History(gamestore.LedgerHigh)
			case "rare":
				out, err = eng.History(gamestore.LedgerRare)
			case "jackpots":
				out, err = eng.Jackpots()
			case "day":
				out, err = eng.Board(types.BoardDay)
			case "month":
				out, err = eng.Board(types.BoardMonth)
			default:
				return fmt.Errorf("unknown dump target %q", what)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "ffarm/internal/cli"
	"ffarm/internal/config"
	"ffarm/internal/farm"
)

const requestTimeout = 30 * time.Second

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	token := cfg.GatewayToken

	root := &cobra.Command{
		Use:          "ffarm",
		Short:        "Farm from your terminal",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "farm API base URL")
	root.PersistentFlags().StringVar(&token, "token", token, "gateway bearer token")

	newClient := func() *cl.Client {
		return cl.NewClient(strings.TrimSpace(apiBase), strings.TrimSpace(token))
	}

	root.AddCommand(
		newRegisterCmd(newClient),
		newStatusCmd(newClient),
		newPlantsCmd(newClient),
		newPlantCmd(newClient),
		newHarvestCmd(newClient),
		newUpgradesCmd(newClient),
		newManagerCmd(newClient),
		newAutoPlantCmd(newClient),
		newLeaderboardCmd(newClient),
		newLedgerCmd(newClient),
		newAnnounceCmd(newClient),
		newLogoutCmd(),
	)

	if err := root.Execute(); err != nil {
		printError(fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}

type clientFactory func() *cl.Client

func requireSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, err
	}
	return sess, nil
}

func parseID(label, raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", label, raw)
	}
	return v, nil
}

func newRegisterCmd(newClient clientFactory) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "register <chat-id>",
		Short: "Create or reconnect to your farm account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID := ""
			if len(args) == 1 {
				chatID = args[0]
			} else {
				var err error
				if chatID, err = promptRequired("Chat id"); err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			reg, err := newClient().Register(ctx, chatID, username)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccountID: reg.Account.ID,
				ChatID:    reg.Account.ChatID,
				Username:  reg.Account.Username,
			}); err != nil {
				return err
			}
			if reg.Created {
				printSuccess(fmt.Sprintf("Welcome to the farm! Account %d created.", reg.Account.ID))
			} else {
				printInfo(fmt.Sprintf("Welcome back. Using account %d.", reg.Account.ID))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name")
	return cmd
}

func newStatusCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show balance, plot usage and growing crops",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			status, err := newClient().Status(ctx, sess.AccountID)
			if err != nil {
				return err
			}
			renderStatus(status)
			return nil
		},
	}
}

func newPlantsCmd(newClient clientFactory) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "plants",
		Short: "List plants you can sow",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			plants, err := newClient().PlantingOptions(ctx, sess.AccountID, category)
			if err != nil {
				return err
			}
			renderPlants(plants)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list one category")
	return cmd
}

func newPlantCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "plant <plant-id> [quantity|max]",
		Short: "Buy seeds and plant them",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			plantID, err := parseID("plant id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			client := newClient()

			quantity := ""
			if len(args) == 2 {
				quantity = args[1]
			} else {
				limits, err := client.MaxPlantable(ctx, sess.AccountID, plantID)
				if err != nil {
					return err
				}
				printInfo(fmt.Sprintf("You can afford %s and have room for %s.", comma(limits.ByBalance), comma(limits.BySlots)))
				if quantity, err = promptRequired("Quantity (or max)"); err != nil {
					return err
				}
			}
			if _, _, err := farm.ParseQuantity(quantity); err != nil {
				return err
			}
			res, err := client.Plant(ctx, sess.AccountID, plantID, quantity)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Planted %s for %s. Balance: %s.", comma(res.Batch.Quantity), comma(res.Cost), comma(res.Balance)))
			return nil
		},
	}
}

func newHarvestCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Sell every ready crop",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			res, err := newClient().Harvest(ctx, sess.AccountID)
			if err != nil {
				return err
			}
			renderHarvest(res)
			return nil
		},
	}
}

func newUpgradesCmd(newClient clientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrades",
		Short: "Browse and buy upgrades",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "next <plot|manager>",
			Short: "Show the next upgrade in a category",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := requireSession()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				defer cancel()
				offer, err := newClient().NextUpgrade(ctx, sess.AccountID, strings.ToLower(args[0]))
				var apiErr *cl.APIError
				if errors.As(err, &apiErr) && apiErr.Message == farm.ErrMaxTier.Error() {
					printInfo("You already own the highest level.")
					return nil
				}
				if err != nil {
					return err
				}
				renderOffer(offer)
				return nil
			},
		},
		&cobra.Command{
			Use:   "crops",
			Short: "List crop unlocks",
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := requireSession()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				defer cancel()
				unlocks, err := newClient().CropUnlocks(ctx, sess.AccountID)
				if err != nil {
					return err
				}
				renderCropUnlocks(unlocks)
				return nil
			},
		},
		&cobra.Command{
			Use:   "buy <upgrade-id>",
			Short: "Buy an upgrade",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := requireSession()
				if err != nil {
					return err
				}
				upgradeID, err := parseID("upgrade id", args[0])
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				defer cancel()
				res, err := newClient().BuyUpgrade(ctx, sess.AccountID, upgradeID)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Bought %s level %d. Balance: %s.", res.Upgrade.Category, res.Upgrade.Level, comma(res.Balance)))
				return nil
			},
		},
	)
	return cmd
}

func newManagerCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:       "manager <on|off>",
		Short:     "Toggle automatic harvesting",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			var on bool
			switch strings.ToLower(args[0]) {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			acct, err := newClient().SetManager(ctx, sess.AccountID, on)
			if err != nil {
				return err
			}
			if acct.ManagerOn {
				printSuccess("Your manager will harvest and replant for you.")
			} else {
				printWarn("Manager is off. Harvest by hand.")
			}
			return nil
		},
	}
}

func newAutoPlantCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "autoplant [plant-id]",
		Short: "Show or set what your manager replants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			client := newClient()
			if len(args) == 0 {
				pref, err := client.AutoPlant(ctx, sess.AccountID)
				if err != nil {
					return err
				}
				printInfo(fmt.Sprintf("Auto-planting plant %d.", pref.PlantID))
				return nil
			}
			plantID, err := parseID("plant id", args[0])
			if err != nil {
				return err
			}
			if _, err := client.SetAutoPlant(ctx, sess.AccountID, plantID); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Auto-planting set to plant %d.", plantID))
			return nil
		},
	}
}

func newLeaderboardCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the richest farmers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			rows, err := newClient().Leaderboard(ctx)
			if err != nil {
				return err
			}
			renderLeaderboard(rows)
			return nil
		},
	}
}

func newLedgerCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Show your transaction history",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			entries, err := newClient().Ledger(ctx, sess.AccountID)
			if err != nil {
				return err
			}
			renderLedger(entries)
			return nil
		},
	}
}

func newAnnounceCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "announce <message>",
		Short: "Broadcast a message to every farmer (admins only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			delivered, err := newClient().Announce(ctx, sess.AccountID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Announcement delivered to %d farmers.", delivered))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Session cleared.")
			return nil
		},
	}
}

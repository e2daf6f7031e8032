package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/caritasnetwork/Caritas/aeswrapper"
	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/client"
	"github.com/caritasnetwork/Caritas/configuration"
	"github.com/caritasnetwork/Caritas/fileoperations"
	"github.com/caritasnetwork/Caritas/logging"
	"github.com/caritasnetwork/Caritas/logo"
	"github.com/caritasnetwork/Caritas/orchestrator"
	"github.com/caritasnetwork/Caritas/stdoutwriter"
	"github.com/caritasnetwork/Caritas/wallet"
)

const usage = `Client CLI acts on charitable fundraising campaigns living on the remote ledger.
Wallet has cryptographic capabilities and uses GOB encoded and AES encrypted wallet.`

func main() {
	logo.Display()

	var file string
	configurator := func() (configuration.Configuration, error) {
		if file == "" {
			return configuration.Configuration{}, errors.New("please specify configuration file path with -c <path to file>")
		}

		cfg, err := configuration.Read(file)
		if err != nil {
			return cfg, err
		}

		return cfg, nil
	}

	var (
		title       string
		description string
		beneficiary string
		newOwner    string
		campaignID  uint64
		amount      uint64
		days        uint64
		fee         uint64
		poverty     bool
	)

	campaignIDFlag := &cli.Uint64Flag{
		Name:        "id",
		Usage:       "Campaign `ID` as assigned by the ledger",
		Destination: &campaignID,
		Required:    true,
	}

	app := &cli.App{
		Name:  "client",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &file,
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "new-wallet",
				Aliases: []string{"n"},
				Usage:   "Creates a new wallet and saves it to an encrypted GOBINARY file.",
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					keeper := client.NewWalletKeeper(fileoperations.New(cfg.FileOperator, aeswrapper.New()), wallet.New)
					if err := keeper.NewWallet(); err != nil {
						return err
					}
					if err := keeper.SaveWalletToFile(); err != nil {
						return err
					}
					pterm.Info.Printf("Wallet with address [ %s ] saved.\n", keeper.Address())
					keeper.FlushWalletFromMemory()
					return nil
				},
			},
			{
				Name:    "create",
				Aliases: []string{"cr"},
				Usage:   "Creates a new fundraising campaign on the ledger.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Campaign `TITLE`", Destination: &title, Required: true},
					&cli.StringFlag{Name: "description", Usage: "Campaign `DESCRIPTION`", Destination: &description, Required: true},
					&cli.StringFlag{Name: "beneficiary", Usage: "Beneficiary `ADDRESS` receiving the payout", Destination: &beneficiary, Required: true},
					&cli.Uint64Flag{Name: "target", Usage: "Target `AMOUNT` in the smallest currency unit", Destination: &amount, Required: true},
					&cli.Uint64Flag{Name: "days", Usage: "Campaign duration in `DAYS`", Destination: &days, Required: true},
					&cli.BoolFlag{Name: "poverty", Usage: "Mark the campaign as poverty alleviation instead of disaster relief", Destination: &poverty},
				},
				Action: func(_ *cli.Context) error {
					t := campaign.DisasterRelief
					if poverty {
						t = campaign.PovertyAlleviation
					}
					return act(configurator, func(ctx context.Context, c *client.Client) (orchestrator.Handle, error) {
						return c.CreateCampaign(ctx, title, description, beneficiary, amount, days, t)
					})
				},
			},
			{
				Name:    "donate",
				Aliases: []string{"d"},
				Usage:   "Donates the given amount to a campaign.",
				Flags: []cli.Flag{
					campaignIDFlag,
					&cli.Uint64Flag{Name: "amount", Usage: "Donation `AMOUNT` in the smallest currency unit", Destination: &amount, Required: true},
				},
				Action: func(_ *cli.Context) error {
					return act(configurator, func(ctx context.Context, c *client.Client) (orchestrator.Handle, error) {
						return c.Donate(ctx, campaignID, amount)
					})
				},
			},
			{
				Name:    "withdraw",
				Aliases: []string{"w"},
				Usage:   "Withdraws funds of a completed campaign to the beneficiary.",
				Flags:   []cli.Flag{campaignIDFlag},
				Action: func(_ *cli.Context) error {
					return act(configurator, func(ctx context.Context, c *client.Client) (orchestrator.Handle, error) {
						return c.WithdrawFunds(ctx, campaignID)
					})
				},
			},
			{
				Name:    "refund",
				Aliases: []string{"r"},
				Usage:   "Requests a refund of the wallet's donation to a failed campaign.",
				Flags:   []cli.Flag{campaignIDFlag},
				Action: func(_ *cli.Context) error {
					return act(configurator, func(ctx context.Context, c *client.Client) (orchestrator.Handle, error) {
						return c.RequestRefund(ctx, campaignID)
					})
				},
			},
			{
				Name:  "cancel",
				Usage: "Cancels an active campaign created by the wallet.",
				Flags: []cli.Flag{campaignIDFlag},
				Action: func(_ *cli.Context) error {
					return act(configurator, func(ctx context.Context, c *client.Client) (orchestrator.Handle, error) {
						return c.CancelCampaign(ctx, campaignID)
					})
				},
			},
			{
				Name:  "check-status",
				Usage: "Asks the ledger to recompute and persist the campaign status.",
				Flags: []cli.Flag{campaignIDFlag},
				Action: func(_ *cli.Context) error {
					return act(configurator, func(ctx context.Context, c *client.Client) (orchestrator.Handle, error) {
						return c.CheckStatus(ctx, campaignID)
					})
				},
			},
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "Lists all campaigns known to the ledger.",
				Action: func(_ *cli.Context) error {
					return read(configurator, listCampaigns)
				},
			},
			{
				Name:  "donations",
				Usage: "Lists the wallet's confirmed donations.",
				Action: func(_ *cli.Context) error {
					return read(configurator, listDonations)
				},
			},
			{
				Name:  "platform",
				Usage: "Shows the contract balance, the platform fee and whether the wallet owns the platform.",
				Action: func(_ *cli.Context) error {
					return read(configurator, showPlatform)
				},
			},
			{
				Name:  "update-fee",
				Usage: "Updates the platform fee percentage, platform owner only.",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "fee", Usage: "Fee `PERCENTAGE`, at most 10", Destination: &fee, Required: true},
				},
				Action: func(_ *cli.Context) error {
					return act(configurator, func(ctx context.Context, c *client.Client) (orchestrator.Handle, error) {
						return c.UpdatePlatformFee(ctx, fee)
					})
				},
			},
			{
				Name:  "transfer-ownership",
				Usage: "Transfers platform ownership, platform owner only.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "new-owner", Usage: "New owner `ADDRESS`", Destination: &newOwner, Required: true},
				},
				Action: func(_ *cli.Context) error {
					return act(configurator, func(ctx context.Context, c *client.Client) (orchestrator.Handle, error) {
						return c.TransferOwnership(ctx, newOwner)
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
	}
}

func setup(ctx context.Context, cfg configuration.Configuration) (*client.Client, error) {
	callbackOnErr := func(err error) {
		fmt.Println("error with logger: ", err)
	}

	log := logging.New(callbackOnErr, stdoutwriter.Logger{})

	fo := fileoperations.New(cfg.FileOperator, aeswrapper.New())
	keeper := client.NewWalletKeeper(fo, wallet.New)
	if err := keeper.ReadWalletFromFile(); err != nil {
		return nil, errors.Join(errors.New("cannot read the wallet, create one with the new-wallet command"), err)
	}

	c, err := client.NewClient(ctx, cfg.Ledger, cfg.Orchestrator, cfg.Registry, keeper, fo, log)
	if err != nil {
		return nil, err
	}

	if err := c.SyncCampaigns(ctx); err != nil {
		pterm.Warning.Printf("Campaign sync incomplete, %s\n", err)
	}

	if cfg.Nats.Address != "" {
		if err := c.ConnectEventStream(ctx, cfg.Nats); err != nil {
			pterm.Warning.Printf("Event stream unavailable, %s\n", err)
		}
	}

	return c, nil
}

// act runs a single mutating operation and waits for its terminal state.
func act(
	configurator func() (configuration.Configuration, error),
	operation func(ctx context.Context, c *client.Client) (orchestrator.Handle, error),
) error {
	cfg, err := configurator()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.SaveCampaignStore(); err != nil {
			pterm.Warning.Printf("Campaign store not saved, %s\n", err)
		}
		if err := c.Close(); err != nil {
			pterm.Warning.Println(err.Error())
		}
	}()

	handle, err := operation(ctx, c)
	if err != nil {
		return err
	}
	pterm.Info.Printf("Transaction [ %s ] submitted, awaiting confirmation.\n", handle.TxID)

	req, err := c.Await(ctx, handle.ActionKey)
	if err != nil {
		return err
	}

	switch req.State {
	case orchestrator.StateConfirmed:
		if req.CampaignID != 0 {
			pterm.Info.Printf("Transaction confirmed for campaign [ %d ].\n", req.CampaignID)
			return nil
		}
		pterm.Info.Println("Transaction confirmed.")
	case orchestrator.StateReverted:
		return fmt.Errorf("transaction reverted by the ledger, %s", req.RevertReason)
	case orchestrator.StateTimedOut:
		c.Acknowledge(handle.ActionKey)
		return fmt.Errorf("transaction [ %s ] is not confirmed yet, its outcome is unknown", handle.TxID)
	}
	return nil
}

// read runs a read only operation against the synced client.
func read(
	configurator func() (configuration.Configuration, error),
	operation func(ctx context.Context, c *client.Client) error,
) error {
	cfg, err := configurator()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			pterm.Warning.Println(err.Error())
		}
	}()

	return operation(ctx, c)
}

func listCampaigns(_ context.Context, c *client.Client) error {
	campaigns := c.ListCampaigns()
	if len(campaigns) == 0 {
		pterm.Info.Println("No campaigns found.")
		return nil
	}

	rows := pterm.TableData{{"ID", "Title", "Type", "Status", "Raised", "Target", "Deadline"}}
	for _, cm := range campaigns {
		rows = append(rows, []string{
			fmt.Sprintf("%d", cm.ID),
			cm.Title,
			cm.Type.String(),
			cm.Status.String(),
			fmt.Sprintf("%d", cm.RaisedAmount),
			fmt.Sprintf("%d", cm.TargetAmount),
			time.Unix(cm.Deadline, 0).Format(time.RFC822),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func showPlatform(ctx context.Context, c *client.Client) error {
	balance, err := c.ContractBalance(ctx)
	if err != nil {
		return err
	}
	fee, err := c.PlatformFeePercentage(ctx)
	if err != nil {
		return err
	}
	owner, err := c.IsOwner(ctx)
	if err != nil {
		return err
	}

	rows := pterm.TableData{
		{"Contract balance", fmt.Sprintf("%d", balance)},
		{"Platform fee", fmt.Sprintf("%d%%", fee)},
		{"Wallet owns the platform", fmt.Sprintf("%t", owner)},
	}
	return pterm.DefaultTable.WithData(rows).Render()
}

func listDonations(ctx context.Context, c *client.Client) error {
	if err := c.RebuildDonations(ctx); err != nil {
		return err
	}

	records := c.MyDonations()
	if len(records) == 0 {
		pterm.Info.Println("No confirmed donations found.")
		return nil
	}

	rows := pterm.TableData{{"Campaign ID", "Amount", "Refundable"}}
	for _, r := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.CampaignID),
			fmt.Sprintf("%d", r.Amount),
			fmt.Sprintf("%t", c.EligibleForRefund(r.CampaignID)),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

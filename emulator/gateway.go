package emulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pterm/pterm"

	"github.com/caritasnetwork/Caritas/ledger"
	"github.com/caritasnetwork/Caritas/wallet"
)

// RunGateway runs the ledger gateway emulator REST API backed by the in
// memory contract. To stop the gateway cancel the context.
func RunGateway(ctx context.Context, cancel context.CancelFunc, cfg Config, pub EventPublisher) error {
	defer cancel()

	if cfg.TimeoutSeconds < 1 || cfg.TimeoutSeconds > 20 {
		return fmt.Errorf("wrong timeout_seconds parameter, expected value between 1 and 20 inclusive")
	}
	if cfg.FinalityMillis < 0 {
		return fmt.Errorf("wrong finality_millis parameter, expected a non negative value")
	}

	g := gateway{contract: newContract(cfg, wallet.NewVerifier(), pub)}

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   time.Second * time.Duration(cfg.TimeoutSeconds),
		WriteTimeout:  time.Second * time.Duration(cfg.TimeoutSeconds),
		ServerHeader:  ledger.Header,
		AppName:       ledger.ApiVersion,
		Concurrency:   16,
	})

	router.Use(recover.New())
	g.route(router)

	var err error
	go func() {
		err = router.Listen(fmt.Sprintf("0.0.0.0:%v", cfg.Port))
		if err != nil {
			cancel()
		}
	}()

	pterm.Info.Printf("Ledger gateway emulator is listening on port [ %s ]\n", cfg.Port)

	<-ctx.Done()

	if er := router.Shutdown(); er != nil {
		err = errors.Join(err, er)
	}
	return err
}

type gateway struct {
	contract *contract
}

// NewGatewayApp creates the gateway REST application without starting a
// listener, used by tests to exercise the API in process.
func NewGatewayApp(cfg Config, pub EventPublisher) *fiber.App {
	g := gateway{contract: newContract(cfg, wallet.NewVerifier(), pub)}
	router := fiber.New(fiber.Config{CaseSensitive: true, StrictRouting: true})
	router.Use(recover.New())
	g.route(router)
	return router
}

func (g *gateway) route(router *fiber.App) {
	router.Get(ledger.AliveURL, g.alive)
	router.Post(ledger.SubmitURL, g.submit)
	router.Post(ledger.ReceiptURL, g.receipt)
	router.Post(ledger.CampaignInfoURL, g.campaignInfo)
	router.Post(ledger.DonationAmountURL, g.donationAmount)
	router.Get(ledger.TotalCampaignsURL, g.totalCampaigns)
	router.Get(ledger.ContractBalanceURL, g.contractBalance)
	router.Get(ledger.PlatformFeeURL, g.platformFee)
	router.Get(ledger.OwnerURL, g.owner)
}

func (g *gateway) alive(ctx *fiber.Ctx) error {
	return ctx.JSON(ledger.AliveResponse{
		Alive:      true,
		APIVersion: ledger.ApiVersion,
		APIHeader:  ledger.Header,
	})
}

func (g *gateway) submit(ctx *fiber.Ctx) error {
	var e ledger.Envelope
	if err := ctx.BodyParser(&e); err != nil {
		return ctx.JSON(ledger.SubmitResponse{Err: "malformed envelope"})
	}

	txID, err := g.contract.submit(e)
	if err != nil {
		return ctx.JSON(ledger.SubmitResponse{Err: err.Error()})
	}
	return ctx.JSON(ledger.SubmitResponse{Success: true, TxID: txID})
}

func (g *gateway) receipt(ctx *fiber.Ctx) error {
	var req ledger.ReceiptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.JSON(ledger.ReceiptResponse{Err: "malformed request"})
	}

	receipt, ok := g.contract.receipt(req.TxID)
	if !ok {
		return ctx.JSON(ledger.ReceiptResponse{Err: "transaction not found"})
	}
	return ctx.JSON(ledger.ReceiptResponse{Success: true, Receipt: receipt})
}

func (g *gateway) campaignInfo(ctx *fiber.Ctx) error {
	var req ledger.CampaignInfoRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.JSON(ledger.CampaignInfoResponse{Err: "malformed request"})
	}

	cm, ok := g.contract.campaignInfo(req.CampaignID)
	if !ok {
		return ctx.JSON(ledger.CampaignInfoResponse{Err: reasonNotFound})
	}
	return ctx.JSON(ledger.CampaignInfoResponse{Success: true, Campaign: cm})
}

func (g *gateway) donationAmount(ctx *fiber.Ctx) error {
	var req ledger.DonationAmountRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.JSON(ledger.DonationAmountResponse{Err: "malformed request"})
	}

	amount, ok := g.contract.donationAmount(req.CampaignID, req.Donor)
	if !ok {
		return ctx.JSON(ledger.DonationAmountResponse{Err: reasonNotFound})
	}
	return ctx.JSON(ledger.DonationAmountResponse{Success: true, Amount: amount})
}

func (g *gateway) totalCampaigns(ctx *fiber.Ctx) error {
	total, _, _, _ := g.contract.totals()
	return ctx.JSON(ledger.CountResponse{Success: true, Count: total})
}

func (g *gateway) contractBalance(ctx *fiber.Ctx) error {
	_, balance, _, _ := g.contract.totals()
	return ctx.JSON(ledger.CountResponse{Success: true, Count: balance})
}

func (g *gateway) platformFee(ctx *fiber.Ctx) error {
	_, _, feePct, _ := g.contract.totals()
	return ctx.JSON(ledger.CountResponse{Success: true, Count: feePct})
}

func (g *gateway) owner(ctx *fiber.Ctx) error {
	_, _, _, owner := g.contract.totals()
	return ctx.JSON(ledger.OwnerResponse{Success: true, Owner: owner})
}

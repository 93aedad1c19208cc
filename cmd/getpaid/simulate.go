package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "getpaid-p24/internal/api/http"
	"getpaid-p24/internal/config"
	"getpaid-p24/internal/domain"
	"getpaid-p24/internal/infrastructure/przelewy24"
	"getpaid-p24/internal/logging"
	"getpaid-p24/internal/repo/memory"
	"getpaid-p24/internal/repo/processed"
	"getpaid-p24/internal/service"
	"getpaid-p24/internal/worker"
)

type simulateOptions struct {
	payments int
	lag      time.Duration
	logLevel string
}

func simulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run checkouts against an in-process Przelewy24 sandbox",
		Long: `Start the service with in-memory storage next to a local Przelewy24 sandbox,
push a batch of payments through checkout and the hosted page, and print the
status each payment settles in once every notification has been reconciled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.payments, "payments", "n", 20, "number of payments to simulate")
	cmd.Flags().DurationVar(&opts.lag, "lag", 2*time.Second, "delay of late notifications")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug/info/warn/error)")
	return cmd
}

func runSimulation(ctx context.Context, out io.Writer, opts simulateOptions) error {
	logger, err := logging.New(logging.Config{ServiceName: "getpaid-simulate", Env: config.EnvLocal, Level: opts.logLevel})
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	const crc = "simulator-crc"

	sandbox := przelewy24.NewSandbox(crc, logger)
	sandbox.LagDelay = opts.lag
	sandboxSrv := httptest.NewServer(sandbox.Handler())
	defer sandboxSrv.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	gwCfg := config.Gateway{
		MerchantID:  "10000",
		PosID:       "10000",
		CRC:         crc,
		APIVersion:  "3.2",
		Lang:        "pl",
		AllowedIPs:  []string{"127.0.0.1"},
		SiteDomain:  ln.Addr().String(),
		Backend:     "przelewy24",
		HTTPTimeout: 5 * time.Second,
		BaseURL:     sandboxSrv.URL + "/",
	}

	orders := memory.NewOrderRepo()
	payments := memory.NewPaymentRepo()
	gateway := przelewy24.NewPaymentGateway(gwCfg, service.OrderCustomerData(), logger)
	reconciler := worker.NewPaymentReconciler(payments, gateway, processed.NewMemoryStore(), time.Hour, logger)
	pool := worker.NewPool(reconciler, 4, 64, logger)

	poolCtx, stopPool := context.WithCancel(ctx)
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(poolCtx)
	}()

	paymentService := service.NewPaymentService(orders, payments, gateway, gwCfg.Backend, logger)
	notifications := service.NewNotificationService(gwCfg, pool, logger)
	router, err := httpapi.NewRouter(httpapi.NewHandler(paymentService, notifications, logger), httpapi.RouterConfig{}, logger)
	if err != nil {
		_ = ln.Close()
		stopPool()
		<-poolDone
		return err
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("simulator server failed", zap.Error(err))
		}
	}()

	fmt.Fprintf(out, "--- STARTING SIMULATION (%d PAYMENTS) ---\n", opts.payments)
	for i := 0; i < opts.payments; i++ {
		order, err := paymentService.CreateOrder(ctx, domain.Order{
			Description: fmt.Sprintf("Simulated order #%d", i+1),
			BuyerEmail:  fmt.Sprintf("buyer%d@example.com", i+1),
			BuyerName:   "Jan Kowalski",
			BuyerCity:   "Warszawa",
			Language:    "pl",
		})
		if err != nil {
			fmt.Fprintf(out, "[%d] create order failed: %v\n", i+1, err)
			continue
		}

		amount := decimal.NewFromInt(int64(rand.IntN(100000) + 100)).Shift(-2)
		payment, err := paymentService.CreatePayment(ctx, order.ID, amount, "PLN")
		if err != nil {
			fmt.Fprintf(out, "[%d] create payment failed: %v\n", i+1, err)
			continue
		}

		fmt.Fprintf(out, "[%d] payment %s (%s PLN) ... ", i+1, payment.ID, amount.StringFixed(2))
		reg, err := paymentService.Checkout(ctx, payment.ID)
		if err != nil {
			fmt.Fprintf(out, "CHECKOUT FAILED: %v\n", err)
			continue
		}
		if reg.Outcome != przelewy24.RegistrationAccepted {
			fmt.Fprintf(out, "REGISTRATION %s\n", strings.ToUpper(reg.Outcome.String()))
			continue
		}

		outcome, err := sandbox.Pay(ctx, strings.TrimPrefix(reg.URL, gwCfg.RequestURL()))
		if err != nil {
			fmt.Fprintf(out, "HOSTED PAGE FAILED: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "%s\n", outcome)
	}

	fmt.Fprintln(out, "--- WAITING FOR NOTIFICATIONS ---")
	sandbox.Wait()
	stopPool()
	<-poolDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("simulator server shutdown", zap.Error(err))
	}

	counts := make(map[domain.PaymentStatus]int)
	for _, p := range payments.All() {
		counts[p.Status]++
	}
	fmt.Fprintln(out, "--- FINAL LEDGER ---")
	for _, status := range []domain.PaymentStatus{
		domain.PaymentNew,
		domain.PaymentInProgress,
		domain.PaymentPartiallyPaid,
		domain.PaymentPaid,
		domain.PaymentFailed,
	} {
		fmt.Fprintf(out, "%-15s %d\n", status, counts[status])
	}
	return nil
}

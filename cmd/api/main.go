package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/suanphol/fruitshop/internal/billing"
	"github.com/suanphol/fruitshop/internal/catalog"
	"github.com/suanphol/fruitshop/internal/cleanup"
	"github.com/suanphol/fruitshop/internal/config"
	"github.com/suanphol/fruitshop/internal/httpx"
	"github.com/suanphol/fruitshop/internal/inventory"
	kafkax "github.com/suanphol/fruitshop/internal/kafka"
	"github.com/suanphol/fruitshop/internal/lifecycle"
	"github.com/suanphol/fruitshop/internal/notify"
	"github.com/suanphol/fruitshop/internal/orders"
	"github.com/suanphol/fruitshop/internal/payments"
	"github.com/suanphol/fruitshop/internal/postgres"
	"github.com/suanphol/fruitshop/internal/redisx"
	"github.com/suanphol/fruitshop/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per lifecycle topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	pPaid.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pCancelled.Start(ctx)

	// Stores
	catalogStore := &catalog.Store{DB: db}
	orderStore := &orders.Store{DB: db}
	invoiceStore := &billing.Store{DB: db}
	slipStore := &payments.SlipStore{DB: db}
	notifyStore := &notify.Store{DB: db}
	userStore := &users.Store{DB: db}

	// Side-effect dispatcher
	dispatcher := notify.NewDispatcher(notifyStore, userStore, 1024)
	dispatcher.Created = pCreated
	dispatcher.Paid = pPaid
	dispatcher.Cancel = pCancelled
	dispatcher.Producer = cfg.ServiceName
	dispatcher.Start(ctx)

	// Lifecycle controller
	svc := &lifecycle.Service{
		DB:       db,
		Catalog:  catalogStore,
		Orders:   orderStore,
		Ledger:   inventory.Ledger{},
		Invoices: invoiceStore,
		Slips:    slipStore,
		Events:   dispatcher,
	}

	// Expired-pending sweep
	sweeper := &cleanup.Sweeper{
		Lifecycle: svc,
		MaxAge:    cfg.PendingOrderTTL,
		Interval:  cfg.CleanupInterval,
	}
	go sweeper.Run(ctx)

	// HTTP
	var qr payments.QRGenerator
	if cfg.PromptPayPhone != "" {
		qr = payments.PromptPay{PhoneNumber: cfg.PromptPayPhone}
	}
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Lifecycle: svc, Orders: orderStore, QR: qr, Redis: rdb}).Register(router)
	(&httpx.CatalogHandler{Store: catalogStore}).Register(router)
	(&httpx.InvoicesHandler{Invoices: invoiceStore, Orders: orderStore}).Register(router)
	(&httpx.NotificationsHandler{Store: notifyStore}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	dispatcher.Close()
	dispatcher.WaitClosed()
	pCreated.Close()
	pPaid.Close()
	pCancelled.Close()
	cancel()
	pCreated.WaitClosed()
	pPaid.WaitClosed()
	pCancelled.WaitClosed()
}

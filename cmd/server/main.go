// Server entrypoint. Wires configuration, storage, the audit pipeline, and
// the three ledgers, then runs the HTTP server until shutdown. Business logic
// lives in the internal service packages; this file only connects them.
//
// With no DATABASE_URL the process runs entirely on in-memory stores, which
// is how local development and the unit suites operate.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	attendancehandler "registra/internal/attendance/handler"
	attendancemetrics "registra/internal/attendance/metrics"
	attendanceservice "registra/internal/attendance/service"
	attendancestore "registra/internal/attendance/store"
	billinghandler "registra/internal/billing/handler"
	billingmetrics "registra/internal/billing/metrics"
	billingservice "registra/internal/billing/service"
	billingstore "registra/internal/billing/store"
	classhandler "registra/internal/class/handler"
	classservice "registra/internal/class/service"
	classstore "registra/internal/class/store"
	enrollmenthandler "registra/internal/enrollment/handler"
	enrollmentmetrics "registra/internal/enrollment/metrics"
	enrollmentservice "registra/internal/enrollment/service"
	enrollmentstore "registra/internal/enrollment/store"
	"registra/internal/identity"
	"registra/internal/platform/config"
	"registra/internal/platform/httpserver"
	"registra/internal/platform/logger"
	platformmetrics "registra/internal/platform/metrics"
	"registra/internal/platform/postgres"
	"registra/internal/platform/ratelimit"
	platformredis "registra/internal/platform/redis"
	studenthandler "registra/internal/student/handler"
	studentservice "registra/internal/student/service"
	studentstore "registra/internal/student/store"
	httptransport "registra/internal/transport/http"
	"registra/migrations"
	audit "registra/pkg/platform/audit"
	auditkafka "registra/pkg/platform/audit/kafka"
	auditpublisher "registra/pkg/platform/audit/publisher"
	auditmemory "registra/pkg/platform/audit/store/memory"
	auditpostgres "registra/pkg/platform/audit/store/postgres"
	auditworker "registra/pkg/platform/audit/worker"
	"registra/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := migrations.Apply(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("no DATABASE_URL configured, running on in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline. With Postgres the publisher appends to the outbox table
	// and a worker drains it to Kafka; without, events stay in memory.
	var (
		auditStore  audit.Store
		outboxStore *auditpostgres.Store
	)
	if db != nil {
		outboxStore = auditpostgres.New(db)
		auditStore = outboxStore
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	publisher := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithLogger(log),
		auditpublisher.WithAsyncBuffer(1024),
	)
	defer publisher.Close()

	// Stores. Each ledger gets the Postgres implementation when a database is
	// configured and the in-memory twin otherwise.
	var (
		students    studentstore.Store    = studentstore.NewInMemoryStore()
		classes     classstore.Store      = classstore.NewInMemoryStore()
		enrollments enrollmentstore.Store = enrollmentstore.NewInMemoryStore()
		attendance  attendancestore.Store = attendancestore.NewInMemoryStore()

		invoices  billingstore.InvoiceStore  = billingstore.NewInMemoryInvoiceStore()
		payments  billingstore.PaymentStore  = billingstore.NewInMemoryPaymentStore()
		sequences billingstore.SequenceStore = billingstore.NewInMemorySequenceStore()
	)
	var runner tx.Runner = tx.NewMemoryRunner(enrollments, attendance, invoices, payments)
	if db != nil {
		students = studentstore.NewPostgres(db)
		classes = classstore.NewPostgres(db)
		enrollments = enrollmentstore.NewPostgres(db)
		attendance = attendancestore.NewPostgres(db)
		invoices = billingstore.NewPostgresInvoices(db)
		payments = billingstore.NewPostgresPayments(db)
		sequences = billingstore.NewPostgresSequences(db)
		runner = tx.NewSQLRunner(db)
	}
	if redisClient != nil {
		sequences = billingstore.NewRedisSequences(redisClient.Client)
	}

	// Services.
	studentSvc := studentservice.New(students,
		studentservice.WithLogger(log),
		studentservice.WithAuditPublisher(publisher),
	)
	classSvc := classservice.New(classes,
		classservice.WithLogger(log),
		classservice.WithAuditPublisher(publisher),
	)
	enrollmentSvc := enrollmentservice.New(enrollments, classes, students,
		enrollmentservice.WithLogger(log),
		enrollmentservice.WithAuditPublisher(publisher),
		enrollmentservice.WithMetrics(enrollmentmetrics.New()),
		enrollmentservice.WithTxRunner(runner),
	)
	attendanceSvc := attendanceservice.New(attendance, enrollments, classes, students,
		attendanceservice.WithLogger(log),
		attendanceservice.WithAuditPublisher(publisher),
		attendanceservice.WithMetrics(attendancemetrics.New()),
		attendanceservice.WithTxRunner(runner),
	)
	billingSvc := billingservice.New(invoices, payments, sequences, students,
		billingservice.WithLogger(log),
		billingservice.WithAuditPublisher(publisher),
		billingservice.WithMetrics(billingmetrics.New()),
		billingservice.WithTxRunner(runner),
	)

	verifier := identity.NewVerifier(cfg.JWTSigningKey, "registra")

	// Per-actor request limiting shares the Redis counter across instances
	// when Redis is configured.
	var limitStore ratelimit.Store = ratelimit.NewInMemoryStore()
	if redisClient != nil {
		limitStore = ratelimit.NewRedisStore(redisClient.Client)
	}
	limiter := ratelimit.New(limitStore, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Verifier:    verifier,
		Logger:      log,
		Limiter:     limiter,
		HTTPMetrics: platformmetrics.NewHTTP(),
		Handlers: []httptransport.Registrar{
			studenthandler.New(studentSvc, log),
			classhandler.New(classSvc, log),
			enrollmenthandler.New(enrollmentSvc, log),
			attendancehandler.New(attendanceSvc, log),
			billinghandler.New(billingSvc, log),
		},
		Health: func(r *http.Request) error {
			if db != nil {
				if err := db.PingContext(r.Context()); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(r.Context())
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting registra", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if outboxStore != nil && len(cfg.Kafka.Brokers) > 0 {
		sinkOpts := []auditkafka.Option{}
		if cfg.Kafka.AuditTopic != "" {
			sinkOpts = append(sinkOpts, auditkafka.WithTopic(cfg.Kafka.AuditTopic))
		}
		sink, err := auditkafka.NewSink(ctx, cfg.Kafka.Brokers, sinkOpts...)
		if err != nil {
			log.Error("kafka sink setup failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()

		worker := auditworker.New(outboxStore, sink, log)
		group.Go(func() error {
			return worker.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// The audit worker returns the group context's error on cancellation, so a
	// clean SIGTERM surfaces as context.Canceled here rather than a failure.
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

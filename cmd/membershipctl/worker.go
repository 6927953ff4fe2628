package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/mail"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the mail delivery worker",
	Long:  `Consume queued membership mail and deliver it over SMTP. Without MEMBERSHIP_SMTP_HOST mail is logged instead.`,
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var mailer membership.Mailer = mail.NewLogMailer(a.logger)
	if a.specs.SMTPHost != "" && !a.specs.Debug {
		mailer = mail.NewSMTPMailer(a.specs.SMTP())
	}
	mailer = timeoutMailer(mailer, a.specs.SendTimeout)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := mail.NewWorker(a.specs.Worker(), mailer, a.logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              a.specs.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		a.logger.Info("metrics listening on %s", a.specs.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func timeoutMailer(next membership.Mailer, timeout time.Duration) membership.Mailer {
	if timeout <= 0 {
		return next
	}
	return membership.MailerFunc(func(ctx context.Context, msg membership.Message) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next.Send(ctx, msg)
	})
}

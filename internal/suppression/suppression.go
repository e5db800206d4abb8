// Package suppression mirrors the SES account-level suppression list
// into the local store on a periodic schedule.
package suppression

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"bouncewatch/internal/metrics"
	"bouncewatch/internal/store"
)

// SESClient is the slice of the SESv2 API the syncer needs
type SESClient interface {
	ListSuppressedDestinations(ctx context.Context, params *sesv2.ListSuppressedDestinationsInput, optFns ...func(*sesv2.Options)) (*sesv2.ListSuppressedDestinationsOutput, error)
}

// Config holds the AWS access settings for the SES client
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
}

// NewSESClient builds an SESv2 client from static credentials, falling
// back to the ambient credential chain when no key is configured.
func NewSESClient(ctx context.Context, cfg Config) (*sesv2.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sesv2.NewFromConfig(awsCfg), nil
}

// Syncer periodically replaces the local suppression mirror with the
// account list fetched from SES
type Syncer struct {
	client   SESClient
	store    *store.Store
	interval time.Duration
	logger   *slog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSyncer creates a syncer over an SES client and the local store
func NewSyncer(client SESClient, st *store.Store, interval time.Duration, logger *slog.Logger) *Syncer {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Syncer{
		client:   client,
		store:    st,
		interval: interval,
		logger:   logger.With("component", "suppression"),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic sync loop. The first sync runs
// immediately.
func (s *Syncer) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("suppression sync started", "interval", s.interval)
}

// Stop terminates the sync loop and waits for it to finish
func (s *Syncer) Stop() {
	close(s.done)
	s.wg.Wait()
	s.logger.Info("suppression sync stopped")
}

func (s *Syncer) loop(ctx context.Context) {
	defer s.wg.Done()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Syncer) runOnce(ctx context.Context) {
	count, err := s.Sync(ctx)
	if err != nil {
		s.logger.Error("suppression sync failed", "error", err)
		return
	}
	s.logger.Info("suppression list synced", "entries", count)
}

// Sync fetches the full account suppression list and replaces the
// local mirror. Returns the number of entries mirrored.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	var sups []store.Suppression
	var nextToken *string

	for {
		out, err := s.client.ListSuppressedDestinations(ctx, &sesv2.ListSuppressedDestinationsInput{
			NextToken: nextToken,
		})
		if err != nil {
			if m := metrics.Global(); m != nil {
				m.SuppressionSyncTotal.WithLabelValues("error").Inc()
			}
			return 0, fmt.Errorf("failed to list suppressed destinations: %w", err)
		}

		for _, dest := range out.SuppressedDestinationSummaries {
			sup := store.Suppression{
				Reason:     string(dest.Reason),
				LastUpdate: time.Now(),
			}
			if dest.EmailAddress != nil {
				sup.Email = *dest.EmailAddress
			}
			if dest.LastUpdateTime != nil {
				sup.CreatedAt = *dest.LastUpdateTime
			}
			sups = append(sups, sup)
		}

		nextToken = out.NextToken
		if nextToken == nil {
			break
		}
	}

	if err := s.store.ReplaceSuppressions(ctx, sups); err != nil {
		if m := metrics.Global(); m != nil {
			m.SuppressionSyncTotal.WithLabelValues("error").Inc()
		}
		return 0, fmt.Errorf("failed to replace suppression mirror: %w", err)
	}

	if m := metrics.Global(); m != nil {
		m.SuppressionSyncTotal.WithLabelValues("success").Inc()
		m.SuppressionListSize.Set(float64(len(sups)))
	}
	return len(sups), nil
}

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fraudsight/fraudsight/internal/broker"
	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/model"
	"github.com/fraudsight/fraudsight/internal/service"
)

var (
	seedCategories = []string{"electronics", "grocery", "travel", "jewelry", "crypto", "dining"}
	seedChannels   = []string{"web", "pos", "mobile"}
	seedCurrencies = []string{"USD", "EUR", "GBP"}
)

func seedCmd() *cobra.Command {
	var (
		count int
		users int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish synthetic transaction events to the broker",
		Long: `Generates random transaction events and publishes them to the configured
topic. Mostly small amounts with occasional large outliers, so both the rules
and the model have something to flag.`,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			writer, err := broker.NewWriter(strings.Join(cfg.Broker.Brokers, ","), cfg.Broker.Topic)
			if err != nil {
				return fmt.Errorf("failed to build publisher: %w", err)
			}
			defer func() { _ = writer.Close() }()

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))

			for i := 0; i < count; i++ {
				event := syntheticEvent(rng, users)
				payload, err := json.Marshal(event)
				if err != nil {
					return err
				}

				err = common.WithRetry(c.Context(), func() error {
					return writer.Publish(c.Context(), []byte(event.TransactionID), payload)
				}, service.RetryOptions{MaxAttempts: 5, InitialDelay: 200 * time.Millisecond})
				if err != nil {
					return fmt.Errorf("failed to publish event %d of %d: %w", i+1, count, err)
				}
			}

			slog.Info("Seed complete", "events", count, "topic", cfg.Broker.Topic)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 100, "number of events to publish")
	cmd.Flags().IntVar(&users, "users", 20, "size of the synthetic user pool")

	return cmd
}

func syntheticEvent(rng *rand.Rand, users int) model.InboundEvent {
	// Mostly routine amounts; roughly 1 in 20 is an outlier.
	amount := 20 + rng.Float64()*80
	if rng.Intn(20) == 0 {
		amount = 1500 + rng.Float64()*4000
	}

	return model.InboundEvent{
		TransactionID:    uuid.NewString(),
		UserID:           fmt.Sprintf("user-%03d", rng.Intn(users)),
		Amount:           amount,
		Currency:         seedCurrencies[rng.Intn(len(seedCurrencies))],
		MerchantID:       fmt.Sprintf("m_%04d", rng.Intn(500)),
		MerchantCategory: seedCategories[rng.Intn(len(seedCategories))],
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Channel:          seedChannels[rng.Intn(len(seedChannels))],
		IP:               fmt.Sprintf("203.0.113.%d", rng.Intn(256)),
	}
}

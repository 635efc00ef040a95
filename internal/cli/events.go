package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
)

func newEventsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Watch published domain events",
	}

	var (
		eventType string
		limit     int
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print events of one type as the worker publishes them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := e.broker()
			if err != nil {
				return err
			}

			channel := messaging.Channel(e.opts.Config.Redis.ChannelPrefix, eventType)
			msgs, err := broker.Subscribe(cmd.Context(), channel)
			if err != nil {
				return err
			}

			seen := 0
			for msg := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), string(msg))
				seen++
				if limit > 0 && seen >= limit {
					break
				}
			}
			return nil
		},
	}
	tail.Flags().StringVar(&eventType, "type", "appointment.created", "event type to follow")
	tail.Flags().IntVar(&limit, "limit", 0, "stop after this many events (0 follows forever)")

	cmd.AddCommand(tail)
	return cmd
}

func (e *env) broker() (messaging.Broker, error) {
	if e.opts.Broker != nil {
		return e.opts.Broker, nil
	}
	cfg := e.opts.Config.Redis
	b, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     1,
	}, e.opts.Logger.Zerolog(), nil)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, b.Close)
	return b, nil
}

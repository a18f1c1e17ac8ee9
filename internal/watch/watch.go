// Package watch runs the pipeline on a cron schedule.
package watch

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Service triggers a pipeline run on a standard 5-field cron schedule.
type Service struct {
	cron *cron.Cron
	spec string
	run  func() error
	log  zerolog.Logger
}

func New(spec string, run func() error, log zerolog.Logger) (*Service, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Service{
		cron: cron.New(),
		spec: spec,
		run:  run,
		log:  log.With().Str("component", "watch").Logger(),
	}, nil
}

// Start registers the job and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.log.Info().Msg("scheduled pipeline run starting")
		if err := s.run(); err != nil {
			s.log.Error().Err(err).Msg("scheduled pipeline run failed")
			return
		}
		s.log.Info().Msg("scheduled pipeline run complete")
	})
	if err != nil {
		return fmt.Errorf("register job: %w", err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.spec).Msg("watch started")

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info().Msg("watch stopped")
	return nil
}

package relay

import (
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Season timeout values are stored raw (they arrive as free-form strings
// from the chat command surface). resolveMinutes substitutes the default
// when a value is missing, unparseable, zero or negative; the substitution
// is logged once per resolution and never surfaced to the caller.
func resolveMinutes(raw string, fallback int, field, owner string) time.Duration {
	if raw == "" {
		return time.Duration(fallback) * time.Minute
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		log.Warnf("invalid %s value %q for %s, using default %dm", field, raw, owner, fallback)
		return time.Duration(fallback) * time.Minute
	}
	return time.Duration(value) * time.Minute
}

func (s *Service) claimTimeout(season *Season) time.Duration {
	if season == nil {
		return time.Duration(s.cfg.ClaimTimeoutMinutes) * time.Minute
	}
	return resolveMinutes(season.Config.ClaimTimeout, s.cfg.ClaimTimeoutMinutes, "claim timeout", season.ID)
}

func (s *Service) submissionTimeout(season *Season, turnType string) time.Duration {
	if turnType == turnTypeDrawing {
		if season == nil {
			return time.Duration(s.cfg.DrawingTimeoutMinutes) * time.Minute
		}
		return resolveMinutes(season.Config.DrawingTimeout, s.cfg.DrawingTimeoutMinutes, "drawing timeout", season.ID)
	}
	if season == nil {
		return time.Duration(s.cfg.WritingTimeoutMinutes) * time.Minute
	}
	return resolveMinutes(season.Config.WritingTimeout, s.cfg.WritingTimeoutMinutes, "writing timeout", season.ID)
}

func (s *Service) openWindow(season *Season) time.Duration {
	minutes := s.cfg.SeasonOpenMinutes
	if season != nil && season.Config.OpenMinutes > 0 {
		minutes = season.Config.OpenMinutes
	}
	return time.Duration(minutes) * time.Minute
}

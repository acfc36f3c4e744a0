// Package service implements the ranking timeline: discovery of historically
// relevant operators from sparse checkpoints, metadata resolution,
// reconstruction of per-day ranking frames and their playback. Loading is a
// strict pipeline, every stage consumes the complete output of the previous
// one.
package service

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/console/rendering"
	"operator-console/goutils/datamodel"
	"operator-console/goutils/settings"
	racemodel "operator-console/race/datamodel"
)

type queryAPI interface {
	Query(ctx context.Context, query string, variables map[string]interface{}) (json.RawMessage, error)
}

type Service struct {
	settingsObj *settings.SettingsObj
	graph       queryAPI
	renderer    rendering.Renderer
	player      *Player

	mu    sync.Mutex
	phase racemodel.Phase
}

func InitService(graphClient queryAPI, renderer rendering.Renderer) *Service {
	service := &Service{
		graph:    graphClient,
		renderer: renderer,
		phase:    racemodel.PhaseIdle,
	}

	settingsObj, err := gi.Invoke[*settings.SettingsObj]()
	if err != nil {
		log.WithError(err).Fatal("failed to invoke settings object")
	}

	service.settingsObj = settingsObj

	service.player = NewPlayer(renderer, service.settingsObj.Race.ScaleStepDisplay)

	if err := gi.Inject(service); err != nil {
		log.WithError(err).Fatal("failed to inject race service")
	}

	return service
}

func (s *Service) Phase() racemodel.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

func (s *Service) setPhase(phase racemodel.Phase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()

	log.WithField("phase", phase.String()).Debug("timeline phase change")
}

func (s *Service) Player() *Player {
	return s.player
}

// Load runs the full pipeline and leaves the player positioned on the first
// frame. A reload stops playback and rebuilds everything from scratch.
func (s *Service) Load(ctx context.Context) error {
	s.player.Stop()
	s.setPhase(racemodel.PhaseDiscovering)

	operatorIDs, err := s.discoverOperators(ctx)
	if err != nil {
		s.setPhase(racemodel.PhaseIdle)
		s.renderer.Notify(rendering.LevelError, "Timeline discovery failed: "+err.Error())

		return err
	}

	s.setPhase(racemodel.PhaseFetchingMetadata)

	metaMap, err := s.fetchMetadata(ctx, operatorIDs)
	if err != nil {
		s.setPhase(racemodel.PhaseIdle)
		s.renderer.Notify(rendering.LevelError, "Timeline metadata fetch failed: "+err.Error())

		return err
	}

	s.setPhase(racemodel.PhaseReconstructing)

	records, err := s.fetchValueHistory(ctx, operatorIDs)
	if err != nil {
		s.setPhase(racemodel.PhaseIdle)
		s.renderer.Notify(rendering.LevelError, "Timeline history fetch failed: "+err.Error())

		return err
	}

	frames := Reconstruct(
		records,
		operatorIDs,
		metaMap,
		datamodel.WeiOrZero(s.settingsObj.Race.NoiseFloorWei),
		s.settingsObj.Race.DisplayCount)

	s.player.SetFrames(frames)
	s.setPhase(racemodel.PhaseReady)

	log.WithField("frames", len(frames)).Info("timeline ready")

	// show the starting grid
	s.player.Scrub(0)

	return nil
}

// HandleCommand dispatches playback commands from the presentation layer.
func (s *Service) HandleCommand(ctx context.Context, cmd rendering.Command) {
	switch c := cmd.(type) {
	case rendering.CmdStartRace:
		if err := s.Load(ctx); err != nil {
			log.WithError(err).Error("timeline load failed")
		}
	case rendering.CmdPlayPause:
		s.player.Toggle()
	case rendering.CmdSetFastPlayback:
		s.player.SetFast(c.Fast)
	case rendering.CmdScrubTo:
		s.player.Scrub(c.Frame)
	default:
		log.WithField("command", cmd).Warn("unhandled timeline command")
	}
}

package service

import (
	"math/big"
	"sync"
	"time"

	"operator-console/console/rendering"
	"operator-console/goutils/unitconv"
	racemodel "operator-console/race/datamodel"
)

const (
	normalTickInterval = 100 * time.Millisecond
	fastTickInterval   = 30 * time.Millisecond
)

// Player advances through reconstructed frames on a timer. Each tick renders
// the current frame and moves forward, stopping on the last frame. Scrubbing
// pauses playback and jumps straight to the chosen frame.
type Player struct {
	renderer  rendering.Renderer
	scaleStep int64

	mu      sync.Mutex
	frames  []racemodel.Frame
	index   int
	playing bool
	fast    bool
	timer   *time.Timer
}

func NewPlayer(renderer rendering.Renderer, scaleStep int64) *Player {
	return &Player{
		renderer:  renderer,
		scaleStep: scaleStep,
	}
}

// SetFrames replaces the timeline and rewinds, stopping any playback.
func (p *Player) SetFrames(frames []racemodel.Frame) {
	p.Stop()

	p.mu.Lock()
	p.frames = frames
	p.index = 0
	p.mu.Unlock()
}

func (p *Player) Toggle() {
	p.mu.Lock()
	playing := p.playing
	p.mu.Unlock()

	if playing {
		p.Stop()

		return
	}

	p.Play()
}

// Play starts or resumes playback, restarting from the top when already at
// the final frame.
func (p *Player) Play() {
	p.mu.Lock()

	if p.playing || len(p.frames) == 0 {
		p.mu.Unlock()

		return
	}

	if p.index >= len(p.frames)-1 {
		p.index = 0
	}

	p.playing = true
	p.mu.Unlock()

	p.tick()
}

func (p *Player) tick() {
	p.mu.Lock()

	if !p.playing {
		p.mu.Unlock()

		return
	}

	index := p.index
	frame := p.frames[index]
	total := len(p.frames)

	if index >= total-1 {
		p.playing = false
	} else {
		p.index++

		interval := normalTickInterval
		if p.fast {
			interval = fastTickInterval
		}

		p.timer = time.AfterFunc(interval, p.tick)
	}

	playing := p.playing
	p.mu.Unlock()

	p.renderer.RenderFrame(p.frameView(frame, index, total, playing))
}

// Stop pauses playback in place.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playing = false

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Scrub pauses and jumps directly to one frame, skipping everything in
// between.
func (p *Player) Scrub(index int) {
	p.Stop()

	p.mu.Lock()

	if len(p.frames) == 0 {
		p.mu.Unlock()

		return
	}

	if index < 0 {
		index = 0
	}

	if index > len(p.frames)-1 {
		index = len(p.frames) - 1
	}

	p.index = index
	frame := p.frames[index]
	total := len(p.frames)
	p.mu.Unlock()

	p.renderer.RenderFrame(p.frameView(frame, index, total, false))
}

// SetFast switches between the two fixed tick intervals. Takes effect on the
// next tick.
func (p *Player) SetFast(fast bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fast = fast
}

// frameView converts a frame to its view model. Scale markers sit at fixed
// display-unit intervals up to the leader's value.
func (p *Player) frameView(frame racemodel.Frame, index int, total int, playing bool) rendering.FrameView {
	rows := make([]rendering.FrameRow, 0, len(frame.Rankings))

	for _, ranked := range frame.Rankings {
		rows = append(rows, rendering.FrameRow{
			OperatorID:  ranked.Meta.ID,
			DisplayName: ranked.Meta.Name,
			Color:       ranked.Meta.Color,
			Value:       unitconv.GroupThousands(unitconv.ToDisplayBig(ranked.ValueWei, false)),
			Rank:        ranked.Rank,
		})
	}

	markers := make([]string, 0)

	if len(frame.Rankings) > 0 && p.scaleStep > 0 {
		leaderDisplay := new(big.Int).Quo(frame.Rankings[0].ValueWei, weiPerToken)

		for marker := p.scaleStep; big.NewInt(marker).Cmp(leaderDisplay) <= 0; marker += p.scaleStep {
			markers = append(markers, unitconv.GroupThousands(unitconv.ToDisplayBig(new(big.Int).Mul(big.NewInt(marker), weiPerToken), false)))
		}
	}

	return rendering.FrameView{
		Day:          frame.FormattedDate(),
		Index:        index,
		Total:        total,
		Rows:         rows,
		ScaleMarkers: markers,
		Playing:      playing,
	}
}

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

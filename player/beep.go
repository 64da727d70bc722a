package player

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
)

// BeepEngine decodes audio files and plays them through the system
// output device. The speaker is initialized once at the sample rate of
// the first track; later tracks at other rates are resampled.
type BeepEngine struct {
	mu          sync.Mutex
	initialized bool
	sampleRate  beep.SampleRate
}

func NewBeepEngine() *BeepEngine {
	return &BeepEngine{}
}

// Open decodes the file and wires it to the speaker, paused.
func (e *BeepEngine) Open(path string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: opening %s: %v", ErrPlayback, path, err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("%w: unsupported format %s", ErrPlayback, filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrPlayback, path, err)
	}

	e.mu.Lock()
	if !e.initialized {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			e.mu.Unlock()
			streamer.Close()
			return nil, fmt.Errorf("%w: initializing speaker: %v", ErrPlayback, err)
		}
		e.sampleRate = format.SampleRate
		e.initialized = true
		logger.Info("audio output initialized", zap.Int("sampleRate", int(format.SampleRate)))
	}
	outRate := e.sampleRate
	e.mu.Unlock()

	var src beep.Streamer = streamer
	if format.SampleRate != outRate {
		src = beep.Resample(4, format.SampleRate, outRate, streamer)
	}

	ctrl := &beep.Ctrl{Streamer: src, Paused: true}
	vol := &effects.Volume{Streamer: ctrl, Base: 2}
	return &beepSession{
		streamer: streamer,
		format:   format,
		ctrl:     ctrl,
		vol:      vol,
		done:     make(chan struct{}),
	}, nil
}

type beepSession struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume
	done     chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
}

func (s *beepSession) Start() error {
	s.startOnce.Do(func() {
		speaker.Play(beep.Seq(s.vol, beep.Callback(func() {
			close(s.done)
		})))
	})
	speaker.Lock()
	s.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (s *beepSession) Pause() {
	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
}

func (s *beepSession) Resume() {
	speaker.Lock()
	s.ctrl.Paused = false
	speaker.Unlock()
}

func (s *beepSession) Paused() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return s.ctrl.Paused
}

func (s *beepSession) SeekMs(ms int64) error {
	speaker.Lock()
	defer speaker.Unlock()
	n := s.format.SampleRate.N(time.Duration(ms) * time.Millisecond)
	if max := s.streamer.Len() - 1; n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	if err := s.streamer.Seek(n); err != nil {
		return fmt.Errorf("%w: seek: %v", ErrPlayback, err)
	}
	return nil
}

func (s *beepSession) PositionMs() int64 {
	speaker.Lock()
	defer speaker.Unlock()
	return s.format.SampleRate.D(s.streamer.Position()).Milliseconds()
}

func (s *beepSession) DurationMs() int64 {
	speaker.Lock()
	defer speaker.Unlock()
	return s.format.SampleRate.D(s.streamer.Len()).Milliseconds()
}

func (s *beepSession) Ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// SetVolume takes a linear level in [0, 1] and maps it onto the
// exponential volume effect. Zero mutes.
func (s *beepSession) SetVolume(level float64) {
	speaker.Lock()
	defer speaker.Unlock()
	if level <= 0 {
		s.vol.Silent = true
		return
	}
	if level > 1 {
		level = 1
	}
	s.vol.Silent = false
	s.vol.Volume = math.Log2(level)
}

func (s *beepSession) Close() error {
	s.closeOnce.Do(func() {
		speaker.Clear()
		s.streamer.Close()
	})
	return nil
}

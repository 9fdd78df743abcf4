package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Backend plays PCM pulled from a reader.
type Backend interface {
	// Start begins pulling 16-bit little-endian mono samples from src.
	Start(src io.Reader) error
	io.Closer
}

// OtoBackend plays through the platform audio device.
type OtoBackend struct {
	sampleRate int
	context    *oto.Context
	player     *oto.Player
}

// readyTimeout bounds how long the device may take to come up.
const readyTimeout = 5 * time.Second

// NewOtoBackend opens the default audio device. Only one may exist per
// process.
func NewOtoBackend(sampleRate int) (*OtoBackend, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   20 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(readyTimeout):
		return nil, errors.New("open audio device: timed out waiting for device")
	}
	return &OtoBackend{sampleRate: sampleRate, context: ctx}, nil
}

func (b *OtoBackend) Start(src io.Reader) error {
	if b.player != nil {
		return errors.New("audio backend already started")
	}
	if err := b.context.Err(); err != nil {
		return fmt.Errorf("audio device: %w", err)
	}
	player := b.context.NewPlayer(src)
	// Keep latency low; the mixer never blocks.
	player.SetBufferSize(b.sampleRate / 100 * 2)
	player.Play()
	b.player = player
	return nil
}

func (b *OtoBackend) Close() error {
	if b.player == nil {
		return nil
	}
	err := b.player.Close()
	b.player = nil
	if err != nil {
		return fmt.Errorf("close audio player: %w", err)
	}
	return nil
}

package player

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gordonklaus/portaudio"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/outloud-dev/outloud/internal/pidfile"
)

// framesPerBuffer is the PortAudio buffer size in frames. Small enough for
// prompt cancellation, large enough to avoid underruns on slow machines.
const framesPerBuffer = 1024

// streamRecord names the on-disk record of the process playing a PCM
// stream. Stream playback is in-process, so the record holds the owning
// process's own PID; Stop from another process kills that process, which a
// dispatch cycle exists solely to run.
const streamRecord = "stream"

// StreamPlayer writes raw PCM to the default output device via PortAudio.
// One playback runs at a time; starting a new one aborts the previous.
type StreamPlayer struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewStreamPlayer returns a StreamPlayer. PortAudio is initialised per
// playback so an idle player holds no audio resources.
func NewStreamPlayer() *StreamPlayer {
	return &StreamPlayer{}
}

// PlayPCM plays 16-bit little-endian mono PCM chunks from pcm at the given
// sample rate, blocking until the channel closes, playback drains, or ctx is
// cancelled.
func (p *StreamPlayer) PlayPCM(ctx context.Context, pcm <-chan []byte, sampleRate int) error {
	return p.play(ctx, 1, sampleRate, chunkReader(ctx, pcm))
}

// PlayMP3 decodes MP3 data from r and plays it. go-mp3 always yields 16-bit
// stereo at the stream's native sample rate.
func (p *StreamPlayer) PlayMP3(ctx context.Context, r io.Reader) error {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return fmt.Errorf("player: decode mp3: %w", err)
	}
	return p.play(ctx, 2, dec.SampleRate(), dec)
}

// Stop aborts any in-flight stream playback, including a stream owned by
// another process via the on-disk record.
func (p *StreamPlayer) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	pidfile.Kill(streamRecord)
}

// play streams 16-bit little-endian samples from src to the default output.
func (p *StreamPlayer) play(ctx context.Context, channels, sampleRate int, src io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mu.Unlock()

	pidfile.Write(streamRecord, os.Getpid())
	defer pidfile.Clear(streamRecord, os.Getpid())

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("player: portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	buf := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return fmt.Errorf("player: open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("player: start stream: %w", err)
	}
	defer stream.Stop()

	raw := make([]byte, len(buf)*2)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, readErr := io.ReadFull(src, raw)
		if n > 0 {
			// Zero-fill the tail so a short final read plays silence, not
			// the previous buffer contents.
			for i := n; i < len(raw); i++ {
				raw[i] = 0
			}
			for i := range buf {
				buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
			}
			if err := stream.Write(); err != nil {
				return fmt.Errorf("player: write stream: %w", err)
			}
		}
		if readErr != nil {
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("player: read audio: %w", readErr)
		}
	}
}

// chunkReader adapts a channel of byte slices into an io.Reader that ends
// when the channel closes or ctx is cancelled.
func chunkReader(ctx context.Context, ch <-chan []byte) io.Reader {
	return &chanReader{ctx: ctx, ch: ch}
}

type chanReader struct {
	ctx  context.Context
	ch   <-chan []byte
	rest []byte
}

func (r *chanReader) Read(p []byte) (int, error) {
	for len(r.rest) == 0 {
		select {
		case chunk, ok := <-r.ch:
			if !ok {
				return 0, io.EOF
			}
			r.rest = chunk
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		}
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}

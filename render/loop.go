package render

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-ws2812b/model"
)

// DefaultInterval is how long each color stays up.
const DefaultInterval = 3 * time.Second

// Looper shows each color on every pixel in turn, forever.
type Looper struct {
	renderer *Renderer
	names    []string
	colors   []model.Color
	interval time.Duration
	log      zerolog.Logger
}

// NewLooper resolves names up front. luminance scales every color.
func NewLooper(r *Renderer, names []string, interval time.Duration, luminance float64, log zerolog.Logger) (*Looper, error) {
	if len(names) == 0 {
		return nil, errors.Wrap(model.ErrConfiguration, "render: no colors to cycle")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	l := &Looper{renderer: r, interval: interval, log: log}
	for _, n := range names {
		c, ok := model.Named(n)
		if !ok {
			return nil, errors.Wrapf(model.ErrUnknownColor, "render: %q", n)
		}
		l.names = append(l.names, n)
		l.colors = append(l.colors, c.Scale(luminance))
	}
	return l, nil
}

// Run cycles until ctx is done. The first color is shown immediately.
func (l *Looper) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for i := 0; ; i = (i + 1) % len(l.colors) {
		if ctx.Err() != nil {
			return nil
		}
		l.log.Info().Str("color", l.names[i]).Msg("showing")
		if err := l.renderer.Fill(l.colors[i]); err != nil {
			return err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// Start runs the loop until SIGINT or SIGTERM.
func (l *Looper) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := l.Run(ctx)
	if ctx.Err() != nil {
		l.log.Info().Msg("Got signal. Aborting...")
	}
	return err
}

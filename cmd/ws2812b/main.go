// Command ws2812b cycles a WS2812B strip through a list of colors until
// interrupted, then blanks it.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/config"
	"github.com/coreman2200/arcaluminis-ws2812b/model"
	"github.com/coreman2200/arcaluminis-ws2812b/render"
)

func main() {
	// ---- Flags (config.yaml overrides what it sets) ----
	var (
		pixels     = flag.Int("pixels", 1, "number of LEDs in the chain")
		driver     = flag.String("driver", "pwm", "driver: pwm | spi | console")
		gpio       = flag.Int("gpio", 18, "PWM data pin (BCM number): 12, 18 or 40")
		divisor    = flag.Float64("divisor", 400, "PWM clock divisor")
		source     = flag.String("source", "pllc", "PWM clock source: osc | plld | pllc | hdmi")
		resetUs    = flag.Int("reset-us", 300, "low time after each frame (µs), 0 to disable")
		colors     = flag.String("colors", "red,yellow,green,blue", "comma separated colors to cycle: "+strings.Join(model.ColorNames(), ", "))
		interval   = flag.Duration("interval", 3*time.Second, "time each color stays up")
		luminance  = flag.Float64("luminance", 1, "brightness 0..1")
		level      = flag.String("log-level", "info", "debug | info | warn | error")
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Effective config: flags, then config.yaml if present ----
	cfg := config.Default()
	cfg.Pixels = *pixels
	cfg.Driver = *driver
	cfg.GPIO = *gpio
	cfg.Clock.Divisor = *divisor
	cfg.Clock.Source = *source
	cfg.ResetUs = *resetUs
	cfg.Demo.Colors = splitColors(*colors)
	cfg.Demo.IntervalMs = int(*interval / time.Millisecond)
	cfg.Demo.Luminance = *luminance
	cfg.LogLevel = *level

	if err := config.Apply(*configPath, cfg); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	}

	lvl, err := cfg.Level()
	if err != nil {
		log.Warn().Err(err).Msg("bad log level; using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	// ---- Output ----
	r, err := render.Open(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Driver).Msg("cannot open LEDs")
	}
	log.Info().Str("driver", r.Backend()).Int("pixels", r.Len()).Msg("LEDs ready")

	loop, err := render.NewLooper(r, cfg.Demo.Colors, cfg.Interval(), cfg.Demo.Luminance, log.Logger)
	if err != nil {
		_ = r.Close()
		log.Fatal().Err(err).Msg("bad demo settings")
	}

	// ---- Run until SIGINT/SIGTERM, then blank the strip ----
	if err := loop.Start(context.Background()); err != nil {
		log.Error().Err(err).Msg("render failed")
	}
	log.Info().Msg("shutting down")
	if err := r.Close(); err != nil {
		log.Error().Err(err).Msg("close failed")
		os.Exit(1)
	}
}

func splitColors(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

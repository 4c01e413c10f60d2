package bcm283x

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/regmap"
)

// ErrFIFOTimeout is returned when the PWM FIFO stays full past the deadline
// while a frame longer than FIFODepth is streamed, or does not drain before
// the serializer is stopped.
var ErrFIFOTimeout = errors.New("bcm283x: PWM FIFO stayed full")

// DefaultFIFOTimeout bounds the wait for one FIFO slot, and for the FIFO to
// drain.
const DefaultFIFOTimeout = 5 * time.Millisecond

// Transmitter pushes serialized words through the PWM FIFO.
type Transmitter struct {
	Timing
	// FIFOTimeout bounds the wait for a free FIFO slot once the serializer
	// is running.
	FIFOTimeout time.Duration

	pwm *regmap.Region
	log zerolog.Logger
}

// NewTransmitter binds the PWM window.
func NewTransmitter(pwm *regmap.Region, t Timing, log zerolog.Logger) *Transmitter {
	return &Transmitter{Timing: t, FIFOTimeout: DefaultFIFOTimeout, pwm: pwm, log: log}
}

// Transmit queues words and starts the serializer. Words must already be in
// the bit order the serializer shifts out, MSB first.
//
// The first FIFODepth words are queued while the serializer is stopped, one
// settle delay apart. Any remaining words are pushed as soon as the FIFO has
// room once the serializer runs. Transmission continues in hardware after
// Transmit returns.
func (t *Transmitter) Transmit(words []uint32) error {
	if t.running() {
		if err := t.Drain(); err != nil {
			t.log.Warn().Err(err).Msgf("previous frame cut short, STA=%#v", t.Status())
		}
	}
	t.pwm.Store(pwmCTL, uint32(serializerControl))
	logWrite(t.log, "CTL", serializerControl)
	t.wait()

	t.Stop()

	t.pwm.Set(pwmCTL, uint32(pwmCLRF1))
	t.pwm.Store(pwmSTA, uint32(statusErrors))
	logWrite(t.log, "CTL", pwmCtl(t.pwm.Load(pwmCTL)))
	logWrite(t.log, "STA", statusErrors)
	t.wait()

	n := len(words)
	if n > FIFODepth {
		n = FIFODepth
	}
	for _, w := range words[:n] {
		t.pwm.Store(pwmFIF1, w)
		t.wait()
	}

	t.pwm.Set(pwmCTL, uint32(pwmPWEN1))
	logWrite(t.log, "CTL", pwmCtl(t.pwm.Load(pwmCTL)))

	for i, w := range words[n:] {
		if err := t.waitNotFull(); err != nil {
			return errors.Wrapf(err, "word %d of %d", n+i, len(words))
		}
		t.pwm.Store(pwmFIF1, w)
	}
	t.log.Debug().Int("words", len(words)).Msg("queued")
	return nil
}

// Stop disables the serializer.
func (t *Transmitter) Stop() {
	t.pwm.Clear(pwmCTL, uint32(pwmPWEN1))
	logWrite(t.log, "CTL", pwmCtl(t.pwm.Load(pwmCTL)))
	t.wait()
}

// Drain waits for the FIFO to empty and channel 1 to finish shifting.
func (t *Transmitter) Drain() error {
	deadline := time.Now().Add(t.FIFOTimeout)
	for !t.idle() {
		if time.Now().After(deadline) {
			return errors.Wrap(ErrFIFOTimeout, "drain")
		}
	}
	return nil
}

func (t *Transmitter) running() bool {
	return pwmCtl(t.pwm.Load(pwmCTL))&pwmPWEN1 != 0
}

func (t *Transmitter) idle() bool {
	s := t.Status()
	return s&StatusEMPT1 != 0 && s&StatusSTA1 == 0
}

// Halt lets the queued words go out if the serializer runs, then clears the
// control register, leaving the PWM block fully stopped. It stops the PWM
// even when the FIFO fails to drain, and reports that as ErrFIFOTimeout.
func (t *Transmitter) Halt() error {
	var err error
	if t.running() {
		if err = t.Drain(); err != nil {
			t.log.Warn().Err(err).Msgf("stopping with STA=%#v", t.Status())
		}
	}
	t.pwm.Store(pwmCTL, 0)
	logWrite(t.log, "CTL", pwmCtl(0))
	t.wait()
	return err
}

// Status reads the STA register.
func (t *Transmitter) Status() PWMStatus {
	return PWMStatus(t.pwm.Load(pwmSTA))
}

func (t *Transmitter) waitNotFull() error {
	if t.Status()&StatusFULL1 == 0 {
		return nil
	}
	deadline := time.Now().Add(t.FIFOTimeout)
	for t.Status()&StatusFULL1 != 0 {
		if time.Now().After(deadline) {
			return ErrFIFOTimeout
		}
	}
	return nil
}

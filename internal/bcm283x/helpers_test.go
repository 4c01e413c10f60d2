package bcm283x

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/regmap"
)

const (
	testCM  = BaseBCM2836 + ClockOffset
	testPWM = BaseBCM2836 + PWMOffset
	testIO  = BaseBCM2836 + GPIOOffset
)

// trace records register writes and settle delays in the order they happen.
type trace struct {
	events []string
}

func (tr *trace) store(base uint64, word int, v uint32) {
	name := map[uint64]string{testCM: "cm", testPWM: "pwm", testIO: "gpio"}[base]
	tr.events = append(tr.events, fmt.Sprintf("%s[%d]=0x%08x", name, word, v))
}

func (tr *trace) sleep(d time.Duration) {
	tr.events = append(tr.events, "sleep "+d.String())
}

type rig struct {
	mem  *regmap.Memory
	cm   *regmap.Region
	pwm  *regmap.Region
	gpio *regmap.Region
	tr   *trace
}

func newRig(t *testing.T) *rig {
	r := &rig{mem: regmap.NewMemory(), tr: &trace{}}
	r.mem.OnStore = r.tr.store
	var err error
	r.cm, err = r.mem.Map(testCM, BlockSize)
	require.NoError(t, err)
	r.pwm, err = r.mem.Map(testPWM, BlockSize)
	require.NoError(t, err)
	r.gpio, err = r.mem.Map(testIO, BlockSize)
	require.NoError(t, err)
	return r
}

func (r *rig) timing() Timing {
	return Timing{Settle: time.Millisecond, Sleep: r.tr.sleep}
}

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

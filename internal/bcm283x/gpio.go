package bcm283x

import (
	"github.com/pkg/errors"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/regmap"
	"github.com/coreman2200/arcaluminis-ws2812b/model"
)

// Function is the 3-bit GPFSEL value of a pin. Page 92.
type Function uint32

const (
	FuncInput  Function = 0
	FuncOutput Function = 1
	FuncAlt0   Function = 4
	FuncAlt1   Function = 5
	FuncAlt2   Function = 6
	FuncAlt3   Function = 7
	FuncAlt4   Function = 3
	FuncAlt5   Function = 2
)

// gpioPins is the number of pins the function select registers cover.
const gpioPins = 54

// pwm0Pins maps the pins able to carry PWM channel 1 to the alternate
// function routing it there. Page 102.
var pwm0Pins = map[int]Function{
	12: FuncAlt0,
	18: FuncAlt5,
	40: FuncAlt0,
}

// PWMFunction returns the function that routes PWM channel 1 to pin.
func PWMFunction(pin int) (Function, error) {
	f, ok := pwm0Pins[pin]
	if !ok {
		return 0, errors.Wrapf(model.ErrConfiguration, "bcm283x: GPIO%d cannot carry PWM0", pin)
	}
	return f, nil
}

// SetFunction sets the function of pin, leaving the other pins sharing the
// register untouched.
func SetFunction(gpio *regmap.Region, pin int, f Function) error {
	if pin < 0 || pin >= gpioPins {
		return errors.Wrapf(model.ErrConfiguration, "bcm283x: GPIO%d does not exist", pin)
	}
	reg := pin / 10
	shift := uint(pin%10) * 3
	// Go through input first, as the datasheet recommends.
	gpio.Clear(reg, 7<<shift)
	gpio.Set(reg, uint32(f)<<shift)
	return nil
}

// GetFunction reads back the function of pin.
func GetFunction(gpio *regmap.Region, pin int) Function {
	return Function(gpio.Load(pin/10)>>(uint(pin%10)*3)) & 7
}

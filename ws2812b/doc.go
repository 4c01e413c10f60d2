// Package ws2812b drives a chain of WS2812B LEDs from the PWM serializer of a
// Raspberry Pi, programming the PWM, clock manager and GPIO registers
// directly through /dev/mem.
//
// One Dev owns the PWM peripheral. Creating two at once, in this process or
// another one, corrupts the output.
//
// # Datasheet
//
// https://cdn-shop.adafruit.com/datasheets/WS2812B.pdf
//
// # Example
//
//	d, err := ws2812b.New(8, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//	_ = d.SetColor(0, 5, 0, 0)
//	_ = d.SetNamedColor(1, "yellow", 0.25)
//	if err := d.Show(); err != nil {
//		log.Fatal(err)
//	}
package ws2812b

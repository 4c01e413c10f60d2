// Package bcm283x programs the PWM, clock manager and GPIO blocks of the
// Broadcom SoCs used on Raspberry Pi boards to shift a WS2812 bitstream out
// of the PWM serializer.
//
// # Datasheet
//
// https://www.raspberrypi.org/app/uploads/2012/02/BCM2835-ARM-Peripherals.pdf
package bcm283x

import (
	"fmt"
	"strings"
)

// Offsets of each block from the peripheral base.
const (
	ClockOffset = 0x00101000
	GPIOOffset  = 0x00200000
	PWMOffset   = 0x0020C000
	// BlockSize is the size mapped for each block.
	BlockSize = 4096
)

// Word offsets inside the PWM block. Page 141.
const (
	pwmCTL  = 0x00 / 4
	pwmSTA  = 0x04 / 4
	pwmDMAC = 0x08 / 4
	pwmRNG1 = 0x10 / 4
	pwmDAT1 = 0x14 / 4
	pwmFIF1 = 0x18 / 4
)

// Word offsets inside the clock manager block for the PWM clock.
const (
	cmPWMCTL = 0xA0 / 4
	cmPWMDIV = 0xA4 / 4
)

// FIFODepth is the number of 32-bit words the PWM FIFO holds.
const FIFODepth = 16

// PWMRange is the word width shifted out by the serializer.
const PWMRange = 32

// pwmCtl is the PWM CTL register. Page 142.
type pwmCtl uint32

const (
	pwmMSEN2 pwmCtl = 1 << 15
	pwmUSEF2 pwmCtl = 1 << 13
	pwmPOLA2 pwmCtl = 1 << 12
	pwmSBIT2 pwmCtl = 1 << 11
	pwmRPTL2 pwmCtl = 1 << 10
	pwmMODE2 pwmCtl = 1 << 9
	pwmPWEN2 pwmCtl = 1 << 8
	pwmMSEN1 pwmCtl = 1 << 7
	pwmCLRF1 pwmCtl = 1 << 6 // write only
	pwmUSEF1 pwmCtl = 1 << 5 // 1=FIFO, 0=DAT1
	pwmPOLA1 pwmCtl = 1 << 4
	pwmSBIT1 pwmCtl = 1 << 3 // level while idle
	pwmRPTL1 pwmCtl = 1 << 2 // repeat last word when the FIFO runs dry
	pwmMODE1 pwmCtl = 1 << 1 // 1=serializer, 0=PWM
	pwmPWEN1 pwmCtl = 1 << 0
)

// serializerControl is channel 1 in serializer mode fed from the FIFO, no
// repeat, normal polarity, idle low. Channel 1 stays disabled.
const serializerControl = pwmMODE1 | pwmUSEF1

var pwmCtlNames = []struct {
	bit  pwmCtl
	name string
}{
	{pwmMSEN2, "MSEN2"},
	{pwmUSEF2, "USEF2"},
	{pwmPOLA2, "POLA2"},
	{pwmSBIT2, "SBIT2"},
	{pwmRPTL2, "RPTL2"},
	{pwmMODE2, "MODE2"},
	{pwmPWEN2, "PWEN2"},
	{pwmMSEN1, "MSEN1"},
	{pwmCLRF1, "CLRF1"},
	{pwmUSEF1, "USEF1"},
	{pwmPOLA1, "POLA1"},
	{pwmSBIT1, "SBIT1"},
	{pwmRPTL1, "RPTL1"},
	{pwmMODE1, "MODE1"},
	{pwmPWEN1, "PWEN1"},
}

func (c pwmCtl) GoString() string {
	var out []string
	for _, n := range pwmCtlNames {
		if c&n.bit != 0 {
			out = append(out, n.name)
			c &^= n.bit
		}
	}
	if c != 0 {
		out = append(out, fmt.Sprintf("pwmCtl(0x%x)", uint32(c)))
	}
	if len(out) == 0 {
		return "0"
	}
	return strings.Join(out, "|")
}

// PWMStatus is the PWM STA register. Error bits are cleared by writing 1.
// Page 144.
type PWMStatus uint32

const (
	StatusSTA1  PWMStatus = 1 << 9 // channel 1 is transmitting
	StatusBERR  PWMStatus = 1 << 8 // bus error
	StatusGAPO1 PWMStatus = 1 << 4 // gap while transmitting
	StatusRERR1 PWMStatus = 1 << 3 // FIFO read while empty
	StatusWERR1 PWMStatus = 1 << 2 // FIFO written while full
	StatusEMPT1 PWMStatus = 1 << 1
	StatusFULL1 PWMStatus = 1 << 0
)

// statusErrors are the write one to clear error flags.
const statusErrors = StatusWERR1 | StatusRERR1 | StatusGAPO1 | StatusBERR

// Err reports whether any error flag is set.
func (s PWMStatus) Err() bool {
	return s&statusErrors != 0
}

func (s PWMStatus) GoString() string {
	var out []string
	for _, n := range []struct {
		bit  PWMStatus
		name string
	}{
		{StatusSTA1, "STA1"},
		{StatusBERR, "BERR"},
		{StatusGAPO1, "GAPO1"},
		{StatusRERR1, "RERR1"},
		{StatusWERR1, "WERR1"},
		{StatusEMPT1, "EMPT1"},
		{StatusFULL1, "FULL1"},
	} {
		if s&n.bit != 0 {
			out = append(out, n.name)
			s &^= n.bit
		}
	}
	if s != 0 {
		out = append(out, fmt.Sprintf("PWMStatus(0x%x)", uint32(s)))
	}
	if len(out) == 0 {
		return "0"
	}
	return strings.Join(out, "|")
}

// pwmDmac is the PWM DMAC register.
type pwmDmac uint32

const pwmDmacENAB pwmDmac = 1 << 31

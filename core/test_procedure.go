package core

import (
	"errors"
	"fmt"
)

var ErrTestProcedure = errors.New("test procedure not applicable")

// TestProcedure forces a single protocol transmission, used by certification harnesses.
type TestProcedure uint8

const (
	TestPas TestProcedure = iota
	TestPa
	TestPcs
	TestPc
	TestEapol
	TestDis
	TestDio
	TestDao
	TestRpl
	TestAutoOn
	TestAutoOff
)

func (p TestProcedure) String() string {
	switch p {
	case TestPas:
		return "PAS"
	case TestPa:
		return "PA"
	case TestPcs:
		return "PCS"
	case TestPc:
		return "PC"
	case TestEapol:
		return "EAPOL"
	case TestDis:
		return "DIS"
	case TestDio:
		return "DIO"
	case TestDao:
		return "DAO"
	case TestRpl:
		return "RPL"
	case TestAutoOn:
		return "AUTO_ON"
	case TestAutoOff:
		return "AUTO_OFF"
	default:
		return fmt.Sprintf("TestProcedure(%d)", uint8(p))
	}
}

// TestProcedureTrigger sends the frame p names right away, regardless of the
// trickle state. AUTO_OFF suppresses trickle driven transmissions until AUTO_ON.
func (b *Bootstrap) TestProcedureTrigger(p TestProcedure) error {
	if b.state == StateInit {
		return ErrNotStarted
	}
	switch p {
	case TestPas:
		b.c.Mac.SendAdvertisementSolicit()
	case TestPcs:
		b.c.Mac.SendConfigurationSolicit(b.panId)
	case TestPa:
		if b.state != StateActive || b.disconnecting {
			return fmt.Errorf("%w: %s requires ACTIVE", ErrTestProcedure, p)
		}
		b.c.Mac.SendAdvertisement(b.advertisement())
	case TestPc:
		if b.state != StateActive || b.disconnecting || b.panConfig == nil {
			return fmt.Errorf("%w: %s requires ACTIVE", ErrTestProcedure, p)
		}
		b.sendConfiguration()
	case TestEapol:
		if b.br != nil {
			return fmt.Errorf("%w: %s on a border router", ErrTestProcedure, p)
		}
		if b.state != StateAuthentication || b.target == nil {
			return fmt.Errorf("%w: %s requires AUTHENTICATION", ErrTestProcedure, p)
		}
		b.c.Supplicant.Cancel()
		b.authStarted = b.slowTicks
		return b.c.Supplicant.Start(b.target.Addr, b.target.PanId)
	case TestDis, TestDio, TestDao, TestRpl:
		b.c.Routing.Trigger(p)
	case TestAutoOn:
		b.autoOff = false
	case TestAutoOff:
		b.autoOff = true
	default:
		return fmt.Errorf("%w: %s", ErrTestProcedure, p)
	}
	return nil
}

package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestStrategyHarvestedEvent(t *testing.T) {
	strat := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	evt := StrategyHarvested{
		Strategy:        strat,
		Profit:          big.NewInt(5_000),
		Loss:            nil,
		DebtPayment:     big.NewInt(0),
		DebtOutstanding: big.NewInt(12),
	}.Event()
	if evt.Type != TypeStrategyHarvested {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attr("strategy") != strat.Hex() {
		t.Fatalf("unexpected strategy attr: %s", evt.Attr("strategy"))
	}
	if evt.Attr("profit") != "5000" || evt.Attr("loss") != "0" || evt.Attr("debtOutstanding") != "12" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
}

func TestBufferDrainAndDiscard(t *testing.T) {
	var buf Buffer
	buf.Emit(VaultDeposit{Amount: big.NewInt(1), Shares: big.NewInt(1)})
	buf.Emit(nil)
	drained := buf.Drain()
	if len(drained) != 1 || drained[0].EventType() != TypeVaultDeposit {
		t.Fatalf("unexpected drained events: %v", drained)
	}
	if len(buf.Drain()) != 0 {
		t.Fatalf("expected buffer to be empty after drain")
	}
	buf.Emit(VaultDeposit{})
	buf.Discard()
	if len(buf.Drain()) != 0 {
		t.Fatalf("expected discard to drop pending events")
	}
}

func TestRecorderAndMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	multi := Multi{a, nil, b}
	multi.Emit(VaultDeposit{})
	multi.Emit(VaultEmergencyShutdown{Active: true})
	if len(a.Events()) != 2 || len(b.OfType(TypeVaultEmergencyShutdown)) != 1 {
		t.Fatalf("unexpected recorded events: %d / %d", len(a.Events()), len(b.OfType(TypeVaultEmergencyShutdown)))
	}
}

func TestBroadcasterFanOut(t *testing.T) {
	drops := 0
	b := NewBroadcaster(func() { drops++ })
	first, cancelFirst := b.Subscribe(1)
	second, cancelSecond := b.Subscribe(4)
	defer cancelSecond()

	b.Emit(VaultDeposit{Amount: big.NewInt(7), Shares: big.NewInt(7)})
	b.Emit(VaultDeposit{Amount: big.NewInt(8), Shares: big.NewInt(8)})

	got := <-first
	if got.Attr("amount") != "7" {
		t.Fatalf("unexpected first event: %+v", got)
	}
	if drops != 1 {
		t.Fatalf("expected one drop for the full subscriber, got %d", drops)
	}
	if len(second) != 2 {
		t.Fatalf("expected two queued events, got %d", len(second))
	}
	evt := <-second
	evt.Attributes["amount"] = "mutated"
	if next := <-second; next.Attr("amount") != "8" {
		t.Fatalf("unexpected second event: %+v", next)
	}

	cancelFirst()
	cancelFirst()
	if _, ok := <-first; ok {
		t.Fatalf("expected cancelled channel to be closed")
	}
	if b.Subscribers() != 1 {
		t.Fatalf("expected one subscriber, got %d", b.Subscribers())
	}
}

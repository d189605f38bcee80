package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputePayout_OneTokenStake(t *testing.T) {
	stake := decimal.RequireFromString("1000000000000000000") // 1.0 displayed
	p, err := ComputePayout(stake, 300)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if want := "2000000000000000000"; p.TotalPoolWei.String() != want {
		t.Fatalf("pool=%s want %s", p.TotalPoolWei.String(), want)
	}
	if want := "60000000000000000"; p.PlatformFeeWei.String() != want {
		t.Fatalf("fee=%s want %s", p.PlatformFeeWei.String(), want)
	}
	if want := "1940000000000000000"; p.NetPayoutWei.String() != want {
		t.Fatalf("net=%s want %s", p.NetPayoutWei.String(), want)
	}
}

func TestComputePayout_ZeroFee(t *testing.T) {
	stake := decimal.NewFromInt(500)
	p, err := ComputePayout(stake, 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !p.NetPayoutWei.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("net=%s want 1000", p.NetPayoutWei.String())
	}
	if !p.PlatformFeeWei.IsZero() {
		t.Fatalf("fee=%s want 0", p.PlatformFeeWei.String())
	}
}

func TestComputePayout_Invalid(t *testing.T) {
	if _, err := ComputePayout(decimal.NewFromInt(-1), 300); err == nil {
		t.Fatalf("negative stake accepted")
	}
	if _, err := ComputePayout(decimal.RequireFromString("1.5"), 300); err == nil {
		t.Fatalf("fractional wei accepted")
	}
	if _, err := ComputePayout(decimal.NewFromInt(1), 10001); err == nil {
		t.Fatalf("fee over 100%% accepted")
	}
}

func TestComputeRefund(t *testing.T) {
	amount := decimal.RequireFromString("1000000000000000000")
	r, err := ComputeRefund(amount, 300)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if want := "970000000000000000"; r.RefundWei.String() != want {
		t.Fatalf("refund=%s want %s", r.RefundWei.String(), want)
	}
	if want := "0.97"; r.RefundDisplay.String() != want {
		t.Fatalf("display=%s want %s", r.RefundDisplay.String(), want)
	}
}

func TestToWei(t *testing.T) {
	got := ToWei(decimal.RequireFromString("1.5"))
	if want := "1500000000000000000"; got.String() != want {
		t.Fatalf("wei=%s want %s", got.String(), want)
	}
}

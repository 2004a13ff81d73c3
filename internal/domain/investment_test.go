package domain

import (
	"testing"
	"time"
)

func TestDerivedFieldsPerPlan(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		code         string
		amount       float64
		wantMaturity time.Time
		wantReturn   float64
	}{
		{PlanSixMonths, 1000, start.AddDate(0, 0, 180), 1250},
		{PlanNineMonths, 1000, start.AddDate(0, 0, 270), 1300},
		{PlanTwelveMonths, 2000, start.AddDate(0, 0, 365), 3000},
		{PlanEighteenMonths, 400, start.AddDate(0, 0, 540), 700},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			plan, err := LookupPlan(tt.code)
			if err != nil {
				t.Fatalf("LookupPlan(%s) error: %v", tt.code, err)
			}
			if got := MaturityFrom(start, plan); !got.Equal(tt.wantMaturity) {
				t.Errorf("MaturityFrom() = %v, want %v", got, tt.wantMaturity)
			}
			if got := ExpectedReturnFor(tt.amount, plan); got != tt.wantReturn {
				t.Errorf("ExpectedReturnFor() = %v, want %v", got, tt.wantReturn)
			}
		})
	}
}

func TestLookupPlanUnknownCode(t *testing.T) {
	if _, err := LookupPlan("3-months"); err != ErrInvalidPlan {
		t.Errorf("LookupPlan() error = %v, want ErrInvalidPlan", err)
	}
	if _, err := LookupPlan(""); err != ErrInvalidPlan {
		t.Errorf("LookupPlan(\"\") error = %v, want ErrInvalidPlan", err)
	}
}

func TestCountdownAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		maturity time.Time
		want     int
	}{
		{"exactly 180 days out", now.AddDate(0, 0, 180), 180},
		{"partial day rounds up", now.Add(36 * time.Hour), 2},
		{"due now", now, 0},
		{"past maturity floors at zero", now.AddDate(0, 0, -3), 0},
		{"one hour left counts as a day", now.Add(time.Hour), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountdownAt(tt.maturity, now); got != tt.want {
				t.Errorf("CountdownAt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	legal := map[Status][]Status{
		StatusPending: {StatusActive, StatusRejected, StatusCancelled},
		StatusActive:  {StatusMatured},
	}

	all := []Status{StatusPending, StatusActive, StatusMatured, StatusRejected, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range legal[from] {
				if ok == to {
					want = true
				}
			}
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusMatured, StatusRejected, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusActive} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if _, ok := ParseStatus("Running"); ok {
		t.Error("ParseStatus accepted unknown status")
	}
	if s, ok := ParseStatus("Matured"); !ok || s != StatusMatured {
		t.Errorf("ParseStatus(Matured) = %v, %v", s, ok)
	}
	if _, ok := ParsePaymentMethod("card"); ok {
		t.Error("ParsePaymentMethod accepted unknown method")
	}
	if m, ok := ParsePaymentMethod("manual"); !ok || m != PaymentManual {
		t.Errorf("ParsePaymentMethod(manual) = %v, %v", m, ok)
	}
}

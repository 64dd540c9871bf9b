package device

import "testing"

func TestElection(t *testing.T) {
	e := NewElection("ABC123")
	if e.IsPrime() {
		t.Fatal("IsPrime() before any designation")
	}

	if !e.SetPrimeDeviceID("ABC123") {
		t.Error("gaining prime not reported as a change")
	}
	if !e.IsPrime() {
		t.Error("IsPrime() = false after designation")
	}
	if e.SetPrimeDeviceID("ABC123") {
		t.Error("re-designation reported as a change")
	}

	if !e.SetPrimeDeviceID("ZZZ999") {
		t.Error("losing prime not reported as a change")
	}
	if e.IsPrime() || e.PrimeDeviceID() != "ZZZ999" {
		t.Errorf("IsPrime() = %v, PrimeDeviceID() = %q", e.IsPrime(), e.PrimeDeviceID())
	}
	if e.SetPrimeDeviceID("YYY888") {
		t.Error("prime moving between other devices reported as a change")
	}
}

func TestElection_EmptyLocalID(t *testing.T) {
	e := NewElection("")
	e.SetPrimeDeviceID("")
	if e.IsPrime() {
		t.Error("empty local id must never be prime")
	}
}

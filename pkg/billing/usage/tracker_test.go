package usage

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPeriodKeyDeterministic(t *testing.T) {
	id := uuid.New()
	k1 := periodKey(id)
	k2 := periodKey(id)
	if k1 != k2 {
		t.Error("periodKey should be deterministic within the same minute")
	}
	if want := id.String() + ":" + time.Now().UTC().Format("2006-01"); !strings.HasSuffix(k1, want) {
		t.Errorf("periodKey(%s) = %q, want suffix %q", id, k1, want)
	}
}

func TestPeriodKeyDiffersByProject(t *testing.T) {
	a, b := periodKey(uuid.New()), periodKey(uuid.New())
	if a == b {
		t.Error("periodKey should differ across projects")
	}
}

func TestRateKeyPrefix(t *testing.T) {
	id := uuid.New()
	k := rateKey(id)
	if !strings.HasPrefix(k, "rate:"+id.String()+":") {
		t.Errorf("rateKey(%s) = %q, want prefix %q", id, k, "rate:"+id.String()+":")
	}
}

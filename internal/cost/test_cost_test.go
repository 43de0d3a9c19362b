package cost

import (
	"math"
	"sync"
	"testing"

	"ticketforge/internal/tester"
)

func TestTracker_AccumulatesCalls(t *testing.T) {
	p := PriceFor("gpt-4")
	tr := NewTracker(p)

	c1 := tr.Track(100, 50)
	c2 := tr.Track(20, 10)

	total := tr.Total()
	tester.Eq(t, total.TokensIn, int64(120))
	tester.Eq(t, total.TokensOut, int64(60))

	want := (100.0/1000*0.03 + 50.0/1000*0.06) + (20.0/1000*0.03 + 10.0/1000*0.06)
	if math.Abs(total.USD-want) > 1e-12 {
		t.Fatalf("usd=%v want=%v", total.USD, want)
	}
	if math.Abs(total.USD-(c1.USD+c2.USD)) > 1e-12 {
		t.Fatalf("total should equal the sum of per-call costs")
	}
}

func TestTracker_ConcurrentTrack(t *testing.T) {
	tr := NewTracker(Default)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Track(10, 5)
		}()
	}
	wg.Wait()
	tester.Eq(t, tr.Total().TokensIn, int64(500))
	tester.Eq(t, tr.Total().TokensOut, int64(250))
}

func TestPriceFor(t *testing.T) {
	tester.Eq(t, PriceFor("gpt-3.5-turbo"), Pricing{InputPer1K: 0.0005, OutputPer1K: 0.0015})
	tester.Eq(t, PriceFor("GPT-4-turbo-preview"), Pricing{InputPer1K: 0.01, OutputPer1K: 0.03})
	tester.Eq(t, PriceFor("gpt-4-0613"), Pricing{InputPer1K: 0.03, OutputPer1K: 0.06})
	tester.Eq(t, PriceFor("llama3"), Default)
}

func TestEstimateTokens(t *testing.T) {
	tester.Eq(t, EstimateTokens(""), 0)
	tester.Eq(t, EstimateTokens("abcd"), 1)
	tester.Eq(t, EstimateTokens("abcde"), 2)
}

package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"Options_Analytics/internal/service"
)

// FailureDigest batches calculation failures and sends one summary per
// interval instead of one message per failure. A quiet interval sends
// nothing.
type FailureDigest struct {
	notifier Notifier
	interval time.Duration
}

func NewFailureDigest(n Notifier, interval time.Duration) *FailureDigest {
	if interval <= 0 {
		interval = time.Minute
	}
	return &FailureDigest{notifier: n, interval: interval}
}

// Run consumes failures until the channel closes or ctx is done.
func (d *FailureDigest) Run(ctx context.Context, failures <-chan service.CalcFailure) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	counts := make(map[string]int)
	tokens := make(map[string]uint32) // one example token per reason
	total := 0

	flush := func() {
		if total == 0 {
			return
		}
		d.send(ctx, counts, tokens, total)
		counts = make(map[string]int)
		tokens = make(map[string]uint32)
		total = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case f, ok := <-failures:
			if !ok {
				flush()
				return
			}
			counts[f.Reason]++
			if _, seen := tokens[f.Reason]; !seen {
				tokens[f.Reason] = f.Token
			}
			total++
		case <-ticker.C:
			flush()
		}
	}
}

func (d *FailureDigest) send(ctx context.Context, counts map[string]int, tokens map[string]uint32, total int) {
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	text := fmt.Sprintf("<b>Greeks failures</b>: %d in last %s\n", total, d.interval)
	for _, r := range reasons {
		text += fmt.Sprintf("• %s ×%d (e.g. token %d)\n", r, counts[r], tokens[r])
	}

	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.notifier.Send(sendCtx, text); err != nil {
		log.Println("[NOTIFY] digest send failed:", err)
	}
}

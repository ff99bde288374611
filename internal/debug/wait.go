package debug

import (
	"context"
	"fmt"
	"time"
)

// PollInterval is the fixed spacing between wait-for-selector probes.
const PollInterval = 200 * time.Millisecond

// WaitOptions configures a wait. Visible additionally requires the
// matched element to render with non-zero size and not be hidden via
// computed style.
type WaitOptions struct {
	TargetID string
	Selector string
	Visible  bool
	Timeout  time.Duration
}

// WaitFor polls until the selector matches (and, if requested, is
// visible) or the bound elapses with ErrWaitTimeout. The timeout is
// the only cancellation path besides the context.
func (s *Supervisor) WaitFor(ctx context.Context, opts WaitOptions) error {
	c, err := s.conn(opts.TargetID)
	if err != nil {
		return err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)

	var js string
	if opts.Visible {
		js = fmt.Sprintf(`
			(function() {
				const el = document.querySelector(%q);
				if (!el) return false;
				const style = window.getComputedStyle(el);
				const rect = el.getBoundingClientRect();
				return style.display !== 'none' &&
				       style.visibility !== 'hidden' &&
				       rect.width > 0 && rect.height > 0;
			})()
		`, opts.Selector)
	} else {
		js = fmt.Sprintf(`document.querySelector(%q) !== null`, opts.Selector)
	}

	for {
		value, err := s.evalOn(ctx, c, js)
		if err != nil {
			return err
		}
		if found, _ := value.(bool); found {
			return nil
		}

		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, opts.Selector, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(PollInterval):
		}
	}
}

// internal/browser/navigate.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NavigateWithFallback loads url trying each of NavigationStrategies in turn,
// each bounded by timeout. It returns the strategy that succeeded. When every
// strategy fails the returned error wraps all attempt errors.
func NavigateWithFallback(ctx context.Context, page Page, url string, timeout time.Duration, logger *zap.Logger) (WaitStrategy, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var attemptErrs []error
	for _, strategy := range NavigationStrategies {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("navigation to %s canceled: %w", url, err)
		}

		navCtx, cancel := context.WithTimeout(ctx, timeout)
		err := page.Navigate(navCtx, url, strategy)
		timedOut := errors.Is(navCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			logger.Debug("Navigation succeeded.", zap.String("url", url), zap.String("wait", string(strategy)))
			return strategy, nil
		}
		if timedOut {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}

		logger.Warn("Navigation attempt failed, trying next strategy.",
			zap.String("url", url),
			zap.String("wait", string(strategy)),
			zap.Error(err),
		)
		attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", strategy, err))
	}

	return "", fmt.Errorf("all navigation strategies failed for %s: %w", url, errors.Join(attemptErrs...))
}

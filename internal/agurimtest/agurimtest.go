// Package agurimtest contains shared test fixtures and helpers used across
// agurim's package tests.
package agurimtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ContextWithTimeout is a helper that creates a new context with timeout and
// registers ctx's cleanup with tb.Cleanup.
func ContextWithTimeout(tb testing.TB, timeout time.Duration) (ctx context.Context) {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	tb.Cleanup(cancel)

	return ctx
}

// WriteFixture writes content to name under a fresh temporary directory and
// returns the full path, for tests that need a real file on disk (directory
// scanning, atomic-write round trips).
func WriteFixture(tb testing.TB, name, content string) (path string) {
	tb.Helper()

	dir := tb.TempDir()
	path = filepath.Join(dir, name)

	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		tb.Fatalf("agurimtest: writing fixture %s: %s", path, err)
	}

	return path
}

// SampleLog is a minimal two-flow Aguri re-aggregation log, covering both
// an IPv4 and an IPv6 record with their protocol-distribution lines, for
// tests exercising the parser, formatter, and driver end to end.
const SampleLog = `%!AGURI-2.0
%%StartTime: Mon Jan  1 00:00:00 2024
%%EndTime: Mon Jan  1 00:01:00 2024
%AvgRate: 1.33Kbps 1.17pps
% criteria: combination (1 % for addresses, 1 % for protocol data)

[ 0] 192.0.2.1 198.51.100.7: 8000 (80.00%)	60 (85.71%)
[6:12345:443]80.00%% 85.71%%
[ 1] 2001:db8::1 2001:db8:1::2: 2000 (20.00%)	10 (14.29%)
[17:53:53]20.00%% 14.29%%
`

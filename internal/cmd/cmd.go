package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/AdguardTeam/golibs/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agurim/agurim/internal/config"
	"github.com/agurim/agurim/internal/engfault"
	"github.com/agurim/agurim/internal/metrics"
)

// Main is the entry point cmd/agurim/main.go calls. It resolves the run's
// configuration from args (excluding the program name), runs one
// end-to-end agurim pass, and returns the process exit code. An internal
// invariant violation raised via [engfault.Raise] is recovered here and
// reported on stderr with exit code 1.
func Main(args []string) (exitCode int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		v, ok := r.(*engfault.Violation)
		if !ok {
			panic(r)
		}

		fmt.Fprintf(os.Stderr, "agurim: %s\n", v)
		exitCode = 1
	}()

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agurim: %s\n", err)

		return 1
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewEngine(metrics.Namespace, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agurim: %s\n", err)

		return 1
	}

	d, err := New(cfg, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agurim: %s\n", err)

		return 1
	}

	ctx := context.Background()
	if err = d.Run(ctx); err != nil {
		log.Error("agurim: %s", err)

		return 1
	}

	return 0
}

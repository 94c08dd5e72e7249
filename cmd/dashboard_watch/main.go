// Dashboard watch subscribes to a tenant dashboard and logs KPIs and alerts
// whenever the dashboard API pushes a new one.
// Depends on the dashboard API being online.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/config"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/dashboard"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/dashclient"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/pathing"
)

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}
	if err := config.LoadDashboardWatchConfig(); err != nil {
		log.Fatalf("Failed to load dashboard watch config: %v", err)
	}
	cfg := config.ActiveDashboardWatchConfig

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u := dashclient.DashboardURL(cfg.DashboardAPIHost, cfg.TLSEnabled, cfg.Tenant,
		map[string][]string{"preset": {cfg.Preset}})

	// Subscribe to websocket with revive
	listener := dashclient.NewListener(u, handleDashboard)
	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func handleDashboard(d dashboard.Dashboard) {
	entry := log.WithFields(log.Fields{
		"from":      d.Period.From,
		"to":        d.Period.To,
		"readings":  len(d.Readings),
		"intervals": len(d.Intervals),
	})

	k := d.KPIs
	fields := log.Fields{
		"production_m3": k.TotalProduction.String(),
		"hours":         k.TotalHours.String(),
	}
	if k.AvgFlow != nil {
		fields["avg_flow_m3h"] = k.AvgFlow.M3PerHour
		fields["avg_flow_l_min"] = k.AvgFlow.LitersPerMinute
	}
	if k.FlowCOVPct != nil {
		fields["cov_pct"] = *k.FlowCOVPct
	}
	if k.UtilizationPct != nil {
		fields["utilization_pct"] = *k.UtilizationPct
	}
	if d.Baseline != nil {
		fields["baseline_m3h"] = *d.Baseline
	}
	entry.WithFields(fields).Info("Dashboard updated")

	for _, a := range d.Alerts {
		entry.WithFields(log.Fields{"type": a.Type, "severity": a.Severity}).Warn(a.Message)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mythologiq/gg-core/duration"
	"github.com/mythologiq/gg-core/size"
	"github.com/mythologiq/gg-core/wire"
)

func newStatusCommand(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue depth, connection count, and model status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, flags, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON instead of a human summary")
	return cmd
}

func runStatus(cmd *cobra.Command, flags *rootFlags, asJSON bool) error {
	token := os.Getenv("CORE_AUTH_TOKEN")
	c, err := dial(flags.socketPath, token)
	if err != nil {
		return err
	}
	defer c.Close()

	metricsEnv, err := c.roundTrip(wire.TypeMetricsRequest, wire.MetricsRequest{})
	if err != nil {
		return err
	}
	var metricsResp wire.MetricsResponse
	if err := wire.DecodePayload(metricsEnv, &metricsResp); err != nil {
		return err
	}

	modelsEnv, err := c.roundTrip(wire.TypeModelsRequest, wire.ModelsRequest{})
	if err != nil {
		return err
	}
	var modelsResp wire.ModelsResponse
	if err := wire.DecodePayload(modelsEnv, &modelsResp); err != nil {
		return err
	}

	if asJSON {
		out := map[string]interface{}{
			"metrics": metricsResp.Snapshot,
			"models":  modelsResp.Models,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "gg-core status")
	if secs, ok := snapshotNumber(metricsResp.Snapshot, "uptime_seconds"); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "  uptime: %s\n", duration.Uptime(uint64(secs)))
	}
	if b, ok := snapshotNumber(metricsResp.Snapshot, "kv_cache_bytes"); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "  kv cache: %s\n", size.Size(b))
	}
	for k, v := range metricsResp.Snapshot {
		if k == "uptime_seconds" || k == "kv_cache_bytes" {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", k, v)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "models loaded: %d\n", len(modelsResp.Models))
	for _, m := range modelsResp.Models {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s (tier %d, loaded=%v)\n", m.ModelID, m.Tier, m.Loaded)
	}
	return nil
}

// snapshotNumber pulls a numeric metric out of the decoded snapshot map,
// where JSON decoding has already widened every number to float64.
func snapshotNumber(snap map[string]interface{}, key string) (float64, bool) {
	v, ok := snap[key].(float64)
	return v, ok
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

const statusTimeout = 2 * time.Second

// ProbeStatus is the result of one health probe.
type ProbeStatus struct {
	Probe  string `json:"probe"`
	OK     bool   `json:"ok"`
	Code   int    `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	metricsAddr string
	jsonOutput  bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health status of a running passgate",
		Long:  `Query the liveness and readiness probes of a running passgate server.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "127.0.0.1:9100", "metrics/health address of the server")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	client := &http.Client{Timeout: statusTimeout}
	base := "http://" + cfg.metricsAddr

	statuses := []ProbeStatus{
		queryProbe(cmd.Context(), client, "liveness", base+"/healthz/liveness"),
		queryProbe(cmd.Context(), client, "readiness", base+"/healthz/readiness"),
	}

	if cfg.jsonOutput {
		output, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(output)
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	for _, s := range statuses {
		if !s.OK {
			return oops.Code("SERVER_UNHEALTHY").With("probe", s.Probe).Errorf("%s probe failed", s.Probe)
		}
	}
	return nil
}

func queryProbe(ctx context.Context, client *http.Client, probe, url string) ProbeStatus {
	status := ProbeStatus{Probe: probe}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Detail = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256)) //nolint:errcheck // detail is informational
	status.Code = resp.StatusCode
	status.OK = resp.StatusCode == http.StatusOK
	status.Detail = strings.TrimSpace(string(body))
	return status
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t------")
	for _, s := range statuses {
		state := "fail"
		if s.OK {
			state = "ok"
		}
		code := "-"
		if s.Code != 0 {
			code = fmt.Sprint(s.Code)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Probe, state, code, s.Detail)
	}

	_ = w.Flush()
	return sb.String()
}

// formatStatusJSON formats the probes as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}

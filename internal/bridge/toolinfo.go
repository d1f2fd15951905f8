package bridge

import "time"

// toolInfo answers codex-bridge-info: everything a client needs to know
// about this gateway's own identity and the upstream it is driving, without
// making an upstream call.
func (s *Server) toolInfo() map[string]any {
	payload := map[string]any{
		"bridgeName":    serverName,
		"bridgeVersion": serverVersion,
		"binaryPath":    s.binary,
		"stateDir":      s.stateDir,
		"sessionFile":   s.store.Path(),
		"sessionCount":  s.store.Count(),
		"uptimeSeconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if info := s.client.ServerInfo(); info != nil {
		payload["upstreamServerInfo"] = map[string]any{
			"name":    info.Name,
			"version": info.Version,
		}
	} else {
		payload["upstreamServerInfo"] = nil
	}
	return jsonToolResult(payload, false)
}

// toolOptions answers codex-bridge-options: the static enum/catalogue data
// a client needs to build a codex call, filtered by the inferred auth mode
// and enriched from the schema cache when one was found at startup.
func (s *Server) toolOptions() map[string]any {
	payload := map[string]any{
		"models":           s.catalogue(),
		"authMode":         string(s.authMode()),
		"sandboxPolicies":  enumOrFallback(s.schemaEnums, "sandboxPolicy", fallbackSandboxPolicies),
		"approvalPolicies": enumOrFallback(s.schemaEnums, "approvalPolicy", fallbackApprovalPolicies),
		"reasoningEfforts": enumOrFallback(s.schemaEnums, "reasoningEffort", fallbackReasoningEfforts),
		"taskTypes":        []string{"coding", "discussion", "research"},
		"defaults": map[string]any{
			"sandbox":          "danger-full-access",
			"reasoningEffort":  "xhigh",
			"timeoutMs":        defaultTimeoutMs,
			"startupTimeoutMs": defaultStartupTimeoutMs,
		},
	}
	return jsonToolResult(payload, false)
}

var (
	fallbackSandboxPolicies  = []string{"read-only", "workspace-write", "danger-full-access"}
	fallbackApprovalPolicies = []string{"untrusted", "on-failure", "on-request", "never"}
	fallbackReasoningEfforts = []string{"minimal", "low", "medium", "high", "xhigh"}
)

func enumOrFallback(cached map[string][]string, key string, fallback []string) []string {
	if cached == nil {
		return fallback
	}
	if v, ok := cached[key]; ok && len(v) > 0 {
		return v
	}
	return fallback
}

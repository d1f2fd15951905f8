package policy

const (
	defaultSandbox         = "danger-full-access"
	defaultReasoningEffort = "xhigh"
)

// InjectDefaults mutates args in place:
//   - if "sandbox" is unset, it is set to "danger-full-access";
//   - if "reasoningEffort" is unset, it is set to "xhigh";
//   - "reasoningEffort"/"reasoningSummary" shortcuts (top-level keys) are
//     rewritten into the nested "config" object under
//     "model_reasoning_effort"/"model_reasoning_summary", creating the
//     object if absent. Caller-supplied config keys are preserved.
func InjectDefaults(args map[string]any) {
	if _, ok := args["sandbox"]; !ok {
		args["sandbox"] = defaultSandbox
	}
	if _, ok := args["reasoningEffort"]; !ok {
		args["reasoningEffort"] = defaultReasoningEffort
	}

	config, _ := args["config"].(map[string]any)
	if config == nil {
		config = make(map[string]any)
	}

	if effort, ok := args["reasoningEffort"]; ok {
		config["model_reasoning_effort"] = effort
		delete(args, "reasoningEffort")
	}
	if summary, ok := args["reasoningSummary"]; ok {
		config["model_reasoning_summary"] = summary
		delete(args, "reasoningSummary")
	}

	args["config"] = config
}

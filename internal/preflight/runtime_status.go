package preflight

import (
	"context"
	"fmt"
	"strings"

	"overlaystudio/internal/config"
)

// CheckLLMFromConfig evaluates the content-intelligence provider. A disabled
// provider passes because the heuristic planner covers it.
func CheckLLMFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "LLM provider"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.LLM.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled (heuristic planner)"}
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	return CheckLLM(ctx, name, newLLMClient(cfg.LLM))
}

// CheckStorageFromConfig evaluates object storage when s3:// sources are
// enabled.
func CheckStorageFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Object storage"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Storage.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Storage.Endpoint) == "" {
		return Result{Name: name, Detail: "Missing endpoint"}
	}
	client, err := newStorageClient(cfg.Storage)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("client setup failed (%v)", err)}
	}
	return CheckObjectStorage(ctx, name, client)
}

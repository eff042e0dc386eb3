package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ModelSize represents t-shirt sizes for models
type ModelSize string

const (
	SizeXS ModelSize = "XS" // < 2B params (super fast)
	SizeS  ModelSize = "S"  // 2-6B params (fast)
	SizeM  ModelSize = "M"  // 7-13B params (balanced)
	SizeL  ModelSize = "L"  // 14-34B params (powerful)
	SizeXL ModelSize = "XL" // 35B+ params (maximum power)
)

// Model is one entry from LM Studio's model list.
type Model struct {
	ID        string    `json:"id" yaml:"id"`
	Size      ModelSize `json:"size" yaml:"size"`
	Embedding bool      `json:"embedding" yaml:"embedding"`
}

// mixture-of-experts IDs like "8x7b" are sized by one expert
var paramPattern = regexp.MustCompile(`(?:^|[^a-z0-9.])(?:\d+x)?(\d+(?:\.\d+)?)([bm])(?:$|[^a-z])`)

// families without a parameter count in the name
var knownFamilies = []struct {
	substr string
	size   ModelSize
}{
	{"phi-3-mini", SizeS},
	{"phi-3", SizeS},
	{"mixtral", SizeL},
	{"codestral", SizeL},
	{"mistral", SizeM},
	{"zephyr", SizeM},
}

// DetectModelSize guesses a model's size from its ID, preferring an
// explicit parameter count like "7b" or "500m". Unknown models are M.
func DetectModelSize(modelID string) ModelSize {
	lower := strings.ToLower(modelID)

	if m := paramPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if m[2] == "m" {
				n /= 1000
			}
			return sizeForParams(n)
		}
	}

	for _, f := range knownFamilies {
		if strings.Contains(lower, f.substr) {
			return f.size
		}
	}
	return SizeM
}

func sizeForParams(billions float64) ModelSize {
	switch {
	case billions < 2:
		return SizeXS
	case billions < 7:
		return SizeS
	case billions < 14:
		return SizeM
	case billions < 35:
		return SizeL
	default:
		return SizeXL
	}
}

// IsEmbeddingModel reports whether the ID names an embedding model.
func IsEmbeddingModel(modelID string) bool {
	lower := strings.ToLower(modelID)
	return strings.Contains(lower, "embed") || strings.Contains(lower, "bge-") || strings.Contains(lower, "e5-")
}

// ListModels returns the models LM Studio has available, sorted by ID.
func (c *LMStudioClient) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LM Studio not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("LM Studio returned status %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode models: %w", err)
	}

	models := make([]Model, 0, len(result.Data))
	for _, d := range result.Data {
		models = append(models, Model{
			ID:        d.ID,
			Size:      DetectModelSize(d.ID),
			Embedding: IsEmbeddingModel(d.ID),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

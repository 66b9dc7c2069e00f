package openfoodfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labelinsight/label-insight/internal/core/domain"
	"github.com/labelinsight/label-insight/internal/infrastructure/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	searchPageSize  = 5
	maxResponseSize = 4 << 20
)

// Client queries the Open Food Facts public API. Lookups are best effort: a
// product that is not in the directory yields a nil candidate, not an error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

func NewClient(baseURL string, executor *resilience.Executor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		executor:   executor,
		logger:     logger,
	}
}

type offProduct struct {
	Code            string             `json:"code"`
	ProductName     string             `json:"product_name"`
	Brands          string             `json:"brands"`
	IngredientsText string             `json:"ingredients_text"`
	Nutriments      map[string]float64 `json:"nutriments"`
}

type searchResponse struct {
	Count    int          `json:"count"`
	Products []offProduct `json:"products"`
}

type productResponse struct {
	Status  int        `json:"status"`
	Product offProduct `json:"product"`
}

// SearchTop runs a free-text search and returns only the highest-ranked hit.
// Candidate validation happens upstream; ranking beyond the directory's own
// relevance order is out of scope here.
func (c *Client) SearchTop(ctx context.Context, name string) (*domain.EnrichmentCandidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	query := url.Values{}
	query.Set("search_terms", name)
	query.Set("search_simple", "1")
	query.Set("action", "process")
	query.Set("json", "1")
	query.Set("page_size", fmt.Sprintf("%d", searchPageSize))
	endpoint := fmt.Sprintf("%s/cgi/search.pl?%s", c.baseURL, query.Encode())

	var parsed searchResponse
	err := c.executor.Do(ctx, "off_search", classifyDirectoryError, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &parsed)
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "off search", err)
	}
	if len(parsed.Products) == 0 {
		c.logger.Info("directory_no_candidates", "query", name)
		return nil, nil
	}
	return candidateFrom(parsed.Products[0]), nil
}

// FetchByBarcode resolves a single product by its EAN/UPC barcode.
func (c *Client) FetchByBarcode(ctx context.Context, barcode string) (*domain.EnrichmentCandidate, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "off fetch", fmt.Errorf("empty barcode"))
	}

	endpoint := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(barcode))

	var parsed productResponse
	err := c.executor.Do(ctx, "off_fetch", classifyDirectoryError, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &parsed)
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "off fetch", err)
	}
	if parsed.Status != 1 {
		return nil, nil
	}
	return candidateFrom(parsed.Product), nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("open food facts returned status %d", e.status)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "label-insight/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return &httpStatusError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyDirectoryError retries transport failures and upstream 5xx; a 4xx
// means the request itself is wrong and retrying cannot help.
func classifyDirectoryError(err error) resilience.Verdict {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.status >= 500 || statusErr.status == http.StatusTooManyRequests {
			return resilience.Verdict{Retry: true, Record: true}
		}
		return resilience.Verdict{Retry: false, Record: false}
	}
	return resilience.Verdict{Retry: true, Record: true}
}

func candidateFrom(p offProduct) *domain.EnrichmentCandidate {
	return &domain.EnrichmentCandidate{
		Barcode:         p.Code,
		Name:            strings.TrimSpace(p.ProductName),
		Brand:           firstBrand(p.Brands),
		IngredientsText: strings.TrimSpace(p.IngredientsText),
		Nutriments:      nutritionFrom(p.Nutriments),
	}
}

func firstBrand(brands string) string {
	if idx := strings.Index(brands, ","); idx >= 0 {
		brands = brands[:idx]
	}
	return strings.TrimSpace(brands)
}

// nutritionFrom keeps the null-never-zero contract: keys absent from the
// directory record stay nil instead of collapsing to 0.
func nutritionFrom(nutriments map[string]float64) domain.NutritionRecord {
	get := func(key string) *float64 {
		if v, ok := nutriments[key]; ok {
			return &v
		}
		return nil
	}
	return domain.NutritionRecord{
		EnergyKcal:    get("energy-kcal_100g"),
		Protein:       get("proteins_100g"),
		Carbohydrates: get("carbohydrates_100g"),
		Sugar:         get("sugars_100g"),
		Fat:           get("fat_100g"),
		SaturatedFat:  get("saturated-fat_100g"),
		Salt:          get("salt_100g"),
	}
}

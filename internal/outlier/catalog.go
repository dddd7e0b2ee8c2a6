package outlier

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/stats"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// EntrySource returns the outliers of a named population.
type EntrySource interface {
	Outliers(population string) []models.OutlierEntry
}

// CuratedRecord is an editorially maintained outlier. Its z-score was
// computed offline against the full dataset and its analogy was written by
// hand.
type CuratedRecord struct {
	ID            string         `yaml:"id"`
	Label         string         `yaml:"label"`
	Spending      float64        `yaml:"spending"`
	Claims        float64        `yaml:"claims"`
	Beneficiaries float64        `yaml:"beneficiaries"`
	Value         float64        `yaml:"value"`
	ZScore        float64        `yaml:"z_score"`
	Analogy       models.Analogy `yaml:"analogy"`
}

// CatalogMetadata describes the offline run that produced a catalog.
type CatalogMetadata struct {
	ComputedAt      time.Time `yaml:"computed_at" json:"computed_at"`
	Methodology     string    `yaml:"methodology" json:"methodology"`
	Source          string    `yaml:"source" json:"source"`
	TotalProviders  int       `yaml:"total_providers" json:"total_providers"`
	TotalHCPCSCodes int       `yaml:"total_hcpcs_codes" json:"total_hcpcs_codes"`
	TotalSpending   float64   `yaml:"total_spending" json:"total_spending"`
}

// Catalog holds curated outliers grouped by population.
type Catalog struct {
	Metadata    CatalogMetadata            `yaml:"metadata"`
	Populations map[string][]CuratedRecord `yaml:"populations"`

	cfg Config
}

// DefaultCatalog returns the catalog shipped with the binary.
func DefaultCatalog(cfg Config) (*Catalog, error) {
	return parseCatalog(defaultCatalogYAML, cfg)
}

// LoadCatalog reads a curated catalog from a YAML file.
func LoadCatalog(path string, cfg Config) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outlier catalog: %w", err)
	}
	return parseCatalog(data, cfg)
}

func parseCatalog(data []byte, cfg Config) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outlier policy: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse outlier catalog: %w", err)
	}
	for name, records := range c.Populations {
		for i, r := range records {
			if r.ID == "" {
				return nil, fmt.Errorf("catalog %s[%d]: id must not be empty", name, i)
			}
			if r.Analogy.Probability == "" {
				return nil, fmt.Errorf("catalog %s[%d]: probability must not be empty", name, i)
			}
		}
	}
	c.cfg = cfg
	return &c, nil
}

// Names returns the populations in the catalog, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Populations))
	for name := range c.Populations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Outliers returns the curated entries of a population above the threshold,
// ordered by z-score descending.
func (c *Catalog) Outliers(population string) []models.OutlierEntry {
	entries := []models.OutlierEntry{}
	for _, r := range c.Populations[population] {
		if r.ZScore <= c.cfg.Threshold {
			continue
		}
		entry, ok := FromCuratedRecord(c.cfg, population, r)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score.ZScore > entries[j].Score.ZScore
	})
	return entries
}

// FromCuratedRecord builds an entry that keeps the record's editorial
// analogy. Level and tier still come from the z-score so curated and
// computed entries sort and filter the same way.
func FromCuratedRecord(cfg Config, population string, r CuratedRecord) (models.OutlierEntry, bool) {
	tier, level, ok := cfg.TierFor(r.ZScore)
	if !ok {
		return models.OutlierEntry{}, false
	}
	return models.OutlierEntry{
		ID:            r.ID,
		Label:         r.Label,
		Population:    population,
		Spending:      r.Spending,
		Claims:        r.Claims,
		Beneficiaries: r.Beneficiaries,
		Score:         models.ZScoreResult{Value: curatedValue(population, r), ZScore: r.ZScore},
		Level:         level,
		Tier:          tier.Label,
		Analogy:       r.Analogy,
		Curated:       true,
	}, true
}

// curatedValue is the measure the record was scored on: its explicit value,
// else the population's measure derived from the record totals. A ratio
// with no valid denominator is 0.
func curatedValue(population string, r CuratedRecord) float64 {
	if r.Value != 0 {
		return r.Value
	}
	var v float64
	switch population {
	case PopulationCostPerClaim:
		v, _ = stats.Ratio(r.Spending, r.Claims)
	case PopulationClaimsPerBeneficiary:
		v, _ = stats.Ratio(r.Claims, r.Beneficiaries)
	default:
		v = r.Spending
	}
	return v
}

// Run binds a classifier to the populations of one snapshot.
type Run struct {
	classifier  *Classifier
	populations map[string]Population
}

// NewRun prepares lazy classification of pops.
func NewRun(c *Classifier, pops ...Population) *Run {
	r := &Run{classifier: c, populations: make(map[string]Population, len(pops))}
	for _, p := range pops {
		r.populations[p.Name] = p
	}
	return r
}

// Outliers classifies the named population. Unknown names yield an empty
// result.
func (r *Run) Outliers(population string) []models.OutlierEntry {
	pop, ok := r.populations[population]
	if !ok {
		return []models.OutlierEntry{}
	}
	return r.classifier.Classify(pop)
}

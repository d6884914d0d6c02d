package database

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/igapp/aurora/internal/metrics"
)

//go:embed default_catalogs.yaml
var defaultCatalogsYAML []byte

// CatalogEntry is one named row of a reference catalog
type CatalogEntry struct {
	Name        string `yaml:"name"`
	Level       int    `yaml:"level,omitempty"`
	Description string `yaml:"description"`
}

// CatalogSeed is the content of a catalog seed file
type CatalogSeed struct {
	Severities    []CatalogEntry `yaml:"severities"`
	RuleStatuses  []CatalogEntry `yaml:"rule_statuses"`
	AlertStatuses []CatalogEntry `yaml:"alert_statuses"`
}

// SeedResult reports how many catalog rows were created and updated
type SeedResult struct {
	Created int
	Updated int
}

// DefaultCatalogSeed returns the built-in severities and statuses
func DefaultCatalogSeed() (*CatalogSeed, error) {
	return ParseCatalogSeed(defaultCatalogsYAML)
}

// LoadCatalogSeed reads a catalog seed file from disk
func LoadCatalogSeed(path string) (*CatalogSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return ParseCatalogSeed(data)
}

// ParseCatalogSeed decodes and checks a YAML catalog seed
func ParseCatalogSeed(data []byte) (*CatalogSeed, error) {
	var seed CatalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}
	for _, group := range [][]CatalogEntry{seed.Severities, seed.RuleStatuses, seed.AlertStatuses} {
		seen := make(map[string]bool, len(group))
		for _, e := range group {
			if e.Name == "" {
				return nil, errors.New("catalog seed entry without a name")
			}
			if seen[e.Name] {
				return nil, fmt.Errorf("duplicate catalog seed entry %q", e.Name)
			}
			seen[e.Name] = true
		}
	}
	return &seed, nil
}

// SeedCatalogs ensures every seed entry exists among non-deleted catalog rows.
// Existing rows get their description (and severity level) refreshed. Safe to run repeatedly.
func SeedCatalogs(db *gorm.DB, seed *CatalogSeed) (SeedResult, error) {
	var result SeedResult
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, e := range seed.Severities {
			var existing Severity
			err := tx.Scopes(NotDeleted).Where("name = ?", e.Name).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				row := &Severity{Name: e.Name, Level: e.Level, Description: e.Description}
				if err := tx.Create(row).Error; err != nil {
					return fmt.Errorf("failed to create severity %s: %w", e.Name, err)
				}
				result.Created++
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Updates(map[string]interface{}{
					"level":       e.Level,
					"description": e.Description,
				}).Error; err != nil {
					return fmt.Errorf("failed to update severity %s: %w", e.Name, err)
				}
				result.Updated++
			}
		}

		for _, e := range seed.RuleStatuses {
			var existing RuleStatus
			err := tx.Scopes(NotDeleted).Where("name = ?", e.Name).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&RuleStatus{Name: e.Name, Description: e.Description}).Error; err != nil {
					return fmt.Errorf("failed to create rule status %s: %w", e.Name, err)
				}
				result.Created++
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Update("description", e.Description).Error; err != nil {
					return fmt.Errorf("failed to update rule status %s: %w", e.Name, err)
				}
				result.Updated++
			}
		}

		for _, e := range seed.AlertStatuses {
			var existing AlertStatus
			err := tx.Scopes(NotDeleted).Where("name = ?", e.Name).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&AlertStatus{Name: e.Name, Description: e.Description}).Error; err != nil {
					return fmt.Errorf("failed to create alert status %s: %w", e.Name, err)
				}
				result.Created++
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Update("description", e.Description).Error; err != nil {
					return fmt.Errorf("failed to update alert status %s: %w", e.Name, err)
				}
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	metrics.CatalogSeedRows.WithLabelValues("created").Add(float64(result.Created))
	metrics.CatalogSeedRows.WithLabelValues("updated").Add(float64(result.Updated))
	zap.S().Infow("Catalogs seeded", "created", result.Created, "updated", result.Updated)
	return result, nil
}

package specialist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/geomind/agentcore/pkg/models"
)

// DefaultBasePrompt opens every enriched prompt.
const DefaultBasePrompt = `You are a geodata and GIS assistant for a municipal land information service.`

// DefaultProfiles returns the built-in specialist profiles.
func DefaultProfiles() []models.SpecialistProfile {
	return []models.SpecialistProfile{
		{
			ID:          "code",
			Name:        "Code Specialist",
			Description: "Software development in Python, JavaScript, SQL and Go",
			Triggers: []string{
				`\b(code|script|function|class|module)\b`,
				`\b(python|javascript|typescript|rust|golang)\b`,
				`\b(implement|develop|refactor)\b`,
				`\b(bug|debug|fix|stack ?trace)\b`,
			},
			Directive: "Write clean, commented code with error handling. " +
				"Put code in fenced blocks tagged with the language.",
		},
		{
			ID:          "sql",
			Name:        "SQL/PostGIS Specialist",
			Description: "Spatial databases on PostgreSQL/PostGIS and Oracle",
			Triggers: []string{
				`\b(sql|select|insert|update|delete|join)\b`,
				`\b(postgis|postgresql|oracle|database)\b`,
				`\b(st_\w+|geometry|spatial)\b`,
				`\b(query|table|schema|index)\b`,
			},
			Directive: "Use spatial functions (ST_*) and GiST indexes where relevant. " +
				"Assume the Swiss reference frame EPSG:2056 (LV95) unless told otherwise. " +
				"Comment each statement and always bound result sets with LIMIT.",
		},
		{
			ID:          "fme",
			Name:        "FME Specialist",
			Description: "ETL workbenches with FME",
			Triggers: []string{
				`\b(fme|workbench|transformer|etl)\b`,
				`\b(reader|writer|feature)\b`,
				`\b(interlis|shapefile|geopackage)\b`,
			},
			Directive: "Design efficient workbenches for geospatial ETL and document each step with its key parameters.",
		},
		{
			ID:          "qgis",
			Name:        "QGIS Specialist",
			Description: "QGIS Desktop and PyQGIS",
			Triggers: []string{
				`\b(qgis|pyqgis|plugin|layer)\b`,
				`\b(style|symbology|expression|filter)\b`,
				`(\.qgs|\.qgz)\b`,
			},
			Directive: "Give practical solutions for project setup, styles, expressions and PyQGIS scripts.",
		},
		{
			ID:          "doc",
			Name:        "Documentation Specialist",
			Description: "Technical documentation and notes",
			Triggers: []string{
				`\b(documentation|document|readme)\b`,
				`\b(report|procedure|guide|memo)\b`,
				`\b(explain|describe|summari[sz]e)\b`,
			},
			Directive: "Produce clear, structured Markdown for the target audience. Prefer lists and tables.",
		},
		{
			ID:          "qa",
			Name:        "QA/Review Specialist",
			Description: "Code review, tests and quality",
			Triggers: []string{
				`\b(review|verify|audit)\b`,
				`\b(quality|qa|tests?|unit ?tests?)\b`,
				`\b(security|vulnerabilit(y|ies))\b`,
			},
			Directive: "Identify bugs, security flaws and performance problems. " +
				"Report findings as a list graded critical, major or minor.",
		},
		{
			ID:          "optimize",
			Name:        "Optimization Specialist",
			Description: "Performance and cost optimization",
			Triggers: []string{
				`\b(optimi[sz]e|performance|slow|faster)\b`,
				`\b(memory|cpu|resources)\b`,
				`\b(cost|budget)\b`,
			},
			Directive: "Analyze complexity and bottlenecks, then propose measurable improvements with expected gains.",
		},
	}
}

type profilesFile struct {
	BasePrompt string                     `yaml:"basePrompt"`
	Profiles   []models.SpecialistProfile `yaml:"profiles"`
}

// LoadProfiles reads a YAML profile file. It returns the profiles and the
// optional base prompt override (empty when unset).
func LoadProfiles(path string) ([]models.SpecialistProfile, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read profiles: %w", err)
	}
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parse profiles %s: %w", path, err)
	}
	if len(f.Profiles) == 0 {
		return nil, "", fmt.Errorf("profiles %s: no profiles defined", path)
	}
	return f.Profiles, f.BasePrompt, nil
}

package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kubeconsole/rbaclens/pkg/analyzer"
	"github.com/kubeconsole/rbaclens/pkg/classifier"
)

// SARIFReporter outputs the analysis in SARIF format, one result per
// service account above low risk, per orphaned role, per unused account,
// and per warning.
type SARIFReporter struct{}

// SARIF structures.
type SARIF struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []SARIFRun `json:"runs"`
}

type SARIFRun struct {
	Tool    SARIFTool     `json:"tool"`
	Results []SARIFResult `json:"results"`
}

type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

type SARIFDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []SARIFRule `json:"rules"`
}

type SARIFRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription SARIFMultiformatString `json:"shortDescription"`
}

type SARIFMultiformatString struct {
	Text string `json:"text"`
}

type SARIFResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   SARIFMessage    `json:"message"`
	Locations []SARIFLocation `json:"locations"`
}

type SARIFMessage struct {
	Text string `json:"text"`
}

type SARIFLocation struct {
	PhysicalLocation SARIFPhysicalLocation `json:"physicalLocation"`
}

type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
}

type SARIFArtifactLocation struct {
	URI string `json:"uri"`
}

const (
	rulePrivilegedAccount = "RBACLENS001"
	ruleOrphanedRole      = "RBACLENS002"
	ruleUnusedAccount     = "RBACLENS003"
	ruleDataWarning       = "RBACLENS004"
)

// Report outputs the analysis in SARIF format.
func (r *SARIFReporter) Report(a *analyzer.RBACAnalysis, writer io.Writer) error {
	rules := []SARIFRule{
		{
			ID:               rulePrivilegedAccount,
			Name:             "Privileged Service Account",
			ShortDescription: SARIFMultiformatString{Text: "Service account holds permissions above the low-risk tier"},
		},
		{
			ID:               ruleOrphanedRole,
			Name:             "Orphaned Role",
			ShortDescription: SARIFMultiformatString{Text: "Role or ClusterRole is referenced by no binding"},
		},
		{
			ID:               ruleUnusedAccount,
			Name:             "Unused Service Account",
			ShortDescription: SARIFMultiformatString{Text: "Service account is granted no role by any binding"},
		},
		{
			ID:               ruleDataWarning,
			Name:             "RBAC Data Warning",
			ShortDescription: SARIFMultiformatString{Text: "Malformed or dangling RBAC object recovered during analysis"},
		},
	}

	var results []SARIFResult
	for _, account := range a.PrivilegedServiceAccounts {
		if account.RiskLevel == classifier.RiskLevelLow {
			continue
		}
		results = append(results, SARIFResult{
			RuleID: rulePrivilegedAccount,
			Level:  riskToSARIFLevel(account.RiskLevel),
			Message: SARIFMessage{
				Text: fmt.Sprintf("ServiceAccount %s/%s has %s-risk effective permissions (%d entries)",
					account.Namespace, account.Name, account.RiskLevel, len(account.Permissions)),
			},
			Locations: sarifLocation(fmt.Sprintf("namespace/%s/ServiceAccount/%s", account.Namespace, account.Name)),
		})
	}
	for _, role := range a.OrphanedRoles {
		uri := fmt.Sprintf("%s/%s", role.Kind, role.Name)
		if role.Namespace != "" {
			uri = fmt.Sprintf("namespace/%s/%s", role.Namespace, uri)
		}
		results = append(results, SARIFResult{
			RuleID:    ruleOrphanedRole,
			Level:     "note",
			Message:   SARIFMessage{Text: fmt.Sprintf("%s is referenced by no binding", role)},
			Locations: sarifLocation(uri),
		})
	}
	for _, sa := range a.UnusedServiceAccounts {
		results = append(results, SARIFResult{
			RuleID:    ruleUnusedAccount,
			Level:     "note",
			Message:   SARIFMessage{Text: fmt.Sprintf("ServiceAccount %s is granted no role", sa)},
			Locations: sarifLocation(fmt.Sprintf("namespace/%s/ServiceAccount/%s", sa.Namespace, sa.Name)),
		})
	}
	for _, warning := range a.Warnings {
		results = append(results, SARIFResult{
			RuleID:    ruleDataWarning,
			Level:     "warning",
			Message:   SARIFMessage{Text: warning.String()},
			Locations: sarifLocation(warning.Object),
		})
	}

	sarif := SARIF{
		Version: "2.1.0",
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Runs: []SARIFRun{
			{
				Tool: SARIFTool{
					Driver: SARIFDriver{
						Name:           "rbaclens",
						Version:        "1.0.0",
						InformationURI: "https://github.com/kubeconsole/rbaclens",
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sarif)
}

func sarifLocation(uri string) []SARIFLocation {
	return []SARIFLocation{
		{
			PhysicalLocation: SARIFPhysicalLocation{
				ArtifactLocation: SARIFArtifactLocation{URI: uri},
			},
		},
	}
}

func riskToSARIFLevel(level classifier.RiskLevel) string {
	switch level {
	case classifier.RiskLevelCritical, classifier.RiskLevelHigh:
		return "error"
	case classifier.RiskLevelMedium:
		return "warning"
	case classifier.RiskLevelLow:
		return "note"
	default:
		return "none"
	}
}

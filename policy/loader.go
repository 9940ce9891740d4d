package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a policy from a YAML file and compiles any rego rules.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	if err := pol.Compile(); err != nil {
		return nil, err
	}

	return &pol, nil
}

// Compile validates the rule list and prepares embedded rego modules.
func (p *Policy) Compile() error {
	for i := range p.Rules {
		rule := &p.Rules[i]
		if rule.Name == "" {
			return fmt.Errorf("rule %d has no name", i)
		}
		if !rule.hasAnyMatcher() {
			return fmt.Errorf("rule %q has no matcher", rule.Name)
		}
		if rule.Rego != "" {
			query, err := compileRego(rule.Name, rule.Rego)
			if err != nil {
				return fmt.Errorf("rule %q: %w", rule.Name, err)
			}
			rule.regoQuery = query
		}
	}
	return nil
}

// Default returns the built-in preservation policy: organizational and
// identity-management resources first, then managed-service resources,
// then naming-convention matches for the protected domain.
func Default(protectedDomain string, restrictedAccounts []string) *Policy {
	pol := &Policy{Rules: []Rule{
		{Name: "iam", Service: "iam", Reason: "IAM resource - preserve all"},
		{Name: "organizations", Service: "organizations", Reason: "Organizations resource"},
		{Name: "org-access-role", Pattern: "OrganizationAccountAccessRole", Reason: "Organization management role"},
		{Name: "sso", Pattern: "AWSReservedSSO", Reason: "AWS SSO managed resource"},
		{Name: "service-linked", Pattern: "aws-service-role", Reason: "AWS service-linked role"},
		{Name: "control-tower", Pattern: "ControlTower", Reason: "AWS Control Tower landing zone resource"},
		{Name: "control-tower-lower", Pattern: "aws-controltower", Reason: "Control Tower managed resource"},
		{Name: "landing-zone", Pattern: "AWS-Landing-Zone", Reason: "AWS Landing Zone resource"},
		{Name: "systems-manager", Pattern: "AWS-SystemsManager", Reason: "AWS Systems Manager resource"},
		{Name: "budgets", Service: "budgets", Reason: "AWS Budgets resource"},
		{Name: "budgets-named", Pattern: "aws-budgets", Reason: "AWS Budgets resource"},
		{Name: "savings-plan", Pattern: "savings-plan", Reason: "Savings Plan resource"},
	}}

	if protectedDomain != "" {
		pol.Rules = append(pol.Rules, Rule{
			Name:    "protected-domain",
			Pattern: protectedDomain,
			Reason:  "protected domain resource",
		})
	}

	if len(restrictedAccounts) > 0 {
		pol.Rules = append(pol.Rules, Rule{
			Name:     "restricted-accounts",
			Accounts: restrictedAccounts,
			Reason:   "resource in restricted account",
		})
	}

	return pol
}

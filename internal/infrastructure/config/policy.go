// Package config loads the access policy: the role hierarchy, the public
// allow-list and the per-route authorization rules.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petclinic/auth-service/internal/core/domain"
)

//go:embed policy.yaml
var defaultPolicy []byte

// Policy is the validated, ready-to-use access policy.
type Policy struct {
	Roles  *domain.RoleHierarchy
	Public []string
	Rules  []domain.AccessRule
}

type policyDoc struct {
	Roles []struct {
		Name   string `yaml:"name"`
		Parent string `yaml:"parent"`
	} `yaml:"roles"`
	Public []string `yaml:"public"`
	Rules  []struct {
		Method      string   `yaml:"method"`
		Path        string   `yaml:"path"`
		Roles       []string `yaml:"roles"`
		OwnerParam  string   `yaml:"owner_param"`
		BypassRoles []string `yaml:"bypass_roles"`
	} `yaml:"rules"`
}

// LoadPolicy reads the policy at path, or the built-in one when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return ParsePolicy(defaultPolicy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(data)
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("config: embedded policy is invalid: %v", err))
	}
	return p
}

// ParsePolicy decodes and validates a policy document. Roles must be listed
// after their parent.
func ParsePolicy(data []byte) (*Policy, error) {
	var doc policyDoc
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	roles := domain.NewRoleHierarchy()
	for _, r := range doc.Roles {
		if roles.Known(r.Name) {
			return nil, fmt.Errorf("policy: role %q defined twice", r.Name)
		}
		if err := roles.Define(r.Name, r.Parent); err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
	}

	p := &Policy{Roles: roles, Public: doc.Public}
	seen := make(map[string]struct{}, len(doc.Rules))
	for _, raw := range doc.Rules {
		rule := domain.AccessRule{
			Method:      strings.ToUpper(raw.Method),
			Path:        raw.Path,
			Roles:       raw.Roles,
			OwnerParam:  raw.OwnerParam,
			BypassRoles: raw.BypassRoles,
		}
		if err := validateRule(rule, roles); err != nil {
			return nil, fmt.Errorf("policy: %s: %w", rule.Key(), err)
		}
		if _, dup := seen[rule.Key()]; dup {
			return nil, fmt.Errorf("policy: duplicate rule for %s", rule.Key())
		}
		seen[rule.Key()] = struct{}{}
		p.Rules = append(p.Rules, rule)
	}
	return p, nil
}

func validateRule(r domain.AccessRule, roles *domain.RoleHierarchy) error {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return errors.New("path must start with /")
	}
	if len(r.Roles) == 0 && r.OwnerParam == "" {
		return errors.New("rule needs roles or owner_param")
	}
	if r.OwnerParam != "" && !strings.Contains(r.Path, ":"+r.OwnerParam) {
		return fmt.Errorf("owner_param %q is not a parameter of the path", r.OwnerParam)
	}
	for _, name := range append(append([]string{}, r.Roles...), r.BypassRoles...) {
		if !roles.Known(name) {
			return fmt.Errorf("%w: %s", domain.ErrRoleNotFound, name)
		}
	}
	return nil
}

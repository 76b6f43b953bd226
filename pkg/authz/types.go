package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	globalDomain          = "global"
	rolePrefix            = "role"
	objectSeparator       = "."
	subjectSeparator      = ":"
	defaultActionWildcard = "*"

	ActionRead  = "read"
	ActionWrite = "write"
)

// Request encapsulates all parameters required to evaluate a Casbin rule.
type Request struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

func NewRequest(subject, domain, object, action string) Request {
	return Request{
		Subject: subject,
		Domain:  domain,
		Object:  object,
		Action:  NormalizeAction(action),
	}
}

// SubjectForRole returns the canonical identifier for a role-based subject.
func SubjectForRole(roleSlug string) string {
	roleSlug = strings.TrimSpace(roleSlug)
	if roleSlug == "" {
		roleSlug = "anonymous"
	}
	if strings.HasPrefix(roleSlug, rolePrefix+subjectSeparator) {
		return strings.ToLower(roleSlug)
	}
	return fmt.Sprintf("%s%s%s", rolePrefix, subjectSeparator, strings.ToLower(roleSlug))
}

// DomainFromTenant converts a tenant ID into a casbin domain string.
func DomainFromTenant(id uuid.UUID) string {
	if id == uuid.Nil {
		return globalDomain
	}
	return strings.ToLower(id.String())
}

// ObjectName returns the canonical module.resource string, lowercased.
func ObjectName(module, resource string) string {
	module = strings.ToLower(strings.TrimSpace(module))
	resource = strings.ToLower(strings.TrimSpace(resource))
	if module == "" {
		module = "global"
	}
	if resource == "" {
		resource = "resource"
	}
	return module + objectSeparator + resource
}

// NormalizeAction returns a normalized action string.
func NormalizeAction(action string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return defaultActionWildcard
	}
	return action
}

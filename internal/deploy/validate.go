package deploy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one validation result tied to a service.
type Finding struct {
	Severity Severity `json:"severity"`
	Service  string   `json:"service"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Service, f.Message)
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs structural checks over the descriptor. It returns every
// finding rather than stopping at the first so operators can fix a file in
// one pass.
func (d *Descriptor) Validate() []Finding {
	var findings []Finding

	names := make([]string, 0, len(d.Services))
	for name := range d.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	hostPorts := make(map[string]string)

	for _, name := range names {
		svc := d.Services[name]

		if svc.Image == "" && svc.Build == "" {
			findings = append(findings, Finding{SeverityError, name, "service declares neither image nor build"})
		}

		for _, dep := range svc.DependsOn {
			if _, ok := d.Services[dep]; !ok {
				findings = append(findings, Finding{SeverityError, name,
					fmt.Sprintf("depends_on references undeclared service %q", dep)})
			}
		}

		for _, port := range svc.Ports {
			host, _, err := splitPort(port)
			if err != nil {
				findings = append(findings, Finding{SeverityError, name, err.Error()})
				continue
			}
			if owner, taken := hostPorts[host]; taken {
				findings = append(findings, Finding{SeverityError, name,
					fmt.Sprintf("host port %s already published by service %q", host, owner)})
			} else {
				hostPorts[host] = name
			}
		}

		for _, volume := range svc.Volumes {
			parts := strings.SplitN(volume, ":", 2)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				findings = append(findings, Finding{SeverityError, name,
					fmt.Sprintf("volume %q is not a host:container pair", volume)})
				continue
			}
			if !strings.HasPrefix(parts[1], "/") {
				findings = append(findings, Finding{SeverityError, name,
					fmt.Sprintf("volume %q container path must be absolute", volume)})
			}
		}

		if strings.HasPrefix(svc.Image, "postgres") {
			findings = append(findings, d.validatePostgres(name, svc)...)
		}

		if dbHost, ok := svc.Env("DB_HOST"); ok {
			if _, declared := d.Services[dbHost]; !declared {
				findings = append(findings, Finding{SeverityError, name,
					fmt.Sprintf("DB_HOST %q does not name a declared service", dbHost)})
			}
		}
	}

	if _, err := d.StartOrder(); err != nil {
		findings = append(findings, Finding{SeverityError, "", err.Error()})
	}

	return findings
}

func (d *Descriptor) validatePostgres(name string, svc Service) []Finding {
	var findings []Finding

	for _, key := range []string{"POSTGRES_DB", "POSTGRES_USER", "POSTGRES_PASSWORD"} {
		value, ok := svc.Env(key)
		if !ok || value == "" {
			findings = append(findings, Finding{SeverityError, name,
				fmt.Sprintf("postgres service must set %s", key)})
		}
	}

	if password, ok := svc.Env("POSTGRES_PASSWORD"); ok && password != "" {
		if !strings.HasPrefix(password, "${") {
			findings = append(findings, Finding{SeverityWarning, name,
				"POSTGRES_PASSWORD is a literal value; use a ${VAR} reference so the secret stays out of the file"})
		}
	}

	return findings
}

func splitPort(mapping string) (host, container string, err error) {
	parts := strings.Split(mapping, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("port %q is not a host:container pair", mapping)
	}
	for _, part := range parts {
		n, convErr := strconv.Atoi(part)
		if convErr != nil || n < 1 || n > 65535 {
			return "", "", fmt.Errorf("port %q has a value outside 1-65535", mapping)
		}
	}
	return parts[0], parts[1], nil
}

// StartOrder returns the service names in dependency order. Services with no
// relationship to each other come out in name order so the result is stable.
func (d *Descriptor) StartOrder() ([]string, error) {
	names := make([]string, 0, len(d.Services))
	for name := range d.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle through service %q", name)
		}
		state[name] = visiting

		deps := append([]string(nil), d.Services[name].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := d.Services[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

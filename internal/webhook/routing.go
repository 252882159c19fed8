package webhook

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"crmsync_backend/platform/apperr"
)

// Routing maps inbound webhook fields to source-CRM identifiers: project id
// to a human-readable project name, and agent email to the CRM's advisor id.
// Loaded from a JSON file so sales teams can be re-mapped without a deploy.
type Routing struct {
	Projects          map[int]string `json:"-"`
	OwnerResponsables map[string]int `json:"owner_responsables"`

	// JSON object keys are strings; decoded here then converted.
	RawProjects map[string]string `json:"projects"`
}

// LoadRouting reads the routing table from a JSON file.
func LoadRouting(path string) (*Routing, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Config("read routing file: " + err.Error())
	}

	var r Routing
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, apperr.Config("parse routing file: " + err.Error())
	}

	r.Projects = make(map[int]string, len(r.RawProjects))
	for key, name := range r.RawProjects {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, apperr.Config("routing project key " + key + " is not numeric")
		}
		r.Projects[id] = name
	}
	r.RawProjects = nil

	if r.OwnerResponsables == nil {
		r.OwnerResponsables = map[string]int{}
	}
	return &r, nil
}

// ProjectName returns the display name for a project id, if mapped.
func (r *Routing) ProjectName(id int) (string, bool) {
	name, ok := r.Projects[id]
	return name, ok
}

// ResponsableID resolves the advisor id for an owner email. Lookup is
// case-insensitive since the engagement platform is inconsistent about
// email casing.
func (r *Routing) ResponsableID(ownerEmail string) (int, bool) {
	email := strings.ToLower(strings.TrimSpace(ownerEmail))
	if email == "" {
		return 0, false
	}
	if id, ok := r.OwnerResponsables[email]; ok {
		return id, true
	}
	for key, id := range r.OwnerResponsables {
		if strings.EqualFold(key, email) {
			return id, true
		}
	}
	return 0, false
}

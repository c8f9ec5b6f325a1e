package ssi

import (
	"fmt"
	"sort"
	"sync"

	"github.com/findy-network/findy-triangle/agent/didcomm"
	"github.com/golang/glog"
	"github.com/samber/lo"
)

type Schema struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Attributes []string `json:"attributes"`
}

type CredDef struct {
	ID       string `json:"id"`
	SchemaID string `json:"schemaId"`
	Tag      string `json:"tag"`
}

// registry is the agent's local stand-in for the ledger. The schemas and
// credential definitions live only in memory.
type registry struct {
	lk       sync.RWMutex
	schemas  map[string]*Schema
	credDefs map[string]*CredDef
}

func newRegistry() *registry {
	return &registry{
		schemas:  make(map[string]*Schema),
		credDefs: make(map[string]*CredDef),
	}
}

// RegisterSchema registers the schema with our DID as the author. The
// registration of the same schema again returns the existing one.
func (a *Agent) RegisterSchema(name, version string, attrs []string) (*Schema, error) {
	if name == "" || version == "" || len(attrs) == 0 {
		return nil, fmt.Errorf("%w: schema name, version and attributes are needed",
			ErrInvalid)
	}
	r := a.registry
	r.lk.Lock()
	defer r.lk.Unlock()

	id := fmt.Sprintf("%s:2:%s:%s", a.did, name, version)
	if s, ok := r.schemas[id]; ok {
		return s, nil
	}
	s := &Schema{
		ID:         id,
		Name:       name,
		Version:    version,
		Attributes: lo.Uniq(attrs),
	}
	r.schemas[id] = s
	glog.V(1).Infof("%s: schema %s registered", a.label, id)
	return s, nil
}

// RegisterCredDef registers the credential definition for the schema.
func (a *Agent) RegisterCredDef(schemaID, tag string) (*CredDef, error) {
	r := a.registry
	r.lk.Lock()
	defer r.lk.Unlock()

	if _, ok := r.schemas[schemaID]; !ok {
		return nil, fmt.Errorf("%w: unknown schema %s", ErrInvalid, schemaID)
	}
	if tag == "" {
		tag = "default"
	}
	id := fmt.Sprintf("%s:3:CL:%s:%s", a.did, schemaID, tag)
	if cd, ok := r.credDefs[id]; ok {
		return cd, nil
	}
	cd := &CredDef{ID: id, SchemaID: schemaID, Tag: tag}
	r.credDefs[id] = cd
	glog.V(1).Infof("%s: cred def %s registered", a.label, id)
	return cd, nil
}

// CredDef returns the registered credential definition.
func (a *Agent) CredDef(id string) (*CredDef, bool) {
	a.registry.lk.RLock()
	defer a.registry.lk.RUnlock()
	cd, ok := a.registry.credDefs[id]
	return cd, ok
}

func (r *registry) checkAttributes(credDefID string, attrs []didcomm.CredentialAttribute) error {
	r.lk.RLock()
	defer r.lk.RUnlock()

	cd, ok := r.credDefs[credDefID]
	if !ok {
		return fmt.Errorf("%w: unknown cred def %s", ErrInvalid, credDefID)
	}
	want := append([]string(nil), r.schemas[cd.SchemaID].Attributes...)
	got := lo.Map(attrs, func(at didcomm.CredentialAttribute, _ int) string {
		return at.Name
	})
	sort.Strings(want)
	sort.Strings(got)
	if len(want) != len(got) || !lo.Every(want, got) || len(lo.Uniq(got)) != len(got) {
		return fmt.Errorf("%w: attributes %v don't match schema %v",
			ErrInvalid, got, want)
	}
	return nil
}

// Package keys centralizes prefixed key construction so every component
// addresses the same namespace in the shared key/value store. No other
// package may concatenate a key string directly; that is the entire
// point of this package existing.
package keys

import "fmt"

// Scheme builds the four typed key families under one fixed prefix. A
// single namespace owns every key so that cluster-wide state never
// depends on a numeric database index for isolation.
type Scheme struct {
	prefix string
}

func NewScheme(prefix string) Scheme {
	if prefix == "" {
		prefix = "foldcore"
	}
	return Scheme{prefix: prefix}
}

// State is the hash key holding a job's mutable runtime state.
func (s Scheme) State(jobID string) string {
	return fmt.Sprintf("%s:job:state:%s", s.prefix, jobID)
}

// Meta is the hash key holding a job's (re)drive inputs.
func (s Scheme) Meta(jobID string) string {
	return fmt.Sprintf("%s:job:meta:%s", s.prefix, jobID)
}

// Events is the list key holding a job's persisted event log.
func (s Scheme) Events(jobID string) string {
	return fmt.Sprintf("%s:job:events:%s", s.prefix, jobID)
}

// Reasoner is the key name reserved for a job's reasoner interrupt
// handle. No package reads or writes it: jobmeta keeps the handle as
// reasoner_* fields in the meta hash.
func (s Scheme) Reasoner(jobID string) string {
	return fmt.Sprintf("%s:job:reasoner:%s", s.prefix, jobID)
}

// StatePattern is the SCAN match pattern the reaper uses to sweep every
// state hash in the namespace.
func (s Scheme) StatePattern() string {
	return fmt.Sprintf("%s:job:state:*", s.prefix)
}

// MetaPattern is the SCAN match pattern the reaper uses to sweep every
// meta hash in the namespace.
func (s Scheme) MetaPattern() string {
	return fmt.Sprintf("%s:job:meta:*", s.prefix)
}

// JobIDFromStateKey extracts the job id suffix from a state key returned
// by SCAN, the inverse of State.
func (s Scheme) JobIDFromStateKey(key string) string {
	return trimPrefix(key, fmt.Sprintf("%s:job:state:", s.prefix))
}

// JobIDFromMetaKey extracts the job id suffix from a meta key returned
// by SCAN, the inverse of Meta.
func (s Scheme) JobIDFromMetaKey(key string) string {
	return trimPrefix(key, fmt.Sprintf("%s:job:meta:", s.prefix))
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

package model

// RequirementsSection maps environment names to ordered requirement spec
// lists. Duplicates across build/host are permitted; duplicates within
// one list collapse when specs are unioned in.
type RequirementsSection struct {
	Build          []string `yaml:"build,omitempty" json:"build,omitempty"`
	Host           []string `yaml:"host,omitempty" json:"host,omitempty"`
	Run            []string `yaml:"run,omitempty" json:"run,omitempty"`
	RunConstrained []string `yaml:"run_constrained,omitempty" json:"run_constrained,omitempty"`
}

// Environment names used throughout the finalization pipeline.
const (
	EnvBuild          = "build"
	EnvHost           = "host"
	EnvRun            = "run"
	EnvRunConstrained = "run_constrained"
)

// Get returns the spec list for an environment name.
func (s *RequirementsSection) Get(env string) []string {
	switch env {
	case EnvBuild:
		return s.Build
	case EnvHost:
		return s.Host
	case EnvRun:
		return s.Run
	case EnvRunConstrained:
		return s.RunConstrained
	}
	return nil
}

// Set replaces the spec list for an environment name.
func (s *RequirementsSection) Set(env string, specs []string) {
	switch env {
	case EnvBuild:
		s.Build = specs
	case EnvHost:
		s.Host = specs
	case EnvRun:
		s.Run = specs
	case EnvRunConstrained:
		s.RunConstrained = specs
	}
}

// Clone returns an independent copy of the section.
func (s *RequirementsSection) Clone() *RequirementsSection {
	if s == nil {
		return &RequirementsSection{}
	}
	clone := &RequirementsSection{}
	clone.Build = append([]string(nil), s.Build...)
	clone.Host = append([]string(nil), s.Host...)
	clone.Run = append([]string(nil), s.Run...)
	clone.RunConstrained = append([]string(nil), s.RunConstrained...)
	return clone
}
